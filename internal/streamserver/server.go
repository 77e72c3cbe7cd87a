package streamserver

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/assay-dev/assay/internal/policy"
	"github.com/assay-dev/assay/internal/reason"
)

// Config tunes the server's resource limits and the policy jail root.
type Config struct {
	PolicyRoot       string
	Timeout          time.Duration
	MaxMessageBytes  int64
	MaxFieldBytes    int
	MaxToolCallCount int
	CacheCapacity    int
}

const (
	defaultMaxMessageBytes  = 1 << 20 // 1 MiB
	defaultMaxFieldBytes    = 64 << 10
	defaultMaxToolCallCount = 1000
)

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = defaultMaxMessageBytes
	}
	if c.MaxFieldBytes <= 0 {
		c.MaxFieldBytes = defaultMaxFieldBytes
	}
	if c.MaxToolCallCount <= 0 {
		c.MaxToolCallCount = defaultMaxToolCallCount
	}
	return c
}

// Server evaluates streaming requests against policy files resolved
// under a policy root, sharing internal/policy's pure verdict functions
// with the batch engine.
type Server struct {
	cfg   Config
	cache *policyCache
}

// New builds a Server. Returns an error only if the LRU cache capacity
// is invalid.
func New(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()
	cache, err := newPolicyCache(cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("build compiled-policy cache: %w", err)
	}
	return &Server{cfg: cfg, cache: cache}, nil
}

// Handle is the pure per-request decision function: resolve path, load+hash, compile-or-reuse, evaluate. It performs
// file I/O (loading the policy file) but no network I/O and no
// transport framing; that is Serve's job.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	if err := s.checkLimits(req); err != nil {
		return errorResponse(err)
	}

	resolved, err := resolveUnderRoot(s.cfg.PolicyRoot, req.PolicyPath)
	if err != nil {
		return errorResponse(err)
	}

	content, err := os.ReadFile(resolved)
	if err != nil {
		fault := reason.New(reason.PolicyRead, fmt.Sprintf("read policy file %q: %v", resolved, err))
		return s.failsafeAllow(fault, resolved)
	}
	sum := sha256.Sum256(content)
	key := cacheKey{absPath: resolved, contentSHA: hex.EncodeToString(sum[:])}

	cp, ok := s.cache.get(key)
	if !ok {
		compiled, err := compilePolicy(content)
		if err != nil {
			return s.failsafeAllow(err, resolved)
		}
		cp = compiled
		s.cache.put(key, cp)
	}

	verdict := s.evaluate(cp, req)
	s.logUsage(req.ToolName, verdict)
	return Response{Verdict: &verdict}
}

func (s *Server) evaluate(cp *compiledPolicy, req Request) policy.Verdict {
	if len(req.ObservedSequence) > 0 && cp.sequencePolicy != nil {
		if v := policy.EvaluateSequence(*cp.sequencePolicy, req.ObservedSequence); v.Status != policy.Allowed {
			return v
		}
	}
	if len(cp.blocklist) > 0 {
		observed := req.ObservedSequence
		if observed == nil && req.ToolName != "" {
			observed = []string{req.ToolName}
		}
		if v := policy.EvaluateToolBlocklist(cp.blocklist, observed); v.Status != policy.Allowed {
			return v
		}
	}
	if cp.argsPolicy != nil {
		return policy.EvaluateToolArgs(*cp.argsPolicy, req.ToolName, req.Args)
	}
	return policy.Verdict{Status: policy.Allowed, Reason: "no policy configured for this request"}
}

func (s *Server) checkLimits(req Request) error {
	if len(req.ToolName) > s.cfg.MaxFieldBytes {
		return reason.New(reason.LimitExceeded, "tool_name exceeds the configured max field size")
	}
	if len(req.ObservedSequence) > s.cfg.MaxToolCallCount {
		return reason.New(reason.LimitExceeded, "observed_sequence exceeds the configured max tool-call count")
	}
	return nil
}

func (s *Server) logUsage(tool string, v policy.Verdict) {
	slog.Info("assay.usage.metered", "tool", tool, "decision", v.Status, "reason_code", v.ReasonCode)
}

// failsafeAllow is the fail-safe path: an internal fault while reading
// the policy file, or while compiling it on a compiled-policy cache miss
// (E_POLICY_READ), chooses Allowed rather than
// propagating a hard error, so a corrupt or momentarily-unreadable
// policy file cannot turn into a denial of service for every caller.
// Path-jail failures (step 1) and request-shape limit violations are not
// internal faults and are never fail-safed; they return their typed
// error response unchanged.
func (s *Server) failsafeAllow(err error, configPath string) Response {
	slog.Warn("assay.failsafe.triggered",
		"reason", err.Error(),
		"config_path", configPath,
		"action", "allowed",
		"timestamp", time.Now().Format(time.RFC3339),
	)
	v := policy.Verdict{Status: policy.Allowed, Reason: "fail-safe: " + err.Error()}
	return Response{Verdict: &v}
}

// Serve runs the line-delimited JSON request/response loop over r/w.
// Deliberately thin: everything decidable lives in Handle. An over-limit
// line is drained and answered with E_LIMIT_EXCEEDED; it never
// terminates the loop.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReaderSize(r, 64*1024)
	enc := json.NewEncoder(w)

	for {
		line, tooLong, readErr := readLimitedLine(br, s.cfg.MaxMessageBytes)
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("read request stream: %w", readErr)
		}

		if tooLong {
			if err := enc.Encode(errorResponse(reason.New(reason.LimitExceeded, "request exceeds the configured max message size"))); err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
		} else if line = bytes.TrimSpace(line); len(line) > 0 {
			var req Request
			if err := json.Unmarshal(line, &req); err != nil {
				if err := enc.Encode(errorResponse(reason.New(reason.InvalidRequest, fmt.Sprintf("malformed request: %v", err)))); err != nil {
					return fmt.Errorf("encode response: %w", err)
				}
			} else {
				reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
				resp := s.Handle(reqCtx, req)
				cancel()

				if err := enc.Encode(resp); err != nil {
					return fmt.Errorf("encode response: %w", err)
				}
			}
		}

		if readErr == io.EOF {
			return nil
		}
	}
}

// readLimitedLine reads one newline-delimited request, keeping at most
// limit bytes in memory. An over-limit line is consumed to its end and
// reported via tooLong, so the stream stays aligned on the next request
// regardless of how large the offending line was.
func readLimitedLine(br *bufio.Reader, limit int64) ([]byte, bool, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if err == nil {
			chunk = chunk[:len(chunk)-1]
		}
		if !tooLong {
			line = append(line, chunk...)
			if int64(len(line)) > limit {
				tooLong = true
				line = nil
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, tooLong, err
	}
}
