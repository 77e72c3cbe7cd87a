// assay-mcp-server - streaming policy server over stdin/stdout, sharing
// the batch evaluator's policy engine so both paths produce identical
// verdicts.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/assay-dev/assay/internal/streamserver"
	"github.com/assay-dev/assay/internal/version"
)

const (
	exitOK     = 0
	exitConfig = 2
	exitFatal  = 3
)

func envInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: ignoring %s=%q: %v", key, raw, err)
		return defaultValue
	}
	return v
}

func main() {
	os.Exit(run())
}

func run() int {
	policyRoot := flag.String("policy-root", "", "Directory outside which policy file resolution is forbidden")
	flag.Parse()

	if *policyRoot == "" {
		log.Printf("--policy-root is required")
		return exitConfig
	}
	info, err := os.Stat(*policyRoot)
	if err != nil || !info.IsDir() {
		log.Printf("--policy-root %q is not a directory", *policyRoot)
		return exitConfig
	}

	if level := os.Getenv("ASSAY_LOG"); level != "" {
		var lv slog.Level
		if err := lv.UnmarshalText([]byte(level)); err != nil {
			log.Printf("Warning: ignoring ASSAY_LOG=%q: %v", level, err)
		} else {
			slog.SetLogLoggerLevel(lv)
		}
	}

	cfg := streamserver.Config{
		PolicyRoot:       *policyRoot,
		Timeout:          time.Duration(envInt("ASSAY_MCP_TIMEOUT_MS", 30_000)) * time.Millisecond,
		MaxMessageBytes:  int64(envInt("ASSAY_MCP_MAX_BYTES", 0)),
		MaxFieldBytes:    envInt("ASSAY_MCP_MAX_FIELD_BYTES", 0),
		MaxToolCallCount: envInt("ASSAY_MCP_MAX_TOOL_CALLS", 0),
		CacheCapacity:    envInt("ASSAY_MCP_CACHE_ENTRIES", 0),
	}

	srv, err := streamserver.New(cfg)
	if err != nil {
		log.Printf("Failed to build server: %v", err)
		return exitConfig
	}

	slog.Info("assay.mcp.serving", "version", version.Full(), "policy_root", *policyRoot)
	if err := srv.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		log.Printf("Serve failed: %v", err)
		return exitFatal
	}
	return exitOK
}
