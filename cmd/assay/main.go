// assay batch evaluator - runs a declarative test suite against a
// recorded trace and gates on the result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/assay-dev/assay/internal/baseline"
	"github.com/assay-dev/assay/internal/config"
	"github.com/assay-dev/assay/internal/engine"
	"github.com/assay-dev/assay/internal/metrics"
	"github.com/assay-dev/assay/internal/redact"
	"github.com/assay-dev/assay/internal/store"
	"github.com/assay-dev/assay/internal/version"
)

// Process exit codes.
const (
	exitOK         = 0
	exitSuiteGated = 1
	exitConfig     = 2
	exitInternal   = 3
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", getEnv("ASSAY_CONFIG", "assay.yaml"), "Path to the suite configuration file")
	dbPath := flag.String("db", getEnv("ASSAY_DB", "assay.db"), "Path to the results database (\":memory:\" permitted)")
	tracePath := flag.String("trace", "", "Path to a recorded JSONL trace to replay")
	baselinePath := flag.String("baseline", "", "Path to a baseline file to gate against")
	lastN := flag.Int("last-n", 5, "Rolling-window size for report aggregation")
	legacyConfig := flag.Bool("legacy-config", false, "Force legacy (version 0) config parsing")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	log.Printf("Starting %s", version.Full())
	log.Printf("Config: %s", *configPath)

	cfg, err := config.Load(*configPath, config.LoadOptions{ForceLegacy: *legacyConfig})
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return exitConfig
	}

	if *tracePath == "" {
		log.Printf("No -trace given: a recorded trace is required (live providers are configured separately)")
		return exitConfig
	}
	source, err := os.ReadFile(*tracePath)
	if err != nil {
		log.Printf("Failed to read trace %s: %v", *tracePath, err)
		return exitConfig
	}
	provider, err := engine.NewTraceProvider(source)
	if err != nil {
		log.Printf("Failed to parse trace %s: %v", *tracePath, err)
		return exitConfig
	}

	var baselineFile *baseline.File
	if *baselinePath != "" {
		baselineFile, err = loadBaseline(*baselinePath, cfg.Suite)
		if err != nil {
			log.Printf("Failed to load baseline: %v", err)
			return exitConfig
		}
	}

	ctx := context.Background()

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Printf("Failed to open store %s: %v", *dbPath, err)
		return exitInternal
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}()
	if err := st.InitSchema(ctx); err != nil {
		log.Printf("Failed to initialize store schema: %v", err)
		return exitInternal
	}

	redactor := redact.NewService(redact.Config{RedactPrompts: cfg.Settings.RedactPrompts})
	testCases := cfg.TestCases()
	prompts := make(map[string]string, len(testCases))
	for _, tc := range testCases {
		prompts[tc.ID] = redactor.Prompt(tc.Prompt)
	}

	registry := metrics.NewRegistry(nil, nil)
	eng := engine.New(st, provider, registry, engine.Config{
		Suite:         cfg.Suite,
		Model:         cfg.Model,
		Parallel:      cfg.Settings.Parallel,
		EngineVersion: version.Full(),
	})

	summary, err := eng.Run(ctx, "", testCases)
	if err != nil {
		log.Printf("Engine run failed: %v", err)
		return exitInternal
	}

	sawWarn := false
	for _, r := range summary.Results {
		if r.Outcome == engine.Warn {
			sawWarn = true
		}
		log.Printf("%-8s %s (score %.3f) prompt: %s", r.Outcome, r.TestID, r.Score, prompts[r.TestID])
	}

	report, err := baseline.ReportFromDB(ctx, st, cfg.Suite, *lastN)
	if err != nil {
		log.Printf("Report aggregation failed: %v", err)
		return exitInternal
	}

	quarantined, err := st.QuarantinedTests(ctx, cfg.Suite)
	if err != nil {
		log.Printf("Quarantine lookup failed: %v", err)
		return exitInternal
	}

	thresholds := baseline.ThresholdConfig{
		BlockOnWarn: cfg.Thresholds.BlockOnWarn,
		Mode:        baseline.ModeMinFloor,
		MinFloorPct: *cfg.Thresholds.MinScore,
	}
	if baselineFile != nil {
		thresholds.Mode = baseline.ModeMaxDrop
		thresholds.MaxDropPct = 1 - *cfg.Thresholds.MinScore
	}

	verdict := baseline.DecideSuiteVerdict(report, baselineFile, thresholds, sawWarn, quarantined)
	if !verdict.Passed {
		for _, reason := range verdict.Reasons {
			log.Printf("Suite gate: %s", reason)
		}
		log.Printf("Suite %q failed (run %s)", cfg.Suite, summary.RunID)
		return exitSuiteGated
	}

	log.Printf("Suite %q passed (run %s)", cfg.Suite, summary.RunID)
	return exitOK
}

func loadBaseline(path, expectedSuite string) (*baseline.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline %s: %w", path, err)
	}
	var f baseline.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse baseline %s: %w", path, err)
	}
	if err := f.Validate(expectedSuite, ""); err != nil {
		return nil, err
	}
	return &f, nil
}
