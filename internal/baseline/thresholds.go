package baseline

import "fmt"

// Mode selects which thresholding formula DecideSuiteVerdict applies
//.
type Mode string

const (
	ModeMaxDrop  Mode = "max_drop"
	ModeMinFloor Mode = "min_floor"
)

// ThresholdConfig is the `thresholds{min_score?, block_on_warn?}` config
// block plus the mode-specific limits.
type ThresholdConfig struct {
	MinScore    float64
	BlockOnWarn bool
	Mode        Mode
	MaxDropPct  float64 // used by ModeMaxDrop
	MinFloorPct float64 // used by ModeMinFloor
}

// Verdict is the suite-level gating decision.
type Verdict struct {
	Passed  bool
	Reasons []string
}

// DecideSuiteVerdict compares current against baseline (which may be nil
// for a baseline-less first run) under cfg and returns the suite
// pass/fail decision.
func DecideSuiteVerdict(current *Report, baseline *File, cfg ThresholdConfig, sawWarn bool, quarantined map[string]bool) Verdict {
	v := Verdict{Passed: true}

	if cfg.BlockOnWarn && sawWarn {
		v.Passed = false
		v.Reasons = append(v.Reasons, "a Warn outcome was observed and block_on_warn is set")
	}

	for testID, tr := range current.Tests {
		if quarantined[testID] {
			continue
		}
		switch cfg.Mode {
		case ModeMinFloor:
			if tr.PassRate < cfg.MinFloorPct {
				v.Passed = false
				v.Reasons = append(v.Reasons, fmt.Sprintf("test %q pass rate %.3f is below the floor %.3f", testID, tr.PassRate, cfg.MinFloorPct))
			}
		case ModeMaxDrop:
			if baseline == nil {
				continue
			}
			entry := baseline.EntryByTestID(testID)
			if entry == nil {
				continue
			}
			drop := entry.PassRate - tr.PassRate
			if drop > cfg.MaxDropPct {
				v.Passed = false
				v.Reasons = append(v.Reasons, fmt.Sprintf("test %q pass rate dropped %.3f, exceeding max_drop %.3f (baseline %.3f, current %.3f)", testID, drop, cfg.MaxDropPct, entry.PassRate, tr.PassRate))
			}
		}
	}

	return v
}
