package policy

import "github.com/assay-dev/assay/internal/reason"

// EvaluateToolBlocklist is the tool-blocklist verdict function:
// Blocked if any observed tool_name is in the blocklist.
func EvaluateToolBlocklist(blocklist []string, observed []string) Verdict {
	blocked := make(map[string]bool, len(blocklist))
	for _, name := range blocklist {
		blocked[name] = true
	}
	for _, tool := range observed {
		if blocked[tool] {
			return Verdict{
				Status:     Blocked,
				ReasonCode: reason.ToolBlocked,
				Reason:     "tool \"" + tool + "\" is on the blocklist",
				RuleID:     tool,
			}
		}
	}
	return allowed("no observed tool is on the blocklist")
}
