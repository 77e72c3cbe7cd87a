package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/assay-dev/assay/internal/reason"
)

func TestEvaluateToolBlocklistBlocksMatchedTool(t *testing.T) {
	v := EvaluateToolBlocklist([]string{"rm_rf", "drop_table"}, []string{"list_files", "rm_rf"})
	assert.Equal(t, Blocked, v.Status)
	assert.Equal(t, reason.ToolBlocked, v.ReasonCode)
	assert.Equal(t, "rm_rf", v.RuleID)
}

func TestEvaluateToolBlocklistAllowsUnmatched(t *testing.T) {
	v := EvaluateToolBlocklist([]string{"rm_rf"}, []string{"list_files", "fetch"})
	assert.Equal(t, Allowed, v.Status)
}

func TestEvaluateToolBlocklistEmptyBlocklistAllowsAll(t *testing.T) {
	v := EvaluateToolBlocklist(nil, []string{"anything"})
	assert.Equal(t, Allowed, v.Status)
}
