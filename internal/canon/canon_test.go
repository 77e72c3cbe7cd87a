package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSortsStructFields(t *testing.T) {
	type sample struct {
		Zeta  string `json:"zeta"`
		Alpha string `json:"alpha"`
	}
	out, err := JSON(sample{Zeta: "z", Alpha: "a"})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","zeta":"z"}`, out)
}

func TestJSONStringStripsInsignificantWhitespace(t *testing.T) {
	out, err := JSONString("{ \"b\" : 2,\n  \"a\" : 1 }")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, out)
}

func TestSha256HexJSONEquivalentForms(t *testing.T) {
	a := Sha256HexJSON(`{"x":1,"y":2}`)
	b := Sha256HexJSON("{\"y\": 2, \"x\": 1}")
	assert.Equal(t, a, b, "equivalent JSON documents must hash identically")

	plain := Sha256HexJSON("not json at all")
	assert.Equal(t, Sha256Hex("not json at all"), plain)
}
