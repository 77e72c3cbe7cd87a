package streamserver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnderRootRejectsEmpty(t *testing.T) {
	_, err := resolveUnderRoot(t.TempDir(), "")
	require.Error(t, err)
}

func TestResolveUnderRootRejectsAbsolute(t *testing.T) {
	_, err := resolveUnderRoot(t.TempDir(), "/etc/passwd")
	require.Error(t, err)
}

func TestResolveUnderRootRejectsDotDotEscape(t *testing.T) {
	root := t.TempDir()
	_, err := resolveUnderRoot(root, "../../etc/passwd")
	require.Error(t, err)
}

func TestResolveUnderRootAllowsNestedPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "p.json"), []byte("{}"), 0o644))

	resolved, err := resolveUnderRoot(root, "sub/p.json")
	require.NoError(t, err)
	assert.FileExists(t, resolved)
}

func TestResolveUnderRootRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0o644))

	link := filepath.Join(root, "escape.json")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	_, err := resolveUnderRoot(root, "escape.json")
	require.Error(t, err)
}
