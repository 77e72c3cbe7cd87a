package streamserver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/assay-dev/assay/internal/reason"
)

// resolveUnderRoot is the policy path jail: reject
// empty, absolute, and root-prefixed paths; reject components that
// would escape root via "..", then canonicalize (resolving symlinks)
// and re-check containment to catch symlink escapes.
func resolveUnderRoot(root, userPath string) (string, error) {
	if userPath == "" {
		return "", reason.New(reason.InvalidRequest, "policy_path must not be empty")
	}
	if filepath.IsAbs(userPath) {
		return "", reason.New(reason.PermissionDenied, fmt.Sprintf("policy_path %q must be relative to the policy root", userPath))
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", reason.New(reason.PolicyRead, fmt.Sprintf("resolve policy root %q: %v", root, err))
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", reason.New(reason.PolicyRead, fmt.Sprintf("resolve policy root %q: %v", root, err))
	}

	joined := filepath.Join(absRoot, userPath)
	if !withinRoot(absRoot, joined) {
		return "", reason.New(reason.PermissionDenied, fmt.Sprintf("policy_path %q escapes the policy root", userPath))
	}

	// If the target exists, resolve symlinks and re-check containment:
	// a symlink inside the root may point outside it.
	if resolved, err := filepath.EvalSymlinks(joined); err == nil {
		if !withinRoot(absRoot, resolved) {
			return "", reason.New(reason.PermissionDenied, fmt.Sprintf("policy_path %q resolves outside the policy root", userPath))
		}
		return resolved, nil
	}

	return joined, nil
}

func withinRoot(absRoot, candidate string) bool {
	rel, err := filepath.Rel(absRoot, candidate)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
