package dedup

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPolicy is returned for unknown date policy names.
var ErrInvalidPolicy = errors.New("invalid duplicate date policy")

// DatePolicy decides which member of a duplicate group survives.
type DatePolicy string

const (
	// DeleteNewer keeps the oldest file.
	DeleteNewer DatePolicy = "delete-newer"
	// DeleteOlder keeps the newest file.
	DeleteOlder DatePolicy = "delete-older"
)

// DefaultPolicy keeps the first copy that reached the library.
const DefaultPolicy = DeleteNewer

// ParsePolicy accepts the canonical names and the legacy aliases
// "newer" (delete newer copies) and "older" (delete older copies).
func ParsePolicy(s string) (DatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DeleteNewer), "newer", "oldest-first", "keep-oldest":
		return DeleteNewer, nil
	case string(DeleteOlder), "older", "newest-first", "keep-newest":
		return DeleteOlder, nil
	default:
		return "", fmt.Errorf("%w: %q (use %s or %s)", ErrInvalidPolicy, s, DeleteNewer, DeleteOlder)
	}
}

// Keeps describes the survivor in words, for reports.
func (p DatePolicy) Keeps() string {
	if p == DeleteOlder {
		return "newest"
	}
	return "oldest"
}
