package mindmap

import "github.com/pkg/errors"

var (
	// ErrValidation means the input was rejected before anything was attempted.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound covers both missing and not-owned resources.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a node has already been expanded.
	ErrConflict = errors.New("node already expanded")
	// ErrLimitExceeded is returned when expansion would exceed MaxNodeLevel.
	ErrLimitExceeded = errors.New("maximum depth reached")
	// ErrDataIntegrity means the stored tree is malformed.
	ErrDataIntegrity = errors.New("tree data integrity violated")
)
