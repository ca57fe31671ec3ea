package structural

import "errors"

// Structural failure sentinels. Callers match with errors.Is; the wrapped
// message carries the specifics.
var (
	// ErrDisconnected: the structure (or proposal) has no face-adjacent path
	// to any anchor cell. Always fatal to the call that found it.
	ErrDisconnected = errors.New("structure is not connected to the ground")
	// ErrOverstressed: at least one spring exceeds its failure threshold
	// under gravity alone.
	ErrOverstressed = errors.New("structure would fail under its own weight")
)
