package ringmenu

import "errors"

// Error taxonomy:
//
//   - ErrConfig / ErrInvalidConfig are programmer errors raised synchronously
//     at construction time.
//   - ErrIndexOutOfRange is a programmer error reported to the caller without
//     altering engine state.
//   - Contention (locked/busy) is NEVER an error: concurrent input racing the
//     animation system is an expected, routine condition, so it is encoded in
//     the admitted/dropped return path instead.
//   - A stuck lock surfaces as a RecoverableError event, not an error value;
//     by the time it is detected the original caller is long gone.
var (
	// ErrConfig reports an invalid wheel normalizer configuration.
	ErrConfig = errors.New("invalid wheel config")

	// ErrInvalidConfig reports an engine constructed with an unusable ring.
	ErrInvalidConfig = errors.New("invalid engine config")

	// ErrIndexOutOfRange reports a selection target outside [0, itemCount).
	ErrIndexOutOfRange = errors.New("selection index out of range")
)
