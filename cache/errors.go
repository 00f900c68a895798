package cache

import "errors"

// Sentinel errors returned by Engine operations. Server-facing code wraps
// these with github.com/facebookgo/stackerr at the protocol boundary so a
// failure carries a stack trace by the time it reaches a log line.
var (
	ErrKeyTooLong      = errors.New("cache: key too long")
	ErrItemTooBig      = errors.New("cache: item too big for a single page")
	ErrOutOfMemory     = errors.New("cache: out of memory")
	ErrInvalidArgument = errors.New("cache: invalid argument")
)
