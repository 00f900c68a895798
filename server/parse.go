package server

import (
	"errors"
	"strconv"
	"time"
)

var (
	ErrMoreFieldsRequired = errors.New("more fields required")
	ErrTooManyFields      = errors.New("too many fields")
	ErrBadFormat          = errors.New("bad command line format")
	ErrTooLargeItem       = errors.New("object too large for cache")
	ErrInvalidDelta       = errors.New("invalid numeric delta argument")
)

// maxExptimeRelative is the boundary the original draws between a
// "relative to now" exptime and an absolute Unix timestamp: anything at
// or below 30 days in seconds is relative, per SPEC_FULL.md §5's
// resolution of the exptime Open Question.
const maxExptimeRelative = 60 * 60 * 24 * 30

// checkKey validates a key per the protocol's 250-byte limit and rejects
// control bytes. Spaces are already excluded by construction, since keys
// are split on whitespace by the line parser.
func checkKey(key []byte) error {
	if len(key) == 0 || len(key) > 250 {
		return ErrBadFormat
	}
	for _, b := range key {
		if b < 0x20 || b == 0x7f {
			return ErrBadFormat
		}
	}
	return nil
}

// parseExptime converts a raw exptime field to a time.Duration TTL.
// A value of zero means "never expires", represented by cache.Engine as
// a zero Duration. Values from 1 up to and including 30 days are
// relative seconds from now; larger values are absolute Unix timestamps,
// converted to a duration against the current time (already-past
// timestamps yield a zero-or-negative duration, which Item.IsExpired
// treats as immediately expired).
func parseExptime(field []byte, now time.Time) (time.Duration, error) {
	n, err := strconv.ParseInt(string(field), 10, 64)
	if err != nil {
		return 0, ErrBadFormat
	}
	switch {
	case n == 0:
		return 0, nil
	case n < 0:
		return -time.Second, nil // already expired
	case n <= maxExptimeRelative:
		return time.Duration(n) * time.Second, nil
	default:
		return time.Unix(n, 0).Sub(now), nil
	}
}

func parseUint16(field []byte) (uint16, error) {
	n, err := strconv.ParseUint(string(field), 10, 16)
	if err != nil {
		return 0, ErrBadFormat
	}
	return uint16(n), nil
}

func parseInt(field []byte) (int, error) {
	n, err := strconv.ParseInt(string(field), 10, 32)
	if err != nil {
		return 0, ErrBadFormat
	}
	return int(n), nil
}

func parseUint64(field []byte) (uint64, error) {
	n, err := strconv.ParseUint(string(field), 10, 64)
	if err != nil {
		return 0, ErrInvalidDelta
	}
	return n, nil
}

func isNoreply(field []byte) bool {
	return string(field) == "noreply"
}

// storageFields holds the parsed common prefix every storage command
// (set/add/replace/append/prepend/cas) shares: <key> <flags> <exptime>
// <bytes>.
type storageFields struct {
	key     []byte
	flags   uint16
	ttl     time.Duration
	bytes   int
	noreply bool
}

// parseStorageFields parses "<key> <flags> <exptime> <bytes> [noreply]".
// extraRequired is 1 for cas, which has a trailing <cas unique> field
// inserted before noreply; the extra token is returned as extra.
func parseStorageFields(fields [][]byte, extraRequired int, now time.Time) (s storageFields, extra []byte, noreplyOK bool, err error) {
	const baseFields = 4
	need := baseFields + extraRequired
	if len(fields) < need {
		err = ErrMoreFieldsRequired
		return
	}
	if len(fields) > need+1 {
		err = ErrTooManyFields
		return
	}
	if err = checkKey(fields[0]); err != nil {
		return
	}
	s.key = fields[0]
	if s.flags, err = parseUint16(fields[1]); err != nil {
		return
	}
	if s.ttl, err = parseExptime(fields[2], now); err != nil {
		return
	}
	if s.bytes, err = parseInt(fields[3]); err != nil {
		return
	}
	if s.bytes < 0 {
		err = ErrBadFormat
		return
	}
	if extraRequired > 0 {
		extra = fields[baseFields]
	}
	if len(fields) == need+1 {
		s.noreply = isNoreply(fields[need])
		noreplyOK = s.noreply
	}
	return
}
