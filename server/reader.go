package server

import (
	"bufio"
	"bytes"
	"io"

	"github.com/cachelot/cachelot-sub000/recycle"
)

var crlf = []byte(Separator)

// reader splits an ASCII protocol stream into command lines and storage
// data blocks. It buffers at the configured command-line limit
// (MaxCommandLength when none is set) so that a single read can always
// satisfy one command line; a longer line is rejected as a client error.
type reader struct {
	br   *bufio.Reader
	pool *recycle.Pool
}

// newReader builds a reader buffered at maxLine bytes. maxLine <= 0 falls
// back to MaxCommandLength, so callers that don't configure a limit (or
// existing tests) keep the original fixed buffer size.
func newReader(rwc io.Reader, pool *recycle.Pool, maxLine int) reader {
	if maxLine <= 0 {
		maxLine = MaxCommandLength
	}
	return reader{br: bufio.NewReaderSize(rwc, maxLine), pool: pool}
}

// readCommand reads one line and splits it into a command name and its
// argument fields. err is io.EOF on a clean client disconnect.
func (r reader) readCommand() (command []byte, fields [][]byte, clientErr, err error) {
	line, lineErr := r.br.ReadSlice('\n')
	if lineErr != nil {
		if lineErr == bufio.ErrBufferFull {
			clientErr = ErrBadFormat
			r.discardLine()
			return
		}
		err = lineErr
		return
	}
	line = bytes.TrimSuffix(line, crlf)
	line = bytes.TrimSuffix(line, []byte{'\n'})
	parts := bytes.Fields(line)
	if len(parts) == 0 {
		clientErr = ErrBadFormat
		return
	}
	command = parts[0]
	fields = parts[1:]
	return
}

// discardLine consumes bytes up to and including the next newline, used
// to resynchronize after a too-long command line.
func (r reader) discardLine() {
	for {
		_, err := r.br.ReadSlice('\n')
		if err == nil || err != bufio.ErrBufferFull {
			return
		}
	}
}

// readDataBlock reads exactly n bytes of storage-command payload plus
// its trailing CRLF. The returned slice is pool-backed; callers own it
// until they pass it to cache.Engine, which copies it into the arena.
func (r reader) readDataBlock(n int) (data []byte, clientErr, err error) {
	data = r.pool.Get(n)
	if _, err = io.ReadFull(r.br, data); err != nil {
		return
	}
	var tail [2]byte
	if _, err = io.ReadFull(r.br, tail[:]); err != nil {
		return
	}
	if tail != [2]byte{'\r', '\n'} {
		clientErr = ErrBadFormat
	}
	return
}

// discardCommand consumes n bytes plus a trailing CRLF without
// retaining them, used when a storage command declares more bytes than
// MaxItemSize allows but its data block is still sitting on the wire.
func (r reader) discardCommand(n int) error {
	_, err := r.br.Discard(n + len(crlf))
	return err
}
