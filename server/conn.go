package server

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/facebookgo/stackerr"

	"github.com/cachelot/cachelot-sub000/cache"
	"github.com/cachelot/cachelot-sub000/internal/arena"
	"github.com/cachelot/cachelot-sub000/log"
)

// OutBufferSize sizes the buffered writer each connection uses to batch
// its response bytes into as few syscalls as possible.
const OutBufferSize = 8192

// ConnMeta holds everything a conn needs that outlives any single
// connection: the shared Handler (engine mailbox + buffer pool) and
// per-server limits, generalized from the teacher's ConnMeta (referenced
// but never defined in the retrieval pack) to also carry MaxItemSize.
type ConnMeta struct {
	Handler
	MaxItemSize    int
	MaxCommandLine int
}

type conn struct {
	reader
	*bufio.Writer
	closer io.Closer
	*ConnMeta
	log log.Logger
}

func newConn(l log.Logger, m *ConnMeta, rwc io.ReadWriteCloser) *conn {
	return &conn{
		reader:   newReader(rwc, m.Pool(), m.MaxCommandLine),
		Writer:   bufio.NewWriterSize(rwc, OutBufferSize),
		closer:   rwc,
		ConnMeta: m,
		log:      l,
	}
}

func (c *conn) serve() {
	c.log.Info("Serve connection.")
	defer func() {
		if r := recover(); r != nil {
			c.serverError(stackerr.Newf("Panic: %s", r))
			panic(r)
		}
		c.Close()
		c.log.Info("Connection closed.")
	}()

	err := c.loop()
	if err != nil {
		c.serverError(err)
	}
}

func (c *conn) Close() error {
	c.Flush()
	return c.closer.Close()
}

func (c *conn) loop() error {
	for {
		command, fields, clientErr, err := c.readCommand()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return stackerr.Wrap(err)
		}
		quit := false
		if clientErr == nil {
			c.log.Debugf("Command: %s.", command)
			switch string(command) {
			case GetCommand:
				clientErr, err = c.get(fields, false)
			case GetsCommand:
				clientErr, err = c.get(fields, true)
			case SetCommand:
				clientErr, err = c.set(fields)
			case AddCommand:
				clientErr, err = c.addOrReplace(fields, true)
			case ReplaceCommand:
				clientErr, err = c.addOrReplace(fields, false)
			case CasCommand:
				clientErr, err = c.cas(fields)
			case AppendCommand:
				clientErr, err = c.extend(fields, true)
			case PrependCommand:
				clientErr, err = c.extend(fields, false)
			case DeleteCommand:
				clientErr, err = c.delete(fields)
			case TouchCommand:
				clientErr, err = c.touch(fields)
			case IncrCommand:
				clientErr, err = c.arithmetic(fields, true)
			case DecrCommand:
				clientErr, err = c.arithmetic(fields, false)
			case FlushAllCommand:
				clientErr, err = c.flushAll(fields)
			case StatsCommand:
				err = c.stats()
			case VersionCommand:
				err = c.sendResponse(VersionPrefixResponse + " " + Version)
			case QuitCommand:
				quit = true
			default:
				c.log.Error("Unexpected command: ", string(command))
				err = c.sendResponse(ErrorResponse)
			}
		}
		if clientErr != nil && err == nil {
			err = c.sendClientError(clientErr)
		}
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

func (c *conn) get(fields [][]byte, withCas bool) (clientErr, err error) {
	if len(fields) == 0 {
		clientErr = stackerr.Wrap(ErrMoreFieldsRequired)
		return
	}
	for _, key := range fields {
		if clientErr = checkKey(key); clientErr != nil {
			return
		}
	}
	for _, key := range fields {
		var value []byte
		var flags uint16
		var cas uint64
		var found bool
		c.Do(func(e *cache.Engine) {
			value, flags, cas, found = e.Get(key)
		})
		if !found {
			continue
		}
		c.WriteString(ValueResponse)
		c.WriteByte(' ')
		c.Write(key)
		if withCas {
			fmt.Fprintf(c, " %v %v %v"+Separator, flags, len(value), cas)
		} else {
			fmt.Fprintf(c, " %v %v"+Separator, flags, len(value))
		}
		c.Write(value)
		if _, werr := c.WriteString(Separator); werr != nil {
			err = stackerr.Wrap(werr)
			return
		}
	}
	err = c.sendResponse(EndResponse)
	return
}

func (c *conn) set(fields [][]byte) (clientErr, err error) {
	s, _, _, parseErr := parseStorageFields(fields, 0, time.Now())
	if parseErr != nil {
		clientErr = stackerr.Wrap(parseErr)
		return
	}
	if s.bytes > c.MaxItemSize {
		clientErr = stackerr.Wrap(ErrTooLargeItem)
		err = c.discardCommand(s.bytes)
		return
	}
	data, dataClientErr, dataErr := c.readDataBlock(s.bytes)
	if dataErr != nil || dataClientErr != nil {
		err, clientErr = dataErr, dataClientErr
		return
	}
	var setErr error
	c.Do(func(e *cache.Engine) {
		setErr = e.Set(s.key, data, s.flags, s.ttl)
	})
	if setErr != nil {
		clientErr = stackerr.Wrap(setErr)
		return
	}
	if s.noreply {
		err = c.Flush()
		return
	}
	err = c.sendResponse(StoredResponse)
	return
}

func (c *conn) addOrReplace(fields [][]byte, isAdd bool) (clientErr, err error) {
	s, _, _, parseErr := parseStorageFields(fields, 0, time.Now())
	if parseErr != nil {
		clientErr = stackerr.Wrap(parseErr)
		return
	}
	if s.bytes > c.MaxItemSize {
		clientErr = stackerr.Wrap(ErrTooLargeItem)
		err = c.discardCommand(s.bytes)
		return
	}
	data, dataClientErr, dataErr := c.readDataBlock(s.bytes)
	if dataErr != nil || dataClientErr != nil {
		err, clientErr = dataErr, dataClientErr
		return
	}
	var stored bool
	var opErr error
	c.Do(func(e *cache.Engine) {
		if isAdd {
			stored, opErr = e.Add(s.key, data, s.flags, s.ttl)
		} else {
			stored, opErr = e.Replace(s.key, data, s.flags, s.ttl)
		}
	})
	if opErr != nil {
		clientErr = stackerr.Wrap(opErr)
		return
	}
	if s.noreply {
		err = c.Flush()
		return
	}
	if stored {
		err = c.sendResponse(StoredResponse)
	} else {
		err = c.sendResponse(NotStoredResponse)
	}
	return
}

func (c *conn) cas(fields [][]byte) (clientErr, err error) {
	s, casField, _, parseErr := parseStorageFields(fields, 1, time.Now())
	if parseErr != nil {
		clientErr = stackerr.Wrap(parseErr)
		return
	}
	casUnique, parseErr := parseUint64(casField)
	if parseErr != nil {
		clientErr = stackerr.Wrap(parseErr)
		return
	}
	if s.bytes > c.MaxItemSize {
		clientErr = stackerr.Wrap(ErrTooLargeItem)
		err = c.discardCommand(s.bytes)
		return
	}
	data, dataClientErr, dataErr := c.readDataBlock(s.bytes)
	if dataErr != nil || dataClientErr != nil {
		err, clientErr = dataErr, dataClientErr
		return
	}
	var found, stored bool
	var opErr error
	c.Do(func(e *cache.Engine) {
		found, stored, opErr = e.Cas(s.key, data, s.flags, s.ttl, casUnique)
	})
	if opErr != nil {
		clientErr = stackerr.Wrap(opErr)
		return
	}
	if s.noreply {
		err = c.Flush()
		return
	}
	switch {
	case !found:
		err = c.sendResponse(NotFoundResponse)
	case !stored:
		err = c.sendResponse(ExistsResponse)
	default:
		err = c.sendResponse(StoredResponse)
	}
	return
}

func (c *conn) extend(fields [][]byte, isAppend bool) (clientErr, err error) {
	s, _, _, parseErr := parseStorageFields(fields, 0, time.Now())
	if parseErr != nil {
		clientErr = stackerr.Wrap(parseErr)
		return
	}
	if s.bytes > c.MaxItemSize {
		clientErr = stackerr.Wrap(ErrTooLargeItem)
		err = c.discardCommand(s.bytes)
		return
	}
	data, dataClientErr, dataErr := c.readDataBlock(s.bytes)
	if dataErr != nil || dataClientErr != nil {
		err, clientErr = dataErr, dataClientErr
		return
	}
	var stored bool
	var opErr error
	c.Do(func(e *cache.Engine) {
		if isAppend {
			stored, opErr = e.Append(s.key, data)
		} else {
			stored, opErr = e.Prepend(s.key, data)
		}
	})
	if opErr != nil {
		clientErr = stackerr.Wrap(opErr)
		return
	}
	if s.noreply {
		err = c.Flush()
		return
	}
	if stored {
		err = c.sendResponse(StoredResponse)
	} else {
		err = c.sendResponse(NotStoredResponse)
	}
	return
}

func (c *conn) delete(fields [][]byte) (clientErr, err error) {
	if len(fields) == 0 {
		clientErr = stackerr.Wrap(ErrMoreFieldsRequired)
		return
	}
	key := fields[0]
	noreply := len(fields) > 1 && isNoreply(fields[len(fields)-1])
	if clientErr = checkKey(key); clientErr != nil {
		return
	}
	var deleted bool
	c.Do(func(e *cache.Engine) {
		deleted = e.Delete(key)
	})
	if noreply {
		err = c.Flush()
		return
	}
	if deleted {
		err = c.sendResponse(DeletedResponse)
	} else {
		err = c.sendResponse(NotFoundResponse)
	}
	return
}

func (c *conn) touch(fields [][]byte) (clientErr, err error) {
	if len(fields) < 2 {
		clientErr = stackerr.Wrap(ErrMoreFieldsRequired)
		return
	}
	key := fields[0]
	if clientErr = checkKey(key); clientErr != nil {
		return
	}
	ttl, parseErr := parseExptime(fields[1], time.Now())
	if parseErr != nil {
		clientErr = stackerr.Wrap(parseErr)
		return
	}
	noreply := len(fields) > 2 && isNoreply(fields[2])
	var touched bool
	c.Do(func(e *cache.Engine) {
		touched = e.Touch(key, ttl)
	})
	if noreply {
		err = c.Flush()
		return
	}
	if touched {
		err = c.sendResponse(TouchedResponse)
	} else {
		err = c.sendResponse(NotFoundResponse)
	}
	return
}

func (c *conn) arithmetic(fields [][]byte, incr bool) (clientErr, err error) {
	if len(fields) < 2 {
		clientErr = stackerr.Wrap(ErrMoreFieldsRequired)
		return
	}
	key := fields[0]
	if clientErr = checkKey(key); clientErr != nil {
		return
	}
	delta, parseErr := parseUint64(fields[1])
	if parseErr != nil {
		clientErr = stackerr.Wrap(parseErr)
		return
	}
	noreply := len(fields) > 2 && isNoreply(fields[2])
	var newValue uint64
	var found bool
	var opErr error
	c.Do(func(e *cache.Engine) {
		if incr {
			newValue, found, opErr = e.Incr(key, delta)
		} else {
			newValue, found, opErr = e.Decr(key, delta)
		}
	})
	if opErr != nil {
		clientErr = stackerr.Wrap(opErr)
		return
	}
	if noreply {
		err = c.Flush()
		return
	}
	if !found {
		err = c.sendResponse(NotFoundResponse)
		return
	}
	err = c.sendResponse(fmt.Sprintf("%v", newValue))
	return
}

func (c *conn) flushAll(fields [][]byte) (clientErr, err error) {
	noreply := len(fields) > 0 && isNoreply(fields[len(fields)-1])
	c.Do(func(e *cache.Engine) {
		e.FlushAll()
	})
	if noreply {
		err = c.Flush()
		return
	}
	err = c.sendResponse(OkResponse)
	return
}

func (c *conn) stats() error {
	var s cache.Stats
	var a arena.Stats
	c.Do(func(e *cache.Engine) {
		s = e.Stats()
		a = e.ArenaStats()
	})
	lines := [][2]string{
		{"curr_items", fmt.Sprint(s.CurrItems)},
		{"cmd_get", fmt.Sprint(s.CmdGet)},
		{"cmd_set", fmt.Sprint(s.CmdSet)},
		{"get_hits", fmt.Sprint(s.GetHits)},
		{"get_misses", fmt.Sprint(s.GetMisses)},
		{"evictions", fmt.Sprint(s.Evictions)},
		{"expired_unfetched", fmt.Sprint(s.Expired)},
		{"bytes", fmt.Sprint(a.BytesServed)},
	}
	for _, kv := range lines {
		if _, err := fmt.Fprintf(c, "STAT %s %s"+Separator, kv[0], kv[1]); err != nil {
			return stackerr.Wrap(err)
		}
	}
	return c.sendResponse(EndResponse)
}

func (c *conn) serverError(err error) {
	c.log.Error("Server error: ", err)
	if err == io.ErrUnexpectedEOF {
		return
	}
	c.sendResponse(fmt.Sprintf("%s %s", ServerErrorResponse, err))
}

func (c *conn) sendClientError(err error) error {
	c.log.Error("Client error: ", err)
	return c.sendResponse(fmt.Sprintf("%s %s", ClientErrorResponse, err))
}

func (c *conn) sendResponse(res string) error {
	c.WriteString(res)
	c.WriteString(Separator)
	return c.Flush()
}

func (c *conn) Flush() error {
	return stackerr.Wrap(c.Writer.Flush())
}
