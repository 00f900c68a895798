package server

import (
	"bytes"
	"context"
	"io"
	"net"

	"github.com/cachelot/cachelot-sub000/log"
)

// udpConn adapts one UDP datagram request/response exchange to the
// io.ReadWriteCloser loop expects. Grounded on
// original_source/src/server/socket_datagram.h's per-packet framing,
// simplified to a single datagram per request - the original's
// multi-datagram reassembly is tied to libevent's buffer chaining and
// has no idiomatic Go equivalent worth introducing for this protocol's
// rarely-used UDP transport.
type udpConn struct {
	pc        net.PacketConn
	addr      net.Addr
	in        *bytes.Reader
	out       bytes.Buffer
	requestID uint16
}

// udpHeaderSize is the 8-byte request header every UDP datagram carries:
// request id, sequence number, total datagram count, reserved.
const udpHeaderSize = 8

func newUDPConn(pc net.PacketConn, addr net.Addr, payload []byte) (*udpConn, error) {
	if len(payload) < udpHeaderSize {
		return nil, io.ErrUnexpectedEOF
	}
	requestID := uint16(payload[0])<<8 | uint16(payload[1])
	return &udpConn{pc: pc, addr: addr, in: bytes.NewReader(payload[udpHeaderSize:]), requestID: requestID}, nil
}

func (u *udpConn) Read(p []byte) (int, error)  { return u.in.Read(p) }
func (u *udpConn) Write(p []byte) (int, error) { return u.out.Write(p) }

// Close flushes the accumulated response as a single reply datagram.
// Responses are never split across datagrams: one too large for a single
// datagram makes WriteTo fail, and that error is returned.
func (u *udpConn) Close() error {
	header := []byte{byte(u.requestID >> 8), byte(u.requestID), 0, 0, 0, 1, 0, 0}
	_, err := u.pc.WriteTo(append(header, u.out.Bytes()...), u.addr)
	return err
}

// serveUDP reads one datagram per iteration and serves it synchronously
// through the same conn used for TCP/Unix, since memcached UDP requests
// are not meant to be pipelined within a single datagram.
func serveUDP(ctx context.Context, pc net.PacketConn, meta *ConnMeta, l log.Logger) error {
	buf := make([]byte, 65536)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		uc, err := newUDPConn(pc, addr, payload)
		if err != nil {
			continue
		}
		newConn(l, meta, uc).serve()
	}
}
