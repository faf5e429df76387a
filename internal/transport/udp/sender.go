// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrClosed is returned by SendBands after Close.
var ErrClosed = errors.New("udp sender is closed")

// Sender writes band packets to one UDP peer over a connected socket.
// Packets are numbered from 1 in write order; a failed write does not use
// up a number, so receivers only see gaps for packets lost in transit.
type Sender struct {
	mu     sync.Mutex
	conn   *net.UDPConn // nil once closed
	target *net.UDPAddr

	seq    uint32 // Last number written.
	failed uint64
	buf    []byte
}

// NewSender dials targetAddress ("host:port"). The local port is chosen by
// the kernel.
func NewSender(targetAddress string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve UDP target %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial UDP target %q: %w", targetAddress, err)
	}

	logger.Infof("Sending band packets to %s from %s", conn.RemoteAddr(), conn.LocalAddr())
	return &Sender{conn: conn, target: addr}, nil
}

// Target returns the resolved destination address.
func (s *Sender) Target() *net.UDPAddr {
	return s.target
}

// SendBands packs bands under the next sequence number and writes them as
// one datagram. It returns the number used.
func (s *Sender) SendBands(ts time.Time, bands []float64) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0, ErrClosed
	}

	next := s.seq + 1
	buf, err := AppendPacket(s.buf[:0], next, ts, bands)
	if err != nil {
		return 0, err
	}
	s.buf = buf

	if _, err := s.conn.Write(buf); err != nil {
		s.failed++
		return 0, fmt.Errorf("write packet %d to %s: %w", next, s.target, err)
	}
	s.seq = next
	return next, nil
}

// Sent returns the number of packets written.
func (s *Sender) Sent() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Failed returns the number of writes the socket rejected.
func (s *Sender) Failed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Close releases the socket. Later sends return ErrClosed.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	logger.Infof("Closing %s after %d packets (%d failed writes)", s.target, s.seq, s.failed)
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("close UDP socket: %w", err)
	}
	return nil
}
