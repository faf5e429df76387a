// SPDX-License-Identifier: MIT

// Package transport publishes band vectors to network and debugging sinks.
// Delivery is lossy: the analysis worker never waits on a transport, and
// frames that cannot be queued are dropped and counted.
package transport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"barviz/internal/analysis"
	applog "barviz/internal/log"
)

var logger = applog.For("Transport")

// FrameType is the type tag of every band frame.
const FrameType = "bands"

// BandFrame is one band vector stamped for the wire.
type BandFrame struct {
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq"`       // Counts every vector offered, so gaps show drops.
	Timestamp int64     `json:"timestamp"` // Unix milliseconds.
	Bands     []float64 `json:"bands"`
}

// Transport delivers frames. Send is called from a single goroutine and
// must not retain the frame after it returns.
type Transport interface {
	Send(frame *BandFrame) error
	Close() error
}

// Broadcaster is an analysis observer that hands every band vector to a set
// of transports on its own goroutine. A fixed pool of frames is allocated
// up front; when the pool is exhausted the vector is dropped.
type Broadcaster struct {
	transports []Transport

	free  chan *BandFrame
	queue chan *BandFrame
	done  chan struct{}
	wg    sync.WaitGroup

	seq     uint64 // Worker goroutine only.
	sent    atomic.Uint64
	dropped atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

var _ analysis.Observer = (*Broadcaster)(nil)

// NewBroadcaster starts a broadcaster for vectors of bands values with
// depth frames in flight.
func NewBroadcaster(bands, depth int, transports ...Transport) *Broadcaster {
	if depth < 1 {
		depth = 1
	}
	b := &Broadcaster{
		transports: transports,
		free:       make(chan *BandFrame, depth),
		queue:      make(chan *BandFrame, depth),
		done:       make(chan struct{}),
	}
	for range depth {
		b.free <- &BandFrame{Type: FrameType, Bands: make([]float64, bands)}
	}

	b.wg.Add(1)
	go b.loop()
	logger.Infof("Broadcasting %d bands to %d transports (queue depth %d)", bands, len(transports), depth)
	return b
}

// OnBands copies bands into a pooled frame and queues it. It never blocks.
func (b *Broadcaster) OnBands(bands []float64) {
	b.seq++
	if b.closed.Load() {
		return
	}

	var f *BandFrame
	select {
	case f = <-b.free:
	default:
		if n := b.dropped.Add(1); applog.Enabled(applog.LevelDebug) {
			logger.Debugf("Dropped frame %d (%d dropped)", b.seq, n)
		}
		return
	}

	n := copy(f.Bands, bands)
	clear(f.Bands[n:])
	f.Seq = b.seq
	f.Timestamp = time.Now().UnixMilli()
	b.queue <- f
}

func (b *Broadcaster) loop() {
	defer b.wg.Done()
	for {
		select {
		case f := <-b.queue:
			for _, t := range b.transports {
				if err := t.Send(f); err != nil {
					logger.Debugf("Send frame %d: %v", f.Seq, err)
				}
			}
			b.sent.Add(1)
			b.free <- f
		case <-b.done:
			return
		}
	}
}

// Sent returns the number of frames handed to the transports.
func (b *Broadcaster) Sent() uint64 {
	return b.sent.Load()
}

// Dropped returns the number of vectors dropped because every pooled frame
// was in flight.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops the broadcaster and closes every transport. Queued frames
// that were not yet sent are discarded.
func (b *Broadcaster) Close() error {
	var err error
	b.once.Do(func() {
		b.closed.Store(true)
		close(b.done)
		b.wg.Wait()

		errs := make([]error, 0, len(b.transports))
		for _, t := range b.transports {
			errs = append(errs, t.Close())
		}
		err = errors.Join(errs...)
		logger.Infof("Broadcaster closed (%d sent, %d dropped)", b.sent.Load(), b.dropped.Load())
	})
	return err
}
