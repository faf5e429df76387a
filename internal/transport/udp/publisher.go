// SPDX-License-Identifier: MIT

// Package udp publishes the latest band vector as fixed-layout datagrams.
package udp

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"barviz/internal/analysis"
	applog "barviz/internal/log"
)

var logger = applog.For("UDP")

// DefaultInterval is used when NewPublisher is given a non-positive interval.
const DefaultInterval = 16 * time.Millisecond

// Publisher periodically copies the latest band vector from a provider and
// hands it to a Sender. Ticks that find no new vector send nothing. It runs
// in a separate goroutine managed by Start and Stop.
type Publisher struct {
	sender   *Sender
	source   analysis.BandsProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	lastSeq uint64    // Provider sequence of the last packet.
	bands   []float64 // Reused on every tick.
}

// NewPublisher creates a publisher reading from source.
func NewPublisher(interval time.Duration, sender *Sender, source analysis.BandsProvider) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("udp publisher: band source cannot be nil")
	}
	n := source.NumBands()
	if n > MaxBands {
		return nil, fmt.Errorf("udp publisher: %d bands exceed packet limit %d", n, MaxBands)
	}

	if interval <= 0 {
		interval = DefaultInterval
		logger.Warnf("Invalid interval provided, defaulting to %s", interval)
	}
	logger.Infof("Initializing (interval %s, %d bands, %d-byte packets)", interval, n, PacketSize(n))

	return &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		bands:    make([]float64, n),
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running is
// a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("Start called but already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, done := p.ticker, p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine and waits for it to exit. It is
// safe to call more than once.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("Publisher stopped after %d packets", p.sender.Sent())
	return nil
}

// publish sends the provider's current vector if it changed since the last
// packet.
func (p *Publisher) publish() {
	seq, err := p.source.CopyInto(p.bands)
	if err != nil {
		logger.Errorf("Error reading bands: %v", err)
		return
	}
	if seq == 0 || seq == p.lastSeq {
		return
	}

	n, err := p.sender.SendBands(time.Now(), p.bands)
	if err != nil {
		// Retried on the next tick.
		if applog.Enabled(applog.LevelDebug) {
			logger.Debugf("Frame %d not sent: %v", seq, err)
		}
		return
	}
	p.lastSeq = seq
	if applog.Enabled(applog.LevelDebug) {
		logger.Debugf("Sent frame %d as packet %d", seq, n)
	}
}

// Close stops the publisher and closes its sender.
func (p *Publisher) Close() error {
	return errors.Join(p.Stop(), p.sender.Close())
}

var _ interface{ Close() error } = (*Publisher)(nil)
