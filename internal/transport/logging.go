// SPDX-License-Identifier: MIT
package transport

import (
	"slices"
)

// LoggingTransport logs a summary of every frame at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	logger.Infof("Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the frame's sequence number and its loudest band.
func (lt *LoggingTransport) Send(frame *BandFrame) error {
	if len(frame.Bands) == 0 {
		logger.Debugf("Frame %d: no bands", frame.Seq)
		return nil
	}
	peak := slices.Max(frame.Bands)
	logger.Debugf("Frame %d: %d bands, peak %.2f in band %d",
		frame.Seq, len(frame.Bands), peak, slices.Index(frame.Bands, peak))
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	logger.Debugf("LoggingTransport closed")
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
