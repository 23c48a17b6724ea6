// Package protocol frames the messages exchanged between the SPI bridge
// firmware and its host.
//
// A frame is [len][seq][payload...][crc hi][crc lo][sync]. The payload is a
// run of commands, each a VLQ command ID followed by VLQ arguments. The high
// nibble of seq is always SeqDest; the low nibble counts frames modulo 16.
package protocol

import "golang.org/x/exp/slog"

const (
	HeaderSize  = 2
	TrailerSize = 3
	FrameMin    = HeaderSize + TrailerSize
	FrameMax    = 64

	// PayloadMax is the largest payload a single frame carries.
	PayloadMax = FrameMax - FrameMin

	// OutputMax bounds the firmware output buffer between flushes.
	OutputMax = 512

	SyncByte = 0x7E
	SeqDest  = 0x10
	SeqMask  = 0x0F

	posLen = 0
	posSeq = 1
)

// NextSeq returns the sequence that follows seq.
func NextSeq(seq uint8) uint8 {
	return ((seq + 1) & SeqMask) | SeqDest
}

type options struct {
	logger *slog.Logger
}

// Option configures a transport.
type Option func(*options)

// WithLogger logs framing problems and dropped commands to l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
