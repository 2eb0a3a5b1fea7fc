// Package pushback wraps a channel of bytes with a push-back buffer.
// The frame scanner needs this in two places: when it has read one
// byte too many while hunting for a preamble, and when a CRC check
// fails and everything after the first byte of the candidate frame has
// to be scanned again.
package pushback

import (
	"errors"
)

// ErrClosed is returned by GetNextByte when the channel has been
// closed and the push-back buffer is empty.
var ErrClosed = errors.New("pushback: no more input")

// ByteChannel is a channel of bytes with push-back.
type ByteChannel struct {
	// pushBackBuffer contains any bytes that have been pushed back,
	// in the order they should be read.
	pushBackBuffer []byte
	// source is where bytes come from once the buffer is empty.
	source chan byte
}

// New creates a ByteChannel reading from the given channel.  The
// channel should be buffered, otherwise the producer and the scanner
// run in lock step.
func New(ch chan byte) *ByteChannel {
	return &ByteChannel{source: ch}
}

// Close closes the underlying channel.  Only the producer may call
// this.
func (bc *ByteChannel) Close() {
	close(bc.source)
}

// GetNextByte gets the next byte, serving any pushed-back bytes first.
// Once the channel is closed and the buffer is drained it returns
// ErrClosed.
func (bc *ByteChannel) GetNextByte() (byte, error) {
	if len(bc.pushBackBuffer) > 0 {
		b := bc.pushBackBuffer[0]
		bc.pushBackBuffer = bc.pushBackBuffer[1:]
		return b, nil
	}

	if bc.source == nil {
		return 0, ErrClosed
	}
	b, more := <-bc.source
	if !more {
		return 0, ErrClosed
	}
	return b, nil
}

// PushBack pushes back a single byte.  The next GetNextByte returns it.
func (bc *ByteChannel) PushBack(b byte) {
	bc.pushBackBuffer = append([]byte{b}, bc.pushBackBuffer...)
}

// PushBackAll pushes back a run of bytes so that subsequent reads see
// them again in the same order.  The scanner uses this after a failed
// CRC check: the whole candidate frame except its first byte goes back
// and the hunt for a preamble starts over one byte further on.
func (bc *ByteChannel) PushBackAll(data []byte) {
	if len(data) == 0 {
		return
	}
	buffer := make([]byte, 0, len(data)+len(bc.pushBackBuffer))
	buffer = append(buffer, data...)
	buffer = append(buffer, bc.pushBackBuffer...)
	bc.pushBackBuffer = buffer
}
