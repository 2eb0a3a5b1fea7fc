// Package handler turns a stream of bytes into RTCM3 messages.
//
// An RTCM3 message frame is a three-byte leader (the preamble byte
// 0xd3, six reserved zero bits and a ten-bit payload length), the
// payload itself and a three-byte CRC-24Q check value.  The incoming
// stream may contain anything around the frames - NMEA text, UBX,
// transmission garbage - and a 0xd3 byte is no guarantee of a frame:
// only a successful CRC check proves that we were really looking at
// one.
//
// The scanner therefore works like this: hunt for a 0xd3, collect the
// implied frame, check the CRC.  If the check fails, everything after
// the first byte of the candidate goes back into the input and the
// hunt starts again one byte further on.  That bounded resynchronisation
// is the important property here - a single corrupted frame costs only
// itself, never the valid frames that follow it.
package handler

import (
	"fmt"
	"log/slog"

	"github.com/goblimey/go-crc24q/crc24q"

	"github.com/skybrush-io/flockwave-gps/rtcm/bits"
	"github.com/skybrush-io/flockwave-gps/rtcm/msm"
	"github.com/skybrush-io/flockwave-gps/rtcm/pushback"
	"github.com/skybrush-io/flockwave-gps/rtcm/type1005"
	"github.com/skybrush-io/flockwave-gps/rtcm/type1006"
)

// Preamble is the value of the byte that starts an RTCM3 message frame.
const Preamble byte = 0xd3

// LeaderLengthBytes is the length of the frame leader in bytes.
const LeaderLengthBytes = 3

// CRCLengthBytes is the length of the CRC-24Q check value in bytes.
const CRCLengthBytes = 3

// MaxPayloadLength is the largest payload the ten-bit length field can
// describe.
const MaxPayloadLength = 1023

// Message types that get a structured decode.  Everything else passes
// through with an opaque payload.
const (
	MessageType1005 = 1005 // station reference point
	MessageType1006 = 1006 // station reference point plus antenna height

	MessageTypeMSM4GPS     = 1074
	MessageTypeMSM7GPS     = 1077
	MessageTypeMSM4Glonass = 1084
	MessageTypeMSM7Glonass = 1087
	MessageTypeMSM4Galileo = 1094
	MessageTypeMSM7Galileo = 1097
	MessageTypeMSM4Beidou  = 1124
	MessageTypeMSM7Beidou  = 1127
)

// decoders is the static dispatch table from message type to field
// decoder.  New message types are supported by registering another
// entry here, not by adding logic to the scanner.
var decoders = map[int]func(payload []byte) (interface{}, error){
	MessageType1005:        func(p []byte) (interface{}, error) { return type1005.Decode(p) },
	MessageType1006:        func(p []byte) (interface{}, error) { return type1006.Decode(p) },
	MessageTypeMSM4GPS:     decodeMSM4,
	MessageTypeMSM4Glonass: decodeMSM4,
	MessageTypeMSM4Galileo: decodeMSM4,
	MessageTypeMSM4Beidou:  decodeMSM4,
	MessageTypeMSM7GPS:     decodeMSM7,
	MessageTypeMSM7Glonass: decodeMSM7,
	MessageTypeMSM7Galileo: decodeMSM7,
	MessageTypeMSM7Beidou:  decodeMSM7,
}

func decodeMSM4(p []byte) (interface{}, error) { return msm.Decode(p, msm.FormatMSM4) }
func decodeMSM7(p []byte) (interface{}, error) { return msm.Decode(p, msm.FormatMSM7) }

// Message is one RTCM3 message lifted out of the stream.  The decoder
// hands ownership to whoever receives it and keeps no reference.
type Message struct {
	// MessageType is the 12-bit message number from the start of the
	// payload.
	MessageType int

	// PayloadBits is the length of the payload in bits.
	PayloadBits uint

	// RawData is the complete frame: leader, payload and CRC.
	RawData []byte

	// Readable is the structured decode for recognised message types
	// (*type1005.Message, *type1006.Message, *msm.Message) and nil for
	// types that pass through opaquely.
	Readable interface{}
}

// Payload returns the payload part of the frame, without the leader
// and the CRC.
func (m *Message) Payload() []byte {
	return m.RawData[LeaderLengthBytes : len(m.RawData)-CRCLengthBytes]
}

// String gives a short readable summary, mainly for logging.
func (m *Message) String() string {
	summary := fmt.Sprintf("message type %d, frame length %d", m.MessageType, len(m.RawData))
	if s, ok := m.Readable.(fmt.Stringer); ok {
		summary += " - " + s.String()
	}
	return summary
}

// Stats counts what happened to the stream so far.  Discarded data is
// never silently swallowed - it shows up here.
type Stats struct {
	// Messages is the number of valid messages emitted.
	Messages uint64

	// CRCFailures is the number of candidate frames rejected by the
	// CRC check.
	CRCFailures uint64

	// FieldOverruns is the number of messages with a valid CRC whose
	// typed decode ran past the end of the payload.  These are
	// discarded, not forwarded.
	FieldOverruns uint64

	// SkippedBytes is the number of bytes passed over while hunting
	// for a preamble, including bytes dropped during resynchronisation.
	SkippedBytes uint64
}

// Handler scans a byte stream for RTCM3 messages.  It is single-owner:
// exactly one producer feeds it and it must not be shared between
// concurrent readers.
type Handler struct {
	stats  Stats
	logger *slog.Logger
}

// New creates a Handler.  The logger may be nil.
func New(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// Stats returns a copy of the stream counters.
func (h *Handler) Stats() Stats {
	return h.stats
}

// HandleMessages reads bytes from chIn until it is closed, scans them
// for RTCM3 messages and writes each valid message to chOut, in
// arrival order.  It closes chOut when the input is exhausted.  The
// caller creates both channels and runs this in its own goroutine.
func (h *Handler) HandleMessages(chIn chan byte, chOut chan<- Message) {
	pb := pushback.New(chIn)
	for {
		message, err := h.FetchNextMessage(pb)
		if err != nil {
			close(chOut)
			return
		}
		chOut <- *message
	}
}

// FetchNextMessage scans the input for the next valid RTCM3 message.
// Invalid candidates (bad reserved bits, failed CRC, field overrun
// during decode) are consumed, counted and never returned; the only
// error is pushback.ErrClosed when the input is exhausted, at which
// point any partially collected frame is discarded.
func (h *Handler) FetchNextMessage(pb *pushback.ByteChannel) (*Message, error) {
	for {
		// Phase 1: eat bytes until a preamble candidate shows up.
		if err := h.eatUntilPreamble(pb); err != nil {
			return nil, err
		}

		frame := []byte{Preamble}

		// Phase 2: the two remaining leader bytes give the payload
		// length.
		if err := h.collect(pb, &frame, LeaderLengthBytes-1); err != nil {
			return nil, err
		}

		reader := bits.NewReader(frame)
		reader.Skip(8)
		reserved, _ := reader.Uint64(6)
		length, _ := reader.Uint64(10)
		if reserved != 0 {
			// A 0xd3 inside some other binary data.  Drop it and
			// rescan from the next byte.
			h.resync(pb, frame)
			continue
		}

		// Phase 3: the payload and the CRC.
		if err := h.collect(pb, &frame, int(length)+CRCLengthBytes); err != nil {
			return nil, err
		}

		// Phase 4: the CRC decides whether this was really a frame.
		if !checkCRC(frame) {
			h.stats.CRCFailures++
			h.logger.Debug("CRC check failed, resynchronising",
				"frameLength", len(frame))
			h.resync(pb, frame)
			continue
		}

		message, decodeErr := h.buildMessage(frame)
		if decodeErr != nil {
			// Valid CRC but the typed decode overran the payload.
			// The message is discarded, not forwarded.
			h.stats.FieldOverruns++
			h.logger.Warn("discarding message with malformed fields",
				"error", decodeErr)
			continue
		}

		h.stats.Messages++
		return message, nil
	}
}

// eatUntilPreamble consumes bytes up to and including the next
// preamble byte, counting everything before it as skipped.
func (h *Handler) eatUntilPreamble(pb *pushback.ByteChannel) error {
	for {
		b, err := pb.GetNextByte()
		if err != nil {
			return err
		}
		if b == Preamble {
			return nil
		}
		h.stats.SkippedBytes++
	}
}

// collect appends want bytes to the frame.  If the input runs dry
// mid-frame the partial frame is discarded - a frame that cannot be
// completed can never pass its CRC check.
func (h *Handler) collect(pb *pushback.ByteChannel, frame *[]byte, want int) error {
	for i := 0; i < want; i++ {
		b, err := pb.GetNextByte()
		if err != nil {
			h.stats.SkippedBytes += uint64(len(*frame))
			return err
		}
		*frame = append(*frame, b)
	}
	return nil
}

// resync drops exactly the first byte of a rejected candidate frame
// and returns the rest to the input for rescanning.
func (h *Handler) resync(pb *pushback.ByteChannel, frame []byte) {
	pb.PushBackAll(frame[1:])
	h.stats.SkippedBytes++
}

// buildMessage extracts the message type from a CRC-checked frame and
// runs the registered field decoder, if there is one.
func (h *Handler) buildMessage(frame []byte) (*Message, error) {
	payload := frame[LeaderLengthBytes : len(frame)-CRCLengthBytes]

	messageType := 0
	if len(payload) >= 2 {
		reader := bits.NewReader(payload)
		t, _ := reader.Uint64(12)
		messageType = int(t)
	}

	message := Message{
		MessageType: messageType,
		PayloadBits: uint(len(payload)) * 8,
		RawData:     frame,
	}

	if decode, recognised := decoders[messageType]; recognised {
		readable, err := decode(payload)
		if err != nil {
			return nil, fmt.Errorf("message type %d: %w", messageType, err)
		}
		message.Readable = readable
	}

	return &message, nil
}

// checkCRC verifies the 24-bit CRC-24Q value at the end of the frame.
// The CRC covers the leader and the payload.
func checkCRC(frame []byte) bool {
	if len(frame) < LeaderLengthBytes+CRCLengthBytes {
		return false
	}
	startOfCRC := len(frame) - CRCLengthBytes
	crc := crc24q.Hash(frame[:startOfCRC])
	return crc24q.HiByte(crc) == frame[startOfCRC] &&
		crc24q.MiByte(crc) == frame[startOfCRC+1] &&
		crc24q.LoByte(crc) == frame[startOfCRC+2]
}
