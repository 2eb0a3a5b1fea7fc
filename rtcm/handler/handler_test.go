package handler

import (
	"testing"

	"github.com/skybrush-io/flockwave-gps/rtcm/msm"
)

// The test frames below are real data collected from a base station on
// the 13th November 2020.  Each one is a complete frame with a genuine
// CRC, so they exercise the whole scanning path including the CRC
// check.

// frame1077 carries a type 1077 message (GPS MSM7) observing eight
// satellites.  Converted to RINEX the first observation is
// G4 24410527.355 128278179.264 709.992 40.000.
var frame1077 = []byte{
	0xd3, 0x00, 0xdc, 0x43, 0x50, 0x00, 0x67, 0x00, 0x97, 0x62, 0x00, 0x00, 0x08, 0x40, 0xa0, 0x65,
	0x00, 0x00, 0x00, 0x00, 0x20, 0x00, 0x80, 0x00, 0x6d, 0xff, 0xa8, 0xaa, 0x26, 0x23, 0xa6, 0xa2,
	0x23, 0x24, 0x00, 0x00, 0x00, 0x00, 0x36, 0x68, 0xcb, 0x83, 0x7a, 0x6f, 0x9d, 0x7c, 0x04, 0x92,
	0xfe, 0xf2, 0x05, 0xb0, 0x4a, 0xa0, 0xec, 0x7b, 0x0e, 0x09, 0x27, 0xd0, 0x3f, 0x23, 0x7c, 0xb9,
	0x6f, 0xbd, 0x73, 0xee, 0x1f, 0x01, 0x64, 0x96, 0xf5, 0x7b, 0x27, 0x46, 0xf1, 0xf2, 0x1a, 0xbf,
	0x19, 0xfa, 0x08, 0x41, 0x08, 0x7b, 0xb1, 0x1b, 0x67, 0xe1, 0xa6, 0x70, 0x71, 0xd9, 0xdf, 0x0c,
	0x61, 0x7f, 0x19, 0x9c, 0x7e, 0x66, 0x66, 0xfb, 0x86, 0xc0, 0x04, 0xe9, 0xc7, 0x7d, 0x85, 0x83,
	0x7d, 0xac, 0xad, 0xfc, 0xbe, 0x2b, 0xfc, 0x3c, 0x84, 0x02, 0x1d, 0xeb, 0x81, 0xa6, 0x9c, 0x87,
	0x17, 0x5d, 0x86, 0xf5, 0x60, 0xfb, 0x66, 0x72, 0x7b, 0xfa, 0x2f, 0x48, 0xd2, 0x29, 0x67, 0x08,
	0xc8, 0x72, 0x15, 0x0d, 0x37, 0xca, 0x92, 0xa4, 0xe9, 0x3a, 0x4e, 0x13, 0x80, 0x00, 0x14, 0x04,
	0xc0, 0xe8, 0x50, 0x16, 0x04, 0xc1, 0x40, 0x46, 0x17, 0x05, 0x41, 0x70, 0x52, 0x17, 0x05, 0x01,
	0xef, 0x4b, 0xde, 0x70, 0x4c, 0xb1, 0xaf, 0x84, 0x37, 0x08, 0x2a, 0x77, 0x95, 0xf1, 0x6e, 0x75,
	0xe8, 0xea, 0x36, 0x1b, 0xdc, 0x3d, 0x7a, 0xbc, 0x75, 0x42, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xfe,
	0x69, 0xe8,
}

// frame1087 carries a type 1087 message (Glonass MSM7).
var frame1087 = []byte{
	0xd3, 0x00, 0xc3, 0x43, 0xf0, 0x00, 0xa2, 0x93, 0x7c, 0x22, 0x00, 0x00, 0x04, 0x0e, 0x03, 0x80,
	0x00, 0x00, 0x00, 0x00, 0x20, 0x80, 0x00, 0x00, 0x7f, 0xfe, 0x9c, 0x8a, 0x80, 0x94, 0x86, 0x84,
	0x99, 0x0c, 0xa0, 0x95, 0x2a, 0x8b, 0xd8, 0x3a, 0x92, 0xf5, 0x74, 0x7d, 0x56, 0xfe, 0xb7, 0xec,
	0xe8, 0x0d, 0x41, 0x69, 0x7c, 0x00, 0x0e, 0xf0, 0x61, 0x42, 0x9c, 0xf0, 0x27, 0x38, 0x86, 0x2a,
	0xda, 0x62, 0x36, 0x3c, 0x8f, 0xeb, 0xc8, 0x27, 0x1b, 0x77, 0x6f, 0xb9, 0x4c, 0xbe, 0x36, 0x2b,
	0xe4, 0x26, 0x1d, 0xc1, 0x4f, 0xdc, 0xd9, 0x01, 0x16, 0x24, 0x11, 0x9a, 0xe0, 0x91, 0x02, 0x00,
	0x7a, 0xea, 0x61, 0x9d, 0xb4, 0xe1, 0x52, 0xf6, 0x1f, 0x22, 0xae, 0xdf, 0x26, 0x28, 0x3e, 0xe0,
	0xf6, 0xbe, 0xdf, 0x90, 0xdf, 0xb8, 0x01, 0x3f, 0x8e, 0x86, 0xbf, 0x7e, 0x67, 0x1f, 0x83, 0x8f,
	0x20, 0x51, 0x53, 0x60, 0x46, 0x60, 0x30, 0x43, 0xc3, 0x3d, 0xcf, 0x12, 0x84, 0xb7, 0x10, 0xc4,
	0x33, 0x53, 0x3d, 0x25, 0x48, 0xb0, 0x14, 0x00, 0x00, 0x04, 0x81, 0x28, 0x60, 0x13, 0x84, 0x81,
	0x08, 0x54, 0x13, 0x85, 0x40, 0xe8, 0x60, 0x12, 0x85, 0x01, 0x38, 0x5c, 0x67, 0xb7, 0x67, 0xa5,
	0xff, 0x4e, 0x71, 0xcd, 0xd3, 0x78, 0x27, 0x29, 0x0e, 0x5c, 0xed, 0xd9, 0xd7, 0xcc, 0x7e, 0x04,
	0xf8, 0x09, 0xc3, 0x73, 0xa0, 0x40, 0x70, 0xd9, 0x6d,
}

// frame1097 carries a type 1097 message (Galileo MSM7).
var frame1097 = []byte{
	0xd3, 0x00, 0xc3, 0x44, 0x90, 0x00, 0x67, 0x00, 0x97, 0x62, 0x00, 0x00, 0x21, 0x18, 0x00, 0xc0,
	0x08, 0x00, 0x00, 0x00, 0x20, 0x01, 0x00, 0x00, 0x7f, 0xfe, 0xae, 0xbe, 0x90, 0x98, 0xa6, 0x9c,
	0xb4, 0x00, 0x00, 0x00, 0x08, 0xc1, 0x4b, 0xc1, 0x32, 0xf8, 0x0b, 0x08, 0xc5, 0x83, 0xc8, 0x01,
	0xe8, 0x25, 0x3f, 0x74, 0x7c, 0xc4, 0x02, 0xa0, 0x4b, 0xc1, 0x47, 0x90, 0x12, 0x86, 0x62, 0x72,
	0x92, 0x28, 0x53, 0x18, 0x9d, 0x8d, 0x85, 0x82, 0xc6, 0xe1, 0x8a, 0x6a, 0x2f, 0xdd, 0x5e, 0xcd,
	0xd3, 0xe1, 0x1a, 0x15, 0x01, 0xa1, 0x2b, 0xdc, 0x56, 0x3f, 0xc4, 0xea, 0xc0, 0x5e, 0xdc, 0x40,
	0x48, 0xd3, 0x80, 0xb2, 0x25, 0x60, 0x9c, 0x7b, 0x7e, 0x32, 0xdd, 0x3e, 0x22, 0xf7, 0x01, 0xb6,
	0xf3, 0x81, 0xaf, 0xb7, 0x1f, 0x78, 0xe0, 0x7f, 0x6c, 0xaa, 0xfe, 0x9a, 0x7e, 0x7e, 0x94, 0x9f,
	0xbf, 0x06, 0x72, 0x3f, 0x15, 0x8c, 0xb1, 0x44, 0x56, 0xe1, 0xb1, 0x92, 0xdc, 0xb5, 0x37, 0x4a,
	0xd4, 0x5d, 0x17, 0x38, 0x4e, 0x30, 0x24, 0x14, 0x00, 0x04, 0xc1, 0x50, 0x3e, 0x0f, 0x85, 0x41,
	0x40, 0x52, 0x13, 0x85, 0x61, 0x50, 0x5a, 0x16, 0x04, 0xa1, 0x38, 0x12, 0x5b, 0x24, 0x7e, 0x03,
	0x6c, 0x07, 0x89, 0xdb, 0x93, 0xbd, 0xba, 0x0d, 0x34, 0x27, 0x68, 0x75, 0xd0, 0xa6, 0x72, 0x24,
	0xe4, 0x88, 0xdc, 0x61, 0xa9, 0x40, 0xb1, 0x9d, 0x0d,
}

// frame1127 carries a type 1127 message (Beidou MSM7).
var frame1127 = []byte{
	0xd3, 0x00, 0xaa, 0x46, 0x70, 0x00, 0x66, 0xff, 0xbc, 0xa0, 0x00, 0x00, 0x00, 0x04, 0x00, 0x26,
	0x18, 0x00, 0x00, 0x00, 0x20, 0x02, 0x00, 0x00, 0x75, 0x53, 0xfa, 0x82, 0x42, 0x62, 0x9a, 0x80,
	0x00, 0x00, 0x06, 0x95, 0x4e, 0xa7, 0xa0, 0xbf, 0x1e, 0x78, 0x7f, 0x0a, 0x10, 0x08, 0x18, 0x7f,
	0x35, 0x04, 0xab, 0xee, 0x50, 0x77, 0x8a, 0x86, 0xf0, 0x51, 0xf1, 0x4d, 0x82, 0x46, 0x38, 0x29,
	0x0a, 0x8c, 0x35, 0x57, 0x23, 0x87, 0x82, 0x24, 0x2a, 0x01, 0xb5, 0x40, 0x07, 0xeb, 0xc5, 0x01,
	0x37, 0xa8, 0x80, 0xb3, 0x88, 0x03, 0x23, 0xc4, 0xfc, 0x61, 0xe0, 0x4f, 0x33, 0xc4, 0x73, 0x31,
	0xcd, 0x90, 0x54, 0xb2, 0x02, 0x70, 0x90, 0x26, 0x0b, 0x42, 0xd0, 0x9c, 0x2b, 0x0c, 0x02, 0x97,
	0xf4, 0x08, 0x3d, 0x9e, 0xc7, 0xb2, 0x6e, 0x44, 0x0f, 0x19, 0x48, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xe5, 0x1e, 0xd8,
}

// concat builds one input stream from a list of byte runs.
func concat(runs ...[]byte) []byte {
	var result []byte
	for _, run := range runs {
		result = append(result, run...)
	}
	return result
}

// scan feeds the input through a Handler and collects everything that
// comes out.
func scan(input []byte) ([]Message, Stats) {
	handler := New(nil)
	chIn := make(chan byte, len(input)+1)
	for _, b := range input {
		chIn <- b
	}
	close(chIn)

	chOut := make(chan Message, 16)
	done := make(chan struct{})
	go func() {
		handler.HandleMessages(chIn, chOut)
		close(done)
	}()

	var messages []Message
	for message := range chOut {
		messages = append(messages, message)
	}
	<-done
	return messages, handler.Stats()
}

// TestCleanStream checks that a stream of back to back valid frames
// produces one message per frame, in order.
func TestCleanStream(t *testing.T) {
	input := concat(frame1077, frame1087, frame1097, frame1127)
	messages, stats := scan(input)

	wantTypes := []int{1077, 1087, 1097, 1127}
	if len(messages) != len(wantTypes) {
		t.Fatalf("want %d messages got %d", len(wantTypes), len(messages))
	}
	for i, want := range wantTypes {
		if messages[i].MessageType != want {
			t.Errorf("message %d: want type %d got %d", i, want, messages[i].MessageType)
		}
	}

	if stats.Messages != 4 {
		t.Errorf("want 4 messages counted got %d", stats.Messages)
	}
	if stats.CRCFailures != 0 {
		t.Errorf("want 0 CRC failures got %d", stats.CRCFailures)
	}
	if stats.SkippedBytes != 0 {
		t.Errorf("want 0 skipped bytes got %d", stats.SkippedBytes)
	}
}

// TestDecode1077 checks the structured decode of the real type 1077
// message against values confirmed by converting the message to RINEX.
func TestDecode1077(t *testing.T) {
	messages, _ := scan(frame1077)
	if len(messages) != 1 {
		t.Fatalf("want 1 message got %d", len(messages))
	}

	message, ok := messages[0].Readable.(*msm.Message)
	if !ok {
		t.Fatalf("want a *msm.Message got %T", messages[0].Readable)
	}

	if message.Format != msm.FormatMSM7 {
		t.Errorf("want format MSM7 got %v", message.Format)
	}
	if message.StationID != 0 {
		t.Errorf("want station 0 got %d", message.StationID)
	}
	// 2020-11-13 00:00:23 GPS time, in milliseconds from the start of
	// the GPS week.
	if message.EpochTime != 432023000 {
		t.Errorf("want epoch 432023000 got %d", message.EpochTime)
	}
	if !message.MultipleMessage {
		t.Error("want the multiple message flag to be set")
	}

	if len(message.Satellites) != 8 {
		t.Fatalf("want 8 satellites got %d", len(message.Satellites))
	}
	if message.Satellites[0].ID != 4 {
		t.Errorf("want first satellite 4 got %d", message.Satellites[0].ID)
	}
	if message.Satellites[0].RangeWholeMillis != 81 {
		t.Errorf("want whole range 81 got %d", message.Satellites[0].RangeWholeMillis)
	}
	if message.Satellites[0].RangeFractionalMillis != 435 {
		t.Errorf("want fractional range 435 got %d", message.Satellites[0].RangeFractionalMillis)
	}

	if len(message.Signals) != 14 {
		t.Fatalf("want 14 signals got %d", len(message.Signals))
	}
	if message.Signals[0].SatelliteID != 4 {
		t.Errorf("want first signal from satellite 4 got %d", message.Signals[0].SatelliteID)
	}
	if message.Signals[0].RangeDelta != -26835 {
		t.Errorf("want range delta -26835 got %d", message.Signals[0].RangeDelta)
	}
}

// TestLeadingJunk checks that bytes before the first frame are skipped
// and counted but do not disturb the frame that follows.
func TestLeadingJunk(t *testing.T) {
	junk := []byte("$GNGGA,123519,4807.038,N,01131.000,E,1,08,0.9*47\r\n")
	messages, stats := scan(concat(junk, frame1127))

	if len(messages) != 1 {
		t.Fatalf("want 1 message got %d", len(messages))
	}
	if messages[0].MessageType != 1127 {
		t.Errorf("want type 1127 got %d", messages[0].MessageType)
	}
	if stats.SkippedBytes != uint64(len(junk)) {
		t.Errorf("want %d skipped bytes got %d", len(junk), stats.SkippedBytes)
	}
}

// TestResyncAfterCorruption corrupts one frame and checks that only
// that frame is lost.  The frames that follow it must all survive the
// resynchronisation.
func TestResyncAfterCorruption(t *testing.T) {
	corrupted := append([]byte{}, frame1077...)
	corrupted[10] ^= 0x01 // single bit flip in the payload

	messages, stats := scan(concat(corrupted, frame1087, frame1097, frame1127))

	wantTypes := []int{1087, 1097, 1127}
	if len(messages) != len(wantTypes) {
		t.Fatalf("want %d messages got %d", len(wantTypes), len(messages))
	}
	for i, want := range wantTypes {
		if messages[i].MessageType != want {
			t.Errorf("message %d: want type %d got %d", i, want, messages[i].MessageType)
		}
	}

	if stats.CRCFailures == 0 {
		t.Error("want at least one CRC failure to be counted")
	}
	if stats.Messages != 3 {
		t.Errorf("want 3 messages counted got %d", stats.Messages)
	}
}

// TestFalsePreamble checks that a 0xd3 followed by non-zero reserved
// bits is rejected without losing the frame behind it.
func TestFalsePreamble(t *testing.T) {
	messages, _ := scan(concat([]byte{Preamble, 0x40, 0x00}, frame1127))

	if len(messages) != 1 {
		t.Fatalf("want 1 message got %d", len(messages))
	}
	if messages[0].MessageType != 1127 {
		t.Errorf("want type 1127 got %d", messages[0].MessageType)
	}
}

// TestTruncatedFrame checks that a frame cut short by the end of the
// input is discarded rather than emitted.
func TestTruncatedFrame(t *testing.T) {
	messages, stats := scan(frame1077[:100])

	if len(messages) != 0 {
		t.Fatalf("want 0 messages got %d", len(messages))
	}
	if stats.Messages != 0 {
		t.Errorf("want 0 messages counted got %d", stats.Messages)
	}
}

// TestPayload checks that Payload strips the leader and the CRC.
func TestPayload(t *testing.T) {
	messages, _ := scan(frame1127)
	if len(messages) != 1 {
		t.Fatalf("want 1 message got %d", len(messages))
	}
	payload := messages[0].Payload()
	if len(payload) != 0xaa {
		t.Errorf("want payload length %d got %d", 0xaa, len(payload))
	}
	if payload[0] != 0x46 || payload[1] != 0x70 {
		t.Errorf("payload does not start at the message type field")
	}
}

// TestOpaquePassthrough checks that a message type without a
// registered decoder is forwarded with a nil Readable.
func TestOpaquePassthrough(t *testing.T) {
	// Type 1008 has no registered decoder.  buildMessage runs after
	// the CRC check, so a fabricated check value is fine here.
	frame := []byte{0xd3, 0x00, 0x06, 0x3f, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03}

	handler := New(nil)
	message, err := handler.buildMessage(frame)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if message.MessageType != 1008 {
		t.Errorf("want type 1008 got %d", message.MessageType)
	}
	if message.Readable != nil {
		t.Errorf("want nil Readable got %T", message.Readable)
	}
}
