package nmea

import "fmt"

// ChecksumError reports a sentence whose checksum does not match its
// content.  The sentence is rejected; the stream carries on with the
// next line.
type ChecksumError struct {
	// Line is the offending sentence.
	Line string

	// Want is the checksum computed over the sentence content.
	Want byte

	// Got is the checksum the sentence claims.
	Got byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("nmea: checksum mismatch, computed %02X but the sentence says %02X", e.Want, e.Got)
}

// ParseError reports a sentence that is structurally malformed - bad
// framing, a missing checksum, or fields that a recognised sentence
// type cannot interpret.  Like a checksum failure it only affects the
// one sentence.
type ParseError struct {
	// Line is the offending sentence.
	Line string

	// Reason says what was wrong with it.
	Reason string
}

func (e *ParseError) Error() string {
	return "nmea: " + e.Reason
}
