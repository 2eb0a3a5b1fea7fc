// Package nmea parses and builds NMEA-0183 sentences, the textual fix
// reports produced by GNSS receivers.
//
// A sentence is one ASCII line of the form
//
//	$TTSSS,field,field,...*hh
//
// where TT is the talker (GP for GPS, GN for a multi-constellation
// receiver and so on), SSS is the sentence type and hh is the XOR of
// every character between the leading marker and the asterisk, as two
// hex digits.
//
// Parsing happens a sentence at a time and each line succeeds or fails
// on its own.  Live NMEA streams routinely contain corrupted lines, so
// no parse failure is allowed to be more than a per-line event; the
// Accumulator simply counts the rejects and carries on.  Field
// extraction for the recognised sentence types is delegated to the
// github.com/adrianmo/go-nmea library; sentence types it does not
// recognise are kept as raw field lists rather than rejected.
package nmea

import (
	"strconv"
	"strings"
)

// maxSentenceLength is the longest line the wire format allows,
// including the marker and the checksum.
const maxSentenceLength = 82

// Sentence is one framed and checksum-verified NMEA sentence, split
// into fields but not yet interpreted.
type Sentence struct {
	// Raw is the sentence as received, without the line terminator.
	Raw string

	// Talker is the talker identifier, normally two characters, or
	// "P" for proprietary sentences.
	Talker string

	// Type is the sentence type, e.g. "GGA".
	Type string

	// Fields holds the comma-separated fields after the address.
	Fields []string
}

// Checksum computes the NMEA checksum of a sentence body: the XOR of
// every byte between the leading marker and the asterisk.
func Checksum(body string) byte {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return sum
}

// Parse validates the framing and checksum of one line and splits it
// into talker, type and fields.  It does not interpret the fields; see
// Accumulator for that.  The error is a *ParseError or *ChecksumError
// and only ever concerns this one line.
func Parse(line string) (*Sentence, error) {
	raw := strings.TrimRight(line, "\r\n")

	if len(raw) == 0 {
		return nil, &ParseError{Line: raw, Reason: "empty line"}
	}
	if len(raw) > maxSentenceLength {
		return nil, &ParseError{Line: raw, Reason: "sentence too long"}
	}
	if raw[0] != '$' && raw[0] != '!' {
		return nil, &ParseError{Line: raw, Reason: "sentence does not start with $ or !"}
	}

	star := strings.Index(raw, "*")
	if star < 0 {
		return nil, &ParseError{Line: raw, Reason: "no checksum delimiter"}
	}
	if strings.Contains(raw[star+1:], "*") {
		return nil, &ParseError{Line: raw, Reason: "more than one checksum delimiter"}
	}

	body := raw[1:star]
	checkField := raw[star+1:]
	if len(checkField) != 2 {
		return nil, &ParseError{Line: raw, Reason: "checksum is not two hex digits"}
	}
	claimed, err := strconv.ParseUint(checkField, 16, 8)
	if err != nil {
		return nil, &ParseError{Line: raw, Reason: "checksum is not two hex digits"}
	}

	computed := Checksum(body)
	if computed != byte(claimed) {
		return nil, &ChecksumError{Line: raw, Want: computed, Got: byte(claimed)}
	}

	fields := strings.Split(body, ",")
	address := fields[0]

	sentence := Sentence{Raw: raw, Fields: fields[1:]}
	switch {
	case strings.HasPrefix(address, "P") && len(address) > 1:
		// Proprietary sentences have a one-character talker.
		sentence.Talker = "P"
		sentence.Type = address[1:]
	case len(address) >= 5:
		sentence.Talker = address[:2]
		sentence.Type = address[2:]
	default:
		return nil, &ParseError{Line: raw, Reason: "address field too short"}
	}

	return &sentence, nil
}
