package nmea

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	sentence, err := Parse("$GNGGA,123519.00,4807.0380,N,01131.0000,E,1,08,0.9,545.40,M,46.9,M,,*47\r\n")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	if sentence.Talker != "GN" {
		t.Errorf("want talker GN got %s", sentence.Talker)
	}
	if sentence.Type != "GGA" {
		t.Errorf("want type GGA got %s", sentence.Type)
	}
	if len(sentence.Fields) != 14 {
		t.Fatalf("want 14 fields got %d", len(sentence.Fields))
	}
	if sentence.Fields[0] != "123519.00" {
		t.Errorf("want first field 123519.00 got %s", sentence.Fields[0])
	}
	if sentence.Fields[8] != "545.40" {
		t.Errorf("want altitude field 545.40 got %s", sentence.Fields[8])
	}
}

// TestParseProprietary checks that proprietary sentences get the
// one-character P talker.
func TestParseProprietary(t *testing.T) {
	sentence, err := Parse("$PGRMZ,93,f,3*21")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if sentence.Talker != "P" {
		t.Errorf("want talker P got %s", sentence.Talker)
	}
	if sentence.Type != "GRMZ" {
		t.Errorf("want type GRMZ got %s", sentence.Type)
	}
}

func TestParseChecksumMismatch(t *testing.T) {
	_, err := Parse("$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K*49")
	if err == nil {
		t.Fatal("expected an error")
	}

	var checksumErr *ChecksumError
	if !errors.As(err, &checksumErr) {
		t.Fatalf("want a *ChecksumError got %T", err)
	}
	if checksumErr.Want != 0x48 {
		t.Errorf("want computed checksum 48 got %02X", checksumErr.Want)
	}
	if checksumErr.Got != 0x49 {
		t.Errorf("want claimed checksum 49 got %02X", checksumErr.Got)
	}
}

func TestParseMalformed(t *testing.T) {
	var testData = []struct {
		description string
		line        string
	}{
		{"empty", ""},
		{"no marker", "GPVTG,054.7,T*48"},
		{"no checksum delimiter", "$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K"},
		{"two checksum delimiters", "$GPVTG,054.7*T*48"},
		{"checksum too short", "$GPVTG,054.7,T*4"},
		{"checksum not hex", "$GPVTG,054.7,T*XY"},
		{"address too short", "$GP*5A"},
	}

	for _, td := range testData {
		_, err := Parse(td.line)
		if err == nil {
			t.Errorf("%s: expected an error", td.description)
			continue
		}
		var parseErr *ParseError
		var checksumErr *ChecksumError
		if !errors.As(err, &parseErr) && !errors.As(err, &checksumErr) {
			t.Errorf("%s: unexpected error type %T", td.description, err)
		}
	}
}

func TestChecksum(t *testing.T) {
	var testData = []struct {
		body string
		want byte
	}{
		{"GPVTG,054.7,T,034.4,M,005.5,N,010.2,K", 0x48},
		{"GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1", 0x39},
		{"", 0x00},
	}

	for _, td := range testData {
		if got := Checksum(td.body); got != td.want {
			t.Errorf("%s: want %02X got %02X", td.body, td.want, got)
		}
	}
}
