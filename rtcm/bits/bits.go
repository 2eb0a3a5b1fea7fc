// Package bits provides a cursor for reading the tightly packed bit
// fields of an RTCM3 payload.  RTCM3 packs everything big-endian with
// no regard for byte boundaries, so a field may start and end in the
// middle of a byte.  The cursor keeps the position, hands out typed
// reads (unsigned, two's complement, sign and magnitude, fixed-point
// scaled) and turns any attempt to read past the end of the payload
// into ErrFieldOverrun rather than a panic.
//
// The bit extraction follows RTKLIB's getbitu()/getbits() functions,
// which is where most RTCM decoders (this one included) learned the
// layout from.
package bits

import (
	"errors"
	"fmt"
)

// ErrFieldOverrun is returned when a read would run past the end of
// the payload.  A message that provokes it is malformed and must be
// discarded, not forwarded.
var ErrFieldOverrun = errors.New("bits: field extends past the end of the payload")

// Reader is a bit cursor over a payload.  It is not safe for
// concurrent use; each decoded message gets its own Reader.
type Reader struct {
	payload []byte
	pos     uint // position in bits from the start of the payload
	err     error
}

// NewReader creates a cursor positioned at the start of the payload.
func NewReader(payload []byte) *Reader {
	return &Reader{payload: payload}
}

// Pos returns the current position in bits.
func (r *Reader) Pos() uint {
	return r.pos
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() uint {
	total := uint(len(r.payload)) * 8
	if r.pos >= total {
		return 0
	}
	return total - r.pos
}

// Err returns the first error encountered by any read, or nil.  Once a
// read has failed every subsequent read returns zero and the error is
// sticky, so a decoder can do a run of reads and check once at the end.
func (r *Reader) Err() error {
	return r.err
}

// Skip advances the cursor over n bits without interpreting them.
func (r *Reader) Skip(n uint) error {
	if r.err != nil {
		return r.err
	}
	if n > r.Remaining() {
		r.err = fmt.Errorf("skipping %d bits at bit %d: %w", n, r.pos, ErrFieldOverrun)
		return r.err
	}
	r.pos += n
	return nil
}

// Uint64 reads n bits (n <= 64) as an unsigned integer.
func (r *Reader) Uint64(n uint) (uint64, error) {
	if r.err != nil {
		return 0, r.err
	}
	if n > 64 || n > r.Remaining() {
		r.err = fmt.Errorf("reading %d bits at bit %d: %w", n, r.pos, ErrFieldOverrun)
		return 0, r.err
	}

	// See RTKLIB getbitu: collect the bits one at a time, most
	// significant first.
	var result uint64
	for i := r.pos; i < r.pos+n; i++ {
		byteContents := uint64(r.payload[i/8])
		bit := (byteContents >> (7 - i%8)) & 1
		result = (result << 1) | bit
	}
	r.pos += n
	return result, nil
}

// Int64 reads n bits as a two's complement signed integer.
func (r *Reader) Int64(n uint) (int64, error) {
	uval, err := r.Uint64(n)
	if err != nil {
		return 0, err
	}
	if n == 0 || n == 64 {
		return int64(uval), nil
	}
	if uval&(1<<(n-1)) != 0 {
		// Negative - extend the sign bit.
		return int64(uval | (^uint64(0) << n)), nil
	}
	return int64(uval), nil
}

// SignMagnitude reads n bits as a sign-and-magnitude integer: the top
// bit is the sign and the remaining n-1 bits are the magnitude.  Some
// RTCM fields (Glonass code-phase biases among them) use this encoding
// rather than two's complement.
func (r *Reader) SignMagnitude(n uint) (int64, error) {
	if n < 2 {
		return 0, fmt.Errorf("bits: sign-magnitude field must be at least 2 bits, got %d", n)
	}
	sign, err := r.Uint64(1)
	if err != nil {
		return 0, err
	}
	magnitude, err := r.Uint64(n - 1)
	if err != nil {
		return 0, err
	}
	if sign == 1 {
		return -int64(magnitude), nil
	}
	return int64(magnitude), nil
}

// Scaled reads n bits as a two's complement integer and multiplies by
// the scale factor, for fixed-point fields such as the 0.0001 m
// station coordinates in messages 1005 and 1006.
func (r *Reader) Scaled(n uint, factor float64) (float64, error) {
	raw, err := r.Int64(n)
	if err != nil {
		return 0, err
	}
	return float64(raw) * factor, nil
}

// ScaledUnsigned is Scaled for unsigned fields.
func (r *Reader) ScaledUnsigned(n uint, factor float64) (float64, error) {
	raw, err := r.Uint64(n)
	if err != nil {
		return 0, err
	}
	return float64(raw) * factor, nil
}
