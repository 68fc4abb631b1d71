package guid

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
)

// ============================================================================
// LongUUID
// ============================================================================

// LongUUIDSize is the byte length of a LongUUID.
const LongUUIDSize = 8

// LongUUID is an 8-byte process-local identifier:
//
//	bits 60-63: high nibble of the instance byte
//	bits 20-59: Unix milliseconds, 40 bits (wraps every ~35 years)
//	bits  0-19: counter (1,048,576 values per millisecond)
//
// It is only unique within a fleet whose instances differ in that nibble;
// use GUID when cross-host uniqueness matters.
type LongUUID [LongUUIDSize]byte

const longCounterBits = 20

var longCounter = NewCounterRange(0, 1<<longCounterBits-1, 0)

// NewLongUUID mints a LongUUID.
func NewLongUUID() LongUUID {
	nibble := uint64(instanceByte(identity()) & 0xF0)
	v := nibble<<56 |
		(uint64(nowMillis())&0xFFFFFFFFFF)<<longCounterBits |
		uint64(longCounter.Next())&(1<<longCounterBits-1)
	return LongUUIDFromInt64(int64(v))
}

// LongUUIDFromInt64 wraps a 64-bit value.
func LongUUIDFromInt64(v int64) LongUUID {
	var u LongUUID
	binary.BigEndian.PutUint64(u[:], uint64(v))
	return u
}

// ParseLongUUID decodes the 16-character hex form.
func ParseLongUUID(s string) (LongUUID, error) {
	var u LongUUID
	if err := parseFixedHex("LongUUID", s, u[:]); err != nil {
		return LongUUID{}, err
	}
	return u, nil
}

// LongUUIDFromBytes requires exactly 8 bytes.
func LongUUIDFromBytes(b []byte) (LongUUID, error) {
	var u LongUUID
	if err := copyExact("LongUUID", b, u[:]); err != nil {
		return LongUUID{}, err
	}
	return u, nil
}

// Int64 returns the identifier as a signed 64-bit integer.
func (u LongUUID) Int64() int64 {
	return int64(binary.BigEndian.Uint64(u[:]))
}

// ProcessID returns the 4-bit instance nibble.
func (u LongUUID) ProcessID() int {
	return int(u[0] >> 4)
}

// Timestamp returns the 40-bit millisecond field.
func (u LongUUID) Timestamp() int64 {
	return int64(uint64(u.Int64())>>longCounterBits) & 0xFFFFFFFFFF
}

// Time returns Timestamp as a time.Time.
func (u LongUUID) Time() time.Time {
	return time.UnixMilli(u.Timestamp())
}

// Counter returns the 20-bit counter field.
func (u LongUUID) Counter() int64 {
	return u.Int64() & (1<<longCounterBits - 1)
}

// Bytes returns a copy of the raw bytes.
func (u LongUUID) Bytes() []byte {
	b := make([]byte, LongUUIDSize)
	copy(b, u[:])
	return b
}

// Hex returns the 16-character lowercase hex form.
func (u LongUUID) Hex() string { return encode(Base16, u[:]) }

// String returns the hex form.
func (u LongUUID) String() string { return u.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (u LongUUID) MarshalText() ([]byte, error) { return []byte(u.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *LongUUID) UnmarshalText(text []byte) error {
	parsed, err := ParseLongUUID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalJSON encodes the LongUUID as a JSON string.
func (u LongUUID) MarshalJSON() ([]byte, error) { return json.Marshal(u.Hex()) }

// UnmarshalJSON decodes a JSON string; null is a no-op.
func (u *LongUUID) UnmarshalJSON(data []byte) error {
	text, ok, err := jsonText("LongUUID", data)
	if err != nil || !ok {
		return err
	}
	return u.UnmarshalText([]byte(text))
}

// ============================================================================
// IntegerUUID
// ============================================================================

// IntegerUUIDSize is the byte length of an IntegerUUID.
const IntegerUUIDSize = 4

// IntegerUUID is a 4-byte process-local sequence value. The sequence starts
// at a random point and wraps from MaxInt32 to MinInt32.
type IntegerUUID [IntegerUUIDSize]byte

var integerCounter = NewCounterRange(math.MinInt32, math.MaxInt32, int64(int32(rand.Uint32())))

// NewIntegerUUID mints the next IntegerUUID.
func NewIntegerUUID() IntegerUUID {
	return IntegerUUIDFromInt32(int32(integerCounter.Next()))
}

// IntegerUUIDFromInt32 wraps a 32-bit value.
func IntegerUUIDFromInt32(v int32) IntegerUUID {
	var u IntegerUUID
	binary.BigEndian.PutUint32(u[:], uint32(v))
	return u
}

// ParseIntegerUUID decodes the 8-character hex form.
func ParseIntegerUUID(s string) (IntegerUUID, error) {
	var u IntegerUUID
	if err := parseFixedHex("IntegerUUID", s, u[:]); err != nil {
		return IntegerUUID{}, err
	}
	return u, nil
}

// IntegerUUIDFromBytes requires exactly 4 bytes.
func IntegerUUIDFromBytes(b []byte) (IntegerUUID, error) {
	var u IntegerUUID
	if err := copyExact("IntegerUUID", b, u[:]); err != nil {
		return IntegerUUID{}, err
	}
	return u, nil
}

// Int32 returns the identifier as a signed 32-bit integer.
func (u IntegerUUID) Int32() int32 {
	return int32(binary.BigEndian.Uint32(u[:]))
}

// Bytes returns a copy of the raw bytes.
func (u IntegerUUID) Bytes() []byte {
	b := make([]byte, IntegerUUIDSize)
	copy(b, u[:])
	return b
}

// Hex returns the 8-character lowercase hex form.
func (u IntegerUUID) Hex() string { return encode(Base16, u[:]) }

// String returns the hex form.
func (u IntegerUUID) String() string { return u.Hex() }

// MarshalText implements encoding.TextMarshaler.
func (u IntegerUUID) MarshalText() ([]byte, error) { return []byte(u.Hex()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *IntegerUUID) UnmarshalText(text []byte) error {
	parsed, err := ParseIntegerUUID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

func instanceByte(id Identity) byte {
	if b, ok := id.(interface{ InstanceByte() byte }); ok {
		return b.InstanceByte()
	}
	return byte(id.InstanceID())
}

func parseFixedHex(name, s string, dst []byte) error {
	s = strings.TrimSpace(s)
	if len(s) != 2*len(dst) {
		return &ArgumentError{
			Field:      name,
			Value:      s,
			Reason:     fmt.Sprintf("length %d", len(s)),
			Constraint: fmt.Sprintf("must be %d hex characters", 2*len(dst)),
		}
	}
	b, err := decode(Base16, s)
	if err != nil {
		return newArgumentError(name, s, "malformed base16", err)
	}
	copy(dst, b)
	return nil
}

func copyExact(name string, b, dst []byte) error {
	if len(b) != len(dst) {
		return &ArgumentError{
			Field:      name,
			Value:      fmt.Sprintf("%x", b),
			Reason:     fmt.Sprintf("%d bytes", len(b)),
			Constraint: fmt.Sprintf("must be exactly %d bytes", len(dst)),
		}
	}
	copy(dst, b)
	return nil
}
