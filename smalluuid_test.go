package guid

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestLongUUID_Fields(t *testing.T) {
	useIdentity(t, fixedIdentity{instance: 0xA7})
	useClock(t, 0x12_3456_789A)

	u := NewLongUUID()
	if got := u.ProcessID(); got != 0xA {
		t.Errorf("ProcessID() = %#x, want 0xa", got)
	}
	if got := u.Timestamp(); got != 0x12_3456_789A {
		t.Errorf("Timestamp() = %#x, want 0x123456789a", got)
	}

	next := NewLongUUID()
	if next.Counter() != (u.Counter()+1)&(1<<20-1) {
		t.Errorf("Counter() = %d after %d", next.Counter(), u.Counter())
	}
}

func TestLongUUID_TimestampWraps40Bits(t *testing.T) {
	useIdentity(t, fixedIdentity{})
	useClock(t, 1<<40+5)

	if got := NewLongUUID().Timestamp(); got != 5 {
		t.Errorf("Timestamp() = %d, want 5", got)
	}
}

func TestLongUUID_RoundTrip(t *testing.T) {
	u := LongUUIDFromInt64(-2)

	if u.Hex() != "fffffffffffffffe" {
		t.Errorf("Hex() = %s", u.Hex())
	}
	if u.Int64() != -2 {
		t.Errorf("Int64() = %d, want -2", u.Int64())
	}

	parsed, err := ParseLongUUID(u.String())
	if err != nil || parsed != u {
		t.Errorf("ParseLongUUID() = %v, %v", parsed, err)
	}
	fromBytes, err := LongUUIDFromBytes(u.Bytes())
	if err != nil || fromBytes != u {
		t.Errorf("LongUUIDFromBytes() = %v, %v", fromBytes, err)
	}

	data, _ := json.Marshal(u)
	var back LongUUID
	if err := json.Unmarshal(data, &back); err != nil || back != u {
		t.Errorf("json round-trip = %v, %v", back, err)
	}
}

func TestLongUUID_Invalid(t *testing.T) {
	if _, err := ParseLongUUID("abc"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseLongUUID(short) error = %v", err)
	}
	if _, err := ParseLongUUID("zzzzzzzzzzzzzzzz"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseLongUUID(bad hex) error = %v", err)
	}
	if _, err := LongUUIDFromBytes(make([]byte, 9)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("LongUUIDFromBytes(9 bytes) error = %v", err)
	}
}

func TestIntegerUUID_Sequence(t *testing.T) {
	a := NewIntegerUUID()
	b := NewIntegerUUID()

	want := a.Int32() + 1
	if a.Int32() == math.MaxInt32 {
		want = math.MinInt32
	}
	if b.Int32() != want {
		t.Errorf("Int32() = %d after %d, want %d", b.Int32(), a.Int32(), want)
	}
}

func TestIntegerUUID_RoundTrip(t *testing.T) {
	u := IntegerUUIDFromInt32(math.MinInt32)

	if u.Hex() != "80000000" {
		t.Errorf("Hex() = %s, want 80000000", u.Hex())
	}

	parsed, err := ParseIntegerUUID(" 80000000 ")
	if err != nil || parsed != u {
		t.Errorf("ParseIntegerUUID() = %v, %v", parsed, err)
	}

	var fromText IntegerUUID
	if err := fromText.UnmarshalText([]byte(u.String())); err != nil || fromText.Int32() != math.MinInt32 {
		t.Errorf("UnmarshalText() = %v, %v", fromText, err)
	}

	if _, err := IntegerUUIDFromBytes(u.Bytes()[:3]); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("IntegerUUIDFromBytes(3 bytes) error = %v", err)
	}
}
