package guid

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// TinyGUIDSize is the byte length of a TinyGUID.
const TinyGUIDSize = 16

// TinyGUID is a 16-byte identifier without a process field:
//
//	[0] version (2)  [1..2] tenant  [3..6] platform  [7..12] timestamp  [13..15] counter
//
// It fits the storage of a UUID column. Tenants are limited to 2 bytes.
type TinyGUID [TinyGUIDSize]byte

var (
	tinyShape   = newFixedShape("TinyGUID", VersionTinyGUID, Layout{TenantSize: 2, PlatformSize: 4, PidSize: 0, TimeSize: 6, CounterSize: 3})
	tinyCounter = NewCounter(3)
)

// NewTiny mints a TinyGUID for tenant 0 using the current identity.
func NewTiny() TinyGUID {
	return mintTiny(0, identity().PlatformID())
}

// NewTinyForTenant mints a TinyGUID for the given tenant, which must fit 2 bytes.
func NewTinyForTenant(tenant int64) (TinyGUID, error) {
	if err := tinyShape.checkTenant(tenant); err != nil {
		return TinyGUID{}, err
	}
	return mintTiny(tenant, identity().PlatformID()), nil
}

// NewTinyFor mints a TinyGUID with an explicit tenant and platform.
func NewTinyFor(tenant, platform int64) (TinyGUID, error) {
	if err := tinyShape.checkTenant(tenant); err != nil {
		return TinyGUID{}, err
	}
	if err := tinyShape.checkPlatform(platform); err != nil {
		return TinyGUID{}, err
	}
	return mintTiny(tenant, platform), nil
}

func mintTiny(tenant, platform int64) TinyGUID {
	var t TinyGUID
	tinyShape.mint(t[:], tenant, platform, 0, nowMillis(), tinyCounter.Next())
	return t
}

// ParseTiny decodes a TinyGUID from its hex, base32, base64 or ARK form.
func ParseTiny(s string) (TinyGUID, error) {
	raw, err := tinyShape.parseText(s)
	if err != nil {
		return TinyGUID{}, err
	}
	return TinyGUID(raw), nil
}

// MustParseTiny is like ParseTiny but panics on error.
func MustParseTiny(s string) TinyGUID {
	t, err := ParseTiny(s)
	if err != nil {
		panic(err)
	}
	return t
}

// TinyFromBytes copies a TinyGUID from the first 16 bytes of b.
func TinyFromBytes(b []byte) (TinyGUID, error) {
	raw, err := tinyShape.parseBytes(b)
	if err != nil {
		return TinyGUID{}, err
	}
	return TinyGUID(raw), nil
}

func (t TinyGUID) valid() bool {
	return t[0] == VersionTinyGUID
}

// Version returns the version byte (2 for a valid TinyGUID).
func (t TinyGUID) Version() int {
	return int(t[0])
}

// TenantID returns the tenant, or -1 if the version byte is wrong.
func (t TinyGUID) TenantID() int64 {
	if !t.valid() {
		return -1
	}
	return tinyShape.tenant(t[:])
}

// PlatformID returns the platform, or -1 if the version byte is wrong.
func (t TinyGUID) PlatformID() int64 {
	if !t.valid() {
		return -1
	}
	return tinyShape.platform(t[:])
}

// Timestamp returns the mint time in Unix milliseconds, or -1.
func (t TinyGUID) Timestamp() int64 {
	if !t.valid() {
		return -1
	}
	return tinyShape.timestamp(t[:])
}

// Time returns the mint time, or the zero time for an invalid TinyGUID.
func (t TinyGUID) Time() time.Time {
	if !t.valid() {
		return time.Time{}
	}
	return time.UnixMilli(t.Timestamp())
}

// Counter returns the collision counter, or -1.
func (t TinyGUID) Counter() int64 {
	if !t.valid() {
		return -1
	}
	return tinyShape.counter(t[:])
}

// Bytes returns a copy of the raw bytes.
func (t TinyGUID) Bytes() []byte {
	b := make([]byte, TinyGUIDSize)
	copy(b, t[:])
	return b
}

// IsZero reports whether t is the zero value.
func (t TinyGUID) IsZero() bool {
	return t == TinyGUID{}
}

// String returns the base32 form.
func (t TinyGUID) String() string { return t.Base32() }

// Hex returns the lowercase hex form (32 characters).
func (t TinyGUID) Hex() string { return tinyShape.format(t[:], Base16) }

// Base32 returns the lowercase unpadded base32 form (26 characters).
func (t TinyGUID) Base32() string { return tinyShape.format(t[:], Base32) }

// Base64 returns the unpadded standard base64 form (22 characters).
func (t TinyGUID) Base64() string { return tinyShape.format(t[:], Base64) }

// Ark returns the ARK form.
func (t TinyGUID) Ark() string { return tinyShape.ark(t[:]) }

// Format renders the raw bytes in any codec base.
func (t TinyGUID) Format(base Base) string { return tinyShape.format(t[:], base) }

// Compare orders by tenant, then timestamp, then counter, then raw bytes.
func (t TinyGUID) Compare(other TinyGUID) int {
	return compareFields(tinyShape, t[:], tinyShape, other[:])
}

// Equal reports whether both have the same bytes.
func (t TinyGUID) Equal(other TinyGUID) bool { return t == other }

// Before reports whether t sorts before other.
func (t TinyGUID) Before(other TinyGUID) bool { return t.Compare(other) < 0 }

// After reports whether t sorts after other.
func (t TinyGUID) After(other TinyGUID) bool { return t.Compare(other) > 0 }

// MarshalText implements encoding.TextMarshaler using the base32 form.
func (t TinyGUID) MarshalText() ([]byte, error) {
	return []byte(t.Base32()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TinyGUID) UnmarshalText(text []byte) error {
	parsed, err := ParseTiny(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON encodes the TinyGUID as a JSON string in base32 form.
func (t TinyGUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Base32())
}

// UnmarshalJSON accepts a JSON string in any text form; null is a no-op.
func (t *TinyGUID) UnmarshalJSON(data []byte) error {
	text, ok, err := jsonText(tinyShape.name, data)
	if err != nil || !ok {
		return err
	}
	return t.UnmarshalText([]byte(text))
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (t TinyGUID) MarshalBinary() ([]byte, error) {
	return t.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (t *TinyGUID) UnmarshalBinary(data []byte) error {
	parsed, err := TinyFromBytes(data)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner for raw bytes, text and NULL.
func (t *TinyGUID) Scan(value any) error {
	raw, text, isNull, err := scanSource(tinyShape.name, value, TinyGUIDSize)
	switch {
	case err != nil:
		return err
	case isNull:
		*t = TinyGUID{}
		return nil
	case raw != nil:
		return t.UnmarshalBinary(raw)
	}
	return t.UnmarshalText([]byte(text))
}

// Value implements driver.Valuer, storing the raw bytes or NULL when zero.
func (t TinyGUID) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Bytes(), nil
}
