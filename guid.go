// Package guid generates compact, sortable, globally distinguishable
// identifiers by packing tenant, platform, process, timestamp and a collision
// counter into a short byte array with reversible text forms.
//
// # Overview
//
// Three shapes share one packing and parsing engine, discriminated by their
// first (version) byte:
//
//   - GUID (version 1): 21 bytes, fixed layout with a process field
//   - TinyGUID (version 2): 16 bytes, fixed layout without a process field
//   - FactoryGUID (version 3): 11 to 35 bytes, widths chosen per Factory and
//     recorded in a 3-byte self-describing header
//
// # GUID Structure (21 bytes)
//
//	┌─────────┬──────────┬──────────┬─────────┬──────────────┬─────────┐
//	│ version │  tenant  │ platform │ process │  timestamp   │ counter │
//	│ 1 byte  │ 4 bytes  │ 4 bytes  │ 3 bytes │ 6 bytes (ms) │ 3 bytes │
//	└─────────┴──────────┴──────────┴─────────┴──────────────┴─────────┘
//
// Every field is big-endian.
//
// # Text Forms
//
// Every identifier renders as lowercase hex, lowercase unpadded base32 (the
// String form), unpadded standard base64, and an ARK URI
// "ark:/<tenant>/<base32 payload>". Parse accepts any of them and selects the
// base from the text length alone.
//
// # Uniqueness
//
// Uniqueness is structural, not coordinated: two identifiers collide only if
// they share tenant, platform, process and millisecond, and the counter has
// wrapped within that millisecond. Assign distinct platform ids per host (see
// the redislease package) when hardware addresses are not reliable.
//
// # Usage
//
//	id := guid.New()
//	fmt.Println(id)          // aeaaaaaaaa...
//	fmt.Println(id.Ark())    // ark:/0/ae...
//
//	parsed, err := guid.Parse(id.Hex())
//
//	f := guid.NewFactory()
//	key := f.New()
package guid

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// GUIDSize is the byte length of a GUID.
const GUIDSize = 21

// GUID is a 21-byte identifier with a process field.
//
// GUID is a value type: copies are independent and == compares raw bytes.
// The zero value is not a valid identifier; its accessors return -1.
type GUID [GUIDSize]byte

var (
	guidShape   = newFixedShape("GUID", VersionGUID, Layout{TenantSize: 4, PlatformSize: 4, PidSize: 3, TimeSize: 6, CounterSize: 3})
	guidCounter = NewCounter(3)
)

// ============================================================================
// Minting
// ============================================================================

// New mints a GUID for tenant 0 using the current identity.
//
// Performance: a few atomic operations and no allocations beyond the result.
func New() GUID {
	id := identity()
	return mintGUID(0, id.PlatformID(), id)
}

// NewForTenant mints a GUID for the given tenant.
//
// tenant must fit 4 bytes, signed or unsigned.
func NewForTenant(tenant int64) (GUID, error) {
	if err := guidShape.checkTenant(tenant); err != nil {
		return GUID{}, err
	}
	id := identity()
	return mintGUID(tenant, id.PlatformID(), id), nil
}

// NewFor mints a GUID with an explicit tenant and platform.
func NewFor(tenant, platform int64) (GUID, error) {
	if err := guidShape.checkTenant(tenant); err != nil {
		return GUID{}, err
	}
	if err := guidShape.checkPlatform(platform); err != nil {
		return GUID{}, err
	}
	return mintGUID(tenant, platform, identity()), nil
}

func mintGUID(tenant, platform int64, id Identity) GUID {
	var g GUID
	guidShape.mint(g[:], tenant, platform, id.ProcessID(), nowMillis(), guidCounter.Next())
	return g
}

// ============================================================================
// Parsing
// ============================================================================

// Parse decodes a GUID from its hex, base32, base64 or ARK form.
//
// Surrounding whitespace is ignored. Any failure is an ArgumentError.
//
// Example:
//
//	id, err := guid.Parse("aeaaaaaaaaaaaaaaecxac3a6ehgayaaaae")
func Parse(s string) (GUID, error) {
	raw, err := guidShape.parseText(s)
	if err != nil {
		return GUID{}, err
	}
	return GUID(raw), nil
}

// MustParse is like Parse but panics on error. Intended for constants in tests.
func MustParse(s string) GUID {
	g, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return g
}

// FromBytes copies a GUID from the first 21 bytes of b.
//
// Shorter input fails; trailing bytes are ignored.
func FromBytes(b []byte) (GUID, error) {
	raw, err := guidShape.parseBytes(b)
	if err != nil {
		return GUID{}, err
	}
	return GUID(raw), nil
}

// ============================================================================
// Accessors
// ============================================================================

func (g GUID) valid() bool {
	return g[0] == VersionGUID
}

// Version returns the version byte (1 for a valid GUID).
func (g GUID) Version() int {
	return int(g[0])
}

// TenantID returns the tenant, or -1 if the version byte is wrong.
func (g GUID) TenantID() int64 {
	if !g.valid() {
		return -1
	}
	return guidShape.tenant(g[:])
}

// PlatformID returns the platform, or -1 if the version byte is wrong.
func (g GUID) PlatformID() int64 {
	if !g.valid() {
		return -1
	}
	return guidShape.platform(g[:])
}

// ProcessID returns the process id, or -1 if the version byte is wrong.
func (g GUID) ProcessID() int {
	if !g.valid() {
		return -1
	}
	return guidShape.pid(g[:])
}

// Timestamp returns the mint time in Unix milliseconds, or -1 if the version
// byte is wrong.
func (g GUID) Timestamp() int64 {
	if !g.valid() {
		return -1
	}
	return guidShape.timestamp(g[:])
}

// Time returns the mint time. The zero time is returned for an invalid GUID.
func (g GUID) Time() time.Time {
	if !g.valid() {
		return time.Time{}
	}
	return time.UnixMilli(g.Timestamp())
}

// Counter returns the collision counter, or -1 if the version byte is wrong.
func (g GUID) Counter() int64 {
	if !g.valid() {
		return -1
	}
	return guidShape.counter(g[:])
}

// Bytes returns a copy of the raw bytes.
func (g GUID) Bytes() []byte {
	b := make([]byte, GUIDSize)
	copy(b, g[:])
	return b
}

// IsZero reports whether g is the zero value.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// ============================================================================
// Text Forms
// ============================================================================

// String returns the base32 form.
func (g GUID) String() string {
	return g.Base32()
}

// Hex returns the lowercase hex form (42 characters).
func (g GUID) Hex() string {
	return guidShape.format(g[:], Base16)
}

// Base32 returns the lowercase unpadded base32 form (34 characters).
func (g GUID) Base32() string {
	return guidShape.format(g[:], Base32)
}

// Base64 returns the unpadded standard base64 form (28 characters).
func (g GUID) Base64() string {
	return guidShape.format(g[:], Base64)
}

// Ark returns "ark:/<tenant>/<base32 of version and the bytes after tenant>".
func (g GUID) Ark() string {
	return guidShape.ark(g[:])
}

// Format renders the raw bytes in any codec base. Only Base16, Base32 and
// Base64 output is accepted back by Parse.
func (g GUID) Format(base Base) string {
	return guidShape.format(g[:], base)
}

// ============================================================================
// Comparison
// ============================================================================

// Compare orders by tenant, then timestamp, then counter, then raw bytes.
// It returns -1, 0 or +1.
func (g GUID) Compare(other GUID) int {
	return compareFields(guidShape, g[:], guidShape, other[:])
}

// Equal reports whether both GUIDs have the same bytes.
func (g GUID) Equal(other GUID) bool {
	return g == other
}

// Before reports whether g sorts before other.
func (g GUID) Before(other GUID) bool {
	return g.Compare(other) < 0
}

// After reports whether g sorts after other.
func (g GUID) After(other GUID) bool {
	return g.Compare(other) > 0
}

// ============================================================================
// Marshaling
// ============================================================================

// MarshalText implements encoding.TextMarshaler using the base32 form.
func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.Base32()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler; any text form is accepted.
func (g *GUID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// MarshalJSON encodes the GUID as a JSON string in base32 form.
func (g GUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Base32())
}

// UnmarshalJSON accepts a JSON string in any text form. null leaves g unchanged.
func (g *GUID) UnmarshalJSON(data []byte) error {
	text, ok, err := jsonText(guidShape.name, data)
	if err != nil || !ok {
		return err
	}
	return g.UnmarshalText([]byte(text))
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (g GUID) MarshalBinary() ([]byte, error) {
	return g.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (g *GUID) UnmarshalBinary(data []byte) error {
	parsed, err := FromBytes(data)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Scan implements sql.Scanner. It accepts raw 21-byte values, any text form
// as string or []byte, and NULL (which yields the zero GUID).
//
// Example:
//
//	var id guid.GUID
//	err := db.QueryRow("SELECT id FROM users WHERE name = ?", name).Scan(&id)
func (g *GUID) Scan(value any) error {
	raw, text, isNull, err := scanSource(guidShape.name, value, GUIDSize)
	switch {
	case err != nil:
		return err
	case isNull:
		*g = GUID{}
		return nil
	case raw != nil:
		return g.UnmarshalBinary(raw)
	}
	return g.UnmarshalText([]byte(text))
}

// Value implements driver.Valuer, storing the raw bytes. The zero GUID is
// stored as NULL.
func (g GUID) Value() (driver.Value, error) {
	if g.IsZero() {
		return nil, nil
	}
	return g.Bytes(), nil
}
