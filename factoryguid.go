package guid

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FactoryGUID is an identifier whose field widths are chosen by the Factory
// that minted it. The first 3 bytes are a header recording those widths, so
// ParseFactoryGUID needs no configuration to read it back.
//
// FactoryGUID is immutable and comparable with ==. The zero value holds no
// bytes; its accessors return -1 and its text forms are empty.
type FactoryGUID struct {
	raw    string
	layout Layout
}

func (g FactoryGUID) shape() *shape {
	return shapeFor(g.layout)
}

func (g FactoryGUID) valid() bool {
	return g.raw != ""
}

// ============================================================================
// Parsing
// ============================================================================

// ParseFactoryGUID decodes any text form of a FactoryGUID. The header (the
// first 4 base64 characters, or the segment after the ARK tenant) selects the
// layout used to read the rest.
func ParseFactoryGUID(s string) (FactoryGUID, error) {
	l, err := layoutFromText(s)
	if err != nil {
		return FactoryGUID{}, err
	}
	raw, err := shapeFor(l).parseText(s)
	if err != nil {
		return FactoryGUID{}, err
	}
	return FactoryGUID{raw: string(raw), layout: l}, nil
}

// MustParseFactoryGUID is like ParseFactoryGUID but panics on error.
func MustParseFactoryGUID(s string) FactoryGUID {
	g, err := ParseFactoryGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}

// FactoryGUIDFromBytes reads the header from b, then copies as many bytes as
// it declares. Trailing bytes are ignored; shorter input fails.
func FactoryGUIDFromBytes(b []byte) (FactoryGUID, error) {
	l, err := ParseHeader(b)
	if err != nil {
		return FactoryGUID{}, newArgumentError("FactoryGUID", fmt.Sprintf("%x", b), "bad header", err)
	}
	raw, err := shapeFor(l).parseBytes(b)
	if err != nil {
		return FactoryGUID{}, err
	}
	return FactoryGUID{raw: string(raw), layout: l}, nil
}

func layoutFromText(id string) (Layout, error) {
	id = strings.TrimSpace(id)
	seg := id
	if strings.HasPrefix(id, arkPrefix) {
		rest := id[len(arkPrefix):]
		sep := strings.IndexByte(rest, '/')
		if sep <= 0 {
			return Layout{}, newArgumentError("FactoryGUID", id, "ark without tenant segment", nil)
		}
		seg = rest[sep+1:]
	}
	if len(seg) < header64Len {
		return Layout{}, newArgumentError("FactoryGUID", id, "too short for a header", nil)
	}
	h, err := decode(Base64, seg[:header64Len])
	if err != nil {
		return Layout{}, newArgumentError("FactoryGUID", id, "malformed header", err)
	}
	l, err := ParseHeader(h)
	if err != nil {
		return Layout{}, newArgumentError("FactoryGUID", id, "bad header", err)
	}
	return l, nil
}

// ============================================================================
// Accessors
// ============================================================================

// Layout returns the field widths declared by the header.
func (g FactoryGUID) Layout() Layout {
	return g.layout
}

// KeySize returns the byte length, header included.
func (g FactoryGUID) KeySize() int {
	return len(g.raw)
}

// Version returns the version byte (3 for a valid FactoryGUID, 0 when empty).
func (g FactoryGUID) Version() int {
	if !g.valid() {
		return 0
	}
	return int(g.raw[0])
}

// TenantID returns the tenant, or -1 for the zero value.
func (g FactoryGUID) TenantID() int64 {
	if !g.valid() {
		return -1
	}
	return g.shape().tenant([]byte(g.raw))
}

// PlatformID returns the platform, or -1 for the zero value.
func (g FactoryGUID) PlatformID() int64 {
	if !g.valid() {
		return -1
	}
	return g.shape().platform([]byte(g.raw))
}

// ProcessID returns the process id (0 when the layout has no process field),
// or -1 for the zero value.
func (g FactoryGUID) ProcessID() int {
	if !g.valid() {
		return -1
	}
	return g.shape().pid([]byte(g.raw))
}

// Timestamp returns the mint time in Unix milliseconds, or -1. Layouts with
// fewer than 6 time bytes hold only the low-order bytes of the clock.
func (g FactoryGUID) Timestamp() int64 {
	if !g.valid() {
		return -1
	}
	return g.shape().timestamp([]byte(g.raw))
}

// Time returns Timestamp as a time.Time, or the zero time.
func (g FactoryGUID) Time() time.Time {
	if !g.valid() {
		return time.Time{}
	}
	return time.UnixMilli(g.Timestamp())
}

// Counter returns the collision counter, or -1.
func (g FactoryGUID) Counter() int64 {
	if !g.valid() {
		return -1
	}
	return g.shape().counter([]byte(g.raw))
}

// Bytes returns a copy of the raw bytes, or nil for the zero value.
func (g FactoryGUID) Bytes() []byte {
	if !g.valid() {
		return nil
	}
	return []byte(g.raw)
}

// IsZero reports whether g is the zero value.
func (g FactoryGUID) IsZero() bool {
	return !g.valid()
}

// ============================================================================
// Text Forms
// ============================================================================

// String returns the base64 header followed by the base32 body.
func (g FactoryGUID) String() string { return g.Base32() }

// Hex returns the base64 header followed by the hex body.
func (g FactoryGUID) Hex() string { return g.Format(Base16) }

// Base32 returns the base64 header followed by the base32 body.
func (g FactoryGUID) Base32() string { return g.Format(Base32) }

// Base64 returns the base64 header followed by the base64 body.
func (g FactoryGUID) Base64() string { return g.Format(Base64) }

// Ark returns "ark:/<tenant>/<base64 header><base32 platform..counter>".
func (g FactoryGUID) Ark() string {
	if !g.valid() {
		return ""
	}
	return g.shape().ark([]byte(g.raw))
}

// Format renders the body in any codec base behind the base64 header.
func (g FactoryGUID) Format(base Base) string {
	if !g.valid() {
		return ""
	}
	return g.shape().format([]byte(g.raw), base)
}

// ============================================================================
// Comparison
// ============================================================================

// Compare orders by tenant, then timestamp, then counter, then raw bytes.
// The zero value sorts first.
func (g FactoryGUID) Compare(other FactoryGUID) int {
	switch {
	case !g.valid() && !other.valid():
		return 0
	case !g.valid():
		return -1
	case !other.valid():
		return 1
	}
	return compareFields(g.shape(), []byte(g.raw), other.shape(), []byte(other.raw))
}

// Equal reports whether both have the same bytes.
func (g FactoryGUID) Equal(other FactoryGUID) bool {
	return g.raw == other.raw
}

// Before reports whether g sorts before other.
func (g FactoryGUID) Before(other FactoryGUID) bool { return g.Compare(other) < 0 }

// After reports whether g sorts after other.
func (g FactoryGUID) After(other FactoryGUID) bool { return g.Compare(other) > 0 }

// ============================================================================
// Marshaling
// ============================================================================

// MarshalText implements encoding.TextMarshaler.
func (g FactoryGUID) MarshalText() ([]byte, error) {
	return []byte(g.Base32()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *FactoryGUID) UnmarshalText(text []byte) error {
	parsed, err := ParseFactoryGUID(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// MarshalJSON encodes the FactoryGUID as a JSON string, or null when zero.
func (g FactoryGUID) MarshalJSON() ([]byte, error) {
	if !g.valid() {
		return []byte("null"), nil
	}
	return json.Marshal(g.Base32())
}

// UnmarshalJSON accepts a JSON string in any text form; null is a no-op.
func (g *FactoryGUID) UnmarshalJSON(data []byte) error {
	text, ok, err := jsonText("FactoryGUID", data)
	if err != nil || !ok {
		return err
	}
	return g.UnmarshalText([]byte(text))
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (g FactoryGUID) MarshalBinary() ([]byte, error) {
	return g.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (g *FactoryGUID) UnmarshalBinary(data []byte) error {
	parsed, err := FactoryGUIDFromBytes(data)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Scan implements sql.Scanner. Byte slices starting with the version byte
// are read as raw bytes, anything else as text.
func (g *FactoryGUID) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*g = FactoryGUID{}
		return nil
	case []byte:
		if len(v) > 0 && v[0] == VersionFactoryGUID {
			return g.UnmarshalBinary(v)
		}
		return g.UnmarshalText(v)
	case string:
		return g.UnmarshalText([]byte(v))
	}
	return newArgumentError("FactoryGUID", fmt.Sprintf("%T", value), "unsupported scan type", nil)
}

// Value implements driver.Valuer, storing the raw bytes or NULL when zero.
func (g FactoryGUID) Value() (driver.Value, error) {
	if !g.valid() {
		return nil, nil
	}
	return g.Bytes(), nil
}
