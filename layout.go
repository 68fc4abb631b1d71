// Package guid - layout.go provides configurable byte-width allocation for the
// self-describing identifier shape.
//
// A Layout trades size for range: wider tenant and platform fields address
// more owners and hosts, a wider time field extends the lifespan, a wider
// counter raises the per-millisecond throughput before collisions.

package guid

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Width bounds, in bytes, for each Layout field.
const (
	MinTenantSize   = 1
	MaxTenantSize   = 8
	MinPlatformSize = 1
	MaxPlatformSize = 8
	MinPidSize      = 0
	MaxPidSize      = 4
	MinTimeSize     = 4
	MaxTimeSize     = 8
	MinCounterSize  = 2
	MaxCounterSize  = 4
)

// HeaderSize is the length of the self-describing header of a FactoryGUID.
const HeaderSize = 3

// header64Len is the length of the base64 rendering of the header.
const header64Len = 4

// Layout defines the byte width of every field of a FactoryGUID.
//
// # Constraints
//
//   - TenantSize: 1-8 bytes
//   - PlatformSize: 1-8 bytes
//   - PidSize: 0-4 bytes (0 omits the process field)
//   - TimeSize: 4-8 bytes of milliseconds since the Unix epoch
//   - CounterSize: 2-4 bytes
//
// The widths are persisted in a 3-byte header so any FactoryGUID can be parsed
// back without knowing the Layout that produced it.
//
// Example:
//
//	f, err := guid.NewFactoryWithConfig(guid.FactoryConfig{Layout: guid.LayoutTiny})
type Layout struct {
	// TenantSize is the width of the tenant field in bytes.
	TenantSize int

	// PlatformSize is the width of the platform field in bytes.
	PlatformSize int

	// PidSize is the width of the process field in bytes.
	PidSize int

	// TimeSize is the width of the millisecond timestamp in bytes.
	// 4 bytes wrap after ~49 days, 6 bytes last ~8900 years.
	TimeSize int

	// CounterSize is the width of the collision counter in bytes.
	// 2 bytes allow 65,536 identifiers per millisecond before repeats.
	CounterSize int
}

// Pre-defined layouts.
var (
	// LayoutBiggest uses every field at its maximum width (35 bytes).
	LayoutBiggest = Layout{TenantSize: 8, PlatformSize: 8, PidSize: 4, TimeSize: 8, CounterSize: 4}

	// LayoutStandard is LayoutDefault with a 3-byte tenant (24 bytes).
	LayoutStandard = Layout{TenantSize: 3, PlatformSize: 6, PidSize: 3, TimeSize: 6, CounterSize: 3}

	// LayoutDefault is used by NewFactory (23 bytes).
	LayoutDefault = Layout{TenantSize: 2, PlatformSize: 6, PidSize: 3, TimeSize: 6, CounterSize: 3}

	// LayoutTiny suits small fleets (20 bytes).
	LayoutTiny = Layout{TenantSize: 2, PlatformSize: 4, PidSize: 2, TimeSize: 6, CounterSize: 3}

	// LayoutSmallest uses every field at its minimum width (11 bytes).
	// Its 4-byte timestamp wraps roughly every 49 days and its 2-byte counter
	// collides beyond 65,536 identifiers per millisecond.
	LayoutSmallest = Layout{TenantSize: 1, PlatformSize: 1, PidSize: 0, TimeSize: 4, CounterSize: 2}
)

var namedLayouts = map[string]Layout{
	"biggest":  LayoutBiggest,
	"standard": LayoutStandard,
	"default":  LayoutDefault,
	"tiny":     LayoutTiny,
	"smallest": LayoutSmallest,
}

// Layouts returns the names of the pre-defined layouts, sorted.
func Layouts() []string {
	names := make([]string, 0, len(namedLayouts))
	for name := range namedLayouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LayoutByName returns a pre-defined layout by case-insensitive name.
func LayoutByName(name string) (Layout, error) {
	l, ok := namedLayouts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Layout{}, &ArgumentError{
			Field:      "layout",
			Value:      name,
			Reason:     "unknown layout",
			Constraint: "must be one of " + strings.Join(Layouts(), ", "),
		}
	}
	return l, nil
}

// IsZero reports whether no width has been set.
func (l Layout) IsZero() bool {
	return l == Layout{}
}

// Validate checks every width against its bounds.
//
// Returns an ArgumentError naming the first offending field.
func (l Layout) Validate() error {
	checks := []struct {
		field    string
		value    int
		min, max int
	}{
		{"TenantSize", l.TenantSize, MinTenantSize, MaxTenantSize},
		{"PlatformSize", l.PlatformSize, MinPlatformSize, MaxPlatformSize},
		{"PidSize", l.PidSize, MinPidSize, MaxPidSize},
		{"TimeSize", l.TimeSize, MinTimeSize, MaxTimeSize},
		{"CounterSize", l.CounterSize, MinCounterSize, MaxCounterSize},
	}
	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return newRangeError(c.field, int64(c.value), int64(c.min), int64(c.max))
		}
	}
	return nil
}

// KeySize returns the total byte length of a FactoryGUID using this layout,
// header included.
func (l Layout) KeySize() int {
	return HeaderSize + l.TenantSize + l.PlatformSize + l.PidSize + l.TimeSize + l.CounterSize
}

// Key16Size returns the length of the hex text form.
func (l Layout) Key16Size() int {
	return header64Len + Base16.EncodedLen(l.KeySize()-HeaderSize)
}

// Key32Size returns the length of the base32 text form.
func (l Layout) Key32Size() int {
	return header64Len + Base32.EncodedLen(l.KeySize()-HeaderSize)
}

// Key64Size returns the length of the base64 text form.
func (l Layout) Key64Size() int {
	return header64Len + Base64.EncodedLen(l.KeySize()-HeaderSize)
}

// MaxCounter returns the largest counter value this layout can hold.
func (l Layout) MaxCounter() int64 {
	return int64(1)<<(8*l.CounterSize) - 1
}

// Lifespan returns how many years of milliseconds the time field can hold.
func (l Layout) Lifespan() float64 {
	ms := math.Pow(2, float64(8*l.TimeSize))
	return ms / (1000 * 60 * 60 * 24 * 365.25)
}

// Header packs the layout into the 3-byte self-describing header:
//
//	byte 0: format version (3)
//	byte 1: (TenantSize-1)<<3 | (PlatformSize-1)
//	byte 2: (PidSize<<3 | (TimeSize-4))<<2 | (CounterSize-2)
//
// The layout must be valid.
func (l Layout) Header() [HeaderSize]byte {
	return [HeaderSize]byte{
		VersionFactoryGUID,
		byte((l.TenantSize-MinTenantSize)<<3 | (l.PlatformSize - MinPlatformSize)),
		byte(((l.PidSize-MinPidSize)<<3|(l.TimeSize-MinTimeSize))<<2 | (l.CounterSize - MinCounterSize)),
	}
}

// ParseHeader reconstructs a Layout from the first 3 bytes of b.
//
// Fails with an ArgumentError when b is shorter than the header, when the
// version byte is not 3, or when a decoded width is out of bounds.
func ParseHeader(b []byte) (Layout, error) {
	if len(b) < HeaderSize {
		return Layout{}, newArgumentError("header", fmt.Sprintf("%x", b), "too short", nil)
	}
	if b[0] != VersionFactoryGUID {
		return Layout{}, &ArgumentError{
			Field:      "header",
			Value:      fmt.Sprintf("%x", b[:HeaderSize]),
			Reason:     fmt.Sprintf("version %d", b[0]),
			Constraint: fmt.Sprintf("must be %d", VersionFactoryGUID),
		}
	}
	l := Layout{
		TenantSize:   int(b[1]>>3&0x07) + MinTenantSize,
		PlatformSize: int(b[1]&0x07) + MinPlatformSize,
		PidSize:      int(b[2]>>5&0x07) + MinPidSize,
		TimeSize:     int(b[2]>>2&0x07) + MinTimeSize,
		CounterSize:  int(b[2]&0x03) + MinCounterSize,
	}
	if b[1]>>6 != 0 {
		return Layout{}, newArgumentError("header", fmt.Sprintf("%x", b[:HeaderSize]), "reserved bits set", nil)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, newArgumentError("header", fmt.Sprintf("%x", b[:HeaderSize]), "widths out of bounds", err)
	}
	return l, nil
}

// String returns a human-readable description of the layout.
//
// Example output: "Layout(tenant=2 platform=6 pid=3 time=6 counter=3, 23 bytes)"
func (l Layout) String() string {
	return fmt.Sprintf("Layout(tenant=%d platform=%d pid=%d time=%d counter=%d, %d bytes)",
		l.TenantSize, l.PlatformSize, l.PidSize, l.TimeSize, l.CounterSize, l.KeySize())
}
