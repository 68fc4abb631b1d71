package guid

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

const (
	guidHex    = "0100000000000000000020ae016c1e21cc0c000001"
	guidBase32 = "aeaaaaaaaaaaaaaaecxac3a6ehgayaaaae"
	guidBase64 = "AQAAAAAAAAAAACCuAWweIcwMAAAB"
	guidArk    = "ark:/0/aeaaaaaaaaqk4almdyq4ydaaaaaq"
)

var guidBytes = []byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x20, 0xae, 0x01, 0x6c, 0x1e, 0x21, 0xcc, 0x0c, 0, 0, 1}

// useClock pins the mint clock for the duration of the test.
func useClock(t *testing.T, ms int64) {
	t.Helper()
	prev := nowMillis
	nowMillis = func() int64 { return ms }
	t.Cleanup(func() { nowMillis = prev })
}

// ============================================================================
// Known Vectors
// ============================================================================

func TestGUID_KnownVectors(t *testing.T) {
	inputs := map[string]string{
		"hex":    guidHex,
		"base32": guidBase32,
		"base64": guidBase64,
		"ark":    guidArk,
	}

	for name, text := range inputs {
		t.Run(name, func(t *testing.T) {
			g, err := Parse(text)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if !bytes.Equal(g.Bytes(), guidBytes) {
				t.Errorf("Bytes() = %x, want %x", g.Bytes(), guidBytes)
			}
			if g.Hex() != guidHex {
				t.Errorf("Hex() = %s, want %s", g.Hex(), guidHex)
			}
			if g.Base32() != guidBase32 {
				t.Errorf("Base32() = %s, want %s", g.Base32(), guidBase32)
			}
			if g.Base64() != guidBase64 {
				t.Errorf("Base64() = %s, want %s", g.Base64(), guidBase64)
			}
			if g.Ark() != guidArk {
				t.Errorf("Ark() = %s, want %s", g.Ark(), guidArk)
			}
			if g.String() != guidBase32 {
				t.Errorf("String() = %s, want base32 form", g.String())
			}
		})
	}
}

func TestGUID_Base32ToHex(t *testing.T) {
	g, err := Parse(guidBase32)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if g.Version() != 1 {
		t.Errorf("Version() = %d, want 1", g.Version())
	}
	if g.Hex() != guidHex {
		t.Errorf("Hex() = %s, want %s", g.Hex(), guidHex)
	}
}

func TestGUID_Fields(t *testing.T) {
	g := MustParse(guidHex)

	if got := g.TenantID(); got != 0 {
		t.Errorf("TenantID() = %d, want 0", got)
	}
	if got := g.PlatformID(); got != 0 {
		t.Errorf("PlatformID() = %d, want 0", got)
	}
	if got := g.ProcessID(); got != 0x20ae {
		t.Errorf("ProcessID() = %#x, want 0x20ae", got)
	}
	if got := g.Timestamp(); got != 0x016c1e21cc0c {
		t.Errorf("Timestamp() = %#x, want 0x016c1e21cc0c", got)
	}
	if got := g.Counter(); got != 1 {
		t.Errorf("Counter() = %d, want 1", got)
	}
	if got := g.Time(); !got.Equal(time.UnixMilli(0x016c1e21cc0c)) {
		t.Errorf("Time() = %v", got)
	}
}

// ============================================================================
// Minting
// ============================================================================

func TestGUID_Mint(t *testing.T) {
	useIdentity(t, fixedIdentity{platform: 0x0a0b0c0d, pid: 0x1234})
	useClock(t, 1_700_000_000_000)

	g, err := NewForTenant(100)
	if err != nil {
		t.Fatalf("NewForTenant() error = %v", err)
	}

	if g.Version() != 1 {
		t.Errorf("Version() = %d, want 1", g.Version())
	}
	if g.TenantID() != 100 {
		t.Errorf("TenantID() = %d, want 100", g.TenantID())
	}
	if g.PlatformID() != 0x0a0b0c0d {
		t.Errorf("PlatformID() = %#x, want 0x0a0b0c0d", g.PlatformID())
	}
	if g.ProcessID() != 0x1234 {
		t.Errorf("ProcessID() = %#x, want 0x1234", g.ProcessID())
	}
	if g.Timestamp() != 1_700_000_000_000 {
		t.Errorf("Timestamp() = %d", g.Timestamp())
	}
}

// TestGUID_TenantIndependence mints with and without a tenant on the same
// process and expects identical platform and process fields.
func TestGUID_TenantIndependence(t *testing.T) {
	plain := New()
	tenant, err := NewForTenant(100)
	if err != nil {
		t.Fatalf("NewForTenant() error = %v", err)
	}

	if tenant.TenantID() != 100 || plain.TenantID() != 0 {
		t.Errorf("TenantID() = %d / %d, want 100 / 0", tenant.TenantID(), plain.TenantID())
	}
	if tenant.Version() != 1 {
		t.Errorf("Version() = %d, want 1", tenant.Version())
	}
	if tenant.PlatformID() != plain.PlatformID() {
		t.Errorf("PlatformID() = %d, want %d", tenant.PlatformID(), plain.PlatformID())
	}
	if tenant.ProcessID() != plain.ProcessID() {
		t.Errorf("ProcessID() = %d, want %d", tenant.ProcessID(), plain.ProcessID())
	}
}

func TestGUID_PlatformTruncatedToWidth(t *testing.T) {
	useIdentity(t, fixedIdentity{platform: 0x0605040302010, pid: 1})

	if got := New().PlatformID(); got != 0x40302010 {
		t.Errorf("PlatformID() = %#x, want the low 4 bytes", got)
	}
}

func TestGUID_RangeChecks(t *testing.T) {
	tests := []struct {
		name     string
		tenant   int64
		platform int64
		ok       bool
	}{
		{"zero", 0, 0, true},
		{"max unsigned", 1<<32 - 1, 1<<32 - 1, true},
		{"min signed", -1 << 31, -1 << 31, true},
		{"tenant too big", 1 << 32, 0, false},
		{"tenant too small", -1<<31 - 1, 0, false},
		{"platform too big", 0, 1 << 32, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFor(tt.tenant, tt.platform)
			if tt.ok && err != nil {
				t.Errorf("NewFor() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("NewFor() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

// ============================================================================
// Round-trip and Parsing
// ============================================================================

func TestGUID_RoundTrip(t *testing.T) {
	tenants := []int64{0, 1, 100, 1<<32 - 1, -1}

	for _, tenant := range tenants {
		g, err := NewForTenant(tenant)
		if err != nil {
			t.Fatalf("NewForTenant(%d) error = %v", tenant, err)
		}

		forms := map[string]string{
			"hex":    g.Hex(),
			"base32": g.Base32(),
			"base64": g.Base64(),
			"ark":    g.Ark(),
		}
		for name, text := range forms {
			parsed, err := Parse(text)
			if err != nil {
				t.Fatalf("Parse(%s %q) error = %v", name, text, err)
			}
			if parsed != g {
				t.Errorf("Parse(%s) = %x, want %x", name, parsed, g)
			}
		}

		fromBytes, err := FromBytes(g.Bytes())
		if err != nil {
			t.Fatalf("FromBytes() error = %v", err)
		}
		if fromBytes != g {
			t.Errorf("FromBytes() = %x, want %x", fromBytes, g)
		}
	}
}

func TestGUID_BytesIsCopy(t *testing.T) {
	g := MustParse(guidHex)

	b := g.Bytes()
	b[0] = 0xff
	b[20] = 0xff

	if !bytes.Equal(g.Bytes(), guidBytes) {
		t.Errorf("Bytes() = %x after mutating a copy", g.Bytes())
	}
}

func TestGUID_ParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"wrong length", "02010000000127bdb6760058af0154f6a2d300000001"},
		{"ark tenant not decimal", "ark:/1a/aeasppnwoyafrlybkt3kfuyaaaaac"},
		{"ark missing separator", "ark:/1aeasppnwoyafrlybkt3kfuyaaaaac"},
		{"ark payload too long", "ark:/1/aeasppnwoyafrlybkt3kfuyaaaaacaaaaa"},
		{"ark empty tenant", "ark://aeaaaaaaaaqk4almdyq4ydaaaaaq"},
		{"ark tenant out of range", "ark:/4294967296/aeaaaaaaaaqk4almdyq4ydaaaaaq"},
		{"base32 truncated", guidBase32[:len(guidBase32)-1]},
		{"base32 bad char", "1" + guidBase32[1:]},
		{"hex bad char", "zz" + guidHex[2:]},
		{"tiny guid text", tinyBase32},
		{"wrong version hex", "02" + guidHex[2:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalidArgument", tt.text, err)
			}
		})
	}
}

func TestGUID_ParseTrimsWhitespace(t *testing.T) {
	g, err := Parse("  " + guidBase32 + "\n")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if g.Hex() != guidHex {
		t.Errorf("Hex() = %s", g.Hex())
	}
}

func TestGUID_FromBytes(t *testing.T) {
	long := append(append([]byte{}, guidBytes...), 0xde, 0xad)
	g, err := FromBytes(long)
	if err != nil {
		t.Fatalf("FromBytes(trailing) error = %v", err)
	}
	if g.Hex() != guidHex {
		t.Errorf("FromBytes(trailing) = %s, want %s", g.Hex(), guidHex)
	}

	wrongVersion := append([]byte{}, guidBytes...)
	wrongVersion[0] = 2

	invalid := map[string][]byte{
		"nil":           nil,
		"short":         guidBytes[:20],
		"wrong version": wrongVersion,
	}
	for name, b := range invalid {
		if _, err := FromBytes(b); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("FromBytes(%s) error = %v, want ErrInvalidArgument", name, err)
		}
	}
}

func TestGUID_WrongVersionAccessors(t *testing.T) {
	var g GUID
	g[0] = 2

	if g.TenantID() != -1 || g.PlatformID() != -1 || g.ProcessID() != -1 ||
		g.Timestamp() != -1 || g.Counter() != -1 {
		t.Error("accessors on a wrong-version GUID should return -1")
	}
	if !g.Time().IsZero() {
		t.Error("Time() on a wrong-version GUID should be zero")
	}
	if (GUID{}).Version() != 0 || !(GUID{}).IsZero() {
		t.Error("zero GUID should report version 0 and IsZero")
	}
}

// ============================================================================
// Ordering
// ============================================================================

func TestGUID_Compare(t *testing.T) {
	useIdentity(t, fixedIdentity{platform: 1, pid: 1})
	useClock(t, 1000)

	a, _ := NewForTenant(1)
	b, _ := NewForTenant(1)
	c, _ := NewForTenant(2)

	if a.Compare(a) != 0 || !a.Equal(a) {
		t.Error("a GUID should compare equal to itself")
	}
	if !a.Before(b) || !b.After(a) {
		t.Error("a later counter should sort after")
	}
	if !b.Before(c) {
		t.Error("a higher tenant should sort after regardless of counter")
	}

	useClock(t, 999)
	earlier, _ := NewForTenant(1)
	if !earlier.Before(a) {
		t.Error("an earlier timestamp should sort before")
	}
}

func TestGUID_CompareTieBreak(t *testing.T) {
	a := MustParse(guidHex)
	b := a
	b[5] = 0x01 // different platform, same tenant/timestamp/counter

	if a.Compare(b) == 0 {
		t.Error("GUIDs differing only in platform should not compare equal")
	}
	if a.Compare(b) != -b.Compare(a) {
		t.Error("Compare() should be antisymmetric")
	}
}

// ============================================================================
// Marshaling
// ============================================================================

func TestGUID_JSON(t *testing.T) {
	type record struct {
		ID   GUID  `json:"id"`
		Next *GUID `json:"next"`
	}

	in := record{ID: MustParse(guidHex)}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if want := `{"id":"` + guidBase32 + `","next":null}`; string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}

	var out record
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if out.ID != in.ID || out.Next != nil {
		t.Errorf("json.Unmarshal() = %+v", out)
	}

	var fromHex GUID
	if err := json.Unmarshal([]byte(`"`+guidHex+`"`), &fromHex); err != nil {
		t.Fatalf("json.Unmarshal(hex) error = %v", err)
	}
	if fromHex != in.ID {
		t.Error("json.Unmarshal(hex) mismatch")
	}

	var bad GUID
	if err := json.Unmarshal([]byte(`12`), &bad); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("json.Unmarshal(number) error = %v, want ErrInvalidArgument", err)
	}
}

func TestGUID_TextAndBinary(t *testing.T) {
	g := MustParse(guidHex)

	text, _ := g.MarshalText()
	var fromText GUID
	if err := fromText.UnmarshalText(text); err != nil || fromText != g {
		t.Errorf("UnmarshalText() = %x, %v", fromText, err)
	}

	bin, _ := g.MarshalBinary()
	var fromBin GUID
	if err := fromBin.UnmarshalBinary(bin); err != nil || fromBin != g {
		t.Errorf("UnmarshalBinary() = %x, %v", fromBin, err)
	}
}

func TestGUID_SQL(t *testing.T) {
	g := MustParse(guidHex)

	v, err := g.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if !bytes.Equal(v.([]byte), guidBytes) {
		t.Errorf("Value() = %x", v)
	}
	if v, _ := (GUID{}).Value(); v != nil {
		t.Errorf("zero Value() = %v, want nil", v)
	}

	tests := []struct {
		name  string
		value any
		want  GUID
		ok    bool
	}{
		{"raw bytes", guidBytes, g, true},
		{"text bytes", []byte(guidBase64), g, true},
		{"string", guidArk, g, true},
		{"nil", nil, GUID{}, true},
		{"int", 42, GUID{}, false},
		{"bad string", "nope", GUID{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got GUID
			err := got.Scan(tt.value)
			if tt.ok != (err == nil) {
				t.Fatalf("Scan() error = %v, ok = %v", err, tt.ok)
			}
			if tt.ok && got != tt.want {
				t.Errorf("Scan() = %x, want %x", got, tt.want)
			}
		})
	}
}

func TestGUID_Format(t *testing.T) {
	g := MustParse(guidHex)
	if got := g.Format(Base64URLPadded); got != "AQAAAAAAAAAAACCuAWweIcwMAAAB" {
		t.Errorf("Format(Base64URLPadded) = %s", got)
	}
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkNew(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = New()
	}
}

func BenchmarkParseBase32(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Parse(guidBase32)
	}
}

func BenchmarkGUID_Ark(b *testing.B) {
	g := New()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = g.Ark()
	}
}
