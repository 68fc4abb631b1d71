package guid

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

func newTestFactory(t *testing.T, l Layout) *Factory {
	t.Helper()
	cfg := DefaultFactoryConfig()
	cfg.Layout = l
	cfg.Identity = fixedIdentity{platform: 0x0102030405060708, pid: 0x0a0b}
	cfg.Logger = zaptest.NewLogger(t)
	f, err := NewFactoryWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewFactoryWithConfig() error = %v", err)
	}
	return f
}

// ============================================================================
// Construction
// ============================================================================

func TestNewFactory_Defaults(t *testing.T) {
	f := NewFactory()

	if f.Layout() != LayoutDefault {
		t.Errorf("Layout() = %v, want %v", f.Layout(), LayoutDefault)
	}
	if f.KeySize() != 23 || f.Key16Size() != 44 || f.Key32Size() != 36 || f.Key64Size() != 31 {
		t.Errorf("sizes = %d/%d/%d/%d, want 23/44/36/31", f.KeySize(), f.Key16Size(), f.Key32Size(), f.Key64Size())
	}
	if f.TenantID() != 0 {
		t.Errorf("TenantID() = %d, want 0", f.TenantID())
	}

	g := f.New()
	if g.Version() != 3 {
		t.Errorf("Version() = %d, want 3", g.Version())
	}
	if !strings.HasPrefix(g.String(), "Aw1p") {
		t.Errorf("String() = %s, want the Aw1p header prefix", g.String())
	}
	if len(g.Hex()) != 44 || len(g.Base32()) != 36 || len(g.Base64()) != 31 {
		t.Errorf("text lengths = %d/%d/%d", len(g.Hex()), len(g.Base32()), len(g.Base64()))
	}
}

func TestNewFactoryWithConfig_Invalid(t *testing.T) {
	big := int64(1 << 48)
	pid := -1

	tests := []struct {
		name string
		cfg  FactoryConfig
	}{
		{"bad layout", FactoryConfig{Layout: Layout{TenantSize: 9, PlatformSize: 6, PidSize: 3, TimeSize: 6, CounterSize: 3}}},
		{"tenant too wide", FactoryConfig{Layout: LayoutDefault, TenantID: 1 << 16}},
		{"platform too wide", FactoryConfig{Layout: LayoutDefault, PlatformID: &big}},
		{"negative pid", FactoryConfig{Layout: LayoutDefault, ProcessID: &pid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewFactoryWithConfig(tt.cfg); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("NewFactoryWithConfig() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestFactoryConfig_ZeroLayout(t *testing.T) {
	cfg := FactoryConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Layout != LayoutDefault {
		t.Errorf("Layout = %v, want LayoutDefault", cfg.Layout)
	}
}

// ============================================================================
// Minting
// ============================================================================

func TestFactory_AllPresetsRoundTrip(t *testing.T) {
	useClock(t, 1_700_000_000_000)

	for _, name := range Layouts() {
		t.Run(name, func(t *testing.T) {
			l, _ := LayoutByName(name)
			f := newTestFactory(t, l)

			g, err := f.NewForTenant(1)
			if err != nil {
				t.Fatalf("NewForTenant() error = %v", err)
			}
			if g.Layout() != l || g.KeySize() != l.KeySize() {
				t.Fatalf("Layout() = %v, KeySize() = %d", g.Layout(), g.KeySize())
			}

			forms := []string{g.Hex(), g.Base32(), g.Base64(), g.Ark()}
			for _, text := range forms {
				parsed, err := ParseFactoryGUID(text)
				if err != nil {
					t.Fatalf("ParseFactoryGUID(%q) error = %v", text, err)
				}
				if parsed != g {
					t.Errorf("ParseFactoryGUID(%q) = %x, want %x", text, parsed.Bytes(), g.Bytes())
				}
			}

			fromBytes, err := FactoryGUIDFromBytes(g.Bytes())
			if err != nil || fromBytes != g {
				t.Errorf("FactoryGUIDFromBytes() = %v, %v", fromBytes, err)
			}
		})
	}
}

func TestFactory_FieldTruncation(t *testing.T) {
	useClock(t, 0x0102030405)
	f := newTestFactory(t, LayoutDefault)

	g := f.New()
	if got := g.PlatformID(); got != 0x030405060708 {
		t.Errorf("PlatformID() = %#x, want the low 6 bytes", got)
	}
	if got := g.ProcessID(); got != 0x0a0b {
		t.Errorf("ProcessID() = %#x, want 0x0a0b", got)
	}

	if err := f.SetTimeSize(4); err != nil {
		t.Fatalf("SetTimeSize() error = %v", err)
	}
	if got := f.New().Timestamp(); got != 0x02030405 {
		t.Errorf("Timestamp() = %#x, want the low 4 bytes", got)
	}
}

func TestFactory_NoProcessField(t *testing.T) {
	f := newTestFactory(t, LayoutSmallest)

	if f.Layout().PidSize != 0 {
		t.Fatalf("LayoutSmallest PidSize = %d", f.Layout().PidSize)
	}
	if got := f.New().ProcessID(); got != 0 {
		t.Errorf("ProcessID() = %d, want 0", got)
	}
	if err := f.SetProcessID(1 << 30); err != nil {
		t.Errorf("SetProcessID() without a process field error = %v", err)
	}
}

// ============================================================================
// Setters
// ============================================================================

func TestFactory_SizeSetters(t *testing.T) {
	f := newTestFactory(t, LayoutDefault)

	tests := []struct {
		name  string
		set   func(int) error
		value int
		ok    bool
	}{
		{"tenant 8", f.SetTenantSize, 8, true},
		{"tenant 0", f.SetTenantSize, 0, false},
		{"tenant 9", f.SetTenantSize, 9, false},
		{"platform 1", f.SetPlatformSize, 1, true},
		{"platform 9", f.SetPlatformSize, 9, false},
		{"pid 0", f.SetPidSize, 0, true},
		{"pid 5", f.SetPidSize, 5, false},
		{"time 8", f.SetTimeSize, 8, true},
		{"time 3", f.SetTimeSize, 3, false},
		{"counter 4", f.SetCounterSize, 4, true},
		{"counter 1", f.SetCounterSize, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.Layout()
			err := tt.set(tt.value)
			if tt.ok && err != nil {
				t.Fatalf("setter error = %v", err)
			}
			if !tt.ok {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("setter error = %v, want ErrInvalidArgument", err)
				}
				if f.Layout() != before {
					t.Errorf("Layout() changed to %v after a rejected setter", f.Layout())
				}
			}
		})
	}

	want := Layout{TenantSize: 8, PlatformSize: 1, PidSize: 0, TimeSize: 8, CounterSize: 4}
	if f.Layout() != want {
		t.Errorf("Layout() = %v, want %v", f.Layout(), want)
	}
	if f.KeySize() != want.KeySize() {
		t.Errorf("KeySize() = %d, want %d", f.KeySize(), want.KeySize())
	}
}

func TestFactory_UseLayout(t *testing.T) {
	f := newTestFactory(t, LayoutDefault)

	if err := f.UseLayout(LayoutSmallest); err != nil {
		t.Fatalf("UseLayout() error = %v", err)
	}
	if f.Layout() != LayoutSmallest || f.New().KeySize() != 11 {
		t.Errorf("Layout() = %v", f.Layout())
	}
	if err := f.UseLayout(Layout{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("UseLayout(zero) error = %v, want ErrInvalidArgument", err)
	}
}

func TestFactory_TenantID(t *testing.T) {
	f := newTestFactory(t, LayoutDefault)

	if err := f.SetTenantID(500); err != nil {
		t.Fatalf("SetTenantID() error = %v", err)
	}
	if got := f.New().TenantID(); got != 500 {
		t.Errorf("TenantID() = %d, want 500", got)
	}

	if err := f.SetTenantID(1 << 16); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetTenantID(2^16) error = %v, want ErrInvalidArgument", err)
	}
	if f.TenantID() != 500 {
		t.Errorf("TenantID() = %d after a rejected setter", f.TenantID())
	}

	if _, err := f.NewForTenant(-40000); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewForTenant(-40000) error = %v, want ErrInvalidArgument", err)
	}
}

// TestFactory_TenantShrink keeps a default tenant that no longer fits after
// the width shrinks; New truncates it.
func TestFactory_TenantShrink(t *testing.T) {
	f := newTestFactory(t, LayoutDefault)
	if err := f.SetTenantID(0x1234); err != nil {
		t.Fatalf("SetTenantID() error = %v", err)
	}
	if err := f.SetTenantSize(1); err != nil {
		t.Fatalf("SetTenantSize() error = %v", err)
	}
	if got := f.New().TenantID(); got != 0x34 {
		t.Errorf("TenantID() = %#x, want 0x34", got)
	}
}

func TestFactory_PlatformAndProcessOverrides(t *testing.T) {
	f := newTestFactory(t, LayoutDefault)

	if err := f.SetPlatformID(77); err != nil {
		t.Fatalf("SetPlatformID() error = %v", err)
	}
	if err := f.SetProcessID(12); err != nil {
		t.Fatalf("SetProcessID() error = %v", err)
	}
	g := f.New()
	if g.PlatformID() != 77 || g.ProcessID() != 12 {
		t.Errorf("PlatformID/ProcessID = %d/%d, want 77/12", g.PlatformID(), g.ProcessID())
	}

	if err := f.SetPlatformID(1 << 48); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetPlatformID(2^48) error = %v", err)
	}
	if err := f.SetProcessID(1 << 24); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetProcessID(2^24) error = %v", err)
	}

	f.ResetPlatformID()
	f.ResetProcessID()
	if f.PlatformID() != 0x0102030405060708 || f.ProcessID() != 0x0a0b {
		t.Errorf("after reset PlatformID/ProcessID = %#x/%#x", f.PlatformID(), f.ProcessID())
	}
}

func TestFactory_NewFor(t *testing.T) {
	f := newTestFactory(t, LayoutDefault)

	g, err := f.NewFor(9, 1<<40)
	if err != nil {
		t.Fatalf("NewFor() error = %v", err)
	}
	if g.TenantID() != 9 || g.PlatformID() != 1<<40 {
		t.Errorf("TenantID/PlatformID = %d/%d", g.TenantID(), g.PlatformID())
	}
	if _, err := f.NewFor(9, 1<<48); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewFor(platform 2^48) error = %v", err)
	}
}

// ============================================================================
// Parsing
// ============================================================================

func TestFactory_ParseOtherLayouts(t *testing.T) {
	small := newTestFactory(t, LayoutSmallest)
	big := newTestFactory(t, LayoutBiggest)

	g := small.New()
	parsed, err := big.Parse(g.String())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Layout() != LayoutSmallest || parsed != g {
		t.Errorf("Parse() = %v with %v", parsed, parsed.Layout())
	}

	fromBytes, err := big.FromBytes(g.Bytes())
	if err != nil || fromBytes != g {
		t.Errorf("FromBytes() = %v, %v", fromBytes, err)
	}
}

func TestParseFactoryGUID_Errors(t *testing.T) {
	g := newTestFactory(t, LayoutDefault).New()
	tinyHeader := LayoutTiny.Header()
	swapped := encode(Base64, tinyHeader[:]) + g.Base32()[header64Len:]

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"short", "Aw1"},
		{"bad header chars", "!!!!" + g.Base32()[header64Len:]},
		{"not version 3", "AQAA" + g.Base32()[header64Len:]},
		{"body for another layout", swapped},
		{"truncated", g.Base32()[:len(g.Base32())-2]},
		{"ark without tenant", "ark:/" + g.Base32()},
		{"ark tenant too wide", "ark:/70000/" + g.Ark()[strings.LastIndexByte(g.Ark(), '/')+1:]},
		{"guid text", guidBase32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFactoryGUID(tt.text); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ParseFactoryGUID(%q) error = %v, want ErrInvalidArgument", tt.text, err)
			}
		})
	}
}

func TestFactoryGUIDFromBytes(t *testing.T) {
	g := newTestFactory(t, LayoutStandard).New()
	raw := g.Bytes()

	long := append(append([]byte{}, raw...), 0xee)
	got, err := FactoryGUIDFromBytes(long)
	if err != nil || got != g {
		t.Errorf("FactoryGUIDFromBytes(trailing) = %v, %v", got, err)
	}

	if _, err := FactoryGUIDFromBytes(raw[:len(raw)-1]); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("FactoryGUIDFromBytes(short) error = %v", err)
	}
	if _, err := FactoryGUIDFromBytes(guidBytes); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("FactoryGUIDFromBytes(GUID bytes) error = %v", err)
	}
}

// ============================================================================
// Value Semantics
// ============================================================================

func TestFactoryGUID_ZeroValue(t *testing.T) {
	var g FactoryGUID

	if !g.IsZero() || g.Version() != 0 || g.KeySize() != 0 {
		t.Error("zero FactoryGUID should be empty")
	}
	if g.TenantID() != -1 || g.PlatformID() != -1 || g.ProcessID() != -1 ||
		g.Timestamp() != -1 || g.Counter() != -1 {
		t.Error("accessors on the zero FactoryGUID should return -1")
	}
	if g.String() != "" || g.Ark() != "" || g.Bytes() != nil {
		t.Error("text forms of the zero FactoryGUID should be empty")
	}

	data, _ := json.Marshal(g)
	if string(data) != "null" {
		t.Errorf("json.Marshal(zero) = %s, want null", data)
	}
	if v, _ := g.Value(); v != nil {
		t.Errorf("Value(zero) = %v, want nil", v)
	}

	minted := NewFactory().New()
	if !g.Before(minted) || minted.Compare(g) != 1 {
		t.Error("the zero FactoryGUID should sort first")
	}
}

func TestFactoryGUID_BytesIsCopy(t *testing.T) {
	g := NewFactory().New()
	b := g.Bytes()
	b[5] ^= 0xff

	if g.Bytes()[5] == b[5] {
		t.Error("mutating Bytes() changed the identifier")
	}
}

func TestFactoryGUID_CompareAcrossLayouts(t *testing.T) {
	useClock(t, 1000)
	a, _ := newTestFactory(t, LayoutSmallest).NewForTenant(1)
	b, _ := newTestFactory(t, LayoutBiggest).NewForTenant(2)

	if !a.Before(b) || !b.After(a) {
		t.Error("tenant order should hold across layouts")
	}
	if a.Compare(b) != -b.Compare(a) {
		t.Error("Compare() should be antisymmetric")
	}
}

func TestFactoryGUID_JSONAndSQL(t *testing.T) {
	g := newTestFactory(t, LayoutDefault).New()

	data, err := json.Marshal(struct {
		ID FactoryGUID `json:"id"`
	}{g})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var back struct {
		ID FactoryGUID `json:"id"`
	}
	if err := json.Unmarshal(data, &back); err != nil || back.ID != g {
		t.Errorf("json.Unmarshal() = %v, %v", back.ID, err)
	}

	v, err := g.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	var fromRaw, fromText FactoryGUID
	if err := fromRaw.Scan(v); err != nil || fromRaw != g {
		t.Errorf("Scan(raw) = %v, %v", fromRaw, err)
	}
	if err := fromText.Scan([]byte(g.Hex())); err != nil || fromText != g {
		t.Errorf("Scan(text) = %v, %v", fromText, err)
	}
	if err := fromText.Scan(3.5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Scan(float) error = %v", err)
	}
}

// ============================================================================
// Concurrency and Capacity
// ============================================================================

// TestFactory_CounterWrapCollides shows that a small counter repeats within
// one millisecond once its range is exhausted.
func TestFactory_CounterWrapCollides(t *testing.T) {
	useClock(t, 42)
	f := newTestFactory(t, LayoutSmallest)

	first := f.New()
	for i := int64(0); i < LayoutSmallest.MaxCounter(); i++ {
		f.New()
	}
	if again := f.New(); again != first {
		t.Errorf("after %d mints New() = %v, want a repeat of %v", LayoutSmallest.MaxCounter()+1, again, first)
	}
}

func TestFactory_ConcurrentMintAndConfigure(t *testing.T) {
	f := newTestFactory(t, LayoutDefault)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				g := f.New()
				if _, err := ParseFactoryGUID(g.String()); err != nil {
					t.Errorf("ParseFactoryGUID() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			_ = f.SetTenantSize(1 + j%8)
			_ = f.SetCounterSize(2 + j%3)
		}
	}()
	wg.Wait()
}

func TestFactory_String(t *testing.T) {
	f := newTestFactory(t, LayoutDefault)
	if s := f.String(); !strings.Contains(s, "tenant=0") || !strings.Contains(s, "23 bytes") {
		t.Errorf("String() = %q", s)
	}
}

func BenchmarkFactory_New(b *testing.B) {
	f := NewFactory()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = f.New()
	}
}
