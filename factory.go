package guid

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// FactoryConfig holds the options for a Factory.
//
// Sensible defaults are provided via DefaultFactoryConfig().
type FactoryConfig struct {
	// Layout sets the field widths. A zero Layout means LayoutDefault.
	Layout Layout

	// TenantID is stamped by New. It must fit Layout.TenantSize.
	TenantID int64

	// PlatformID overrides Identity.PlatformID when set.
	PlatformID *int64

	// ProcessID overrides Identity.ProcessID when set.
	ProcessID *int

	// Identity supplies platform and process values. nil uses the package
	// identity (see SetIdentity) at mint time.
	Identity Identity

	// Logger receives configuration changes. nil disables logging.
	Logger *zap.Logger
}

// DefaultFactoryConfig returns a config using LayoutDefault, tenant 0 and
// the package identity.
func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{Layout: LayoutDefault}
}

// Validate checks the layout and that every override fits its field.
//
// A zero Layout is replaced by LayoutDefault.
func (c *FactoryConfig) Validate() error {
	if c.Layout.IsZero() {
		c.Layout = LayoutDefault
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	s := shapeFor(c.Layout)
	if err := s.checkTenant(c.TenantID); err != nil {
		return err
	}
	if c.PlatformID != nil {
		if err := s.checkPlatform(*c.PlatformID); err != nil {
			return err
		}
	}
	if c.ProcessID != nil {
		if err := checkProcessOverride(*c.ProcessID, c.Layout.PidSize); err != nil {
			return err
		}
	}
	return nil
}

func checkProcessOverride(pid, size int) error {
	if size == 0 {
		return nil
	}
	_, max := fieldRange(size)
	if pid < 0 || int64(pid) > max {
		return newRangeError("ProcessID", int64(pid), 0, max)
	}
	return nil
}

// Factory mints FactoryGUIDs with a configurable Layout.
//
// Each Factory owns its collision counter. Minting is safe for concurrent
// use. Setters are also safe to call concurrently, but identifiers minted
// while a setter runs may use either configuration; configure first, then
// mint.
type Factory struct {
	mu     sync.Mutex
	state  atomic.Pointer[factoryState]
	logger *zap.Logger
}

// factoryState is an immutable configuration snapshot.
type factoryState struct {
	shape    *shape
	counter  *Counter
	tenant   int64
	platform *int64
	pid      *int
	identity Identity
}

// NewFactory returns a Factory using DefaultFactoryConfig.
func NewFactory() *Factory {
	f, err := NewFactoryWithConfig(DefaultFactoryConfig())
	if err != nil {
		// DefaultFactoryConfig is always valid.
		panic(err)
	}
	return f
}

// NewFactoryWithConfig returns a Factory for cfg.
//
// Returns an ArgumentError if cfg does not validate.
func NewFactoryWithConfig(cfg FactoryConfig) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Factory{logger: logger}
	f.state.Store(&factoryState{
		shape:    shapeFor(cfg.Layout),
		counter:  NewCounter(cfg.Layout.CounterSize),
		tenant:   cfg.TenantID,
		platform: cfg.PlatformID,
		pid:      cfg.ProcessID,
		identity: cfg.Identity,
	})
	logger.Debug("guid factory created", zap.Stringer("layout", cfg.Layout))
	return f, nil
}

// ============================================================================
// Configuration
// ============================================================================

// update applies fn to a copy of the current state and publishes it.
func (f *Factory) update(fn func(st *factoryState) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := *f.state.Load()
	if err := fn(&next); err != nil {
		return err
	}
	f.state.Store(&next)
	return nil
}

// UseLayout switches every width at once.
func (f *Factory) UseLayout(l Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return f.update(func(st *factoryState) error {
		f.applyLayout(st, l)
		return nil
	})
}

func (f *Factory) applyLayout(st *factoryState, l Layout) {
	old := st.shape.layout
	st.shape = shapeFor(l)
	if l.CounterSize != old.CounterSize {
		st.counter = NewCounter(l.CounterSize)
	}
	if st.shape.checkTenant(st.tenant) != nil {
		f.logger.Warn("tenant id no longer fits and will be truncated",
			zap.Int64("tenant", st.tenant), zap.Int("tenant_size", l.TenantSize))
	}
	f.logger.Debug("guid factory layout changed",
		zap.Stringer("from", old), zap.Stringer("to", l))
}

func (f *Factory) setSize(apply func(l *Layout, n int), n int) error {
	return f.update(func(st *factoryState) error {
		l := st.shape.layout
		apply(&l, n)
		if err := l.Validate(); err != nil {
			return err
		}
		f.applyLayout(st, l)
		return nil
	})
}

// SetTenantSize sets the tenant width (1-8 bytes).
func (f *Factory) SetTenantSize(n int) error {
	return f.setSize(func(l *Layout, n int) { l.TenantSize = n }, n)
}

// SetPlatformSize sets the platform width (1-8 bytes).
func (f *Factory) SetPlatformSize(n int) error {
	return f.setSize(func(l *Layout, n int) { l.PlatformSize = n }, n)
}

// SetPidSize sets the process width (0-4 bytes).
func (f *Factory) SetPidSize(n int) error {
	return f.setSize(func(l *Layout, n int) { l.PidSize = n }, n)
}

// SetTimeSize sets the timestamp width (4-8 bytes).
func (f *Factory) SetTimeSize(n int) error {
	return f.setSize(func(l *Layout, n int) { l.TimeSize = n }, n)
}

// SetCounterSize sets the counter width (2-4 bytes). Changing it restarts
// the counter.
func (f *Factory) SetCounterSize(n int) error {
	return f.setSize(func(l *Layout, n int) { l.CounterSize = n }, n)
}

// SetTenantID sets the tenant stamped by New.
func (f *Factory) SetTenantID(tenant int64) error {
	return f.update(func(st *factoryState) error {
		if err := st.shape.checkTenant(tenant); err != nil {
			return err
		}
		st.tenant = tenant
		return nil
	})
}

// SetPlatformID overrides the identity's platform id.
func (f *Factory) SetPlatformID(platform int64) error {
	return f.update(func(st *factoryState) error {
		if err := st.shape.checkPlatform(platform); err != nil {
			return err
		}
		st.platform = &platform
		return nil
	})
}

// ResetPlatformID restores the identity's platform id.
func (f *Factory) ResetPlatformID() {
	_ = f.update(func(st *factoryState) error {
		st.platform = nil
		return nil
	})
}

// SetProcessID overrides the identity's process id.
func (f *Factory) SetProcessID(pid int) error {
	return f.update(func(st *factoryState) error {
		if err := checkProcessOverride(pid, st.shape.layout.PidSize); err != nil {
			return err
		}
		st.pid = &pid
		return nil
	})
}

// ResetProcessID restores the identity's process id.
func (f *Factory) ResetProcessID() {
	_ = f.update(func(st *factoryState) error {
		st.pid = nil
		return nil
	})
}

// ============================================================================
// Getters
// ============================================================================

// Layout returns the current widths.
func (f *Factory) Layout() Layout { return f.state.Load().shape.layout }

// KeySize returns the byte length of minted identifiers.
func (f *Factory) KeySize() int { return f.state.Load().shape.keySize }

// Key16Size returns the length of the hex text form.
func (f *Factory) Key16Size() int { return f.state.Load().shape.len16 }

// Key32Size returns the length of the base32 text form.
func (f *Factory) Key32Size() int { return f.state.Load().shape.len32 }

// Key64Size returns the length of the base64 text form.
func (f *Factory) Key64Size() int { return f.state.Load().shape.len64 }

// TenantID returns the tenant stamped by New.
func (f *Factory) TenantID() int64 { return f.state.Load().tenant }

// PlatformID returns the platform stamped by New and NewForTenant.
func (f *Factory) PlatformID() int64 { return f.state.Load().platformID() }

// ProcessID returns the process id stamped into minted identifiers.
func (f *Factory) ProcessID() int { return f.state.Load().processID() }

func (st *factoryState) ident() Identity {
	if st.identity != nil {
		return st.identity
	}
	return identity()
}

func (st *factoryState) platformID() int64 {
	if st.platform != nil {
		return *st.platform
	}
	return st.ident().PlatformID()
}

func (st *factoryState) processID() int {
	if st.pid != nil {
		return *st.pid
	}
	return st.ident().ProcessID()
}

// ============================================================================
// Minting and Parsing
// ============================================================================

// New mints a FactoryGUID with the configured tenant.
//
// Fields are truncated to their widths. With small counters, identifiers
// minted in the same millisecond beyond the counter range collide; that is
// the trade-off of the chosen Layout, not an error.
func (f *Factory) New() FactoryGUID {
	st := f.state.Load()
	return st.mint(st.tenant, st.platformID())
}

// NewForTenant mints a FactoryGUID for tenant, which must fit the tenant width.
func (f *Factory) NewForTenant(tenant int64) (FactoryGUID, error) {
	st := f.state.Load()
	if err := st.shape.checkTenant(tenant); err != nil {
		return FactoryGUID{}, err
	}
	return st.mint(tenant, st.platformID()), nil
}

// NewFor mints a FactoryGUID with an explicit tenant and platform.
func (f *Factory) NewFor(tenant, platform int64) (FactoryGUID, error) {
	st := f.state.Load()
	if err := st.shape.checkTenant(tenant); err != nil {
		return FactoryGUID{}, err
	}
	if err := st.shape.checkPlatform(platform); err != nil {
		return FactoryGUID{}, err
	}
	return st.mint(tenant, platform), nil
}

func (st *factoryState) mint(tenant, platform int64) FactoryGUID {
	raw := make([]byte, st.shape.keySize)
	st.shape.mint(raw, tenant, platform, st.processID(), nowMillis(), st.counter.Next())
	return FactoryGUID{raw: string(raw), layout: st.shape.layout}
}

// Parse decodes any text form. The layout comes from the identifier's own
// header, so identifiers minted with another Layout parse as well.
func (f *Factory) Parse(s string) (FactoryGUID, error) {
	return ParseFactoryGUID(s)
}

// FromBytes decodes raw bytes; see FactoryGUIDFromBytes.
func (f *Factory) FromBytes(b []byte) (FactoryGUID, error) {
	return FactoryGUIDFromBytes(b)
}

// String describes the factory configuration.
func (f *Factory) String() string {
	st := f.state.Load()
	return fmt.Sprintf("Factory(%s, tenant=%d)", st.shape.layout, st.tenant)
}
