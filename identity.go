// Package guid - identity.go supplies the host and process values stamped into
// minted identifiers.
//
// The core only needs three numbers: a platform id (the generating host), a
// process id, and an instance id combining both. They come from an Identity,
// which can be replaced by a leased or configured one (see the redislease
// package) or by a deterministic test double.

package guid

import (
	"encoding/hex"
	"math"
	"math/rand/v2"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MachineIDEnv names the environment variable that overrides the discovered
// machine id. Its value is 6 to 8 hex byte pairs, optionally separated by ':'
// or '-', e.g. "02:42:ac:11:00:02".
const MachineIDEnv = "GUID_MACHINE_ID"

const (
	minMachineIDLen = 6
	maxMachineIDLen = 8
	maxProcessID    = math.MaxInt32
)

var machineIDPattern = regexp.MustCompile(`^(?:[0-9a-fA-F]{2}[:-]?){6,8}$`)

// Identity supplies the platform, process and instance values used at mint time.
//
// Implementations must be safe for concurrent use.
type Identity interface {
	// PlatformID identifies the generating host. Shapes keep as many low-order
	// bytes as their platform field holds.
	PlatformID() int64

	// ProcessID identifies the generating process.
	ProcessID() int

	// InstanceID combines platform and process into one value.
	InstanceID() int64
}

// HostIdentity derives identity values from the machine address and the OS
// process id.
//
// The machine id is chosen in this order: WithMachineID, the GUID_MACHINE_ID
// environment variable, the hardware address reported by uuid.NodeID, and
// finally random bytes.
type HostIdentity struct {
	mu       sync.RWMutex
	machine  []byte
	pid      int
	platform int64
	instance int64
	instInt  int32
	logger   *zap.Logger
}

// HostOption configures a HostIdentity.
type HostOption func(*HostIdentity)

// WithMachineID fixes the machine id instead of discovering it.
func WithMachineID(mac []byte) HostOption {
	return func(h *HostIdentity) {
		h.machine = normalizeMachineID(mac)
	}
}

// WithProcessID fixes the process id instead of reading os.Getpid.
func WithProcessID(pid int) HostOption {
	return func(h *HostIdentity) {
		h.pid = pid
	}
}

// WithLogger sets the logger used to report derivation and fallbacks.
func WithLogger(logger *zap.Logger) HostOption {
	return func(h *HostIdentity) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHostIdentity discovers the host identity, applying opts first.
func NewHostIdentity(opts ...HostOption) *HostIdentity {
	h := &HostIdentity{
		pid:    -1,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.machine == nil {
		h.machine = discoverMachineID(h.logger)
	}
	h.pid = checkProcessID(h.pid, h.logger)
	h.recompute()
	return h
}

// SetMachineID replaces the machine id and recomputes every derived value.
//
// A nil id is replaced by 8 random bytes; ids shorter than 6 bytes are padded
// with random bytes up to 6; only the first 8 bytes of longer ids are kept.
func (h *HostIdentity) SetMachineID(mac []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.machine = normalizeMachineID(mac)
	h.recompute()
}

// SetProcessID overrides the process id. Values outside [0, MaxInt32] are
// replaced by a random one.
func (h *HostIdentity) SetProcessID(pid int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pid = checkProcessID(pid, h.logger)
	h.recompute()
}

// ResetProcessID restores the OS process id.
func (h *HostIdentity) ResetProcessID() {
	h.SetProcessID(-1)
}

// MachineID returns a copy of the machine id in use.
func (h *HostIdentity) MachineID() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]byte, len(h.machine))
	copy(out, h.machine)
	return out
}

// PlatformID returns the machine id assembled little-endian into an int64.
func (h *HostIdentity) PlatformID() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.platform
}

// ProcessID returns the process id.
func (h *HostIdentity) ProcessID() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pid
}

// InstanceID returns the low 48 platform bits with the low 16 process id bits
// placed above them.
func (h *HostIdentity) InstanceID() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.instance
}

// InstanceInt returns a 32-bit hash of the process id and platform.
func (h *HostIdentity) InstanceInt() int32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.instInt
}

// InstanceByte returns the low byte of InstanceInt.
func (h *HostIdentity) InstanceByte() byte {
	return byte(h.InstanceInt())
}

// recompute refreshes the derived values. Callers hold h.mu or own h exclusively.
func (h *HostIdentity) recompute() {
	m := h.machine
	var platform uint64
	for i := len(m) - 1; i >= 0; i-- {
		platform = platform<<8 | uint64(m[i])
	}
	h.platform = int64(platform)

	platformInt := int64(int32(uint32(platform)))
	mixed := 31*int64(h.pid) + platformInt
	h.instInt = int32(mixed ^ int64(uint64(mixed)>>32))

	h.instance = int64(platform&0xFFFFFFFFFFFF | uint64(h.pid&0xFFFF)<<48)

	h.logger.Debug("host identity derived",
		zap.String("machine_id", hex.EncodeToString(m)),
		zap.Int("pid", h.pid),
		zap.Int64("platform_id", h.platform),
		zap.Int64("instance_id", h.instance))
}

// ParseMachineID parses 6 to 8 hex byte pairs, optionally separated by ':' or '-'.
func ParseMachineID(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !machineIDPattern.MatchString(s) {
		return nil, &ArgumentError{
			Field:      "machine id",
			Value:      s,
			Reason:     "malformed",
			Constraint: "must be 6 to 8 hex byte pairs, optionally separated by ':' or '-'",
		}
	}
	clean := strings.NewReplacer(":", "", "-", "").Replace(s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, newArgumentError("machine id", s, "malformed", err)
	}
	return b, nil
}

func discoverMachineID(logger *zap.Logger) []byte {
	if v, ok := os.LookupEnv(MachineIDEnv); ok && strings.TrimSpace(v) != "" {
		mac, err := ParseMachineID(v)
		if err == nil {
			return mac
		}
		logger.Warn("ignoring malformed machine id override",
			zap.String("env", MachineIDEnv), zap.Error(err))
	}
	node := uuid.NodeID()
	if len(node) >= minMachineIDLen && !allZero(node) {
		return normalizeMachineID(node)
	}
	logger.Warn("no hardware address available, using a random machine id")
	return randomBytes(maxMachineIDLen)
}

func normalizeMachineID(mac []byte) []byte {
	switch {
	case mac == nil:
		return randomBytes(maxMachineIDLen)
	case len(mac) < minMachineIDLen:
		out := randomBytes(minMachineIDLen)
		copy(out, mac)
		return out
	case len(mac) > maxMachineIDLen:
		mac = mac[:maxMachineIDLen]
	}
	out := make([]byte, len(mac))
	copy(out, mac)
	return out
}

func checkProcessID(pid int, logger *zap.Logger) int {
	if pid < 0 {
		pid = os.Getpid()
	}
	if pid < 0 || pid > maxProcessID {
		logger.Warn("process id out of range, using a random one", zap.Int("pid", pid))
		pid = rand.IntN(maxProcessID)
	}
	return pid
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rand.UintN(256))
	}
	return b
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// ============================================================================
// Default Identity
// ============================================================================

var (
	defaultIdentity     *HostIdentity
	defaultIdentityOnce sync.Once
	currentIdentity     atomic.Pointer[identityBox]
)

type identityBox struct {
	Identity
}

// DefaultIdentity returns the lazily discovered host identity.
func DefaultIdentity() *HostIdentity {
	defaultIdentityOnce.Do(func() {
		defaultIdentity = NewHostIdentity()
	})
	return defaultIdentity
}

// SetIdentity replaces the identity used by package-level minting functions
// and by factories created without one. A nil id restores DefaultIdentity.
func SetIdentity(id Identity) {
	if id == nil {
		currentIdentity.Store(nil)
		return
	}
	currentIdentity.Store(&identityBox{id})
}

// identity returns the identity currently used for package-level minting.
func identity() Identity {
	if box := currentIdentity.Load(); box != nil {
		return box.Identity
	}
	return DefaultIdentity()
}
