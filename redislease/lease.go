// Package redislease hands out distinct platform ids to a fleet through Redis.
//
// Each process claims the first free id in [0, PoolSize) with SET NX PX and
// keeps it alive with a background heartbeat. A lease that is not renewed
// expires after TTL, so the id of a crashed process is reclaimed
// automatically. Renewal and release only touch the key while it still holds
// this lease's owner token.
//
// Example:
//
//	lease, err := redislease.Acquire(ctx, redislease.Config{Client: rdb})
//	if err != nil {
//	    return err
//	}
//	defer lease.Release(context.Background())
//
//	guid.SetIdentity(lease.Identity(guid.DefaultIdentity()))
package redislease

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sxyafiq/guid"
)

// Defaults applied by Config.Validate.
const (
	DefaultKeyPrefix = "guid:platform:"
	DefaultPoolSize  = 1024
	DefaultTTL       = 30 * time.Second
)

var (
	// ErrPoolExhausted is returned when every id in the pool is leased.
	ErrPoolExhausted = errors.New("redislease: no free platform id in pool")

	// ErrNotOwner is returned when the key no longer holds this lease's token.
	ErrNotOwner = errors.New("redislease: lease no longer owned")
)

// renewScript extends the key only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config configures Acquire.
type Config struct {
	// Client is required.
	Client redis.UniversalClient

	// KeyPrefix namespaces the lease keys. Default: DefaultKeyPrefix.
	KeyPrefix string

	// PoolSize is the number of platform ids to choose from. Default: 1024.
	PoolSize int64

	// TTL is how long a lease survives without renewal. Default: 30s.
	TTL time.Duration

	// RenewInterval is the heartbeat period. Default: TTL/3.
	RenewInterval time.Duration

	// Owner is stored as the key value. Default: a random UUID.
	Owner string

	// Logger receives lease events. nil disables logging.
	Logger *zap.Logger
}

// Validate fills defaults and checks the config.
func (c *Config) Validate() error {
	if c.Client == nil {
		return errors.New("redislease: redis client is required")
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("redislease: pool size %d must be positive", c.PoolSize)
	}
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.TTL < time.Millisecond {
		return fmt.Errorf("redislease: ttl %v must be at least 1ms", c.TTL)
	}
	if c.RenewInterval == 0 {
		c.RenewInterval = c.TTL / 3
	}
	if c.RenewInterval <= 0 || c.RenewInterval >= c.TTL {
		return fmt.Errorf("redislease: renew interval %v must be positive and below ttl %v", c.RenewInterval, c.TTL)
	}
	if c.Owner == "" {
		c.Owner = uuid.NewString()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

// Lease is a claimed platform id.
type Lease struct {
	id     int64
	key    string
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}
	lost   chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

// Acquire claims the first free platform id and starts renewing it.
func Acquire(ctx context.Context, cfg Config) (*Lease, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for id := int64(0); id < cfg.PoolSize; id++ {
		key := cfg.KeyPrefix + strconv.FormatInt(id, 10)
		ok, err := cfg.Client.SetNX(ctx, key, cfg.Owner, cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redislease: claim %s: %w", key, err)
		}
		if !ok {
			continue
		}

		renewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		l := &Lease{
			id:     id,
			key:    key,
			cfg:    cfg,
			cancel: cancel,
			done:   make(chan struct{}),
			lost:   make(chan struct{}),
		}
		go l.renewLoop(renewCtx)

		cfg.Logger.Info("platform id leased",
			zap.Int64("platform_id", id),
			zap.String("owner", cfg.Owner),
			zap.Duration("ttl", cfg.TTL))
		return l, nil
	}
	return nil, fmt.Errorf("%w (size %d, prefix %q)", ErrPoolExhausted, cfg.PoolSize, cfg.KeyPrefix)
}

// ID returns the leased platform id.
func (l *Lease) ID() int64 { return l.id }

// Key returns the Redis key holding the lease.
func (l *Lease) Key() string { return l.key }

// Owner returns the token stored in the key.
func (l *Lease) Owner() string { return l.cfg.Owner }

// Lost is closed when a renewal finds the key owned by someone else or gone.
// Identifiers minted after that may collide with the new owner's.
func (l *Lease) Lost() <-chan struct{} { return l.lost }

func (l *Lease) renewLoop(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Renew(ctx); err != nil {
				if errors.Is(err, ErrNotOwner) {
					l.cfg.Logger.Error("platform id lease lost",
						zap.Int64("platform_id", l.id), zap.String("key", l.key))
					close(l.lost)
					return
				}
				l.cfg.Logger.Warn("platform id lease renewal failed",
					zap.Int64("platform_id", l.id), zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Renew extends the lease by TTL. It returns ErrNotOwner if the key expired
// or was claimed by another owner.
func (l *Lease) Renew(ctx context.Context) error {
	n, err := renewScript.Run(ctx, l.cfg.Client, []string{l.key}, l.cfg.Owner, l.cfg.TTL.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redislease: renew %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotOwner, l.key)
	}
	l.cfg.Logger.Debug("platform id lease renewed", zap.Int64("platform_id", l.id))
	return nil
}

// Release stops renewal and deletes the key if this lease still owns it.
// It is safe to call more than once.
func (l *Lease) Release(ctx context.Context) error {
	l.releaseOnce.Do(func() {
		l.cancel()
		<-l.done

		n, err := releaseScript.Run(ctx, l.cfg.Client, []string{l.key}, l.cfg.Owner).Int64()
		switch {
		case err != nil:
			l.releaseErr = fmt.Errorf("redislease: release %s: %w", l.key, err)
		case n == 0:
			l.releaseErr = fmt.Errorf("%w: %s", ErrNotOwner, l.key)
		default:
			l.cfg.Logger.Info("platform id released", zap.Int64("platform_id", l.id))
		}
	})
	return l.releaseErr
}

// Identity returns base with its platform id replaced by the leased id.
func (l *Lease) Identity(base guid.Identity) guid.Identity {
	return leasedIdentity{base: base, platform: l.id}
}

type leasedIdentity struct {
	base     guid.Identity
	platform int64
}

func (li leasedIdentity) PlatformID() int64 { return li.platform }

func (li leasedIdentity) ProcessID() int { return li.base.ProcessID() }

// InstanceID mixes the leased platform with the process id the same way
// HostIdentity does.
func (li leasedIdentity) InstanceID() int64 {
	return li.platform&0xFFFFFFFFFFFF | int64(li.base.ProcessID()&0xFFFF)<<48
}

// ActivePlatforms lists the platform ids currently leased under prefix.
func ActivePlatforms(ctx context.Context, client redis.UniversalClient, prefix string) ([]int64, error) {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	var ids []int64
	iter := client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		id, err := strconv.ParseInt(strings.TrimPrefix(iter.Val(), prefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redislease: scan %q: %w", prefix, err)
	}
	return ids, nil
}
