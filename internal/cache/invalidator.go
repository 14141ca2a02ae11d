// Package cache delivers invalidation signals from the chat console to the
// read-through query cache.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/pkg/log"
	"github.com/weiawesome/marketplace-admin-chat/pkg/pubsub"
)

// Config holds invalidation publisher settings.
type Config struct {
	Redis   pubsub.RedisConfig
	Channel string
	// KeyPrefix is prepended to a cache key to form the Redis key that is
	// deleted. Empty disables deletion and only publishes.
	KeyPrefix string
	Buffer    int
	Timeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Channel == "" {
		c.Channel = pubsub.ChannelCacheInvalidation
	}
	if c.Buffer <= 0 {
		c.Buffer = 256
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	return c
}

// Deleter removes cached entries.
type Deleter interface {
	Delete(ctx context.Context, keys ...string) error
}

// Invalidator publishes stale keys on a Redis channel and deletes the
// cached copies. Invalidate never blocks: keys are queued and a worker
// goroutine drains them.
type Invalidator struct {
	cfg     Config
	pub     pubsub.Publisher
	del     Deleter
	closer  func() error
	queue   chan domain.CacheKey
	now     func() time.Time
	log     zerolog.Logger
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewRedisInvalidator connects to Redis and returns an invalidator backed
// by it. Call Run to start delivery.
func NewRedisInvalidator(cfg Config, logger zerolog.Logger) (*Invalidator, error) {
	pub, err := pubsub.NewRedisPublisher(cfg.Redis)
	if err != nil {
		return nil, err
	}
	inv := newInvalidator(cfg, pub, pub, logger)
	inv.closer = pub.Close
	return inv, nil
}

func newInvalidator(cfg Config, pub pubsub.Publisher, del Deleter, logger zerolog.Logger) *Invalidator {
	cfg = cfg.withDefaults()
	return &Invalidator{
		cfg:   cfg,
		pub:   pub,
		del:   del,
		queue: make(chan domain.CacheKey, cfg.Buffer),
		now:   time.Now,
		log:   logger,
		done:  make(chan struct{}),
	}
}

// Invalidate queues key. When the queue is full the key is dropped and
// counted; the query layer refetches on its own staleness timer anyway.
func (i *Invalidator) Invalidate(key domain.CacheKey) {
	select {
	case <-i.done:
		return
	default:
	}
	select {
	case i.queue <- key:
	default:
		i.dropped.Add(1)
		i.log.Warn().Str(log.FieldCacheKey, key.String()).Msg("invalidation queue full, dropping key")
	}
}

// Dropped returns how many keys were discarded because the queue was full.
func (i *Invalidator) Dropped() uint64 {
	return i.dropped.Load()
}

// Run delivers queued keys until ctx is canceled or Close is called.
func (i *Invalidator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-i.done:
			return nil
		case key := <-i.queue:
			i.deliver(ctx, key)
		}
	}
}

func (i *Invalidator) deliver(ctx context.Context, key domain.CacheKey) {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	name := key.String()
	if i.del != nil && i.cfg.KeyPrefix != "" {
		if err := i.del.Delete(ctx, i.cfg.KeyPrefix+name); err != nil {
			i.log.Warn().Err(err).Str(log.FieldCacheKey, name).Msg("failed to delete cached entry")
		}
	}

	ev, err := pubsub.NewEvent(pubsub.EventInvalidate, pubsub.InvalidatePayload{
		Key:            name,
		Scope:          string(key.Scope),
		ConversationID: key.ConversationID,
	}, i.now())
	if err != nil {
		i.log.Error().Err(err).Str(log.FieldCacheKey, name).Msg("failed to build invalidation event")
		return
	}
	if err := i.pub.Publish(ctx, i.cfg.Channel, ev); err != nil {
		i.log.Warn().Err(err).Str(log.FieldCacheKey, name).Msg("failed to publish invalidation")
		return
	}
	i.log.Debug().Str(log.FieldCacheKey, name).Msg("invalidation published")
}

// Close stops the worker and releases the Redis client.
func (i *Invalidator) Close() error {
	var err error
	i.closeOnce.Do(func() {
		close(i.done)
		if i.closer != nil {
			err = i.closer()
		}
	})
	return err
}
