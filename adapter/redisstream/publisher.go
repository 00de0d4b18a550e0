package redisstream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xcqrs"
)

// Field constants (avoid typos/allocs)
const (
	fieldID       = "id"
	fieldName     = "name"
	fieldRaisedOn = "raisedon" // int64 unix micro
	fieldPayload  = "payload"  // JSON field table
)

// Publisher writes domain events to a Redis Stream via XADD.
type Publisher struct {
	cfg    Config
	client *redis.Client
}

var _ xcqrs.EventPublisher = (*Publisher)(nil)

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(cfg Config) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redisstream: %w", err)
	}

	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstream: ping %s: %w", cfg.Addr, err)
	}

	return &Publisher{cfg: cfg, client: client}, nil
}

// Publish appends the event to the configured stream. External consumers
// cannot raise events back into the dispatching process, so the returned
// slice is always nil.
func (p *Publisher) Publish(ctx context.Context, e *xcqrs.DomainEvent) ([]*xcqrs.DomainEvent, error) {
	if e == nil {
		return nil, xcqrs.ErrNilMessage
	}

	payload, err := json.Marshal(e.Fields())
	if err != nil {
		return nil, fmt.Errorf("redisstream: encode %q: %w", e.Name(), err)
	}

	args := &redis.XAddArgs{
		Stream: p.cfg.Stream,
		ID:     "*",
		Values: map[string]any{
			fieldID:       e.ID(),
			fieldName:     e.Name(),
			fieldRaisedOn: e.RaisedAt().UnixMicro(),
			fieldPayload:  payload,
		},
	}
	if p.cfg.MaxLenApprox > 0 {
		args.MaxLen = p.cfg.MaxLenApprox
		args.Approx = true
	}

	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return nil, fmt.Errorf("redisstream: xadd %q: %w", e.Name(), err)
	}
	return nil, nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
