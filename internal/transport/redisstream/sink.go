// Package redisstream publishes notifications to a Redis stream with XADD.
package redisstream

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/oshokin/opcua-alarms/internal/codec"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

// Stream entry keys.
const (
	FieldEventID    = "event_id"
	FieldType       = "type"
	FieldSourceName = "source_name"
	FieldSeverity   = "severity"
	FieldData       = "data"
)

// Options configures the sink.
type Options struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen trims the stream approximately, zero keeps everything.
	MaxLen int64
}

// Sink appends every notification to a stream. Entries carry indexable
// header fields plus the protojson document under "data".
type Sink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, opts Options) (*Sink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // Reporting the ping error.

		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}

	return NewWithClient(client, opts.Stream, opts.MaxLen), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, stream string, maxLen int64) *Sink {
	return &Sink{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Name implements dispatch.Sink.
func (s *Sink) Name() string {
	return "redis"
}

// Send implements dispatch.Sink.
func (s *Sink) Send(ctx context.Context, n *event.Notification) error {
	data, err := codec.Marshal(n)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			FieldEventID:    codec.EncodeEventID(n.EventID),
			FieldType:       n.TypeName,
			FieldSourceName: n.SourceName,
			FieldSeverity:   strconv.Itoa(int(n.Severity)),
			FieldData:       string(data),
		},
	}

	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}

	return nil
}

// Close closes the client.
func (s *Sink) Close() error {
	return s.client.Close()
}
