// Package redis provides a keyed document store reader backed by Redis. Each document is a
// JSON object stored under the key "<collection>:<document id>".
//
//go:generate mockgen -source redis.go -destination ../../../internal/mocks/mock_redis.go -package mocks Client
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/docchain/docchain/pkg/logger"
	"github.com/docchain/docchain/pkg/storage"
	"github.com/docchain/docchain/pkg/telemetry"
)

const (
	backendName           = "redis"
	defaultConnectTimeout = 10 * time.Second
)

var tracer = otel.Tracer("docchain/pkg/storage/redis")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "redis."+name)
}

// Client is the subset of [redis.UniversalClient] the reader needs.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// State is the connection lifecycle of a [Reader].
type State int

const (
	Disconnected State = iota
	Connected
)

func (s State) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

type Option func(r *Reader)

// WithAddr sets a comma separated list of host:port addresses.
func WithAddr(addrs string) Option {
	return func(r *Reader) {
		r.addrs = nil
		for _, addr := range strings.Split(addrs, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				r.addrs = append(r.addrs, addr)
			}
		}
	}
}

func WithUserCredential(credential string) Option {
	return func(r *Reader) {
		r.userCredential = credential
	}
}

func WithPassCredential(credential string) Option {
	return func(r *Reader) {
		r.passCredential = credential
	}
}

func WithDatabase(db int) Option {
	return func(r *Reader) {
		r.db = db
	}
}

// WithCollection selects the collection (key prefix) documents are read from.
func WithCollection(name string) Option {
	return func(r *Reader) {
		r.collection = name
	}
}

// WithClient makes Connect use client instead of dialing the configured addresses.
func WithClient(client Client) Option {
	return func(r *Reader) {
		r.injected = client
	}
}

// WithSuccessor sets the reader consulted when a document is missing.
func WithSuccessor(next storage.DocumentReader) Option {
	return func(r *Reader) {
		r.next = next
	}
}

func WithFallbackPolicy(p storage.FallbackPolicy) Option {
	return func(r *Reader) {
		r.policy = p
	}
}

// WithConnectTimeout bounds the time Connect keeps retrying the initial ping.
func WithConnectTimeout(d time.Duration) Option {
	return func(r *Reader) {
		r.connectTimeout = d
	}
}

func WithLogger(l logger.Logger) Option {
	return func(r *Reader) {
		r.logger = l
	}
}

// Reader reads documents from Redis with a single point lookup per Get. It starts
// Disconnected; Connect establishes the client, which is then reused for the reader lifetime.
type Reader struct {
	addrs          []string
	db             int
	userCredential string
	passCredential string
	collection     string
	connectTimeout time.Duration
	logger         logger.Logger

	next      storage.DocumentReader
	policy    storage.FallbackPolicy
	successor storage.Successor

	injected Client
	client   Client
}

var _ storage.DocumentReader = (*Reader)(nil)

// New validates the options and returns a Disconnected [Reader].
func New(opts ...Option) (*Reader, error) {
	r := &Reader{
		connectTimeout: defaultConnectTimeout,
		logger:         logger.NewNoopLogger(),
		policy:         storage.FallbackOnNotFound,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.connectTimeout <= 0 {
		r.connectTimeout = defaultConnectTimeout
	}

	if len(r.addrs) == 0 && r.injected == nil {
		return nil, storage.ConfigurationError("redis reader requires at least one address")
	}

	r.successor = storage.NewSuccessor(r.next, r.policy)

	return r, nil
}

// State returns the current connection state.
func (r *Reader) State() State {
	if r.client == nil {
		return Disconnected
	}
	return Connected
}

// Connect creates the client and waits until the server answers a ping. Calling Connect
// on a Connected reader is a no-op.
func (r *Reader) Connect(ctx context.Context) error {
	ctx, span := startTrace(ctx, "Connect")
	defer span.End()

	if r.client != nil {
		return nil
	}

	client := r.injected
	if client == nil {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    r.addrs,
			DB:       r.db,
			Username: r.userCredential,
			Password: r.passCredential,
		})
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = r.connectTimeout
	attempt := 1
	err := backoff.Retry(func() error {
		err := client.Ping(ctx).Err()
		if err != nil {
			r.logger.InfoWithContext(ctx, "waiting for redis", zap.Int("attempt", attempt), zap.Error(err))
			attempt++
			return err
		}
		return nil
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		if r.injected == nil {
			_ = client.Close()
		}
		return storage.ConnectionFaultError(backendName, fmt.Errorf("cannot connect: %w", err))
	}

	r.client = client
	return nil
}

// SelectCollection changes the collection subsequent Gets read from.
func (r *Reader) SelectCollection(name string) error {
	if name == "" {
		return storage.ConfigurationError("redis collection name must not be empty")
	}
	r.collection = name
	return nil
}

// Collection returns the selected collection.
func (r *Reader) Collection() string {
	return r.collection
}

// Key returns the Redis key holding documentID in the selected collection.
func (r *Reader) Key(documentID string) string {
	return r.collection + ":" + documentID
}

// Get see [storage.DocumentReader].Get.
func (r *Reader) Get(ctx context.Context, documentID string) (storage.LookupResult, error) {
	ctx, span := startTrace(ctx, "Get")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID), attribute.String("collection", r.collection))

	if r.client == nil {
		return storage.NotFound(), storage.ConfigurationError("redis reader is not connected")
	}
	if r.collection == "" {
		return storage.NotFound(), storage.ConfigurationError("redis reader has no collection selected")
	}

	res, err := r.get(ctx, documentID)
	if err != nil {
		telemetry.TraceError(span, err)
	}
	if err != nil && r.successor.ShouldDelegate(res, err) {
		r.logger.WarnWithContext(ctx, "redis lookup failed, falling back to successor",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}

	return r.successor.Resolve(ctx, documentID, res, err)
}

func (r *Reader) get(ctx context.Context, documentID string) (storage.LookupResult, error) {
	val, err := r.client.Get(ctx, r.Key(documentID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return storage.NotFound(), nil
	case err != nil:
		return storage.NotFound(), storage.ConnectionFaultError(backendName, err)
	}

	doc, err := decodeDocument(val)
	if err != nil {
		return storage.NotFound(), storage.ConnectionFaultError(backendName, fmt.Errorf("key %q: %w", r.Key(documentID), err))
	}

	return storage.Found(doc), nil
}

// decodeDocument parses a JSON object keeping the order of its keys.
func decodeDocument(raw string) (*storage.Document, error) {
	if !gjson.Valid(raw) {
		return nil, errors.New("value is not valid json")
	}

	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return nil, errors.New("value is not a json object")
	}

	doc := storage.NewDocument()
	parsed.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Number {
			// float64 would round integers beyond 2^53
			doc.Set(key.String(), json.Number(value.Raw))
			return true
		}
		doc.Set(key.String(), value.Value())
		return true
	})

	return doc, nil
}

// Close closes the client, moving the reader back to Disconnected, and closes the successor.
func (r *Reader) Close() {
	if r.client != nil {
		if err := r.client.Close(); err != nil {
			r.logger.Warn("failed to close redis client", zap.Error(err))
		}
		r.client = nil
	}
	r.successor.Close()
}
