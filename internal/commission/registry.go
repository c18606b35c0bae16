package commission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/danielvasquez-dev/marketplace-billing/pkg/errors"
)

const defaultProcessTTL = 24 * time.Hour

// Registry tracks dispatched charges by process token. A token completes at
// most once: the first Complete wins and later calls are no-ops.
type Registry interface {
	Create(ctx context.Context) (ProcessStatus, error)
	// Complete records the terminal result. It returns true when this call
	// recorded the result, false when the token was already completed.
	Complete(ctx context.Context, token string, result Outcome) (bool, error)
	Get(ctx context.Context, token string) (ProcessStatus, error)
}

type processRecord struct {
	Completed bool     `json:"completed"`
	Result    *Outcome `json:"result,omitempty"`
}

// processStore defines the Redis operations used by RedisRegistry.
type processStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	ProcessKey(token string) string
}

// RedisRegistry persists process tokens in Redis with a TTL, so results stay
// pollable across service instances and restarts.
type RedisRegistry struct {
	client processStore
	ttl    time.Duration
}

// NewRedisRegistry constructs a Redis-backed process registry.
func NewRedisRegistry(client processStore, ttl time.Duration) (*RedisRegistry, error) {
	if client == nil {
		return nil, errors.New("redis client required for process registry")
	}
	if ttl <= 0 {
		ttl = defaultProcessTTL
	}
	return &RedisRegistry{client: client, ttl: ttl}, nil
}

// Create mints a fresh token in the pending state.
func (r *RedisRegistry) Create(ctx context.Context) (ProcessStatus, error) {
	token := uuid.NewString()
	payload, err := json.Marshal(processRecord{})
	if err != nil {
		return ProcessStatus{}, fmt.Errorf("encoding process record: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.client.ProcessKey(token), payload, r.ttl)
	if err != nil {
		return ProcessStatus{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating process token")
	}
	if !ok {
		return ProcessStatus{}, pkgerrors.New(pkgerrors.CodeInternal, "process token collision")
	}
	return ProcessStatus{ProcessToken: token}, nil
}

// Complete records the terminal result exactly once. The completed record is
// written with a single SETNX on the result key, so a failed write consumes
// nothing and a redelivered job can still win.
func (r *RedisRegistry) Complete(ctx context.Context, token string, result Outcome) (bool, error) {
	payload, err := json.Marshal(processRecord{Completed: true, Result: &result})
	if err != nil {
		return false, fmt.Errorf("encoding process record: %w", err)
	}

	won, err := r.client.SetNX(ctx, r.resultKey(token), payload, r.ttl)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing process result")
	}
	return won, nil
}

// Get returns the current state of a token, NOT_FOUND for unknown or expired tokens.
func (r *RedisRegistry) Get(ctx context.Context, token string) (ProcessStatus, error) {
	raw, err := r.client.Get(ctx, r.resultKey(token))
	if err == nil {
		var record processRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return ProcessStatus{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding process record")
		}
		return ProcessStatus{ProcessToken: token, Completed: record.Completed, Result: record.Result}, nil
	}
	if !errors.Is(err, goredis.Nil) {
		return ProcessStatus{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading process token")
	}

	if _, err := r.client.Get(ctx, r.client.ProcessKey(token)); err != nil {
		if errors.Is(err, goredis.Nil) {
			return ProcessStatus{}, pkgerrors.New(pkgerrors.CodeNotFound, "process token not found")
		}
		return ProcessStatus{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading process token")
	}
	return ProcessStatus{ProcessToken: token}, nil
}

func (r *RedisRegistry) resultKey(token string) string {
	return r.client.ProcessKey(token) + ":result"
}

// MemoryRegistry is an in-process Registry for tests and single-node setups
// without Redis.
type MemoryRegistry struct {
	mu      sync.Mutex
	records map[string]processRecord
}

// NewMemoryRegistry constructs an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{records: map[string]processRecord{}}
}

// Create mints a fresh token in the pending state.
func (r *MemoryRegistry) Create(ctx context.Context) (ProcessStatus, error) {
	token := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[token] = processRecord{}
	return ProcessStatus{ProcessToken: token}, nil
}

// Complete records the terminal result exactly once.
func (r *MemoryRegistry) Complete(ctx context.Context, token string, result Outcome) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[token]
	if !ok {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "process token not found")
	}
	if record.Completed {
		return false, nil
	}
	r.records[token] = processRecord{Completed: true, Result: &result}
	return true, nil
}

// Get returns the current state of a token.
func (r *MemoryRegistry) Get(ctx context.Context, token string) (ProcessStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[token]
	if !ok {
		return ProcessStatus{}, pkgerrors.New(pkgerrors.CodeNotFound, "process token not found")
	}
	return ProcessStatus{ProcessToken: token, Completed: record.Completed, Result: record.Result}, nil
}

var _ Registry = (*RedisRegistry)(nil)
var _ Registry = (*MemoryRegistry)(nil)
