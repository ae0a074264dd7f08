package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Vodeneev/openingline/internal/pkg/config"
	"github.com/Vodeneev/openingline/internal/pkg/metrics"
)

var _ BlobStore = (*RetryingBlobStore)(nil)

// RetryPolicy retries with exponential backoff (doubling, capped).
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetryPolicy(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialDelay,
		MaxDelay:     cfg.MaxDelay,
	}
}

// Execute runs fn until it succeeds, returns ErrNotFound, or attempts run out.
func (r RetryPolicy) Execute(ctx context.Context, op string, fn func() error) error {
	attempts := max(r.MaxAttempts, 1)
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	delay := r.InitialDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
			return err
		}
		lastErr = err

		// Don't sleep after last attempt
		if attempt < attempts {
			slog.Warn("Blob store operation failed, retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)
			kind, _, _ := strings.Cut(op, " ")
			metrics.StoreRetries.WithLabelValues(kind).Inc()
			if err := sleep(ctx, delay); err != nil {
				return fmt.Errorf("%s interrupted after %d attempts: %w", op, attempt, lastErr)
			}
			delay *= 2
			if r.MaxDelay > 0 && delay > r.MaxDelay {
				delay = r.MaxDelay
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryingBlobStore wraps a store so every operation is retried with backoff.
type RetryingBlobStore struct {
	inner  BlobStore
	policy RetryPolicy
}

func NewRetryingBlobStore(inner BlobStore, policy RetryPolicy) *RetryingBlobStore {
	return &RetryingBlobStore{inner: inner, policy: policy}
}

func (s *RetryingBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.policy.Execute(ctx, "get "+key, func() error {
		var err error
		data, err = s.inner.Get(ctx, key)
		return err
	})
	return data, err
}

func (s *RetryingBlobStore) Put(ctx context.Context, key string, data []byte) error {
	return s.policy.Execute(ctx, "put "+key, func() error {
		return s.inner.Put(ctx, key, data)
	})
}

func (s *RetryingBlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.policy.Execute(ctx, "list "+prefix, func() error {
		var err error
		keys, err = s.inner.List(ctx, prefix)
		return err
	})
	return keys, err
}

func (s *RetryingBlobStore) Rename(ctx context.Context, from, to string) error {
	return s.policy.Execute(ctx, "rename "+from, func() error {
		return s.inner.Rename(ctx, from, to)
	})
}

func (s *RetryingBlobStore) Close() error {
	return s.inner.Close()
}

// Open builds the configured backend wrapped in the retry policy.
func Open(cfg config.StorageConfig) (BlobStore, error) {
	var inner BlobStore
	var err error
	switch cfg.Backend {
	case "postgres":
		inner, err = NewPostgresBlobStore(&cfg.Postgres)
	case "filesystem":
		inner, err = NewFileBlobStore(cfg.Root)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewRetryingBlobStore(inner, NewRetryPolicy(cfg.Retry)), nil
}
