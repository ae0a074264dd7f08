package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vodeneev/openingline/internal/pkg/models"
)

// QuoteLog is the append-only per-day raw quote log: one object per poll tick.
type QuoteLog struct {
	store BlobStore
	keys  Keys
	loc   *time.Location
}

func NewQuoteLog(store BlobStore, keys Keys, loc *time.Location) *QuoteLog {
	return &QuoteLog{store: store, keys: keys, loc: loc}
}

// WriteTick persists one tick's quotes under the tick's local date and time.
func (l *QuoteLog) WriteTick(ctx context.Context, at time.Time, quotes []models.Quote) (string, error) {
	local := at.In(l.loc)
	key := l.keys.LiveOdds(local.Format(models.DateLayout), local)

	data, err := EncodeRecords(quotes)
	if err != nil {
		return "", fmt.Errorf("failed to encode tick: %w", err)
	}
	if err := l.store.Put(ctx, key, data); err != nil {
		return "", err
	}
	return key, nil
}

// ReadDay returns every quote logged for date, in tick order. Objects that cannot
// be decoded are logged and skipped.
func (l *QuoteLog) ReadDay(ctx context.Context, date string) ([]models.Quote, error) {
	keys, err := l.store.List(ctx, l.keys.LiveOddsPrefix(date))
	if err != nil {
		return nil, fmt.Errorf("failed to list quote log for %s: %w", date, err)
	}

	var out []models.Quote
	for _, key := range keys {
		data, err := l.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		quotes, err := DecodeRecords[models.Quote](data)
		if err != nil {
			slog.Warn("Skipping unreadable tick", "key", key, "error", err)
			continue
		}
		out = append(out, quotes...)
	}
	return out, nil
}
