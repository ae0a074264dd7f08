package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Vodeneev/openingline/internal/pkg/models"
)

// HistoryStore is the all-time opening line table plus the per-day snapshots.
//
// Append is read-modify-write. The new content is written to a temporary key and
// renamed over the table, so an interrupted merge leaves the previous table intact.
// Two concurrent writers still lose updates; callers must hold the history lease.
// Rows have no dedup key: merging the same date twice stores its lines twice.
type HistoryStore struct {
	store BlobStore
	keys  Keys
}

func NewHistoryStore(store BlobStore, keys Keys) *HistoryStore {
	return &HistoryStore{store: store, keys: keys}
}

// Load returns every history row; a table that was never written is empty.
func (h *HistoryStore) Load(ctx context.Context) ([]models.HistoryRow, error) {
	data, err := h.store.Get(ctx, h.keys.History())
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	rows, err := DecodeRecords[models.HistoryRow](data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return rows, nil
}

// Append concatenates the day's lines onto the table and returns the new row count.
func (h *HistoryStore) Append(ctx context.Context, date string, lines []models.OpeningLine) (int, error) {
	existing, err := h.Load(ctx)
	if err != nil {
		return 0, err
	}

	for _, row := range existing {
		if row.Date == date {
			slog.Warn("History already contains this date, rows will be duplicated", "date", date, "new_rows", len(lines))
			break
		}
	}

	combined := make([]models.HistoryRow, 0, len(existing)+len(lines))
	combined = append(combined, existing...)
	for _, l := range lines {
		combined = append(combined, models.HistoryRow{OpeningLine: l, Date: date})
	}

	data, err := EncodeRecords(combined)
	if err != nil {
		return 0, fmt.Errorf("failed to encode history: %w", err)
	}

	key := h.keys.History()
	tmp := tempKey(key, uuid.NewString())
	if err := h.store.Put(ctx, tmp, data); err != nil {
		return 0, fmt.Errorf("failed to stage history: %w", err)
	}
	if err := h.store.Rename(ctx, tmp, key); err != nil {
		return 0, fmt.Errorf("failed to swap history: %w", err)
	}
	return len(combined), nil
}

// WriteDay stores the day's opening lines on their own.
func (h *HistoryStore) WriteDay(ctx context.Context, date string, lines []models.OpeningLine) error {
	data, err := EncodeRecords(lines)
	if err != nil {
		return fmt.Errorf("failed to encode opening lines: %w", err)
	}
	return h.store.Put(ctx, h.keys.DailyOpeningLines(date), data)
}

// ReadDay loads a day's opening lines written by WriteDay.
func (h *HistoryStore) ReadDay(ctx context.Context, date string) ([]models.OpeningLine, error) {
	data, err := h.store.Get(ctx, h.keys.DailyOpeningLines(date))
	if err != nil {
		return nil, err
	}
	return DecodeRecords[models.OpeningLine](data)
}
