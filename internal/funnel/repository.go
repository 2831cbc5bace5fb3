package funnel

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trinity/internal/shared/kvstore"
)

// ErrNoMetrics is returned when the metrics singleton has never been written.
var ErrNoMetrics = errors.New("funnel metrics not yet persisted")

type Repository interface {
	// Metrics singleton (key-addressed config store)
	GetMetrics() (*Metrics, error)
	PutMetrics(m *Metrics) error

	// Append-only audit log
	AppendEvent(event *Event) error
	CountEventsByKind(since time.Time) (map[EventKind]int64, error)
}

type repository struct {
	db *gorm.DB
	kv kvstore.Store
}

func NewRepository(db *gorm.DB, kv kvstore.Store) Repository {
	return &repository{db: db, kv: kv}
}

func (r *repository) GetMetrics() (*Metrics, error) {
	var m Metrics
	if err := r.kv.Get(MetricsKey, &m); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrNoMetrics
		}
		return nil, fmt.Errorf("failed to load funnel metrics: %w", err)
	}
	return &m, nil
}

// PutMetrics upserts the singleton. Last writer wins: two concurrent
// ingestions can overwrite each other's counter increments.
func (r *repository) PutMetrics(m *Metrics) error {
	if err := r.kv.Put(MetricsKey, m); err != nil {
		return fmt.Errorf("failed to store funnel metrics: %w", err)
	}
	return nil
}

func (r *repository) AppendEvent(event *Event) error {
	return r.db.Create(event).Error
}

func (r *repository) CountEventsByKind(since time.Time) (map[EventKind]int64, error) {
	type kindCount struct {
		Kind  EventKind `json:"kind"`
		Count int64     `json:"count"`
	}

	var rows []kindCount
	err := r.db.Model(&Event{}).
		Select("kind, COUNT(*) as count").
		Where("occurred_at >= ?", since).
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[EventKind]int64, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.Count
	}
	return counts, nil
}
