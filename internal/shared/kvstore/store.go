package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrKeyNotFound is returned when no entry exists for the requested key.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// Entry is a single key-addressed configuration record. Aggregates that are
// logically singletons (the funnel metrics snapshot) live here under a fixed
// key instead of piggybacking on a general-purpose settings table.
type Entry struct {
	Key       string         `json:"key" gorm:"primaryKey;size:120"`
	Value     datatypes.JSON `json:"value" gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM
func (Entry) TableName() string {
	return "app_config"
}

// Store is a key-addressed JSON document store.
type Store interface {
	// Get unmarshals the value stored under key into dest. Returns
	// ErrKeyNotFound when the key has never been written.
	Get(key string, dest interface{}) error
	// Put upserts the value under key. Last writer wins; there is no
	// compare-and-swap, so concurrent writers can overwrite each other.
	Put(key string, value interface{}) error
	// Delete removes the entry for key. Deleting a missing key is a no-op.
	Delete(key string) error
}

type store struct {
	db *gorm.DB
}

// NewStore creates a GORM-backed key/value store.
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Get(key string, dest interface{}) error {
	var entry Entry
	err := s.db.Where("key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("kvstore get %q: %w", key, err)
	}

	if err := json.Unmarshal(entry.Value, dest); err != nil {
		return fmt.Errorf("kvstore unmarshal %q: %w", key, err)
	}
	return nil
}

func (s *store) Put(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore marshal %q: %w", key, err)
	}

	entry := Entry{Key: key, Value: datatypes.JSON(data)}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("kvstore put %q: %w", key, err)
	}
	return nil
}

func (s *store) Delete(key string) error {
	if err := s.db.Where("key = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("kvstore delete %q: %w", key, err)
	}
	return nil
}
