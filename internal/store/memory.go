package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/validation"
)

// InMemoryStore is a concurrency-safe Store backed by a slice. It mirrors the
// semantics of MongoStore and backs the in_memory backend and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []models.WeatherRecord
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) MaxID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	for _, r := range s.records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max, nil
}

// Insert appends r. Like the document store, it does not enforce id uniqueness.
func (s *InMemoryStore) Insert(ctx context.Context, r models.WeatherRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validation.ValidateRecord(r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *InMemoryStore) List(ctx context.Context, f Filter) ([]models.WeatherRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]models.WeatherRecord, 0, len(s.records))
	for _, r := range s.records {
		if containsFold(r.Region, f.Region) && containsFold(r.WeatherCondition, f.WeatherCondition) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *InMemoryStore) DeleteByID(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		s.records = append(s.records[:i], s.records[i+1:]...)
	}
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, id int64, patch models.RecordPatch) (models.WeatherRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherRecord{}, err
	}
	if err := validation.ValidatePatch(patch); err != nil {
		return models.WeatherRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return models.WeatherRecord{}, ErrNotFound
	}
	patch.Apply(&s.records[i])
	return s.records[i], nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *InMemoryStore) Close(ctx context.Context) error {
	return nil
}

// indexLocked returns the position of the first record with id, or -1.
func (s *InMemoryStore) indexLocked(id int64) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func containsFold(value, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(sub))
}
