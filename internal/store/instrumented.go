package store

import (
	"context"
	"errors"
	"time"

	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/observability"
)

// Instrument wraps s so every call is recorded in storeOperationDurationSeconds.
func Instrument(s Store) Store {
	return &instrumentedStore{next: s}
}

type instrumentedStore struct {
	next Store
}

func (s *instrumentedStore) MaxID(ctx context.Context) (int64, error) {
	start := time.Now()
	id, err := s.next.MaxID(ctx)
	observability.ObserveStoreOperation("max_id", start, err)
	return id, err
}

func (s *instrumentedStore) Insert(ctx context.Context, r models.WeatherRecord) error {
	start := time.Now()
	err := s.next.Insert(ctx, r)
	observability.ObserveStoreOperation("insert", start, err)
	return err
}

func (s *instrumentedStore) List(ctx context.Context, f Filter) ([]models.WeatherRecord, error) {
	start := time.Now()
	records, err := s.next.List(ctx, f)
	observability.ObserveStoreOperation("list", start, err)
	return records, err
}

func (s *instrumentedStore) DeleteByID(ctx context.Context, id int64) error {
	start := time.Now()
	err := s.next.DeleteByID(ctx, id)
	observability.ObserveStoreOperation("delete", start, err)
	return err
}

func (s *instrumentedStore) Update(ctx context.Context, id int64, patch models.RecordPatch) (models.WeatherRecord, error) {
	start := time.Now()
	r, err := s.next.Update(ctx, id, patch)
	if errors.Is(err, ErrNotFound) {
		observability.ObserveStoreOperation("update", start, nil)
		return r, err
	}
	observability.ObserveStoreOperation("update", start, err)
	return r, err
}

func (s *instrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *instrumentedStore) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}
