package store

import (
	"context"
	"errors"

	"github.com/kjstillabower/weather-record-service/internal/models"
)

var (
	// ErrNotFound is returned by Update when no record has the requested id.
	ErrNotFound = errors.New("weather record not found")

	// ErrConnection is returned when the document store is unreachable or rejects the credentials.
	ErrConnection = errors.New("store connection failed")
)

// Filter narrows List results. Empty fields impose no constraint; set fields match
// as case-insensitive substrings.
type Filter struct {
	Region           string
	WeatherCondition string
}

// Store persists weather records. Implementations validate every record or patch
// before writing it.
type Store interface {
	// MaxID returns the highest id in the collection, or 0 when it is empty.
	MaxID(ctx context.Context) (int64, error)
	Insert(ctx context.Context, r models.WeatherRecord) error
	// List returns matching records ordered by id descending.
	List(ctx context.Context, f Filter) ([]models.WeatherRecord, error)
	// DeleteByID removes at most one record. Deleting a missing id is not an error.
	DeleteByID(ctx context.Context, id int64) error
	// Update writes the patch's fields into the record and returns the result,
	// or ErrNotFound.
	Update(ctx context.Context, id int64, patch models.RecordPatch) (models.WeatherRecord, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
