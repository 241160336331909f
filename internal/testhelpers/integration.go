//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/weather-record-service/internal/store"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	MongoURI string
	Database string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if TEST_MONGODB_URI is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI not set, skipping integration test")
	}
	db := os.Getenv("TEST_MONGODB_DATABASE")
	if db == "" {
		db = "weather_record_service_test"
	}
	return IntegrationTestConfig{MongoURI: uri, Database: db}
}

// SetupIntegrationStore returns an instrumented MongoDB store over a collection unique
// to this test. The collection is dropped and the client disconnected on cleanup.
func SetupIntegrationStore(t *testing.T, cfg IntegrationTestConfig) store.Store {
	t.Helper()
	conn := store.NewMongoConnector(store.MongoConfig{
		URI:            cfg.MongoURI,
		Database:       cfg.Database,
		Collection:     fmt.Sprintf("weathers_%d", time.Now().UnixNano()),
		ConnectTimeout: 5 * time.Second,
	}, zaptest.NewLogger(t))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if coll, err := conn.EnsureConnected(ctx); err == nil {
			_ = coll.Drop(ctx)
		}
		_ = conn.Close(ctx)
	})
	return store.Instrument(store.NewMongoStore(conn))
}
