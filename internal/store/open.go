package store

import (
	"fmt"

	"go.uber.org/zap"
)

// Backend names accepted by Open.
const (
	BackendMongoDB  = "mongodb"
	BackendInMemory = "in_memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Mongo   MongoConfig
}

// Open returns the instrumented store for opts.Backend. The MongoDB backend does not
// connect here; the first operation does.
func Open(opts Options, logger *zap.Logger) (Store, error) {
	switch opts.Backend {
	case BackendMongoDB:
		return Instrument(NewMongoStore(NewMongoConnector(opts.Mongo, logger))), nil
	case BackendInMemory:
		return Instrument(NewInMemoryStore()), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
