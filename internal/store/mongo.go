package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-record-service/internal/models"
	"github.com/kjstillabower/weather-record-service/internal/observability"
	"github.com/kjstillabower/weather-record-service/internal/validation"
)

// MongoConfig configures the document store connection.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// MongoConnector lazily opens one client and reuses it for the life of the process.
type MongoConnector struct {
	cfg    MongoConfig
	logger *zap.Logger

	mu      sync.Mutex
	client  *mongo.Client
	connect func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)
}

// NewMongoConnector returns a connector that has not connected yet.
func NewMongoConnector(cfg MongoConfig, logger *zap.Logger) *MongoConnector {
	if cfg.Database == "" {
		cfg.Database = "test"
	}
	if cfg.Collection == "" {
		cfg.Collection = "weathers"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoConnector{
		cfg:    cfg,
		logger: logger,
		connect: func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
			return mongo.Connect(ctx, opts)
		},
	}
}

// EnsureConnected returns the weathers collection, connecting first if no client is cached.
// A cached client is returned without a new handshake. Failures wrap ErrConnection, unless
// ctx ended first, and are not retried.
func (c *MongoConnector) EnsureConnected(ctx context.Context) (*mongo.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.collectionLocked(), nil
	}

	if c.cfg.URI == "" {
		observability.StoreConnectionsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: connection string is empty", ErrConnection)
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(c.cfg.URI).
		SetConnectTimeout(c.cfg.ConnectTimeout).
		SetServerSelectionTimeout(c.cfg.ConnectTimeout)
	client, err := c.connect(connectCtx, opts)
	if err != nil {
		observability.StoreConnectionsTotal.WithLabelValues("error").Inc()
		c.logger.Error("connection error", zap.Error(err))
		return nil, connectionError(ctx, err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		observability.StoreConnectionsTotal.WithLabelValues("error").Inc()
		c.logger.Error("connection error", zap.Error(err))
		return nil, connectionError(ctx, err)
	}

	c.client = client
	observability.StoreConnectionsTotal.WithLabelValues("success").Inc()
	c.logger.Info("connected to document store",
		zap.String("database", c.cfg.Database),
		zap.String("collection", c.cfg.Collection))
	return c.collectionLocked(), nil
}

func (c *MongoConnector) collectionLocked() *mongo.Collection {
	return c.client.Database(c.cfg.Database).Collection(c.cfg.Collection)
}

// Ping connects if needed and round-trips to the primary.
func (c *MongoConnector) Ping(ctx context.Context) error {
	coll, err := c.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	if err := coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return connectionError(ctx, err)
	}
	return nil
}

// Close disconnects the cached client. The next EnsureConnected reconnects.
func (c *MongoConnector) Close(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	c.client = nil
	c.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// MongoStore is a Store over the weathers collection.
type MongoStore struct {
	conn *MongoConnector
}

// NewMongoStore returns a store that connects through conn on first use.
func NewMongoStore(conn *MongoConnector) *MongoStore {
	return &MongoStore{conn: conn}
}

func (s *MongoStore) MaxID(ctx context.Context) (int64, error) {
	coll, err := s.conn.EnsureConnected(ctx)
	if err != nil {
		return 0, err
	}
	var last models.WeatherRecord
	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}})
	err = coll.FindOne(ctx, bson.D{}, opts).Decode(&last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, wrapMongoError(ctx, "find max id", err)
	}
	return last.ID, nil
}

func (s *MongoStore) Insert(ctx context.Context, r models.WeatherRecord) error {
	if err := validation.ValidateRecord(r); err != nil {
		return err
	}
	coll, err := s.conn.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, r); err != nil {
		return wrapMongoError(ctx, "insert", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, f Filter) ([]models.WeatherRecord, error) {
	coll, err := s.conn.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "id", Value: -1}})
	cur, err := coll.Find(ctx, listQuery(f), opts)
	if err != nil {
		return nil, wrapMongoError(ctx, "find", err)
	}
	records := []models.WeatherRecord{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, wrapMongoError(ctx, "decode", err)
	}
	return records, nil
}

func (s *MongoStore) DeleteByID(ctx context.Context, id int64) error {
	coll, err := s.conn.EnsureConnected(ctx)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.D{{Key: "id", Value: id}}); err != nil {
		return wrapMongoError(ctx, "delete", err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, id int64, patch models.RecordPatch) (models.WeatherRecord, error) {
	if err := validation.ValidatePatch(patch); err != nil {
		return models.WeatherRecord{}, err
	}
	coll, err := s.conn.EnsureConnected(ctx)
	if err != nil {
		return models.WeatherRecord{}, err
	}
	filter := bson.D{{Key: "id", Value: id}}

	var out models.WeatherRecord
	if patch.IsEmpty() {
		// the server rejects an empty $set
		err = coll.FindOne(ctx, filter).Decode(&out)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = coll.FindOneAndUpdate(ctx, filter, bson.D{{Key: "$set", Value: setFields(patch)}}, opts).Decode(&out)
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.WeatherRecord{}, ErrNotFound
	}
	if err != nil {
		return models.WeatherRecord{}, wrapMongoError(ctx, "update", err)
	}
	return out, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// listQuery builds the find filter. Filter values are matched literally, not as patterns.
func listQuery(f Filter) bson.D {
	q := bson.D{}
	if f.Region != "" {
		q = append(q, bson.E{Key: "region", Value: substringRegex(f.Region)})
	}
	if f.WeatherCondition != "" {
		q = append(q, bson.E{Key: "weatherCondition", Value: substringRegex(f.WeatherCondition)})
	}
	return q
}

func substringRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// setFields renders the patch's non-nil fields as a $set document.
func setFields(p models.RecordPatch) bson.D {
	set := bson.D{}
	if p.Region != nil {
		set = append(set, bson.E{Key: "region", Value: *p.Region})
	}
	if p.WeatherCondition != nil {
		set = append(set, bson.E{Key: "weatherCondition", Value: *p.WeatherCondition})
	}
	if p.Temperature != nil {
		set = append(set, bson.E{Key: "temperature", Value: *p.Temperature})
	}
	if p.Date != nil {
		set = append(set, bson.E{Key: "date", Value: p.Date.Time})
	}
	return set
}

// wrapMongoError tags network and server-selection failures as ErrConnection.
// A failure caused by ctx itself ending is a request timeout, not a store outage.
func wrapMongoError(ctx context.Context, op string, err error) error {
	if callerDone(ctx, err) {
		return fmt.Errorf("%s: %w: %w", op, ctx.Err(), err)
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// connectionError wraps a connect or ping failure. Like wrapMongoError it leaves
// failures of an already finished caller context untagged.
func connectionError(ctx context.Context, err error) error {
	if callerDone(ctx, err) {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}

func callerDone(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
