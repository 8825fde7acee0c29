package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ekurt/bottlederby/internal/domain/model"
	"github.com/ekurt/bottlederby/pkg/logger"
	"github.com/ekurt/bottlederby/pkg/metrics"
)

// Mongo collection and timeout constants.
const (
	scoresCollection = "scores"
	connectTimeout   = 10 * time.Second
)

// MongoStore is a Store backed by a MongoDB collection. Documents keep the
// original field names (gs_total, fb_total, ts_total, deltas, dayKey,
// timestamp) with the event id as _id.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    logger.Logger

	subMu     sync.Mutex
	subs      map[int]chan model.ScoreEvent
	nextSubID int
	subBuffer int
	watching  bool
	closed    bool

	watchCtx    context.Context
	watchCancel context.CancelFunc
}

// NewMongoStore connects to MongoDB and prepares the scores collection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrStoreUnavailable, err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}

	coll := client.Database(database).Collection(scoresCollection)

	// Day and recency queries drive the whole read surface.
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "dayKey", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	}
	if _, err := coll.Indexes().CreateMany(connectCtx, idx); err != nil {
		logger.Named("mongostore").Warn(ctx, "index creation failed", logger.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	return &MongoStore{
		client:      client,
		coll:        coll,
		log:         logger.Named("mongostore"),
		subs:        make(map[int]chan model.ScoreEvent),
		subBuffer:   defaultSubscriberBuffer,
		watchCtx:    watchCtx,
		watchCancel: watchCancel,
	}, nil
}

// Append inserts one event keyed by its id.
func (s *MongoStore) Append(ctx context.Context, e model.ScoreEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.coll.InsertOne(ctx, e)
	metrics.RecordStoreOpLatency("append", float64(time.Since(start).Milliseconds()))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateID
		}
		metrics.RecordStoreError("append")
		return fmt.Errorf("%w: insert: %v", ErrStoreUnavailable, err)
	}

	// Without a change stream the appender is the only fan-out source.
	s.subMu.Lock()
	watching := s.watching
	s.subMu.Unlock()
	if !watching {
		s.fanOut(e)
	}
	return nil
}

// Latest returns the newest event by timestamp.
func (s *MongoStore) Latest(ctx context.Context) (model.ScoreEvent, error) {
	start := time.Now()
	var e model.ScoreEvent
	err := s.coll.FindOne(ctx, bson.D{},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	).Decode(&e)
	metrics.RecordStoreOpLatency("latest", float64(time.Since(start).Milliseconds()))
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return model.ScoreEvent{}, ErrNoEvents
		}
		metrics.RecordStoreError("latest")
		return model.ScoreEvent{}, fmt.Errorf("%w: latest: %v", ErrStoreUnavailable, err)
	}
	return e, nil
}

// QueryByDay returns all events bucketed under dayKey.
func (s *MongoStore) QueryByDay(ctx context.Context, dayKey string) ([]model.ScoreEvent, error) {
	start := time.Now()
	cur, err := s.coll.Find(ctx, bson.M{"dayKey": dayKey})
	if err != nil {
		metrics.RecordStoreError("query_by_day")
		return nil, fmt.Errorf("%w: query day %s: %v", ErrStoreUnavailable, dayKey, err)
	}
	var out []model.ScoreEvent
	if err := cur.All(ctx, &out); err != nil {
		metrics.RecordStoreError("query_by_day")
		return nil, fmt.Errorf("%w: decode day %s: %v", ErrStoreUnavailable, dayKey, err)
	}
	metrics.RecordStoreOpLatency("query_by_day", float64(time.Since(start).Milliseconds()))
	return out, nil
}

// SubscribeLatest registers a subscriber. The first subscription starts a
// change-stream watcher; deployments without replica sets fall back to
// local fan-out from Append.
func (s *MongoStore) SubscribeLatest(_ context.Context) (<-chan model.ScoreEvent, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan model.ScoreEvent, s.subBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch

	if !s.watching {
		if stream, err := s.coll.Watch(s.watchCtx, mongo.Pipeline{
			bson.D{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
		}); err == nil {
			s.watching = true
			go s.watchLoop(stream)
		} else {
			s.log.Warn(s.watchCtx, "change stream unavailable; using local fan-out", logger.Error(err))
		}
	}

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// watchLoop forwards change-stream inserts to subscribers.
func (s *MongoStore) watchLoop(stream *mongo.ChangeStream) {
	defer func() {
		_ = stream.Close(context.Background())
		s.subMu.Lock()
		s.watching = false
		s.subMu.Unlock()
	}()

	for stream.Next(s.watchCtx) {
		var change struct {
			FullDocument model.ScoreEvent `bson:"fullDocument"`
		}
		if err := stream.Decode(&change); err != nil {
			s.log.Warn(s.watchCtx, "change stream decode failed", logger.Error(err))
			continue
		}
		s.fanOut(change.FullDocument)
	}
	if err := stream.Err(); err != nil && s.watchCtx.Err() == nil {
		s.log.Error(s.watchCtx, "change stream terminated", logger.Error(err))
		metrics.RecordStoreError("watch")
	}
}

// Count returns the number of stored events, or zero when unreachable.
func (s *MongoStore) Count(ctx context.Context) int {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		metrics.RecordStoreError("count")
		return 0
	}
	metrics.UpdateStoreEvents(int(n))
	return int(n)
}

// Close stops the watcher, drops subscribers, and disconnects.
func (s *MongoStore) Close() error {
	s.watchCancel()

	s.subMu.Lock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("%w: disconnect: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// fanOut delivers e to every subscriber without blocking.
func (s *MongoStore) fanOut(e model.ScoreEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
