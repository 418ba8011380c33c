package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the synchronized document store holding mission documents. The
// contract Transact gives the ledger is the whole concurrency story: fn runs
// against a fresh read of the document and its mutation commits atomically,
// or not at all when a concurrent writer got in between, in which case fn
// runs again on the new state. Implementations bound their retries and
// surface ErrContention when they give up.
type Store interface {
	Create(ctx context.Context, m *Mission) error
	Get(ctx context.Context, id int64) (*Mission, error)
	ActiveByAlliance(ctx context.Context, allianceID int64) (*Mission, error)
	Transact(ctx context.Context, id int64, fn func(*Mission) error) (*Mission, error)
}

const (
	missionCollection  = "missions"
	transactMaxRetries = 5
)

// errStaleDocument signals a lost optimistic-concurrency race inside
// Transact; it never escapes the retry loop.
var errStaleDocument = errors.New("mission document changed under transaction")

// MongoStore implements Store on a Mongo replica set. Every commit goes
// through a session transaction plus a version-guarded replace, so two
// writers can never both apply against the same read.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) collection() *mongo.Collection {
	return s.db.Collection(missionCollection)
}

func (s *MongoStore) Create(ctx context.Context, m *Mission) error {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// One live mission per alliance: anything not finalized and not yet
		// past its window blocks creation.
		count, err := s.collection().CountDocuments(sc, bson.M{
			"alliance_id": m.AllianceID,
			"state":       bson.M{"$ne": StateFinalized},
			"ends_at":     bson.M{"$gt": time.Now()},
		})
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrActiveExists
		}
		return s.collection().InsertOne(sc, m)
	})
	if err != nil {
		if errors.Is(err, ErrActiveExists) {
			return ErrActiveExists
		}
		return fmt.Errorf("failed to create mission: %w", err)
	}

	slog.Info("Special mission created",
		slog.String("type", "mission"),
		slog.Int64("mission_id", m.ID),
		slog.Int64("alliance_id", m.AllianceID),
		slog.Int64("max_hp", m.MaxHP))
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id int64) (*Mission, error) {
	var m Mission
	err := s.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("mission %d: %w", id, ErrMissionNotFound)
		}
		return nil, err
	}
	return &m, nil
}

// ActiveByAlliance returns the alliance's newest mission. The ledger
// classifies terminal states itself so a completed mission rejects events
// with the right error instead of reading as absent.
func (s *MongoStore) ActiveByAlliance(ctx context.Context, allianceID int64) (*Mission, error) {
	var m Mission
	err := s.collection().FindOne(ctx,
		bson.M{"alliance_id": allianceID},
		options.FindOne().SetSort(bson.D{{Key: "starts_at", Value: -1}}),
	).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("alliance %d: %w", allianceID, ErrNoActiveMission)
		}
		return nil, err
	}
	return &m, nil
}

// ExpiredActive lists missions still marked active whose window closed
// before now. The sweeper finalizes them.
func (s *MongoStore) ExpiredActive(ctx context.Context, now time.Time) ([]int64, error) {
	cursor, err := s.collection().Find(ctx, bson.M{
		"state":   StateActive,
		"ends_at": bson.M{"$lte": now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan expired missions: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []int64
	for cursor.Next(ctx) {
		var m Mission
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		ids = append(ids, m.ID)
	}
	return ids, cursor.Err()
}

func (s *MongoStore) Transact(ctx context.Context, id int64, fn func(*Mission) error) (*Mission, error) {
	for attempt := 0; attempt < transactMaxRetries; attempt++ {
		m, err := s.transactOnce(ctx, id, fn)
		if err == nil {
			return m, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		slog.Debug("Retrying mission transaction",
			slog.String("type", "mission"),
			slog.Int64("mission_id", id),
			slog.Int("attempt", attempt+1))
	}
	return nil, fmt.Errorf("mission %d: %w", id, ErrContention)
}

func (s *MongoStore) transactOnce(ctx context.Context, id int64, fn func(*Mission) error) (*Mission, error) {
	session, err := s.db.Client().StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var m Mission
		if err := s.collection().FindOne(sc, bson.M{"_id": id}).Decode(&m); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("mission %d: %w", id, ErrMissionNotFound)
			}
			return nil, err
		}

		readVersion := m.Version
		if err := fn(&m); err != nil {
			return nil, err
		}
		m.Version = readVersion + 1

		res, err := s.collection().ReplaceOne(sc, bson.M{"_id": id, "version": readVersion}, &m)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, errStaleDocument
		}
		return &m, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Mission), nil
}

func isTransient(err error) bool {
	if errors.Is(err, errStaleDocument) {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
		return true
	}
	return false
}
