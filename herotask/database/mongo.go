package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoConfig struct {
	URI      string `toml:"uri" env:"MONGO_URI"`
	Database string `toml:"database" env:"MONGO_DATABASE"`
}

// ConnectMongo opens the client backing the synchronized alliance/mission
// store. Mission counter updates rely on multi-document transactions, so the
// target deployment must be a replica set.
func ConnectMongo(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo unreachable: %w", err)
	}

	return client.Database(cfg.Database), nil
}
