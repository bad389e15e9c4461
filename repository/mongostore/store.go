// Package mongostore implements the repository interfaces on MongoDB, keeping
// the users and reports collections in their document layout.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"hydro360/repository"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "hydro360"

// Open connects to uri, ensures the indexes exist and returns the store.
func Open(ctx context.Context, uri, database string) (*repository.Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}
	if database == "" {
		database = DefaultDatabase
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	if err := EnsureIndexes(cctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	store := NewStore(db)
	store.Ping = func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(ctx, readpref.Primary())
	}
	store.Close = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	}
	return store, nil
}

// NewStore wires the repositories over db without touching the connection.
func NewStore(db *mongo.Database) *repository.Store {
	users := NewUserRepo(db)
	reports := NewReportRepo(db, users)
	return &repository.Store{
		Users:     users,
		Reports:   reports,
		Analytics: NewAnalyticsRepo(reports, users),
	}
}

// EnsureIndexes creates the unique email index and the report listing indexes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "resetTokenHash", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	_, err = db.Collection("reports").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "reportedBy", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: 1}}},
		{Keys: bson.D{{Key: "location.lat", Value: 1}, {Key: "location.lng", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("report indexes: %w", err)
	}
	return nil
}
