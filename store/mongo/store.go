// Package mongo implements store.Store on MongoDB via Grove ORM.
//
// Record uniqueness rides on a mirror collection of per-field documents with
// a partial unique index, so two concurrent writers race on the database, not
// in process.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/intake/store"
)

// Collection name constants.
const (
	colEndpoints    = "intake_endpoints"
	colModels       = "intake_models"
	colRecords      = "intake_records"
	colRecordFields = "intake_record_fields"
	colExecutions   = "intake_executions"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all intake collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}

		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("intake/mongo: migrate %s indexes: %w", col, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all intake collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEndpoints: {
			{
				Keys:    bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colModels: {
			{
				Keys:    bson.D{{Key: "name", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colRecords: {
			{Keys: bson.D{{Key: "model", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		colRecordFields: {
			{Keys: bson.D{{Key: "model", Value: 1}, {Key: "field", Value: 1}, {Key: "key", Value: 1}}},
			{Keys: bson.D{{Key: "record_id", Value: 1}}},
			{
				Keys: bson.D{{Key: "model", Value: 1}, {Key: "field", Value: 1}, {Key: "key", Value: 1}},
				Options: options.Index().
					SetName("uniq_intake_record_fields").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"is_unique": true}),
			},
		},
		colExecutions: {
			{Keys: bson.D{{Key: "endpoint_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "endpoint_id", Value: 1}, {Key: "status", Value: 1}}},
		},
	}
}
