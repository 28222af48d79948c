package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/geocoder89/casehub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection    = "users"
	otpsCollection     = "otps"
	casesCollection    = "cases"
	countersCollection = "counters"

	// how long the store keeps an OTP record after it expires
	otpEvictAfter = 10 * time.Minute
)

// Connect dials uri and pings the primary before returning.
func Connect(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(50)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(dbName), nil
}

// EnsureIndexes creates the indexes the repos rely on for uniqueness and
// eviction. Safe to run on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: options.Index().SetUnique(true).SetName("mobile_unique")},
		},
		otpsCollection: {
			{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: options.Index().SetUnique(true).SetName("mobile_unique")},
			{
				Keys:    bson.D{{Key: "expiresAt", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(otpEvictAfter.Seconds())).SetName("expires_ttl"),
			},
		},
		casesCollection: {
			{Keys: bson.D{{Key: "caseNumber", Value: 1}}, Options: options.Index().SetUnique(true).SetName("case_number_unique")},
			{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, Options: options.Index().SetName("created_desc")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "caseType", Value: 1}}, Options: options.Index().SetName("status_type")},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

type observer struct {
	prom *observability.Prom
}

func (o observer) observe(op string, fn func() error) error {
	if o.prom != nil {
		return o.prom.ObserveDB(op, fn)
	}
	return fn()
}
