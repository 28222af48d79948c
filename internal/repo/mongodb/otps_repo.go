package mongodb

import (
	"context"
	"errors"

	"github.com/geocoder89/casehub/internal/domain/otp"
	"github.com/geocoder89/casehub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OTPsRepo struct {
	coll *mongo.Collection
	observer
}

func NewOTPsRepo(db *mongo.Database, prom *observability.Prom) *OTPsRepo {
	return &OTPsRepo{coll: db.Collection(otpsCollection), observer: observer{prom: prom}}
}

// Upsert replaces the record for rec.Mobile in a single document write, so a
// concurrent Consume sees either the old code or the new one.
func (r *OTPsRepo) Upsert(ctx context.Context, rec otp.Record) error {
	rec.Attempts = 0
	return r.observe("otps.upsert", func() error {
		_, err := r.coll.ReplaceOne(ctx,
			bson.M{"mobile": rec.Mobile},
			rec,
			options.Replace().SetUpsert(true),
		)
		return err
	})
}

func (r *OTPsRepo) Consume(ctx context.Context, mobile, code string) (otp.Record, error) {
	var rec otp.Record
	err := r.observe("otps.consume", func() error {
		return r.coll.FindOneAndDelete(ctx, bson.M{"mobile": mobile, "otp": code}).Decode(&rec)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return otp.Record{}, otp.ErrNotFound
		}
		return otp.Record{}, err
	}
	return rec, nil
}

func (r *OTPsRepo) RecordFailure(ctx context.Context, mobile string, maxAttempts int) error {
	var rec otp.Record
	err := r.observe("otps.record_failure", func() error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return r.coll.FindOneAndUpdate(ctx, bson.M{"mobile": mobile}, bson.M{"$inc": bson.M{"attempts": 1}}, opts).Decode(&rec)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil
		}
		return err
	}
	if rec.Attempts < maxAttempts {
		return nil
	}

	// a reissue in between resets attempts, so the filter leaves it alone
	return r.observe("otps.drop_exhausted", func() error {
		_, err := r.coll.DeleteOne(ctx, bson.M{"mobile": mobile, "attempts": bson.M{"$gte": maxAttempts}})
		return err
	})
}
