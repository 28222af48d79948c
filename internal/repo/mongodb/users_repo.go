package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/casehub/internal/domain/user"
	"github.com/geocoder89/casehub/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UsersRepo struct {
	coll *mongo.Collection
	observer
}

func NewUsersRepo(db *mongo.Database, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{coll: db.Collection(usersCollection), observer: observer{prom: prom}}
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	err := r.observe("users.create", func() error {
		_, err := r.coll.InsertOne(ctx, u)
		return err
	})
	if mongo.IsDuplicateKeyError(err) {
		return user.ErrMobileAlreadyUsed
	}
	return err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_id", bson.M{"_id": id})
}

func (r *UsersRepo) GetByMobile(ctx context.Context, mobile string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_mobile", bson.M{"mobile": mobile})
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.M) (user.User, error) {
	var u user.User
	err := r.observe(op, func() error {
		return r.coll.FindOne(ctx, filter).Decode(&u)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, "users.touch_last_login", id, bson.M{"lastLogin": at})
}

func (r *UsersRepo) UpdatePIN(ctx context.Context, id, pinHash string, at time.Time) error {
	return r.updateOne(ctx, "users.update_pin", id, bson.M{"pin": pinHash, "updatedAt": at})
}

func (r *UsersRepo) UpdateName(ctx context.Context, id, name string) (user.User, error) {
	return r.findAndSet(ctx, "users.update_name", id, bson.M{"name": name, "updatedAt": time.Now().UTC()})
}

func (r *UsersRepo) SetActive(ctx context.Context, id string, active bool) (user.User, error) {
	return r.findAndSet(ctx, "users.set_active", id, bson.M{"isActive": active, "updatedAt": time.Now().UTC()})
}

func (r *UsersRepo) updateOne(ctx context.Context, op, id string, set bson.M) error {
	var res *mongo.UpdateResult
	err := r.observe(op, func() error {
		var err error
		res, err = r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
		return err
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) findAndSet(ctx context.Context, op, id string, set bson.M) (user.User, error) {
	var u user.User
	err := r.observe(op, func() error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&u)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}
