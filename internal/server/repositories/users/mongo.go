package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/uhhharsh/VidShare/internal/common"
	"github.com/uhhharsh/VidShare/internal/server/models"
)

// CollectionName is the MongoDB collection holding users.
const CollectionName = "users"

type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName), now: time.Now}
}

// EnsureIndexes creates the unique username and email indexes.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("db error: create indexes: %w", err)
	}
	return nil
}

func mapMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return common.ErrorNotFound
	case mongo.IsDuplicateKeyError(err):
		return common.NewError(common.ErrorConflict, "user with email or username already exists")
	default:
		return fmt.Errorf("db error: %w", err)
	}
}

// loginFilter matches username or email, skipping empty values.
func loginFilter(username, email string) bson.D {
	or := bson.A{}
	if username != "" {
		or = append(or, bson.D{{Key: "username", Value: username}})
	}
	if email != "" {
		or = append(or, bson.D{{Key: "email", Value: email}})
	}
	if len(or) == 0 {
		// matches nothing
		return bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}
	}
	return bson.D{{Key: "$or", Value: or}}
}

func (r *MongoRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.RefreshToken = nil

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return nil, mapMongoError(err)
	}
	return user, nil
}

func (r *MongoRepository) FindByLogin(ctx context.Context, username, email string) (*models.User, error) {
	u := &models.User{}
	if err := r.coll.FindOne(ctx, loginFilter(username, email)).Decode(u); err != nil {
		return nil, mapMongoError(err)
	}
	return u, nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(u); err != nil {
		return nil, mapMongoError(err)
	}
	return u, nil
}

func (r *MongoRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, loginFilter(username, email), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *MongoRepository) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if upd.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	set := bson.D{{Key: "updatedAt", Value: r.now().UTC()}}
	if upd.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *upd.Email})
	}
	if upd.FullName != nil {
		set = append(set, bson.E{Key: "fullName", Value: *upd.FullName})
	}
	if upd.Avatar != nil {
		set = append(set, bson.E{Key: "avatar", Value: *upd.Avatar})
	}
	if upd.CoverImage != nil {
		set = append(set, bson.E{Key: "coverImage", Value: *upd.CoverImage})
	}
	if upd.PasswordHash != nil {
		set = append(set, bson.E{Key: "password", Value: *upd.PasswordHash})
	}
	if upd.ClearRefreshToken {
		set = append(set, bson.E{Key: "refreshToken", Value: nil})
	}

	u := &models.User{}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(u)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return u, nil
}

func (r *MongoRepository) GetRefreshToken(ctx context.Context, id string) (*string, error) {
	var doc struct {
		RefreshToken *string `bson:"refreshToken"`
	}
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}},
		options.FindOne().SetProjection(bson.D{{Key: "refreshToken", Value: 1}}),
	).Decode(&doc)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return doc.RefreshToken, nil
}

func (r *MongoRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	var value any
	if token != nil {
		value = *token
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refreshToken", Value: value},
			{Key: "updatedAt", Value: r.now().UTC()},
		}}},
	)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// SwapRefreshToken filters on the current token so the write only lands
// while it is still stored. On a miss it tells a missing user from a stale
// token.
func (r *MongoRepository) SwapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "refreshToken", Value: current}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "refreshToken", Value: next},
			{Key: "updatedAt", Value: r.now().UTC()},
		}}},
	)
	if err != nil {
		return false, mapMongoError(err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
