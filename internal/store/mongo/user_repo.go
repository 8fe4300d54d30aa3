package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"chatbackend/internal/domain"
)

type userDoc struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"`
	ProviderID     string               `bson:"providerId,omitempty"`
	Name           string               `bson:"name"`
	Username       string               `bson:"username,omitempty"`
	Email          string               `bson:"email"`
	HashedPassword string               `bson:"password,omitempty"`
	Avatar         string               `bson:"avatar"`
	About          string               `bson:"about"`
	IsOnline       bool                 `bson:"isOnline"`
	LastSeen       *time.Time           `bson:"lastSeen"`
	BlockedUsers   []primitive.ObjectID `bson:"blockedUsers,omitempty"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

func (d *userDoc) toDomain() *domain.User {
	return &domain.User{
		ID:             d.ID.Hex(),
		ProviderID:     d.ProviderID,
		Name:           d.Name,
		Username:       d.Username,
		Email:          d.Email,
		HashedPassword: d.HashedPassword,
		Avatar:         d.Avatar,
		About:          d.About,
		IsOnline:       d.IsOnline,
		LastSeen:       d.LastSeen,
		BlockedUsers:   toHexIDs(d.BlockedUsers),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(usersColl)}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	doc := userDoc{
		ID:             primitive.NewObjectID(),
		ProviderID:     u.ProviderID,
		Name:           u.Name,
		Username:       u.Username,
		Email:          u.Email,
		HashedPassword: u.HashedPassword,
		Avatar:         u.Avatar,
		About:          u.About,
		IsOnline:       false,
		LastSeen:       nil,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if doc.About == "" {
		doc.About = "Hey there! I am using Chat App."
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID = doc.ID.Hex()
	u.About = doc.About
	u.CreatedAt = doc.CreatedAt
	u.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	objID, err := oid(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": objID})
}

func (r *UserRepo) GetByProviderID(ctx context.Context, providerID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"providerId": providerID})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepo) ListOthers(ctx context.Context, excludeID string) ([]*domain.User, error) {
	objID, err := oid(excludeID)
	if err != nil {
		return nil, err
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": objID}})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var users []*domain.User
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, doc.toDomain())
	}
	return users, cur.Err()
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	objID, err := oid(u.ID)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"name":       u.Name,
		"username":   u.Username,
		"avatar":     u.Avatar,
		"about":      u.About,
		"providerId": u.ProviderID,
		"updatedAt":  time.Now().UTC(),
	}}
	res, err := r.coll.UpdateByID(ctx, objID, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetPresence is a single atomic upsert of the denormalized presence fields;
// lastSeen is cleared while the user is online.
func (r *UserRepo) SetPresence(ctx context.Context, id string, online bool, lastSeen *time.Time) error {
	objID, err := oid(id)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{
		"isOnline": online,
		"lastSeen": lastSeen,
	}}
	if _, err := r.coll.UpdateByID(ctx, objID, update); err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	return nil
}

func (r *UserRepo) Block(ctx context.Context, userID, blockedID string) error {
	return r.updateBlockList(ctx, userID, blockedID, "$addToSet")
}

func (r *UserRepo) Unblock(ctx context.Context, userID, blockedID string) error {
	return r.updateBlockList(ctx, userID, blockedID, "$pull")
}

func (r *UserRepo) updateBlockList(ctx context.Context, userID, blockedID, op string) error {
	objID, err := oid(userID)
	if err != nil {
		return err
	}
	blockedObjID, err := oid(blockedID)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateByID(ctx, objID, bson.M{op: bson.M{"blockedUsers": blockedObjID}})
	if err != nil {
		return fmt.Errorf("update block list: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}
