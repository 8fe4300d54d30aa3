package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatbackend/internal/domain"
)

type chatDoc struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Members       []primitive.ObjectID `bson:"members"`
	IsGroupChat   bool                 `bson:"isGroupChat"`
	ChatName      string               `bson:"chatName"`
	GroupAdmins   []primitive.ObjectID `bson:"groupAdmins,omitempty"`
	GroupImage    string               `bson:"groupImage"`
	PairKey       string               `bson:"pairKey,omitempty"`
	LastMessage   string               `bson:"lastMessage"`
	LastMessageAt *time.Time           `bson:"lastMessageAt"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

func (d *chatDoc) toDomain() *domain.Chat {
	return &domain.Chat{
		ID:            d.ID.Hex(),
		Members:       toHexIDs(d.Members),
		IsGroupChat:   d.IsGroupChat,
		ChatName:      d.ChatName,
		GroupAdmins:   toHexIDs(d.GroupAdmins),
		GroupImage:    d.GroupImage,
		PairKey:       d.PairKey,
		LastMessage:   d.LastMessage,
		LastMessageAt: d.LastMessageAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type ChatRepo struct {
	coll *mongo.Collection
}

func NewChatRepo(db *mongo.Database) *ChatRepo {
	return &ChatRepo{coll: db.Collection(chatsColl)}
}

var _ domain.ChatRepository = (*ChatRepo)(nil)

func (r *ChatRepo) Create(ctx context.Context, c *domain.Chat) error {
	members, err := toOIDs(c.Members)
	if err != nil {
		return err
	}
	admins, err := toOIDs(c.GroupAdmins)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	doc := chatDoc{
		ID:          primitive.NewObjectID(),
		Members:     members,
		IsGroupChat: c.IsGroupChat,
		ChatName:    c.ChatName,
		GroupAdmins: admins,
		GroupImage:  c.GroupImage,
		PairKey:     c.PairKey,
		LastMessage: c.LastMessage,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert chat: %w", err)
	}
	c.ID = doc.ID.Hex()
	c.CreatedAt = doc.CreatedAt
	c.UpdatedAt = doc.UpdatedAt
	return nil
}

func (r *ChatRepo) GetByID(ctx context.Context, id string) (*domain.Chat, error) {
	objID, err := oid(id)
	if err != nil {
		return nil, err
	}
	var doc chatDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find chat: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ChatRepo) FindDirect(ctx context.Context, userA, userB string) (*domain.Chat, error) {
	var doc chatDoc
	err := r.coll.FindOne(ctx, bson.M{"pairKey": domain.DirectPairKey(userA, userB)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find direct chat: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ChatRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Chat, error) {
	objID, err := oid(userID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"members": objID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer cur.Close(ctx)

	var chats []*domain.Chat
	for cur.Next(ctx) {
		var doc chatDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode chat: %w", err)
		}
		chats = append(chats, doc.toDomain())
	}
	return chats, cur.Err()
}

func (r *ChatRepo) UpdatePreview(ctx context.Context, chatID, lastMessage string, at time.Time) error {
	return r.update(ctx, chatID, bson.M{
		"lastMessage":   lastMessage,
		"lastMessageAt": at,
	})
}

func (r *ChatRepo) Rename(ctx context.Context, chatID, name string) error {
	return r.update(ctx, chatID, bson.M{"chatName": name})
}

func (r *ChatRepo) AddMember(ctx context.Context, chatID, userID string) error {
	return r.memberOp(ctx, chatID, userID, "$addToSet")
}

func (r *ChatRepo) RemoveMember(ctx context.Context, chatID, userID string) error {
	return r.memberOp(ctx, chatID, userID, "$pull")
}

func (r *ChatRepo) Delete(ctx context.Context, chatID string) error {
	objID, err := oid(chatID)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatRepo) memberOp(ctx context.Context, chatID, userID, op string) error {
	objID, err := oid(chatID)
	if err != nil {
		return err
	}
	memberID, err := oid(userID)
	if err != nil {
		return err
	}
	update := bson.M{
		op:     bson.M{"members": memberID},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	res, err := r.coll.UpdateByID(ctx, objID, update)
	if err != nil {
		return fmt.Errorf("update chat members: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatRepo) update(ctx context.Context, chatID string, fields bson.M) error {
	objID, err := oid(chatID)
	if err != nil {
		return err
	}
	fields["updatedAt"] = time.Now().UTC()
	res, err := r.coll.UpdateByID(ctx, objID, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
