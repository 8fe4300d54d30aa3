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

type reactionDoc struct {
	UserID primitive.ObjectID `bson:"user"`
	Emoji  string             `bson:"emoji"`
}

type messageDoc struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty"`
	ChatID      primitive.ObjectID   `bson:"chatId"`
	SenderID    primitive.ObjectID   `bson:"senderId"`
	Text        string               `bson:"text"`
	Type        string               `bson:"type"`
	Attachments []domain.Attachment  `bson:"attachments,omitempty"`
	SeenBy      []primitive.ObjectID `bson:"seenBy"`
	Reactions   []reactionDoc        `bson:"reactions,omitempty"`
	IsEdited    bool                 `bson:"isEdited"`
	CreatedAt   time.Time            `bson:"createdAt"`
}

func (d *messageDoc) toDomain() *domain.Message {
	reactions := make([]domain.Reaction, 0, len(d.Reactions))
	for _, r := range d.Reactions {
		reactions = append(reactions, domain.Reaction{UserID: r.UserID.Hex(), Emoji: r.Emoji})
	}
	return &domain.Message{
		ID:          d.ID.Hex(),
		ChatID:      d.ChatID.Hex(),
		SenderID:    d.SenderID.Hex(),
		Text:        d.Text,
		Type:        d.Type,
		Attachments: d.Attachments,
		SeenBy:      toHexIDs(d.SeenBy),
		Reactions:   reactions,
		IsEdited:    d.IsEdited,
		CreatedAt:   d.CreatedAt,
	}
}

type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(messagesColl)}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	chatID, err := oid(m.ChatID)
	if err != nil {
		return err
	}
	senderID, err := oid(m.SenderID)
	if err != nil {
		return err
	}
	seenBy, err := toOIDs(m.SeenBy)
	if err != nil {
		return err
	}
	doc := messageDoc{
		ID:          primitive.NewObjectID(),
		ChatID:      chatID,
		SenderID:    senderID,
		Text:        m.Text,
		Type:        m.Type,
		Attachments: m.Attachments,
		SeenBy:      seenBy,
		CreatedAt:   time.Now().UTC(),
	}
	if doc.Type == "" {
		doc.Type = "text"
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID = doc.ID.Hex()
	m.Type = doc.Type
	m.CreatedAt = doc.CreatedAt
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	objID, err := oid(id)
	if err != nil {
		return nil, err
	}
	var doc messageDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *MessageRepo) ListForChat(ctx context.Context, chatID string) ([]*domain.Message, error) {
	objID, err := oid(chatID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"chatId": objID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cur.Close(ctx)

	var msgs []*domain.Message
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, doc.toDomain())
	}
	return msgs, cur.Err()
}

// MarkSeen adds the user to seenBy on every message of the chat that they
// have not yet seen.
func (r *MessageRepo) MarkSeen(ctx context.Context, chatID, userID string) error {
	chatObjID, err := oid(chatID)
	if err != nil {
		return err
	}
	userObjID, err := oid(userID)
	if err != nil {
		return err
	}
	filter := bson.M{"chatId": chatObjID, "seenBy": bson.M{"$ne": userObjID}}
	if _, err := r.coll.UpdateMany(ctx, filter, bson.M{"$addToSet": bson.M{"seenBy": userObjID}}); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func (r *MessageRepo) AddReaction(ctx context.Context, messageID, userID, emoji string) error {
	msgObjID, err := oid(messageID)
	if err != nil {
		return err
	}
	userObjID, err := oid(userID)
	if err != nil {
		return err
	}
	// Replace any existing reaction from the same user, then add the new one.
	if _, err := r.coll.UpdateByID(ctx, msgObjID, bson.M{
		"$pull": bson.M{"reactions": bson.M{"user": userObjID}},
	}); err != nil {
		return fmt.Errorf("clear reaction: %w", err)
	}
	res, err := r.coll.UpdateByID(ctx, msgObjID, bson.M{
		"$push": bson.M{"reactions": reactionDoc{UserID: userObjID, Emoji: emoji}},
	})
	if err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
