package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByProviderID(ctx context.Context, providerID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	ListOthers(ctx context.Context, excludeID string) ([]*User, error)
	Update(ctx context.Context, u *User) error
	SetPresence(ctx context.Context, id string, online bool, lastSeen *time.Time) error
	Block(ctx context.Context, userID, blockedID string) error
	Unblock(ctx context.Context, userID, blockedID string) error
}

// ChatRepository defines persistence operations for chats.
type ChatRepository interface {
	Create(ctx context.Context, c *Chat) error
	GetByID(ctx context.Context, id string) (*Chat, error)
	FindDirect(ctx context.Context, userA, userB string) (*Chat, error)
	ListForUser(ctx context.Context, userID string) ([]*Chat, error)
	UpdatePreview(ctx context.Context, chatID, lastMessage string, at time.Time) error
	Rename(ctx context.Context, chatID, name string) error
	AddMember(ctx context.Context, chatID, userID string) error
	RemoveMember(ctx context.Context, chatID, userID string) error
	Delete(ctx context.Context, chatID string) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	ListForChat(ctx context.Context, chatID string) ([]*Message, error)
	MarkSeen(ctx context.Context, chatID, userID string) error
	AddReaction(ctx context.Context, messageID, userID, emoji string) error
}
