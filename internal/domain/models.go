package domain

import (
	"regexp"
	"time"
)

// User represents an application user. Users normally originate from the
// external identity provider and are provisioned on first sight; the
// password field is only set for accounts created through the local
// register/login fallback.
type User struct {
	ID             string     `bson:"_id,omitempty" json:"_id"`
	ProviderID     string     `bson:"providerId,omitempty" json:"-"`
	Name           string     `bson:"name" json:"name"`
	Username       string     `bson:"username,omitempty" json:"username,omitempty"`
	Email          string     `bson:"email" json:"email"`
	HashedPassword string     `bson:"password,omitempty" json:"-"`
	Avatar         string     `bson:"avatar" json:"avatar"`
	About          string     `bson:"about" json:"about"`
	IsOnline       bool       `bson:"isOnline" json:"isOnline"`
	LastSeen       *time.Time `bson:"lastSeen" json:"lastSeen"`
	BlockedUsers   []string   `bson:"blockedUsers,omitempty" json:"blockedUsers,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// HasBlocked reports whether the user has blocked the given user id.
func (u *User) HasBlocked(userID string) bool {
	for _, id := range u.BlockedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Chat represents a direct or group conversation.
type Chat struct {
	ID          string   `bson:"_id,omitempty" json:"_id"`
	Members     []string `bson:"members" json:"members"`
	IsGroupChat bool     `bson:"isGroupChat" json:"isGroupChat"`
	ChatName    string   `bson:"chatName" json:"chatName"`
	GroupAdmins []string `bson:"groupAdmins,omitempty" json:"groupAdmins,omitempty"`
	GroupImage  string   `bson:"groupImage" json:"groupImage"`
	// PairKey is a canonical "smaller:larger" member-id pair set only on
	// direct chats; a unique sparse index on it resolves the race where two
	// users open the same 1:1 chat simultaneously.
	PairKey       string     `bson:"pairKey,omitempty" json:"-"`
	LastMessage   string     `bson:"lastMessage" json:"lastMessage"`
	LastMessageAt *time.Time `bson:"lastMessageAt" json:"lastMessageAt"`
	CreatedAt     time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// HasMember reports whether the given user id is a chat member.
func (c *Chat) HasMember(userID string) bool {
	for _, id := range c.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the given user id is a group admin.
func (c *Chat) IsAdmin(userID string) bool {
	for _, id := range c.GroupAdmins {
		if id == userID {
			return true
		}
	}
	return false
}

// Attachment is a stored media reference on a message.
type Attachment struct {
	URL          string `bson:"url" json:"url"`
	FileType     string `bson:"fileType" json:"fileType"` // image, video, file
	OriginalName string `bson:"originalName,omitempty" json:"originalName,omitempty"`
}

// Reaction is a single emoji reaction on a message.
type Reaction struct {
	UserID string `bson:"user" json:"user"`
	Emoji  string `bson:"emoji" json:"emoji"`
}

// Message represents a single chat message.
type Message struct {
	ID          string       `bson:"_id,omitempty" json:"_id"`
	ChatID      string       `bson:"chatId" json:"chatId"`
	SenderID    string       `bson:"senderId" json:"senderId"`
	Text        string       `bson:"text" json:"text"`
	Type        string       `bson:"type" json:"type"` // text, image, video, file
	Attachments []Attachment `bson:"attachments,omitempty" json:"attachments,omitempty"`
	SeenBy      []string     `bson:"seenBy" json:"seenBy"`
	Reactions   []Reaction   `bson:"reactions,omitempty" json:"reactions,omitempty"`
	IsEdited    bool         `bson:"isEdited" json:"isEdited"`
	CreatedAt   time.Time    `bson:"createdAt" json:"createdAt"`
}

// DirectPairKey returns the canonical unique key for a 1:1 chat between two
// users, independent of argument order.
func DirectPairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// IsValidID reports whether s is a well-formed object id (24 hex chars).
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}
