package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chatbackend/internal/domain"
	"chatbackend/internal/ws"
)

const maxMessageRunes = 5000

// MessageService persists messages and hands successful writes to the
// realtime layer. The durable write is authoritative; fan-out is a
// best-effort enhancement that never fails the request.
type MessageService struct {
	chats    domain.ChatRepository
	messages domain.MessageRepository
	notifier Notifier
}

func NewMessageService(chats domain.ChatRepository, messages domain.MessageRepository, notifier Notifier) *MessageService {
	return &MessageService{
		chats:    chats,
		messages: messages,
		notifier: notifier,
	}
}

type MessageCreateInput struct {
	ChatID      string
	Text        string
	Type        string
	Attachments []domain.Attachment
}

// Send validates membership, persists the message, updates the chat's
// denormalized preview, and fans receiveMessage out to every chat member's
// room, sender included (the sender's other devices need it too).
func (s *MessageService) Send(ctx context.Context, senderID string, in MessageCreateInput) (*domain.Message, error) {
	if !domain.IsValidID(in.ChatID) {
		return nil, domain.ErrInvalidInput
	}
	if in.Text == "" && len(in.Attachments) == 0 {
		return nil, errors.New("message text cannot be empty")
	}
	if len([]rune(in.Text)) > maxMessageRunes {
		return nil, errors.New("message text exceeds 5000 characters")
	}

	chat, err := s.chats.GetByID(ctx, in.ChatID)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, domain.ErrNotFound
	}
	if !chat.HasMember(senderID) {
		return nil, domain.ErrForbidden
	}

	msg := &domain.Message{
		ChatID:      in.ChatID,
		SenderID:    senderID,
		Text:        in.Text,
		Type:        in.Type,
		Attachments: in.Attachments,
		SeenBy:      []string{senderID},
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	// The preview is eventually consistent; a failed update never loses the
	// message itself.
	if err := s.chats.UpdatePreview(ctx, in.ChatID, previewText(msg), msg.CreatedAt); err != nil {
		log.Printf("message: update preview for chat %s: %v", in.ChatID, err)
	}

	s.notifier.Deliver(ws.EventReceiveMessage, ws.MessagePayload{ChatID: in.ChatID, Message: msg}, chat.Members)
	return msg, nil
}

func previewText(m *domain.Message) string {
	if m.Text != "" {
		return m.Text
	}
	switch m.Type {
	case "image":
		return "\U0001F4F7 Photo"
	case "video":
		return "\U0001F3A5 Video"
	default:
		return "\U0001F4CE Attachment"
	}
}

// History returns the chat's messages in chronological order.
func (s *MessageService) History(ctx context.Context, callerID, chatID string) ([]*domain.Message, error) {
	chat, err := s.memberChat(ctx, callerID, chatID)
	if err != nil {
		return nil, err
	}
	return s.messages.ListForChat(ctx, chat.ID)
}

// MarkSeen records the caller as having seen every message in the chat.
func (s *MessageService) MarkSeen(ctx context.Context, callerID, chatID string) error {
	chat, err := s.memberChat(ctx, callerID, chatID)
	if err != nil {
		return err
	}
	return s.messages.MarkSeen(ctx, chat.ID, callerID)
}

// React sets the caller's emoji reaction on a message in a chat they belong
// to.
func (s *MessageService) React(ctx context.Context, callerID, messageID, emoji string) (*domain.Message, error) {
	if emoji == "" || len([]rune(emoji)) > 10 {
		return nil, domain.ErrInvalidInput
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if msg == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := s.memberChat(ctx, callerID, msg.ChatID); err != nil {
		return nil, err
	}

	if err := s.messages.AddReaction(ctx, messageID, callerID, emoji); err != nil {
		return nil, err
	}
	return s.messages.GetByID(ctx, messageID)
}

func (s *MessageService) memberChat(ctx context.Context, callerID, chatID string) (*domain.Chat, error) {
	if !domain.IsValidID(chatID) {
		return nil, domain.ErrInvalidInput
	}
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if chat == nil {
		return nil, domain.ErrNotFound
	}
	if !chat.HasMember(callerID) {
		return nil, domain.ErrForbidden
	}
	return chat, nil
}
