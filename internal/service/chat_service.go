package service

import (
	"context"
	"errors"
	"fmt"

	"chatbackend/internal/domain"
	"chatbackend/internal/ws"
)

// ChatService handles direct-chat access and group lifecycle. Every
// mutation follows the same two-phase pattern: persist first, then hand the
// event to the notifier. Phase two never fails the request.
type ChatService struct {
	chats    domain.ChatRepository
	users    domain.UserRepository
	notifier Notifier
}

func NewChatService(chats domain.ChatRepository, users domain.UserRepository, notifier Notifier) *ChatService {
	return &ChatService{
		chats:    chats,
		users:    users,
		notifier: notifier,
	}
}

// AccessDirect returns the existing 1:1 chat between the caller and the
// other user, creating it if absent. Two users opening the same chat
// simultaneously race on the unique pair key; the loser refetches and
// returns the winner's chat.
func (s *ChatService) AccessDirect(ctx context.Context, callerID, otherID string) (*domain.Chat, error) {
	if !domain.IsValidID(otherID) {
		return nil, domain.ErrInvalidInput
	}
	if otherID == callerID {
		return nil, errors.New("you cannot chat with yourself")
	}
	other, err := s.users.GetByID(ctx, otherID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if other == nil {
		return nil, domain.ErrNotFound
	}
	if other.HasBlocked(callerID) {
		return nil, domain.ErrForbidden
	}

	chat, err := s.chats.FindDirect(ctx, callerID, otherID)
	if err != nil {
		return nil, fmt.Errorf("find direct chat: %w", err)
	}
	if chat != nil {
		return chat, nil
	}

	chat = &domain.Chat{
		Members: []string{callerID, otherID},
		PairKey: domain.DirectPairKey(callerID, otherID),
	}
	err = s.chats.Create(ctx, chat)
	if errors.Is(err, domain.ErrConflict) {
		// Lost the creation race: the chat exists now, return it.
		return s.chats.FindDirect(ctx, callerID, otherID)
	}
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// ListForUser returns the caller's chats, most recently updated first.
func (s *ChatService) ListForUser(ctx context.Context, userID string) ([]*domain.Chat, error) {
	return s.chats.ListForUser(ctx, userID)
}

type GroupCreateInput struct {
	Name      string
	MemberIDs []string
}

// CreateGroup persists a new group with the creator as first admin, then
// emits groupCreated to every member's room.
func (s *ChatService) CreateGroup(ctx context.Context, creatorID string, in GroupCreateInput) (*domain.Chat, error) {
	if in.Name == "" {
		return nil, errors.New("group chat must have a name")
	}
	if len(in.MemberIDs) < 2 {
		return nil, errors.New("group chat requires at least 2 other members")
	}

	members := []string{creatorID}
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range in.MemberIDs {
		if !domain.IsValidID(id) {
			return nil, domain.ErrInvalidInput
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	chat := &domain.Chat{
		Members:     members,
		IsGroupChat: true,
		ChatName:    in.Name,
		GroupAdmins: []string{creatorID},
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, err
	}

	s.notifier.Deliver(ws.EventGroupCreated, chat, chat.Members)
	return chat, nil
}

// RenameGroup persists the new name, then emits groupRenamed to the members.
func (s *ChatService) RenameGroup(ctx context.Context, callerID, chatID, name string) (*domain.Chat, error) {
	if name == "" {
		return nil, errors.New("group chat must have a name")
	}
	chat, err := s.adminGroup(ctx, callerID, chatID)
	if err != nil {
		return nil, err
	}

	if err := s.chats.Rename(ctx, chatID, name); err != nil {
		return nil, err
	}
	chat.ChatName = name

	s.notifier.Deliver(ws.EventGroupRenamed, chat, chat.Members)
	return chat, nil
}

// AddMember persists the membership change, then emits groupUpdated to the
// post-change member set so the newcomer's sidebar picks the group up
// without any explicit join step.
func (s *ChatService) AddMember(ctx context.Context, callerID, chatID, userID string) (*domain.Chat, error) {
	if !domain.IsValidID(userID) {
		return nil, domain.ErrInvalidInput
	}
	chat, err := s.adminGroup(ctx, callerID, chatID)
	if err != nil {
		return nil, err
	}
	if chat.HasMember(userID) {
		return nil, domain.ErrConflict
	}

	if err := s.chats.AddMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	chat.Members = append(chat.Members, userID)

	s.notifier.Deliver(ws.EventGroupUpdated, chat, chat.Members)
	return chat, nil
}

// RemoveMember persists the removal, then emits groupUpdated. The removed
// user is told too so their client can drop the chat.
func (s *ChatService) RemoveMember(ctx context.Context, callerID, chatID, userID string) (*domain.Chat, error) {
	if !domain.IsValidID(userID) {
		return nil, domain.ErrInvalidInput
	}
	chat, err := s.adminGroup(ctx, callerID, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasMember(userID) {
		return nil, domain.ErrNotFound
	}

	if err := s.chats.RemoveMember(ctx, chatID, userID); err != nil {
		return nil, err
	}
	remaining := make([]string, 0, len(chat.Members))
	for _, id := range chat.Members {
		if id != userID {
			remaining = append(remaining, id)
		}
	}
	chat.Members = remaining

	s.notifier.Deliver(ws.EventGroupUpdated, chat, append(remaining, userID))
	return chat, nil
}

// DeleteGroup persists the deletion, then emits groupDeleted to every
// pre-deletion member.
func (s *ChatService) DeleteGroup(ctx context.Context, callerID, chatID string) error {
	chat, err := s.adminGroup(ctx, callerID, chatID)
	if err != nil {
		return err
	}

	if err := s.chats.Delete(ctx, chatID); err != nil {
		return err
	}

	s.notifier.Deliver(ws.EventGroupDeleted, map[string]string{"chatId": chat.ID}, chat.Members)
	return nil
}

// adminGroup loads the chat and checks it is a group administered by the
// caller.
func (s *ChatService) adminGroup(ctx context.Context, callerID, chatID string) (*domain.Chat, error) {
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
	if !chat.IsGroupChat {
		return nil, domain.ErrInvalidInput
	}
	if !chat.IsAdmin(callerID) {
		return nil, domain.ErrForbidden
	}
	return chat, nil
}
