package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"chatbackend/internal/domain"
	"chatbackend/internal/ws"
)

// UserService provides profile, directory, and block-list operations.
type UserService struct {
	users    domain.UserRepository
	notifier Notifier
}

func NewUserService(users domain.UserRepository, notifier Notifier) *UserService {
	return &UserService{users: users, notifier: notifier}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListOthers returns every user except the caller, for the start-chat search.
func (s *UserService) ListOthers(ctx context.Context, callerID string) ([]*domain.User, error) {
	return s.users.ListOthers(ctx, callerID)
}

type ProfileUpdateInput struct {
	Name     string
	About    string
	Avatar   string
	Username string
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdateInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}

	if in.Username != "" && in.Username != user.Username {
		existing, err := s.users.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, fmt.Errorf("check username: %w", err)
		}
		if existing != nil {
			return nil, domain.ErrConflict
		}
		user.Username = in.Username
	}
	if in.Name != "" {
		user.Name = in.Name
	}
	if in.About != "" {
		user.About = in.About
	}
	if in.Avatar != "" {
		user.Avatar = in.Avatar
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

type UsernameCheck struct {
	Available   bool     `json:"available"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// CheckUsername reports availability and, if taken, offers a few free
// alternatives.
func (s *UserService) CheckUsername(ctx context.Context, username string) (*UsernameCheck, error) {
	if username == "" {
		return nil, domain.ErrInvalidInput
	}
	username = strings.ToLower(username)

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing == nil {
		return &UsernameCheck{Available: true}, nil
	}

	var suggestions []string
	for attempt := 0; attempt < 10 && len(suggestions) < 3; attempt++ {
		candidate := fmt.Sprintf("%s%d", username, rand.Intn(1000))
		taken, err := s.users.GetByUsername(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("check suggestion: %w", err)
		}
		if taken == nil && !contains(suggestions, candidate) {
			suggestions = append(suggestions, candidate)
		}
	}
	return &UsernameCheck{Available: false, Suggestions: suggestions}, nil
}

type blockPayload struct {
	BlockedBy string `json:"blockedBy"`
}

type unblockPayload struct {
	UnblockedBy string `json:"unblockedBy"`
}

// Block persists the caller's block-list update, then notifies only the
// blocked counterpart's room.
func (s *UserService) Block(ctx context.Context, callerID, targetID string) error {
	if !domain.IsValidID(targetID) {
		return domain.ErrInvalidInput
	}
	if callerID == targetID {
		return domain.ErrInvalidInput
	}
	if err := s.users.Block(ctx, callerID, targetID); err != nil {
		return err
	}
	s.notifier.Deliver(ws.EventUserBlocked, blockPayload{BlockedBy: callerID}, []string{targetID})
	return nil
}

// Unblock mirrors Block for block-list removal.
func (s *UserService) Unblock(ctx context.Context, callerID, targetID string) error {
	if !domain.IsValidID(targetID) {
		return domain.ErrInvalidInput
	}
	if err := s.users.Unblock(ctx, callerID, targetID); err != nil {
		return err
	}
	s.notifier.Deliver(ws.EventUserUnblocked, unblockPayload{UnblockedBy: callerID}, []string{targetID})
	return nil
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
