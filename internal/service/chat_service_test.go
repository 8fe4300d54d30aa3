package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chatbackend/internal/domain"
	"chatbackend/internal/service"
	"chatbackend/internal/ws"
)

var (
	alice = strings.Repeat("a", 24)
	bob   = strings.Repeat("b", 24)
	carol = strings.Repeat("c", 24)
	dave  = strings.Repeat("d", 24)
	group = strings.Repeat("e", 24)
)

func TestAccessDirect(t *testing.T) {
	t.Run("ReturnsExisting", func(t *testing.T) {
		chats := new(MockChatRepo)
		users := new(MockUserRepo)
		svc := service.NewChatService(chats, users, &MockNotifier{})

		existing := &domain.Chat{ID: group, Members: []string{alice, bob}}
		users.On("GetByID", mock.Anything, bob).Return(&domain.User{ID: bob}, nil)
		chats.On("FindDirect", mock.Anything, alice, bob).Return(existing, nil)

		chat, err := svc.AccessDirect(context.Background(), alice, bob)
		assert.NoError(t, err)
		assert.Equal(t, existing, chat)
		chats.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("CreatesWithPairKey", func(t *testing.T) {
		chats := new(MockChatRepo)
		users := new(MockUserRepo)
		svc := service.NewChatService(chats, users, &MockNotifier{})

		users.On("GetByID", mock.Anything, bob).Return(&domain.User{ID: bob}, nil)
		chats.On("FindDirect", mock.Anything, alice, bob).Return(nil, nil)
		chats.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Chat) bool {
			return c.PairKey == domain.DirectPairKey(alice, bob) && !c.IsGroupChat
		})).Return(nil)

		chat, err := svc.AccessDirect(context.Background(), alice, bob)
		assert.NoError(t, err)
		assert.ElementsMatch(t, []string{alice, bob}, chat.Members)
	})

	t.Run("LostCreationRaceRefetches", func(t *testing.T) {
		chats := new(MockChatRepo)
		users := new(MockUserRepo)
		svc := service.NewChatService(chats, users, &MockNotifier{})

		winner := &domain.Chat{ID: group, Members: []string{alice, bob}}
		users.On("GetByID", mock.Anything, bob).Return(&domain.User{ID: bob}, nil)
		chats.On("FindDirect", mock.Anything, alice, bob).Return(nil, nil).Once()
		chats.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict)
		chats.On("FindDirect", mock.Anything, alice, bob).Return(winner, nil).Once()

		chat, err := svc.AccessDirect(context.Background(), alice, bob)
		assert.NoError(t, err)
		assert.Equal(t, winner, chat)
	})

	t.Run("SelfChatRejected", func(t *testing.T) {
		svc := service.NewChatService(new(MockChatRepo), new(MockUserRepo), &MockNotifier{})

		_, err := svc.AccessDirect(context.Background(), alice, alice)
		assert.Error(t, err)
	})

	t.Run("BlockedByCounterpartForbidden", func(t *testing.T) {
		chats := new(MockChatRepo)
		users := new(MockUserRepo)
		svc := service.NewChatService(chats, users, &MockNotifier{})

		users.On("GetByID", mock.Anything, bob).Return(&domain.User{
			ID:           bob,
			BlockedUsers: []string{alice},
		}, nil)

		_, err := svc.AccessDirect(context.Background(), alice, bob)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		chats.AssertNotCalled(t, "FindDirect", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		chats := new(MockChatRepo)
		users := new(MockUserRepo)
		svc := service.NewChatService(chats, users, &MockNotifier{})

		users.On("GetByID", mock.Anything, bob).Return(nil, nil)

		_, err := svc.AccessDirect(context.Background(), alice, bob)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCreateGroup(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		chats := new(MockChatRepo)
		notifier := &MockNotifier{}
		svc := service.NewChatService(chats, new(MockUserRepo), notifier)

		chats.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Chat) bool {
			return c.IsGroupChat && c.ChatName == "weekend plans" && c.GroupAdmins[0] == alice
		})).Return(nil)

		chat, err := svc.CreateGroup(context.Background(), alice, service.GroupCreateInput{
			Name:      "weekend plans",
			MemberIDs: []string{bob, carol, bob}, // duplicate is collapsed
		})
		assert.NoError(t, err)
		assert.Equal(t, []string{alice, bob, carol}, chat.Members)

		// groupCreated goes to every member, creator included.
		assert.Len(t, notifier.Deliveries, 1)
		assert.Equal(t, ws.EventGroupCreated, notifier.Deliveries[0].Event)
		assert.ElementsMatch(t, []string{alice, bob, carol}, notifier.Deliveries[0].UserIDs)
	})

	t.Run("NameRequired", func(t *testing.T) {
		svc := service.NewChatService(new(MockChatRepo), new(MockUserRepo), &MockNotifier{})

		_, err := svc.CreateGroup(context.Background(), alice, service.GroupCreateInput{MemberIDs: []string{bob, carol}})
		assert.Error(t, err)
	})

	t.Run("TooFewMembers", func(t *testing.T) {
		svc := service.NewChatService(new(MockChatRepo), new(MockUserRepo), &MockNotifier{})

		_, err := svc.CreateGroup(context.Background(), alice, service.GroupCreateInput{Name: "pair", MemberIDs: []string{bob}})
		assert.Error(t, err)
	})
}

func TestRenameGroup(t *testing.T) {
	groupChat := func() *domain.Chat {
		return &domain.Chat{
			ID:          group,
			Members:     []string{alice, bob, carol},
			IsGroupChat: true,
			ChatName:    "old name",
			GroupAdmins: []string{alice},
		}
	}

	t.Run("Success", func(t *testing.T) {
		chats := new(MockChatRepo)
		notifier := &MockNotifier{}
		svc := service.NewChatService(chats, new(MockUserRepo), notifier)

		chats.On("GetByID", mock.Anything, group).Return(groupChat(), nil)
		chats.On("Rename", mock.Anything, group, "new name").Return(nil)

		chat, err := svc.RenameGroup(context.Background(), alice, group, "new name")
		assert.NoError(t, err)
		assert.Equal(t, "new name", chat.ChatName)
		assert.Len(t, notifier.Deliveries, 1)
		assert.Equal(t, ws.EventGroupRenamed, notifier.Deliveries[0].Event)
		assert.ElementsMatch(t, []string{alice, bob, carol}, notifier.Deliveries[0].UserIDs)
	})

	t.Run("NonAdminForbidden", func(t *testing.T) {
		chats := new(MockChatRepo)
		notifier := &MockNotifier{}
		svc := service.NewChatService(chats, new(MockUserRepo), notifier)

		chats.On("GetByID", mock.Anything, group).Return(groupChat(), nil)

		_, err := svc.RenameGroup(context.Background(), bob, group, "new name")
		assert.ErrorIs(t, err, domain.ErrForbidden)
		assert.Empty(t, notifier.Deliveries)
	})

	t.Run("DirectChatRejected", func(t *testing.T) {
		chats := new(MockChatRepo)
		svc := service.NewChatService(chats, new(MockUserRepo), &MockNotifier{})

		chats.On("GetByID", mock.Anything, group).Return(&domain.Chat{ID: group, Members: []string{alice, bob}}, nil)

		_, err := svc.RenameGroup(context.Background(), alice, group, "new name")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestGroupMembership(t *testing.T) {
	groupChat := func() *domain.Chat {
		return &domain.Chat{
			ID:          group,
			Members:     []string{alice, bob, carol},
			IsGroupChat: true,
			ChatName:    "trio",
			GroupAdmins: []string{alice},
		}
	}

	t.Run("AddNotifiesNewMemberSet", func(t *testing.T) {
		chats := new(MockChatRepo)
		notifier := &MockNotifier{}
		svc := service.NewChatService(chats, new(MockUserRepo), notifier)

		chats.On("GetByID", mock.Anything, group).Return(groupChat(), nil)
		chats.On("AddMember", mock.Anything, group, dave).Return(nil)

		chat, err := svc.AddMember(context.Background(), alice, group, dave)
		assert.NoError(t, err)
		assert.Contains(t, chat.Members, dave)
		assert.Len(t, notifier.Deliveries, 1)
		assert.Equal(t, ws.EventGroupUpdated, notifier.Deliveries[0].Event)
		assert.ElementsMatch(t, []string{alice, bob, carol, dave}, notifier.Deliveries[0].UserIDs)
	})

	t.Run("AddExistingMemberConflicts", func(t *testing.T) {
		chats := new(MockChatRepo)
		svc := service.NewChatService(chats, new(MockUserRepo), &MockNotifier{})

		chats.On("GetByID", mock.Anything, group).Return(groupChat(), nil)

		_, err := svc.AddMember(context.Background(), alice, group, bob)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("RemoveNotifiesRemovedUserToo", func(t *testing.T) {
		chats := new(MockChatRepo)
		notifier := &MockNotifier{}
		svc := service.NewChatService(chats, new(MockUserRepo), notifier)

		chats.On("GetByID", mock.Anything, group).Return(groupChat(), nil)
		chats.On("RemoveMember", mock.Anything, group, carol).Return(nil)

		chat, err := svc.RemoveMember(context.Background(), alice, group, carol)
		assert.NoError(t, err)
		assert.NotContains(t, chat.Members, carol)
		assert.Len(t, notifier.Deliveries, 1)
		assert.ElementsMatch(t, []string{alice, bob, carol}, notifier.Deliveries[0].UserIDs)
	})

	t.Run("DeleteNotifiesEveryFormerMember", func(t *testing.T) {
		chats := new(MockChatRepo)
		notifier := &MockNotifier{}
		svc := service.NewChatService(chats, new(MockUserRepo), notifier)

		chats.On("GetByID", mock.Anything, group).Return(groupChat(), nil)
		chats.On("Delete", mock.Anything, group).Return(nil)

		err := svc.DeleteGroup(context.Background(), alice, group)
		assert.NoError(t, err)
		assert.Len(t, notifier.Deliveries, 1)
		assert.Equal(t, ws.EventGroupDeleted, notifier.Deliveries[0].Event)
		assert.ElementsMatch(t, []string{alice, bob, carol}, notifier.Deliveries[0].UserIDs)
		assert.Equal(t, map[string]string{"chatId": group}, notifier.Deliveries[0].Payload)
	})
}
