package usecase

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/infrastructure/ratelimit"
	"cakemarket/pkg/errors"
	"cakemarket/pkg/logger"
	"cakemarket/pkg/utils"
)

func init() {
	logger.SetOutput(io.Discard)
}

type chatFixture struct {
	store       *fakeStore
	broadcaster *recordingBroadcaster
	notifier    *recordingNotifier
	uc          *ChatUseCase
}

// newChatFixture builds buyer "u1", store "s1" owned by "o1", stranger "x1"
// and room "r1" between u1 and s1.
func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	store := newFakeStore()
	store.addUser("u1", entity.RoleUser)
	store.addUser("o1", entity.RoleSeller)
	store.addUser("x1", entity.RoleUser)
	store.addStore("s1", "o1")
	store.addRoom("r1", "u1", "s1")

	fx := &chatFixture{
		store:       store,
		broadcaster: &recordingBroadcaster{},
		notifier:    &recordingNotifier{},
	}
	fx.uc = NewChatUseCase(store.rooms(), store.messages(), fakeStores{store}, store, fx.broadcaster, fx.notifier, nil)
	return fx
}

func (fx *chatFixture) send(t *testing.T, senderID string, side entity.SenderType, text string) *entity.Message {
	t.Helper()
	msg, err := fx.uc.SendMessage(context.Background(), SendMessageInput{
		RoomID:     "r1",
		Text:       text,
		SenderID:   senderID,
		SenderType: side,
	})
	require.NoError(t, err)
	return msg
}

func TestSendMessage_PersistsAndBroadcasts(t *testing.T) {
	fx := newChatFixture(t)

	msg := fx.send(t, "u1", entity.SenderUser, "   Is the strawberry cake available?  ")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "r1", msg.RoomID)
	assert.Equal(t, "Is the strawberry cake available?", msg.Text)
	assert.Equal(t, entity.SenderUser, msg.SenderType)
	assert.False(t, msg.CreatedAt.IsZero())

	assert.Equal(t, 1, fx.store.messageCount())
	require.Equal(t, 1, fx.broadcaster.count())
	assert.Equal(t, "r1", fx.broadcaster.sent[0].roomID)
	assert.Equal(t, msg.ID, fx.broadcaster.sent[0].message.ID)

	room := fx.store.room("r1")
	assert.Equal(t, "Is the strawberry cake available?", room.LastMessage)
	require.NotNil(t, room.LastMessageAt)
	assert.True(t, room.LastMessageAt.Equal(msg.CreatedAt))

	require.Len(t, fx.notifier.notices, 1)
	assert.Equal(t, notice{userID: "o1", event: EventRoomUpdated}, fx.notifier.notices[0])
}

func TestSendMessage_IncrementsOnlyReceivingSide(t *testing.T) {
	fx := newChatFixture(t)

	fx.send(t, "u1", entity.SenderUser, "Hi")
	room := fx.store.room("r1")
	assert.Equal(t, 1, room.StoreUnread)
	assert.Equal(t, 0, room.UserUnread)
	assert.Equal(t, "Hi", room.LastMessage)

	fx.send(t, "o1", entity.SenderStore, "Hello")
	room = fx.store.room("r1")
	assert.Equal(t, 1, room.UserUnread)
	assert.Equal(t, 1, room.StoreUnread, "store counter must not move on a store message")
	assert.Equal(t, "Hello", room.LastMessage)
}

func TestMarkAsRead_ResetsOnlyOwnCounter(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	fx.send(t, "u1", entity.SenderUser, "Hi")
	fx.send(t, "o1", entity.SenderStore, "Hello")

	room, err := fx.uc.MarkAsRead(ctx, "r1", "o1", entity.SenderStore)
	require.NoError(t, err)
	assert.Equal(t, 0, room.StoreUnread)
	assert.Equal(t, 1, room.UserUnread)

	room, err = fx.uc.MarkAsRead(ctx, "r1", "u1", entity.SenderUser)
	require.NoError(t, err)
	assert.Equal(t, 0, room.UserUnread)
	assert.Equal(t, 0, room.StoreUnread)
}

func TestSendMessage_TextBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"exactly max", strings.Repeat("a", entity.MaxMessageLength), false},
		{"max multibyte", strings.Repeat("é", entity.MaxMessageLength), false},
		{"one over max", strings.Repeat("a", entity.MaxMessageLength+1), true},
		{"whitespace only", " \t\n ", true},
		{"empty", "", true},
		{"padded max", "  " + strings.Repeat("b", entity.MaxMessageLength) + "  ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newChatFixture(t)
			_, err := fx.uc.SendMessage(context.Background(), SendMessageInput{
				RoomID: "r1", Text: tt.text, SenderID: "u1", SenderType: entity.SenderUser,
			})
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.CodeInvalidArgument), "got %v", err)
				assert.Equal(t, 0, fx.store.messageCount())
				assert.Equal(t, 0, fx.broadcaster.count())
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, 1, fx.store.messageCount())
		})
	}
}

func TestSendMessage_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input SendMessageInput
		code  string
	}{
		{"missing room id", SendMessageInput{RoomID: " ", Text: "hi", SenderID: "u1", SenderType: entity.SenderUser}, errors.CodeInvalidArgument},
		{"unknown room", SendMessageInput{RoomID: "nope", Text: "hi", SenderID: "u1", SenderType: entity.SenderUser}, errors.CodeNotFound},
		{"bad sender type", SendMessageInput{RoomID: "r1", Text: "hi", SenderID: "u1", SenderType: "admin"}, errors.CodeInvalidArgument},
		{"stranger as user", SendMessageInput{RoomID: "r1", Text: "hi", SenderID: "x1", SenderType: entity.SenderUser}, errors.CodeForbidden},
		{"stranger as store", SendMessageInput{RoomID: "r1", Text: "hi", SenderID: "x1", SenderType: entity.SenderStore}, errors.CodeForbidden},
		{"buyer claiming store", SendMessageInput{RoomID: "r1", Text: "hi", SenderID: "u1", SenderType: entity.SenderStore}, errors.CodeForbidden},
		{"owner claiming user", SendMessageInput{RoomID: "r1", Text: "hi", SenderID: "o1", SenderType: entity.SenderUser}, errors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newChatFixture(t)
			_, err := fx.uc.SendMessage(context.Background(), tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
			assert.Equal(t, 0, fx.broadcaster.count())
		})
	}
}

func TestSendMessage_TransactionFailureLeavesNothing(t *testing.T) {
	fx := newChatFixture(t)
	fx.store.failUpdateMetadata = stderrors.New("deadlock detected")

	_, err := fx.uc.SendMessage(context.Background(), SendMessageInput{
		RoomID: "r1", Text: "Hi", SenderID: "u1", SenderType: entity.SenderUser,
	})

	require.Error(t, err)
	assert.Equal(t, errors.CodeInternal, errors.CodeOf(err))
	assert.Equal(t, 0, fx.store.messageCount(), "message insert must roll back")
	assert.Equal(t, 0, fx.store.room("r1").StoreUnread)
	assert.Equal(t, 0, fx.broadcaster.count())
	assert.Empty(t, fx.notifier.notices)
}

func TestSendMessage_BroadcastFailureStillReturnsMessage(t *testing.T) {
	fx := newChatFixture(t)
	fx.broadcaster.err = stderrors.New("nats: connection closed")

	msg := fx.send(t, "u1", entity.SenderUser, "Hi")

	assert.NotNil(t, msg)
	assert.Equal(t, 1, fx.store.messageCount())
}

func TestSendMessage_RateLimited(t *testing.T) {
	fx := newChatFixture(t)
	fx.uc.rateLimiter = ratelimit.NewRateLimiter(0.0001, 1)

	fx.send(t, "u1", entity.SenderUser, "first")
	_, err := fx.uc.SendMessage(context.Background(), SendMessageInput{
		RoomID: "r1", Text: "second", SenderID: "u1", SenderType: entity.SenderUser,
	})

	assert.Equal(t, errors.CodeTooManyRequests, errors.CodeOf(err))
	assert.Equal(t, 1, fx.store.messageCount())
}

func TestAccessControl_ListAndMarkAsRead(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	for _, side := range []entity.SenderType{entity.SenderUser, entity.SenderStore} {
		_, err := fx.uc.ListMessages(ctx, ListMessagesInput{RoomID: "r1", CallerID: "x1", Side: side})
		assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err), "list as %s", side)

		_, err = fx.uc.ListMessages(ctx, ListMessagesInput{RoomID: "r1", CallerID: "x1", Side: side, Mode: ListModePage})
		assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err), "page list as %s", side)

		_, err = fx.uc.MarkAsRead(ctx, "r1", "x1", side)
		assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err), "mark read as %s", side)
	}
}

func TestListMessages_CursorScenario(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	first := fx.send(t, "u1", entity.SenderUser, "one")
	second := fx.send(t, "o1", entity.SenderStore, "two")
	third := fx.send(t, "u1", entity.SenderUser, "three")

	page, err := fx.uc.ListMessages(ctx, ListMessagesInput{RoomID: "r1", CallerID: "u1", Side: entity.SenderUser, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, second.ID, page.Messages[0].ID)
	assert.Equal(t, third.ID, page.Messages[1].ID)
	assert.True(t, page.HasNextPage)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, second.ID, *page.NextCursor)

	next, err := fx.uc.ListMessages(ctx, ListMessagesInput{RoomID: "r1", CallerID: "o1", Side: entity.SenderStore, Limit: 2, Cursor: *page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Messages, 1)
	assert.Equal(t, first.ID, next.Messages[0].ID)
	assert.False(t, next.HasNextPage)
	assert.Nil(t, next.NextCursor)
}

func TestListMessages_CursorWalkHasNoGapsOrDuplicates(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	var sent []string
	for i := 0; i < 11; i++ {
		sent = append(sent, fx.send(t, "u1", entity.SenderUser, "msg").ID)
	}

	var seen []string
	cursor := ""
	for {
		page, err := fx.uc.ListMessages(ctx, ListMessagesInput{RoomID: "r1", CallerID: "u1", Side: entity.SenderUser, Limit: 3, Cursor: cursor})
		require.NoError(t, err)
		ids := make([]string, 0, len(page.Messages))
		for _, m := range page.Messages {
			ids = append(ids, m.ID)
		}
		seen = append(ids, seen...)
		if page.NextCursor == nil {
			break
		}
		cursor = *page.NextCursor
	}

	assert.Equal(t, sent, seen)
}

func TestListMessages_PageMode(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, fx.send(t, "u1", entity.SenderUser, "msg").ID)
	}

	page1, err := fx.uc.ListMessages(ctx, ListMessagesInput{RoomID: "r1", CallerID: "u1", Side: entity.SenderUser, Mode: ListModePage, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[3], ids[4]}, messageIDs(page1.Messages))
	assert.Equal(t, &PageMeta{CurrentPage: 1, Limit: 2, TotalItems: 5, TotalPages: 3, HasNext: true, HasPrev: false}, page1.Pagination)

	page3, err := fx.uc.ListMessages(ctx, ListMessagesInput{RoomID: "r1", CallerID: "u1", Side: entity.SenderUser, Mode: ListModePage, Page: 3, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0]}, messageIDs(page3.Messages))
	assert.False(t, page3.Pagination.HasNext)
	assert.True(t, page3.Pagination.HasPrev)

	beyond, err := fx.uc.ListMessages(ctx, ListMessagesInput{RoomID: "r1", CallerID: "u1", Side: entity.SenderUser, Mode: ListModePage, Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Messages)
	assert.NotNil(t, beyond.Messages)
}

func TestListMessages_LimitIsClamped(t *testing.T) {
	fx := newChatFixture(t)
	for i := 0; i < 3; i++ {
		fx.send(t, "u1", entity.SenderUser, "msg")
	}

	page, err := fx.uc.ListMessages(context.Background(), ListMessagesInput{RoomID: "r1", CallerID: "u1", Side: entity.SenderUser, Mode: ListModePage, Limit: -5})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Limit)
	assert.Len(t, page.Messages, 1)

	page, err = fx.uc.ListMessages(context.Background(), ListMessagesInput{RoomID: "r1", CallerID: "u1", Side: entity.SenderUser, Mode: ListModePage, Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Pagination.Limit)
}

func TestOpenRoom_IsIdempotent(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()
	fx.store.addStore("s2", "o1")

	first, err := fx.uc.OpenRoom(ctx, "u1", "s2")
	require.NoError(t, err)
	second, err := fx.uc.OpenRoom(ctx, "u1", "s2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.Len(t, fx.notifier.notices, 1, "only the creating call notifies the store owner")
	assert.Equal(t, notice{userID: "o1", event: EventRoomCreated}, fx.notifier.notices[0])
}

func TestOpenRoom_Errors(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	_, err := fx.uc.OpenRoom(ctx, "u1", "")
	assert.Equal(t, errors.CodeInvalidArgument, errors.CodeOf(err))

	_, err = fx.uc.OpenRoom(ctx, "u1", "missing")
	assert.Equal(t, errors.CodeNotFound, errors.CodeOf(err))

	_, err = fx.uc.OpenRoom(ctx, "o1", "s1")
	assert.Equal(t, errors.CodeBadRequest, errors.CodeOf(err))
}

func TestListRooms(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()
	fx.store.addStore("s2", "o1")
	fx.store.addRoom("r2", "x1", "s2")

	rooms, err := fx.uc.ListRooms(ctx, "u1", entity.SenderUser, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "r1", rooms[0].ID)

	rooms, err = fx.uc.ListRooms(ctx, "o1", entity.SenderStore, "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	rooms, err = fx.uc.ListRooms(ctx, "o1", entity.SenderStore, "s2", 10, 0)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "r2", rooms[0].ID)

	_, err = fx.uc.ListRooms(ctx, "x1", entity.SenderStore, "s1", 10, 0)
	assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err))
}

func messageIDs(messages []*entity.Message) []string {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	return ids
}

// A seller buying from another store is the user side of that room while
// staying the store side of rooms with its own store.
func TestSellerAsBuyer_SideComesFromRoom(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()
	fx.store.addUser("o2", entity.RoleSeller)
	fx.store.addStore("s2", "o2")
	fx.store.addRoom("r2", "u1", "s2")

	room, err := fx.uc.OpenRoom(ctx, "o2", "s1")
	require.NoError(t, err)
	assert.Equal(t, "o2", room.UserID)

	msg, err := fx.uc.SendMessage(ctx, SendMessageInput{RoomID: room.ID, Text: "Do you deliver?", SenderID: "o2", SenderType: entity.SenderAny})
	require.NoError(t, err)
	assert.Equal(t, entity.SenderUser, msg.SenderType)
	assert.Equal(t, 1, fx.store.room(room.ID).StoreUnread)

	reply, err := fx.uc.SendMessage(ctx, SendMessageInput{RoomID: room.ID, Text: "Yes", SenderID: "o1", SenderType: entity.SenderAny})
	require.NoError(t, err)
	assert.Equal(t, entity.SenderStore, reply.SenderType)

	list, err := fx.uc.ListMessages(ctx, ListMessagesInput{RoomID: room.ID, CallerID: "o2", Side: entity.SenderAny})
	require.NoError(t, err)
	assert.Len(t, list.Messages, 2)

	read, err := fx.uc.MarkAsRead(ctx, room.ID, "o2", entity.SenderAny)
	require.NoError(t, err)
	assert.Equal(t, 0, read.UserUnread)
	assert.Equal(t, 1, read.StoreUnread, "the store side counter is not o2's to reset")

	// o2 still answers for its own store in r2.
	own, err := fx.uc.SendMessage(ctx, SendMessageInput{RoomID: "r2", Text: "Hello", SenderID: "o2", SenderType: entity.SenderAny})
	require.NoError(t, err)
	assert.Equal(t, entity.SenderStore, own.SenderType)

	rooms, err := fx.uc.ListRooms(ctx, "o2", entity.SideForRole(entity.RoleSeller), "", 10, 0)
	require.NoError(t, err)
	var ids []string
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{room.ID, "r2"}, ids)
}

func TestSideResolution_RejectsStrangers(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	_, err := fx.uc.SendMessage(ctx, SendMessageInput{RoomID: "r1", Text: "hi", SenderID: "x1", SenderType: entity.SenderAny})
	assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err))

	_, err = fx.uc.GetRoom(ctx, "r1", "x1", entity.SenderAny)
	assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err))

	_, err = fx.uc.MarkAsRead(ctx, "r1", "", entity.SenderAny)
	assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err))
	assert.Equal(t, 0, fx.store.messageCount())
}

func TestListMessages_HugePageIsEmpty(t *testing.T) {
	fx := newChatFixture(t)
	for _, text := range []string{"one", "two", "three"} {
		fx.send(t, "u1", entity.SenderUser, text)
	}

	page, err := fx.uc.ListMessages(context.Background(), ListMessagesInput{
		RoomID: "r1", CallerID: "u1", Side: entity.SenderAny, Mode: ListModePage, Page: math.MaxInt, Limit: 4,
	})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Equal(t, utils.MaxPage, page.Pagination.CurrentPage)
	assert.Equal(t, 1, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNext)
}
