package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/domain/repository"
	"cakemarket/internal/domain/service"
	"cakemarket/pkg/errors"
)

// memoryState is the data a fakeStore transaction copies and commits.
type memoryState struct {
	rooms    map[string]entity.ChatRoom
	messages []entity.Message
	seq      int
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		rooms:    make(map[string]entity.ChatRoom, len(s.rooms)),
		messages: append([]entity.Message(nil), s.messages...),
		seq:      s.seq,
	}
	for k, v := range s.rooms {
		out.rooms[k] = v
	}
	return out
}

// fakeStore implements every repository the chat use case needs on top of
// plain maps. Message timestamps advance one millisecond per two messages so
// that ties on createdAt are exercised.
type fakeStore struct {
	mu     sync.Mutex
	state  memoryState
	stores map[string]*entity.Store
	users  map[string]*entity.User
	base   time.Time

	failUpdateMetadata error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state:  memoryState{rooms: make(map[string]entity.ChatRoom)},
		stores: make(map[string]*entity.Store),
		users:  make(map[string]*entity.User),
		base:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) addStore(id, ownerID string) {
	f.stores[id] = &entity.Store{ID: id, OwnerID: ownerID, Name: "Store " + id}
}

func (f *fakeStore) addUser(id, role string) {
	f.users[id] = &entity.User{ID: id, Role: role, Username: id}
}

func (f *fakeStore) addRoom(id, userID, storeID string) {
	f.state.rooms[id] = entity.ChatRoom{ID: id, UserID: userID, StoreID: storeID, CreatedAt: f.base, UpdatedAt: f.base}
}

func (f *fakeStore) room(id string) entity.ChatRoom {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.rooms[id]
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.state.messages)
}

func (f *fakeStore) rooms() repository.ChatRoomRepository   { return &fakeRooms{f: f, st: &f.state} }
func (f *fakeStore) messages() repository.MessageRepository { return &fakeMessages{f: f, st: &f.state} }

func (f *fakeStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, rooms repository.ChatRoomRepository, messages repository.MessageRepository) error) error {
	f.mu.Lock()
	draft := f.state.clone()
	f.mu.Unlock()

	if err := fn(ctx, &fakeRooms{f: f, st: &draft, inTx: true}, &fakeMessages{f: f, st: &draft, inTx: true}); err != nil {
		return err
	}

	f.mu.Lock()
	f.state = draft
	f.mu.Unlock()
	return nil
}

// lock guards access unless the caller is already working on a private
// transaction draft.
func (f *fakeStore) lock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	f.mu.Lock()
	return f.mu.Unlock
}

type fakeRooms struct {
	f    *fakeStore
	st   *memoryState
	inTx bool
}

func (r *fakeRooms) GetByID(ctx context.Context, id string) (*entity.ChatRoom, error) {
	defer r.f.lock(r.inTx)()
	room, ok := r.st.rooms[id]
	if !ok {
		return nil, errors.NotFound("Chat room", nil)
	}
	return &room, nil
}

func (r *fakeRooms) UpsertByParticipants(ctx context.Context, userID, storeID string) (*entity.ChatRoom, bool, error) {
	defer r.f.lock(r.inTx)()
	for _, room := range r.st.rooms {
		if room.UserID == userID && room.StoreID == storeID {
			existing := room
			return &existing, false, nil
		}
	}
	room := entity.ChatRoom{
		ID:        fmt.Sprintf("room-%d", len(r.st.rooms)+1),
		UserID:    userID,
		StoreID:   storeID,
		CreatedAt: r.f.base,
		UpdatedAt: r.f.base,
	}
	r.st.rooms[room.ID] = room
	return &room, true, nil
}

func (r *fakeRooms) UpdateMetadata(ctx context.Context, id string, patch entity.RoomMetadataPatch) error {
	if r.f.failUpdateMetadata != nil {
		return r.f.failUpdateMetadata
	}
	defer r.f.lock(r.inTx)()
	room, ok := r.st.rooms[id]
	if !ok {
		return errors.NotFound("Chat room", nil)
	}
	if patch.LastMessage != nil {
		room.LastMessage = *patch.LastMessage
	}
	if patch.LastMessageAt != nil {
		at := *patch.LastMessageAt
		room.LastMessageAt = &at
	}
	switch patch.IncrementUnread {
	case entity.SenderUser:
		room.UserUnread++
	case entity.SenderStore:
		room.StoreUnread++
	}
	switch patch.ResetUnread {
	case entity.SenderUser:
		room.UserUnread = 0
	case entity.SenderStore:
		room.StoreUnread = 0
	}
	r.st.rooms[id] = room
	return nil
}

func (r *fakeRooms) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.ChatRoom, error) {
	return r.list(func(room entity.ChatRoom) bool { return room.UserID == userID }, limit, offset), nil
}

func (r *fakeRooms) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]*entity.ChatRoom, error) {
	return r.list(func(room entity.ChatRoom) bool { return room.StoreID == storeID }, limit, offset), nil
}

func (r *fakeRooms) list(match func(entity.ChatRoom) bool, limit, offset int) []*entity.ChatRoom {
	defer r.f.lock(r.inTx)()
	out := []*entity.ChatRoom{}
	for _, room := range r.st.rooms {
		if match(room) {
			room := room
			out = append(out, &room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []*entity.ChatRoom{}
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type fakeMessages struct {
	f    *fakeStore
	st   *memoryState
	inTx bool
}

func (m *fakeMessages) Create(ctx context.Context, message *entity.Message) error {
	defer m.f.lock(m.inTx)()
	m.st.seq++
	message.ID = fmt.Sprintf("m%04d", m.st.seq)
	message.CreatedAt = m.f.base.Add(time.Duration(m.st.seq/2) * time.Millisecond)
	m.st.messages = append(m.st.messages, *message)
	return nil
}

func (m *fakeMessages) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	return int64(len(m.newestFirst(roomID))), nil
}

func (m *fakeMessages) ListPage(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, error) {
	rows := m.newestFirst(roomID)
	if offset >= len(rows) {
		return []*entity.Message{}, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *fakeMessages) ListByCursor(ctx context.Context, roomID string, limit int, cursor string) ([]*entity.Message, error) {
	rows := m.newestFirst(roomID)
	if cursor != "" {
		idx := -1
		for i, row := range rows {
			if row.ID == cursor {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, errors.InvalidArgument("Unknown cursor")
		}
		rows = rows[idx+1:]
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *fakeMessages) newestFirst(roomID string) []*entity.Message {
	defer m.f.lock(m.inTx)()
	out := []*entity.Message{}
	for _, msg := range m.st.messages {
		if msg.RoomID == roomID {
			msg := msg
			out = append(out, &msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

type fakeStores struct{ f *fakeStore }

func (s fakeStores) GetByID(ctx context.Context, id string) (*entity.Store, error) {
	store, ok := s.f.stores[id]
	if !ok {
		return nil, errors.NotFound("Store", nil)
	}
	return store, nil
}

func (s fakeStores) ListByOwner(ctx context.Context, ownerID string) ([]*entity.Store, error) {
	var out []*entity.Store
	for _, store := range s.f.stores {
		if store.OwnerID == ownerID {
			out = append(out, store)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeUsers struct{ f *fakeStore }

func (u fakeUsers) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, ok := u.f.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return user, nil
}

type published struct {
	roomID  string
	message *entity.Message
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (b *recordingBroadcaster) Publish(ctx context.Context, roomID string, message *entity.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, published{roomID: roomID, message: message})
	return b.err
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

type notice struct {
	userID string
	event  string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) SendToUser(userID, event string, payload interface{}) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{userID: userID, event: event})
	return 1
}

type stubVerifier struct {
	subject string
	err     error
}

func (v stubVerifier) VerifyToken(ctx context.Context, token string) (*service.VerifiedToken, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &service.VerifiedToken{Subject: v.subject}, nil
}
