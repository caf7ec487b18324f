package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/domain/repository"
	"cakemarket/pkg/errors"
	"cakemarket/pkg/logger"
)

const (
	chatRoomsCollection = "chatRooms"
	messagesCollection  = "messages"
)

// firestoreChatRoomRepository stores rooms in "chatRooms". When tx is set
// every read and write goes through that transaction.
type firestoreChatRoomRepository struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func NewFirestoreChatRoomRepository(client *firestore.Client) repository.ChatRoomRepository {
	return &firestoreChatRoomRepository{
		client: client,
	}
}

func (r *firestoreChatRoomRepository) rooms() *firestore.CollectionRef {
	return r.client.Collection(chatRoomsCollection)
}

func (r *firestoreChatRoomRepository) GetByID(ctx context.Context, id string) (*entity.ChatRoom, error) {
	ref := r.rooms().Doc(id)

	var doc *firestore.DocumentSnapshot
	var err error
	if r.tx != nil {
		doc, err = r.tx.Get(ref)
	} else {
		doc, err = ref.Get(ctx)
	}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Chat room", err)
		}
		return nil, errors.Internal("Failed to get chat room", err)
	}

	var room entity.ChatRoom
	if err := doc.DataTo(&room); err != nil {
		return nil, errors.Internal("Failed to parse chat room data", err)
	}
	room.ID = doc.Ref.ID
	return &room, nil
}

// UpsertByParticipants looks the pair up and creates the room inside one
// Firestore transaction so that two concurrent first contacts yield one room.
func (r *firestoreChatRoomRepository) UpsertByParticipants(ctx context.Context, userID, storeID string) (*entity.ChatRoom, bool, error) {
	var room *entity.ChatRoom
	var created bool

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		query := r.rooms().Where("userId", "==", userID).Where("storeId", "==", storeID).Limit(1)

		docs, err := tx.Documents(query).GetAll()
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			var existing entity.ChatRoom
			if err := docs[0].DataTo(&existing); err != nil {
				return err
			}
			existing.ID = docs[0].Ref.ID
			room = &existing
			return nil
		}

		now := time.Now()
		room = &entity.ChatRoom{
			ID:        uuid.New().String(),
			UserID:    userID,
			StoreID:   storeID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true
		return tx.Create(r.rooms().Doc(room.ID), room)
	})
	if err != nil {
		return nil, false, errors.Internal("Failed to open chat room", err)
	}

	return room, created, nil
}

func (r *firestoreChatRoomRepository) UpdateMetadata(ctx context.Context, id string, patch entity.RoomMetadataPatch) error {
	updates := []firestore.Update{
		{Path: "updatedAt", Value: time.Now()},
	}
	if patch.LastMessage != nil {
		updates = append(updates, firestore.Update{Path: "lastMessage", Value: *patch.LastMessage})
	}
	if patch.LastMessageAt != nil {
		updates = append(updates, firestore.Update{Path: "lastMessageAt", Value: *patch.LastMessageAt})
	}
	if patch.IncrementUnread.Valid() {
		updates = append(updates, firestore.Update{Path: unreadField(patch.IncrementUnread), Value: firestore.Increment(1)})
	}
	if patch.ResetUnread.Valid() {
		updates = append(updates, firestore.Update{Path: unreadField(patch.ResetUnread), Value: 0})
	}

	ref := r.rooms().Doc(id)
	var err error
	if r.tx != nil {
		err = r.tx.Update(ref, updates)
	} else {
		_, err = ref.Update(ctx, updates)
	}
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Chat room", err)
		}
		return errors.Internal("Failed to update chat room", err)
	}
	return nil
}

func (r *firestoreChatRoomRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.ChatRoom, error) {
	return r.list(ctx, r.rooms().Where("userId", "==", userID), limit, offset)
}

func (r *firestoreChatRoomRepository) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]*entity.ChatRoom, error) {
	return r.list(ctx, r.rooms().Where("storeId", "==", storeID), limit, offset)
}

func (r *firestoreChatRoomRepository) list(ctx context.Context, query firestore.Query, limit, offset int) ([]*entity.ChatRoom, error) {
	query = query.OrderBy("updatedAt", firestore.Desc)
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	rooms := []*entity.ChatRoom{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while listing chat rooms: %v", err)
			return nil, errors.Internal("Failed to list chat rooms", err)
		}

		var room entity.ChatRoom
		if err := doc.DataTo(&room); err != nil {
			logger.Warn("Skipping malformed chat room %s: %v", doc.Ref.ID, err)
			continue
		}
		room.ID = doc.Ref.ID
		rooms = append(rooms, &room)
	}
	return rooms, nil
}

func unreadField(side entity.SenderType) string {
	if side == entity.SenderStore {
		return "storeUnread"
	}
	return "userUnread"
}

// firestoreMessageRepository stores messages in chatRooms/{roomId}/messages.
type firestoreMessageRepository struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messages(roomID string) *firestore.CollectionRef {
	return r.client.Collection(chatRoomsCollection).Doc(roomID).Collection(messagesCollection)
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now().UTC()

	ref := r.messages(message.RoomID).Doc(message.ID)
	var err error
	if r.tx != nil {
		err = r.tx.Create(ref, message)
	} else {
		_, err = ref.Create(ctx, message)
	}
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	result, err := r.messages(roomID).NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, errors.Internal("Failed to count messages", err)
	}

	value, ok := result["total"].(*firestorepb.Value)
	if !ok {
		return 0, errors.Internal("Unexpected count result", nil)
	}
	return value.GetIntegerValue(), nil
}

func (r *firestoreMessageRepository) ordered(roomID string) firestore.Query {
	return r.messages(roomID).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)
}

func (r *firestoreMessageRepository) ListPage(ctx context.Context, roomID string, limit, offset int) ([]*entity.Message, error) {
	query := r.ordered(roomID).Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}
	return r.collect(ctx, roomID, query)
}

func (r *firestoreMessageRepository) ListByCursor(ctx context.Context, roomID string, limit int, cursor string) ([]*entity.Message, error) {
	query := r.ordered(roomID).Limit(limit)

	if cursor != "" {
		snap, err := r.messages(roomID).Doc(cursor).Get(ctx)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil, errors.InvalidArgument("Unknown cursor")
			}
			return nil, errors.Internal("Failed to resolve cursor", err)
		}
		query = query.StartAfter(snap)
	}

	return r.collect(ctx, roomID, query)
}

func (r *firestoreMessageRepository) collect(ctx context.Context, roomID string, query firestore.Query) ([]*entity.Message, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	messages := []*entity.Message{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages for room %s: %v", roomID, err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Error("Error parsing message data for room %s: %v", roomID, err)
			return nil, errors.Internal("Failed to parse message data", err)
		}
		message.ID = doc.Ref.ID
		messages = append(messages, &message)
	}
	return messages, nil
}

// pipelineTxOptions turn off RunTransaction's automatic retries: a failed
// send is reported to the caller, never replayed.
var pipelineTxOptions = []firestore.TransactionOption{firestore.MaxAttempts(1)}

// firestoreTransactor runs the message pipeline in a Firestore transaction.
// Both writes are blind writes, so the transaction never reads after writing.
type firestoreTransactor struct {
	client *firestore.Client
}

func NewFirestoreTransactor(client *firestore.Client) repository.Transactor {
	return &firestoreTransactor{client: client}
}

func (t *firestoreTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, rooms repository.ChatRoomRepository, messages repository.MessageRepository) error) error {
	return t.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx,
			&firestoreChatRoomRepository{client: t.client, tx: tx},
			&firestoreMessageRepository{client: t.client, tx: tx},
		)
	}, pipelineTxOptions...)
}
