package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"cakemarket/internal/domain/entity"
	"cakemarket/internal/domain/repository"
	"cakemarket/internal/infrastructure/metrics"
	"cakemarket/pkg/errors"
	"cakemarket/pkg/logger"
)

var tracer = otel.Tracer("cakemarket/usecase")

type SendMessageInput struct {
	RoomID     string
	Text       string
	SenderID   string
	SenderType entity.SenderType
}

// SendMessage persists one message and the room summary update in a single
// transaction, then publishes the stored message to the room. It runs at most
// once per call: a failed transaction is reported, never retried, and nothing
// is broadcast.
func (uc *ChatUseCase) SendMessage(ctx context.Context, input SendMessageInput) (*entity.Message, error) {
	ctx, span := tracer.Start(ctx, "ChatUseCase.SendMessage")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.room_id", input.RoomID),
		attribute.String("chat.sender_type", string(input.SenderType)),
	)

	message, err := uc.sendMessage(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.CodeOf(err))
		return nil, err
	}
	return message, nil
}

func (uc *ChatUseCase) sendMessage(ctx context.Context, input SendMessageInput) (*entity.Message, error) {
	if input.SenderType != entity.SenderAny && !input.SenderType.Valid() {
		return nil, errors.InvalidArgument("senderType must be one of: user store")
	}

	room, err := uc.loadRoom(ctx, input.RoomID)
	if err != nil {
		return nil, err
	}

	side, err := uc.permissions.Authorize(ctx, room, input.SenderID, input.SenderType)
	if err != nil {
		logger.Warn("SendMessage: sender %s (%s) rejected on room %s: %v", input.SenderID, input.SenderType, room.ID, err)
		return nil, err
	}
	input.SenderType = side

	text, err := normalizeText(input.Text)
	if err != nil {
		return nil, err
	}

	if uc.rateLimiter != nil && !uc.rateLimiter.Allow(input.SenderID, "send_message") {
		return nil, errors.TooManyRequests("You are sending messages too quickly. Please slow down.")
	}

	preview := truncate(text, entity.MaxMessageLength)

	message := &entity.Message{
		RoomID:     room.ID,
		Text:       text,
		SenderID:   input.SenderID,
		SenderType: input.SenderType,
	}

	err = uc.tx.WithinTransaction(ctx, func(ctx context.Context, rooms repository.ChatRoomRepository, messages repository.MessageRepository) error {
		if err := messages.Create(ctx, message); err != nil {
			return err
		}

		createdAt := message.CreatedAt
		return rooms.UpdateMetadata(ctx, room.ID, entity.RoomMetadataPatch{
			LastMessage:     &preview,
			LastMessageAt:   &createdAt,
			IncrementUnread: input.SenderType.Counterpart(),
		})
	})
	if err != nil {
		logger.Error("SendMessage: transaction failed for room %s: %v", room.ID, err)
		if errors.CodeOf(err) == errors.CodeInternal {
			return nil, errors.Internal("Failed to send message", err)
		}
		return nil, err
	}

	metrics.MessagesSent.WithLabelValues(string(input.SenderType)).Inc()

	if err := uc.broadcaster.Publish(ctx, room.ID, message); err != nil {
		logger.Warn("SendMessage: message %s committed but broadcast to room %s failed: %v", message.ID, room.ID, err)
	}
	uc.notifyCounterpart(ctx, room, message)

	return message, nil
}

// notifyCounterpart tells the receiving side's account that the room summary
// changed so chat lists can refresh outside the room.
func (uc *ChatUseCase) notifyCounterpart(ctx context.Context, room *entity.ChatRoom, message *entity.Message) {
	if uc.notifier == nil {
		return
	}

	recipientID := room.UserID
	if message.SenderType == entity.SenderUser {
		store, err := uc.storeRepo.GetByID(ctx, room.StoreID)
		if err != nil {
			logger.Warn("SendMessage: cannot resolve owner of store %s for room notice: %v", room.StoreID, err)
			return
		}
		recipientID = store.OwnerID
	}

	uc.notify(recipientID, EventRoomUpdated, map[string]interface{}{
		"roomId":        room.ID,
		"lastMessage":   message.Text,
		"lastMessageAt": message.CreatedAt,
		"senderType":    message.SenderType,
	})
}

// normalizeText trims text and enforces 1..MaxMessageLength characters.
func normalizeText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", errors.InvalidArgument("Message text cannot be empty")
	}
	if utf8.RuneCountInString(text) > entity.MaxMessageLength {
		return "", errors.InvalidArgument("Message text cannot exceed 1000 characters")
	}
	return text, nil
}

func truncate(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max])
}
