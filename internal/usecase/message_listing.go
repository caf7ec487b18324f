package usecase

import (
	"context"

	"cakemarket/internal/domain/entity"
	"cakemarket/pkg/utils"
)

type ListMode string

const (
	// ListModeCursor is keyset pagination on (createdAt, id). Preferred.
	ListModeCursor ListMode = "cursor"
	// ListModePage is offset pagination.
	//
	// Deprecated: offsets shift while new messages arrive; use ListModeCursor.
	ListModePage ListMode = "page"
)

type ListMessagesInput struct {
	RoomID   string
	CallerID string
	Side     entity.SenderType
	Mode     ListMode
	Limit    int
	Page     int
	Cursor   string
}

type PageMeta struct {
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// MessageList holds one page of messages ordered oldest to newest.
type MessageList struct {
	Messages    []*entity.Message `json:"messages"`
	NextCursor  *string           `json:"nextCursor,omitempty"`
	HasNextPage bool              `json:"hasNextPage"`
	Pagination  *PageMeta         `json:"pagination,omitempty"`
}

// ListMessages returns a page of a room's history after the same access
// check as SendMessage.
func (uc *ChatUseCase) ListMessages(ctx context.Context, input ListMessagesInput) (*MessageList, error) {
	room, err := uc.GetRoom(ctx, input.RoomID, input.CallerID, input.Side)
	if err != nil {
		return nil, err
	}

	limit := utils.ClampLimit(input.Limit)
	if input.Mode == ListModePage {
		return uc.listPage(ctx, room.ID, utils.NormalizePage(input.Page), limit)
	}
	return uc.listByCursor(ctx, room.ID, input.Cursor, limit)
}

func (uc *ChatUseCase) listPage(ctx context.Context, roomID string, page, limit int) (*MessageList, error) {
	total, err := uc.messageRepo.CountByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	messages := []*entity.Message{}
	if page <= totalPages {
		messages, err = uc.messageRepo.ListPage(ctx, roomID, limit, (page-1)*limit)
		if err != nil {
			return nil, err
		}
		if messages == nil {
			messages = []*entity.Message{}
		}
		reverse(messages)
	}

	return &MessageList{
		Messages:    messages,
		HasNextPage: page < totalPages,
		Pagination: &PageMeta{
			CurrentPage: page,
			Limit:       limit,
			TotalItems:  total,
			TotalPages:  totalPages,
			HasNext:     page < totalPages,
			HasPrev:     page > 1,
		},
	}, nil
}

func (uc *ChatUseCase) listByCursor(ctx context.Context, roomID, cursor string, limit int) (*MessageList, error) {
	messages, err := uc.messageRepo.ListByCursor(ctx, roomID, limit+1, cursor)
	if err != nil {
		return nil, err
	}

	if messages == nil {
		messages = []*entity.Message{}
	}

	hasNext := len(messages) > limit
	if hasNext {
		messages = messages[:limit]
	}
	reverse(messages)

	list := &MessageList{
		Messages:    messages,
		HasNextPage: hasNext,
	}
	if hasNext && len(messages) > 0 {
		oldest := messages[0].ID
		list.NextCursor = &oldest
	}
	return list, nil
}

func reverse(messages []*entity.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
