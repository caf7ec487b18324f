package handler

import (
	"github.com/labstack/echo/v4"

	"cakemarket/internal/adapter/api/middleware"
	"cakemarket/internal/domain/entity"
	"cakemarket/internal/usecase"
	"cakemarket/pkg/errors"
	"cakemarket/pkg/response"
	"cakemarket/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type openRoomRequest struct {
	StoreID string `json:"storeId" validate:"required"`
}

type sendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// caller returns the authenticated account and the side its role lists rooms
// for. Operations on a single room resolve the side from the room instead.
func caller(c echo.Context) (string, entity.SenderType, error) {
	userID, _ := c.Get(middleware.ContextUserID).(string)
	if userID == "" {
		return "", "", errors.Unauthorized("Authentication required", nil)
	}
	role, _ := c.Get(middleware.ContextRole).(string)
	return userID, entity.SideForRole(role), nil
}

// OpenRoom creates or returns the caller's room with a store.
func (h *ChatHandler) OpenRoom(c echo.Context) error {
	var req openRoomRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID, _, err := caller(c)
	if err != nil {
		return response.Error(c, err)
	}

	room, err := h.chatUseCase.OpenRoom(c.Request().Context(), userID, req.StoreID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, room)
}

// ListRooms lists the caller's rooms, optionally narrowed to ?storeId= for
// store owners.
func (h *ChatHandler) ListRooms(c echo.Context) error {
	userID, side, err := caller(c)
	if err != nil {
		return response.Error(c, err)
	}

	params := utils.GetPaginationParams(c)
	rooms, err := h.chatUseCase.ListRooms(c.Request().Context(), userID, side, c.QueryParam("storeId"), params.Limit, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, rooms)
}

func (h *ChatHandler) GetRoom(c echo.Context) error {
	userID, _, err := caller(c)
	if err != nil {
		return response.Error(c, err)
	}

	room, err := h.chatUseCase.GetRoom(c.Request().Context(), c.Param("id"), userID, entity.SenderAny)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}

// ListMessages pages through a room's history. ?cursor= selects keyset
// pagination; ?page= selects the deprecated offset mode.
func (h *ChatHandler) ListMessages(c echo.Context) error {
	userID, _, err := caller(c)
	if err != nil {
		return response.Error(c, err)
	}

	params := utils.GetPaginationParams(c)
	input := usecase.ListMessagesInput{
		RoomID:   c.Param("id"),
		CallerID: userID,
		Side:     entity.SenderAny,
		Mode:     usecase.ListModeCursor,
		Limit:    params.Limit,
		Cursor:   params.Cursor,
	}
	if params.PageMode && params.Cursor == "" {
		input.Mode = usecase.ListModePage
		input.Page = params.Page
		c.Response().Header().Set("Deprecation", "true")
	}

	list, err := h.chatUseCase.ListMessages(c.Request().Context(), input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, list)
}

// SendMessage runs the same pipeline as the send-message socket event.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID, _, err := caller(c)
	if err != nil {
		return response.Error(c, err)
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), usecase.SendMessageInput{
		RoomID:     c.Param("id"),
		Text:       req.Text,
		SenderID:   userID,
		SenderType: entity.SenderAny,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *ChatHandler) MarkAsRead(c echo.Context) error {
	userID, _, err := caller(c)
	if err != nil {
		return response.Error(c, err)
	}

	room, err := h.chatUseCase.MarkAsRead(c.Request().Context(), c.Param("id"), userID, entity.SenderAny)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, room)
}
