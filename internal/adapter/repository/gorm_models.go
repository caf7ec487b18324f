package repository

import (
	"time"

	"cakemarket/internal/domain/entity"
)

type chatRoomModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	UserID        string `gorm:"size:128;not null;uniqueIndex:idx_chat_room_participants"`
	StoreID       string `gorm:"size:128;not null;uniqueIndex:idx_chat_room_participants;index"`
	LastMessage   string `gorm:"type:text"`
	LastMessageAt *time.Time
	UserUnread    int `gorm:"not null;default:0"`
	StoreUnread   int `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time `gorm:"index"`
}

func (chatRoomModel) TableName() string { return "chat_rooms" }

func (m *chatRoomModel) toEntity() *entity.ChatRoom {
	return &entity.ChatRoom{
		ID:            m.ID,
		UserID:        m.UserID,
		StoreID:       m.StoreID,
		LastMessage:   m.LastMessage,
		LastMessageAt: m.LastMessageAt,
		UserUnread:    m.UserUnread,
		StoreUnread:   m.StoreUnread,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type messageModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	RoomID     string    `gorm:"size:36;not null;index:idx_chat_messages_room_created,priority:1"`
	CreatedAt  time.Time `gorm:"not null;index:idx_chat_messages_room_created,priority:2"`
	Text       string    `gorm:"type:text;not null"`
	SenderID   string    `gorm:"size:128;not null"`
	SenderType string    `gorm:"size:8;not null"`
}

func (messageModel) TableName() string { return "chat_messages" }

func (m *messageModel) toEntity() *entity.Message {
	return &entity.Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		Text:       m.Text,
		SenderID:   m.SenderID,
		SenderType: entity.SenderType(m.SenderType),
		CreatedAt:  m.CreatedAt,
	}
}

type userModel struct {
	ID        string `gorm:"primaryKey;size:128"`
	Email     string `gorm:"size:255;index"`
	Username  string `gorm:"size:100"`
	Role      string `gorm:"size:20;not null;default:user"`
	Status    string `gorm:"size:20"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userModel) TableName() string { return "users" }

type storeModel struct {
	ID        string `gorm:"primaryKey;size:128"`
	OwnerID   string `gorm:"size:128;not null;index"`
	Name      string `gorm:"size:255"`
	CreatedAt time.Time
}

func (storeModel) TableName() string { return "stores" }

// GormModels lists every table the SQL backend needs.
func GormModels() []interface{} {
	return []interface{}{&chatRoomModel{}, &messageModel{}, &userModel{}, &storeModel{}}
}
