package entity

import "time"

// ChatRoom is the conversation between one buyer and one store. At most one
// room exists per (UserID, StoreID) pair.
type ChatRoom struct {
	ID            string     `json:"id" firestore:"id"`
	UserID        string     `json:"userId" firestore:"userId"`
	StoreID       string     `json:"storeId" firestore:"storeId"`
	LastMessage   string     `json:"lastMessage" firestore:"lastMessage"`
	LastMessageAt *time.Time `json:"lastMessageAt" firestore:"lastMessageAt"`
	UserUnread    int        `json:"userUnread" firestore:"userUnread"`
	StoreUnread   int        `json:"storeUnread" firestore:"storeUnread"`
	CreatedAt     time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// UnreadFor returns the unread counter owned by side.
func (r *ChatRoom) UnreadFor(side SenderType) int {
	if side == SenderStore {
		return r.StoreUnread
	}
	return r.UserUnread
}

// RoomMetadataPatch describes a change to the denormalized room summary.
// Nil fields and empty sides are left untouched.
type RoomMetadataPatch struct {
	LastMessage     *string
	LastMessageAt   *time.Time
	IncrementUnread SenderType
	ResetUnread     SenderType
}
