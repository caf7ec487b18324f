package entity

import "time"

const MaxMessageLength = 1000

type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderStore SenderType = "store"

	// SenderAny asks for the side to be taken from the caller's place in the
	// room rather than from the request.
	SenderAny SenderType = ""
)

func (s SenderType) Valid() bool {
	return s == SenderUser || s == SenderStore
}

// Counterpart is the side receiving what s sends.
func (s SenderType) Counterpart() SenderType {
	if s == SenderUser {
		return SenderStore
	}
	return SenderUser
}

// Message is immutable once persisted. Messages are ordered by
// (CreatedAt desc, ID desc); CreatedAt alone is not unique.
type Message struct {
	ID         string     `json:"id" firestore:"id"`
	RoomID     string     `json:"roomId" firestore:"roomId"`
	Text       string     `json:"text" firestore:"text"`
	SenderID   string     `json:"senderId" firestore:"senderId"`
	SenderType SenderType `json:"senderType" firestore:"senderType"`
	CreatedAt  time.Time  `json:"createdAt" firestore:"createdAt"`
}
