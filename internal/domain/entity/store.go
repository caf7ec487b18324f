package entity

import "time"

// Store is the seller-side participant of a chat room.
type Store struct {
	ID        string    `json:"id" firestore:"id"`
	OwnerID   string    `json:"ownerId" firestore:"ownerId"`
	Name      string    `json:"name" firestore:"name"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}
