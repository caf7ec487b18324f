package entity

import (
	"time"
)

const (
	RoleUser   = "user"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

type User struct {
	ID        string    `json:"id" firestore:"id"`
	Email     string    `json:"email" firestore:"email"`
	Username  string    `json:"username" firestore:"username"`
	Role      string    `json:"role" firestore:"role"`
	Status    string    `json:"status" firestore:"status"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// SideForRole maps an account role to the chat side it speaks for.
// Sellers talk on behalf of their stores; everyone else is a buyer.
func SideForRole(role string) SenderType {
	if role == RoleSeller {
		return SenderStore
	}
	return SenderUser
}
