package domain

import "time"

// Message represents an immutable chat event within a room.
// IDs are assigned by the durable store at append time and impose a total
// order per room: lexicographic comparison of two ids matches their
// creation order.
type Message struct {
	ID        string    `json:"id"`
	Sender    User      `json:"sender"`
	Content   string    `json:"text"`
	CreatedAt time.Time `json:"created"`
}
