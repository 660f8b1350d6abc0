// Package domain contains core concepts of the chat system.
// No runtime, network, or storage logic should be added here.
package domain

// User is the resolved public identity of an account, as shown to
// other participants. Credentials never appear here.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Avatar string `json:"avatar,omitempty"`
}
