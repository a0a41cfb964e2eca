// Package domain contains core concepts of the collaboration hub.
// This file defines Session entities and presence invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Session is one live client connection (one browser tab) and its
// presence metadata. Sessions are ephemeral: created on connect,
// destroyed on disconnect, never persisted.
type Session struct {
	ID          string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	CurrentPage string    `json:"currentPage"`
	ConnectedAt time.Time `json:"connectedAt"`
}
