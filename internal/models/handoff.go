package models

import (
	"time"
)

// HandoffState is the lifecycle position of a handoff code. It is implicit in
// whether the code key is still present in the code store.
type HandoffState string

const (
	HandoffStatePending  HandoffState = "pending"
	HandoffStateConsumed HandoffState = "consumed"
	HandoffStateExpired  HandoffState = "expired"
)

// HandoffCode is a single-use code bridging a mobile identity to a browser
// session. It is valid until it is redeemed or ExpiresAt passes.
type HandoffCode struct {
	Code           string    `json:"code"`
	UserID         string    `json:"userId"`
	RedirectTarget string    `json:"redirect"`
	IssuedAt       time.Time `json:"issuedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Payload returns the value stored under the code key.
func (c *HandoffCode) Payload() *HandoffPayload {
	return &HandoffPayload{
		UserID:         c.UserID,
		RedirectTarget: c.RedirectTarget,
		IssuedAt:       c.IssuedAt,
	}
}

// HandoffPayload is what a successful redemption yields.
type HandoffPayload struct {
	UserID         string    `json:"userId"`
	RedirectTarget string    `json:"redirect"`
	IssuedAt       time.Time `json:"issuedAt,omitempty"`
}
