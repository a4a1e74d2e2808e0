package models

import "time"

// Account is the public view of a registered user.
type Account struct {
	// ID is never reused, so it tells apart accounts that share a username over time.
	ID               int64     `json:"-"`
	Username         string    `json:"username"`
	HasFaceEmbedding bool      `json:"has_face_embedding"`
	CreatedAt        time.Time `json:"created_at"`
}

// Token is a signed session token handed to a client after login.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
