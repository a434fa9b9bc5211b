package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionCredential is the claim set the browser session layer expects in its
// session cookie. Field names are a fixed wire format.
type SessionCredential struct {
	Sub       string           `json:"sub"`
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Username  string           `json:"username"`
	Role      Role             `json:"role"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

func (c SessionCredential) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c SessionCredential) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c SessionCredential) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c SessionCredential) GetIssuer() (string, error)                   { return "", nil }
func (c SessionCredential) GetSubject() (string, error)                  { return c.Sub, nil }
func (c SessionCredential) GetAudience() (jwt.ClaimStrings, error)       { return nil, nil }
