package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	Login       string
	DisplayName string
	Role        string
	LocationID  *uuid.UUID
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to till clients.
type AccessTokenClaims struct {
	UserID      uuid.UUID  `json:"user_id"`
	Login       string     `json:"login"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	LocationID  *uuid.UUID `json:"location_id,omitempty"`
	jwt.RegisteredClaims
}
