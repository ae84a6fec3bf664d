package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload is the input for minting an operator access token.
type AccessTokenPayload struct {
	UserID         uuid.UUID
	OrganisationID uuid.UUID
	Role           string
	JTI            string
}

// AccessTokenClaims is the typed claim set carried by operator tokens.
type AccessTokenClaims struct {
	UserID         uuid.UUID `json:"user_id"`
	OrganisationID uuid.UUID `json:"organisation_id"`
	Role           string    `json:"role"`
	jwt.RegisteredClaims
}
