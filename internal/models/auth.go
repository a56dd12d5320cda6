package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenRequest exchanges the local API key for a bearer token.
type TokenRequest struct {
	APIKey string `json:"apiKey" validate:"required,min=8"`
}

// TokenResponse returns an issued bearer token.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   int64     `json:"expiresIn"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// AgentClaims is the JWT payload of local API tokens.
type AgentClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}
