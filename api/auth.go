package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/GetStream/teamchat/chat"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// An Authenticator extracts the caller's identity from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (chat.AuthIdentity, error)
}

// userMetadata mirrors the metadata block issued by the auth provider.
type userMetadata struct {
	FullName  string `json:"full_name,omitempty"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Claims are the JWT claims carried by bearer tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email        string       `json:"email,omitempty"`
	UserMetadata userMetadata `json:"user_metadata"`
}

// JWTAuth authenticates HS256 bearer tokens.
type JWTAuth struct {
	Secret []byte
}

// Authenticate implements Authenticator.
func (a JWTAuth) Authenticate(r *http.Request) (chat.AuthIdentity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return chat.AuthIdentity{}, ErrMissingToken
	}

	var c Claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return chat.AuthIdentity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return chat.AuthIdentity{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	name := c.UserMetadata.FullName
	if name == "" {
		name = c.UserMetadata.Name
	}
	return chat.AuthIdentity{
		UserID:      c.Subject,
		Email:       c.Email,
		DisplayName: name,
		AvatarURL:   c.UserMetadata.AvatarURL,
	}, nil
}

// Issue signs a token for id that expires after ttl.
func (a JWTAuth) Issue(id chat.AuthIdentity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: id.Email,
		UserMetadata: userMetadata{
			FullName:  id.DisplayName,
			AvatarURL: id.AvatarURL,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.Secret)
}
