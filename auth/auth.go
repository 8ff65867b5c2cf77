// Package auth issues and verifies the signed claims binding a caller to a
// (room, player) pair. Tokens are opaque to the rest of the server; only the
// verified pair crosses this boundary.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/satori/go.uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claim is the verified identity carried by a token.
type Claim struct {
	Player int
	Room   uuid.UUID
}

type tokenClaims struct {
	RoomID string `json:"room_id"`
	jwt.RegisteredClaims
}

// Signer signs and verifies player tokens with an HMAC key.
type Signer struct {
	key []byte
	ttl time.Duration
}

// NewSigner constructs a signer. Tokens expire after ttl; a non-positive ttl
// disables expiry.
func NewSigner(key []byte, ttl time.Duration) *Signer {
	return &Signer{key: key, ttl: ttl}
}

// Issue creates a signed token binding the player index to the room.
func (s *Signer) Issue(player int, roomID uuid.UUID) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RoomID: roomID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.Itoa(player),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}

// Verify checks the token's signature and returns the claim it carries.
// Any failure is reported as ErrInvalidToken.
func (s *Signer) Verify(token string) (Claim, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.key, nil
	})
	if err != nil || !parsed.Valid {
		return Claim{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok {
		return Claim{}, ErrInvalidToken
	}
	player, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return Claim{}, ErrInvalidToken
	}
	roomID, err := uuid.FromString(claims.RoomID)
	if err != nil {
		return Claim{}, ErrInvalidToken
	}
	return Claim{Player: player, Room: roomID}, nil
}
