package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/models"
)

// Claims carries the node identity, owning channel and granted capability
// inside the signed token. The server-side session registry remains the
// authority for rate counters and channel liveness; the token alone is not
// enough to pass the gate.
type Claims struct {
	jwt.RegisteredClaims
	NodeID     string `json:"node_id"`
	ChannelID  string `json:"channel_id"`
	Capability string `json:"capability"`
}

// MintToken signs a session token for the given node over the given channel.
func MintToken(nodeID, channelID uuid.UUID, capability models.Capability, secretKey []byte, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
		NodeID:     nodeID.String(),
		ChannelID:  channelID.String(),
		Capability: string(capability),
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies the signature and expiry and returns the claims.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
