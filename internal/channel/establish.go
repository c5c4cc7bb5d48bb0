package channel

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/cryptox"
)

// Establisher answers openChannel requests: it generates an ephemeral
// X25519 key pair per request, derives the symmetric channel key against the
// caller's public key, registers the channel, and hands back its own public
// key so the caller can derive the same secret.
type Establisher struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewEstablisher(store Store, ttl time.Duration) *Establisher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Establisher{store: store, ttl: ttl, now: time.Now}
}

// Open performs the server half of the key agreement. The ephemeral private
// key goes out of scope when this returns; only the derived key survives,
// inside the registry.
func (e *Establisher) Open(clientPublicKey []byte) (*Channel, []byte, error) {
	priv, err := cryptox.GenerateKeyExchange()
	if err != nil {
		return nil, nil, err
	}

	key, err := cryptox.DeriveChannelKey(priv, clientPublicKey)
	if err != nil {
		return nil, nil, err
	}

	now := e.now()
	c := &Channel{
		ID:        uuid.New(),
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(e.ttl),
	}
	e.store.Put(c)

	return c, priv.PublicKey().Bytes(), nil
}
