// Package nodeauth implements the three-step node authentication exchange
// run over an established channel: identify, challenge, authenticate.
// Identity proofs are Ed25519 signatures over a single-use nonce bound to
// the claimed node id.
package nodeauth

import (
	"crypto/ed25519"

	"github.com/google/uuid"
)

// ChallengeNonceSize is the size of the random challenge nonce in bytes.
const ChallengeNonceSize = 32

// Identity is this node's own cryptographic identity, loaded from
// configuration at startup.
type Identity struct {
	NodeID     uuid.UUID
	Name       string
	PrivateKey ed25519.PrivateKey
}

// PublicKey returns the verifying half of the identity key.
func (i *Identity) PublicKey() ed25519.PublicKey {
	return i.PrivateKey.Public().(ed25519.PublicKey)
}

// Sign produces the authentication proof for a received challenge.
func (i *Identity) Sign(nonce []byte) []byte {
	return ed25519.Sign(i.PrivateKey, challengeMessage(nonce, i.NodeID))
}

// Verify checks a proof against the claimed node's published key.
func Verify(publicKey ed25519.PublicKey, nodeID uuid.UUID, nonce, signature []byte) bool {
	return ed25519.Verify(publicKey, challengeMessage(nonce, nodeID), signature)
}

// challengeMessage binds the nonce to the claimed identity, so a signature
// minted for one node id cannot be replayed under another.
func challengeMessage(nonce []byte, nodeID uuid.UUID) []byte {
	msg := make([]byte, 0, len(nonce)+len(nodeID))
	msg = append(msg, nonce...)
	msg = append(msg, nodeID[:]...)
	return msg
}
