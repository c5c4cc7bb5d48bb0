package remote

import (
	"context"
	"fmt"

	"github.com/clinmesh/clinsync/internal/nodeauth"
	"github.com/clinmesh/clinsync/internal/syncerr"
	"github.com/clinmesh/clinsync/internal/wire"
)

// Invoker is the sealed request/response surface Handshake needs. *Conn
// implements it; tests substitute in-memory transports.
type Invoker interface {
	Invoke(ctx context.Context, path, token string, reqBody, respBody any) error
}

// Handshake runs the calling side of the authentication exchange over an
// established channel: identify, challenge, authenticate. The three steps
// are strictly sequential; each consumes the previous output. On success it
// returns the session token for subsequent calls.
func Handshake(ctx context.Context, conn Invoker, identity *nodeauth.Identity) (string, error) {
	var identResp wire.IdentifyResponse
	err := conn.Invoke(ctx, wire.PathIdentify, "", &wire.IdentifyRequest{
		NodeID:    identity.NodeID,
		NodeName:  identity.Name,
		PublicKey: identity.PublicKey(),
	}, &identResp)
	if err != nil {
		return "", fmt.Errorf("identify: %w", err)
	}

	var chalResp wire.ChallengeResponse
	err = conn.Invoke(ctx, wire.PathChallenge, "", &wire.ChallengeRequest{
		NodeID: identity.NodeID,
	}, &chalResp)
	if err != nil {
		return "", fmt.Errorf("challenge: %w", err)
	}
	if len(chalResp.Nonce) != nodeauth.ChallengeNonceSize {
		return "", &syncerr.AuthenticationError{
			Reason: fmt.Sprintf("remote nonce has %d bytes", len(chalResp.Nonce))}
	}

	var authResp wire.AuthenticateResponse
	err = conn.Invoke(ctx, wire.PathAuthenticate, "", &wire.AuthenticateRequest{
		NodeID:    identity.NodeID,
		Signature: identity.Sign(chalResp.Nonce),
	}, &authResp)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	if authResp.Token == "" {
		return "", &syncerr.AuthenticationError{Reason: "remote returned empty token"}
	}

	return authResp.Token, nil
}
