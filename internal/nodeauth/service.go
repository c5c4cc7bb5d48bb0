package nodeauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/channel"
	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/cryptox"
	"github.com/clinmesh/clinsync/internal/logging"
	"github.com/clinmesh/clinsync/internal/models"
	"github.com/clinmesh/clinsync/internal/session"
	"github.com/clinmesh/clinsync/internal/syncerr"
	"github.com/clinmesh/clinsync/internal/wire"
)

// NodeDirectory is the read side of the trust registry consumed during
// authentication.
type NodeDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Node, error)
}

// Service runs the remote half of the authentication exchange. All three
// steps ride an established channel; nothing here touches the network.
type Service struct {
	identity   *Identity
	nodes      NodeDirectory
	challenges *ChallengeStore
	gate       *session.Gate
	logger     logging.Logger
}

func NewService(identity *Identity, nodes NodeDirectory, challenges *ChallengeStore, gate *session.Gate, logger logging.Logger) *Service {
	return &Service{
		identity:   identity,
		nodes:      nodes,
		challenges: challenges,
		gate:       gate,
		logger:     logger.With("module", "nodeauth"),
	}
}

// Identify validates the presented identity against the local registry and
// pins it to the channel. The presented public key must match the registered
// one byte for byte; a mismatch is treated as an impersonation attempt, not
// a key rotation.
func (s *Service) Identify(ctx context.Context, ch *channel.Channel, req *wire.IdentifyRequest) (*wire.IdentifyResponse, error) {
	node, err := s.nodes.GetByID(ctx, req.NodeID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, &syncerr.AuthenticationError{Reason: "unknown node"}
		}
		return nil, err
	}
	if !node.Authorized {
		return nil, &syncerr.AuthenticationError{Reason: "node not authorized for exchange"}
	}
	if subtle.ConstantTimeCompare(node.PublicKey, req.PublicKey) != 1 {
		s.logger.Warn(ctx, "identify with mismatched public key", "node_id", req.NodeID)
		return nil, &syncerr.AuthenticationError{Reason: "public key mismatch"}
	}

	ch.SetIdentified(node.ID)
	s.logger.Info(ctx, "node identified", "node_id", node.ID, "node_name", node.Name)

	return &wire.IdentifyResponse{NodeID: s.identity.NodeID, NodeName: s.identity.Name}, nil
}

// Challenge issues a single-use nonce bound to the identified node.
func (s *Service) Challenge(ctx context.Context, ch *channel.Channel, req *wire.ChallengeRequest) (*wire.ChallengeResponse, error) {
	if id := ch.IdentifiedNode(); id == uuid.Nil || id != req.NodeID {
		return nil, &syncerr.AuthenticationError{Reason: "channel has no matching identity"}
	}

	nonce := cryptox.RandBytes(ChallengeNonceSize)
	expires := s.challenges.Issue(ch.ID, req.NodeID, nonce)

	return &wire.ChallengeResponse{Nonce: nonce, ExpiresAt: expires}, nil
}

// Authenticate redeems the channel's challenge, verifies the signature
// against the registered public key, and mints a session whose capability
// comes from the trust registry row — never from the request.
func (s *Service) Authenticate(ctx context.Context, ch *channel.Channel, req *wire.AuthenticateRequest) (*wire.AuthenticateResponse, error) {
	nonce, err := s.challenges.Redeem(ch.ID, req.NodeID)
	if err != nil {
		return nil, &syncerr.AuthenticationError{Reason: "challenge rejected", Err: err}
	}

	node, err := s.nodes.GetByID(ctx, req.NodeID)
	if err != nil {
		return nil, fmt.Errorf("node lookup: %w", err)
	}

	if !Verify(node.PublicKey, req.NodeID, nonce, req.Signature) {
		s.logger.Warn(ctx, "signature verification failed", "node_id", req.NodeID)
		return nil, &syncerr.AuthenticationError{Reason: "signature rejected"}
	}

	sess, err := s.gate.Issue(node.ID, ch.ID, node.Capability)
	if err != nil {
		return nil, fmt.Errorf("issuing session: %w", err)
	}

	s.logger.Info(ctx, "session issued", "node_id", node.ID, "capability", node.Capability)

	return &wire.AuthenticateResponse{
		Token:      sess.Token,
		Capability: sess.Capability,
		ExpiresAt:  sess.ExpiresAt,
	}, nil
}
