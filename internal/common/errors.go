// Package common defines shared constants and sentinel errors used across
// the sync node. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Channel / session lifecycle errors.
	ErrChannelExpired = errors.New("channel expired")
	ErrUnknownChannel = errors.New("unknown channel")
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidToken   = errors.New("invalid token")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrRateLimited    = errors.New("rate limit exceeded")

	// Challenge lifecycle errors. A redeemed nonce reports ErrChallengeUsed,
	// never ErrChallengeExpired, regardless of how old it is.
	ErrChallengeUsed    = errors.New("challenge already used")
	ErrChallengeExpired = errors.New("challenge expired")
	ErrNoChallenge      = errors.New("no challenge issued")

	// Node registry errors.
	ErrNodeNotAuthorized = errors.New("node not authorized for exchange")

	// Pull pipeline errors.
	ErrSyncInProgress = errors.New("sync already in progress for this node")
	ErrUnknownKind    = errors.New("unknown entity kind")
)
