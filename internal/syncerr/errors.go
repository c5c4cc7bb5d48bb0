// Package syncerr defines the typed error taxonomy of the sync pipeline.
// Each type marks a distinct failure layer so callers can tell "couldn't
// reach the node" from "credentials rejected" from "import failed, nothing
// changed". All types support errors.As and unwrap their cause.
package syncerr

import "fmt"

// Stage identifies the pipeline stage a pull attempt failed in. It is
// recorded on the failed SyncLog row and returned to the caller.
type Stage string

const (
	StageHandshake Stage = "handshake"
	StageManifest  Stage = "manifest"
	StageFetch     Stage = "fetch"
	StageImport    Stage = "import"
)

// ChannelError covers the network and handshake layer, before any
// attributable node data has been exchanged.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// AuthenticationError means the remote rejected our identity, challenge or
// signature (or we rejected theirs).
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// AuthorizationError means a valid session lacked the required capability
// or exhausted its rate budget.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return "authorization failed: " + e.Reason
}

// RemoteFetchError is a post-authentication remote call failure.
type RemoteFetchError struct {
	Path   string
	Status int
	Err    error
}

func (e *RemoteFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("remote fetch %s: status %d: %v", e.Path, e.Status, e.Err)
	}
	return fmt.Sprintf("remote fetch %s: %v", e.Path, e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// ImportError is a local conflict or transaction failure during import.
// The transaction is always rolled back in full before it surfaces.
type ImportError struct {
	Kind string
	Err  error
}

func (e *ImportError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("import %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("import: %v", e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown node, unknown kind or missing bytes.
type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.What, e.ID)
}
