package models

import (
	"time"

	"github.com/google/uuid"
)

// Capability is the partially ordered access level granted to a node session.
type Capability string

const (
	CapabilityReadOnly  Capability = "read_only"
	CapabilityReadWrite Capability = "read_write"
	CapabilityAdmin     Capability = "admin"
)

func (c Capability) rank() int {
	switch c {
	case CapabilityReadOnly:
		return 1
	case CapabilityReadWrite:
		return 2
	case CapabilityAdmin:
		return 3
	default:
		return 0
	}
}

// Covers reports whether c grants at least the required level
// (Admin ⊇ ReadWrite ⊇ ReadOnly). Unknown capabilities cover nothing.
func (c Capability) Covers(required Capability) bool {
	return c.rank() != 0 && c.rank() >= required.rank()
}

// Node is a row of the local registry of known remote nodes. Trust is
// established out of band: the Ed25519 public key and the capability granted
// to that node are configured before any sync, never taken from a request.
type Node struct {
	ID         uuid.UUID
	Name       string
	Address    string
	PublicKey  []byte
	Capability Capability
	Authorized bool
	CreatedAt  time.Time
}
