// Package models defines the syncable business entities, the sync audit
// models, and the generic shape shared by everything the sync pipeline moves
// between nodes.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names one syncable entity kind on the wire and in the database.
type Kind string

const (
	KindCatalog   Kind = "catalogs"
	KindVolunteer Kind = "volunteers"
	KindProject   Kind = "projects"
	KindSession   Kind = "sessions"
	KindRecording Kind = "recordings"
)

// KindOrder is the fixed dependency order used for both fetching and
// importing: referenced kinds always precede referencing kinds, so foreign
// keys resolve. Adding a kind means inserting it here at the right spot and
// extending DecodeRecords.
var KindOrder = []Kind{
	KindCatalog,
	KindVolunteer,
	KindProject,
	KindSession,
	KindRecording,
}

// ParseKind validates a wire-supplied kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range KindOrder {
		if s == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Syncable is the capability set every synced entity exposes: a stable
// identity, an update timestamp for newer-wins resolution, and a rewritable
// originating-node field.
type Syncable interface {
	EntityID() uuid.UUID
	EntityKind() Kind
	Touched() time.Time
	SetOrigin(nodeID uuid.UUID)
}
