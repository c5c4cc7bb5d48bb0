package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Catalog is a reference-catalog item (modality codes, device types, consent
// form versions and the like). Other kinds reference catalogs by id.
type Catalog struct {
	ID           uuid.UUID `json:"id"`
	Category     string    `json:"category"`
	Code         string    `json:"code"`
	Label        string    `json:"label"`
	OriginNodeID uuid.UUID `json:"origin_node_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *Catalog) EntityID() uuid.UUID        { return c.ID }
func (c *Catalog) EntityKind() Kind           { return KindCatalog }
func (c *Catalog) Touched() time.Time         { return c.UpdatedAt }
func (c *Catalog) SetOrigin(nodeID uuid.UUID) { c.OriginNodeID = nodeID }

// Volunteer is a study participant. Only pseudonymized attributes travel
// between nodes; the screening code is the human-facing identifier.
type Volunteer struct {
	ID           uuid.UUID `json:"id"`
	Code         string    `json:"code"`
	BirthYear    int       `json:"birth_year"`
	Sex          string    `json:"sex"`
	Notes        string    `json:"notes"`
	OriginNodeID uuid.UUID `json:"origin_node_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (v *Volunteer) EntityID() uuid.UUID        { return v.ID }
func (v *Volunteer) EntityKind() Kind           { return KindVolunteer }
func (v *Volunteer) Touched() time.Time         { return v.UpdatedAt }
func (v *Volunteer) SetOrigin(nodeID uuid.UUID) { v.OriginNodeID = nodeID }

// Project is a research project grouping sessions.
type Project struct {
	ID           uuid.UUID `json:"id"`
	Code         string    `json:"code"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	OriginNodeID uuid.UUID `json:"origin_node_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *Project) EntityID() uuid.UUID        { return p.ID }
func (p *Project) EntityKind() Kind           { return KindProject }
func (p *Project) Touched() time.Time         { return p.UpdatedAt }
func (p *Project) SetOrigin(nodeID uuid.UUID) { p.OriginNodeID = nodeID }

// Session is one recording session of a volunteer within a project.
type Session struct {
	ID           uuid.UUID  `json:"id"`
	VolunteerID  uuid.UUID  `json:"volunteer_id"`
	ProjectID    uuid.UUID  `json:"project_id"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Notes        string     `json:"notes"`
	OriginNodeID uuid.UUID  `json:"origin_node_id"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (s *Session) EntityID() uuid.UUID        { return s.ID }
func (s *Session) EntityKind() Kind           { return KindSession }
func (s *Session) Touched() time.Time         { return s.UpdatedAt }
func (s *Session) SetOrigin(nodeID uuid.UUID) { s.OriginNodeID = nodeID }

// Recording is the metadata of one recorded artifact. The bytes themselves
// live in the blob store under StorageKey and are fetched separately.
type Recording struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	CatalogID    uuid.UUID `json:"catalog_id"`
	StorageKey   string    `json:"storage_key"`
	ByteSize     int64     `json:"byte_size"`
	Checksum     string    `json:"checksum"`
	OriginNodeID uuid.UUID `json:"origin_node_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *Recording) EntityID() uuid.UUID        { return r.ID }
func (r *Recording) EntityKind() Kind           { return KindRecording }
func (r *Recording) Touched() time.Time         { return r.UpdatedAt }
func (r *Recording) SetOrigin(nodeID uuid.UUID) { r.OriginNodeID = nodeID }

// DecodeRecords turns the raw JSON objects of a wire page into concrete
// entities of the given kind. It is the single place the tagged union is
// resolved.
func DecodeRecords(kind Kind, raw []json.RawMessage) ([]Syncable, error) {
	out := make([]Syncable, 0, len(raw))
	for i, r := range raw {
		var entity Syncable
		switch kind {
		case KindCatalog:
			entity = &Catalog{}
		case KindVolunteer:
			entity = &Volunteer{}
		case KindProject:
			entity = &Project{}
		case KindSession:
			entity = &Session{}
		case KindRecording:
			entity = &Recording{}
		default:
			return nil, fmt.Errorf("unknown entity kind %q", kind)
		}
		if err := json.Unmarshal(r, entity); err != nil {
			return nil, fmt.Errorf("decoding %s record %d: %w", kind, i, err)
		}
		out = append(out, entity)
	}
	return out, nil
}
