// Package export implements the remote side of a pull: manifest generation,
// paginated entity listing, and recording byte serving. Everything here is
// read-only and sits behind the ReadWrite capability gate.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/blob"
	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/logging"
	"github.com/clinmesh/clinsync/internal/models"
	"github.com/clinmesh/clinsync/internal/repositories/entities"
	"github.com/clinmesh/clinsync/internal/syncerr"
	"github.com/clinmesh/clinsync/internal/wire"
)

// MaxPageSize caps what a caller may request per page.
const MaxPageSize = 500

type Service struct {
	nodeID   uuid.UUID
	nodeName string
	entities entities.Repository
	blobs    blob.Store
	logger   logging.Logger
	now      func() time.Time
}

func NewService(nodeID uuid.UUID, nodeName string, repo entities.Repository, blobs blob.Store, logger logging.Logger) *Service {
	return &Service{
		nodeID:   nodeID,
		nodeName: nodeName,
		entities: repo,
		blobs:    blobs,
		logger:   logger.With("module", "export"),
		now:      time.Now,
	}
}

// Manifest computes the per-kind counts and latest timestamps, optionally
// filtered by the caller's last-sync watermark. The result is transient;
// its GeneratedAt becomes the caller's next watermark on a successful pull.
func (s *Service) Manifest(ctx context.Context, since *time.Time) (*models.SyncManifest, error) {
	manifest := &models.SyncManifest{
		NodeID:      s.nodeID,
		NodeName:    s.nodeName,
		GeneratedAt: s.now().UTC(),
		Since:       since,
		Kinds:       make(map[models.Kind]models.KindStat, len(models.KindOrder)),
	}

	for _, kind := range models.KindOrder {
		stat, err := s.entities.Stats(ctx, kind, since)
		if err != nil {
			return nil, fmt.Errorf("manifest stats for %s: %w", kind, err)
		}
		manifest.Kinds[kind] = stat
	}

	return manifest, nil
}

// ListEntities returns one page of a kind. Unknown kinds are a client error,
// not an empty result.
func (s *Service) ListEntities(ctx context.Context, req *wire.ListEntitiesRequest) (*wire.ListEntitiesResponse, error) {
	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		return nil, &syncerr.NotFoundError{What: "entity kind", ID: req.Kind}
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = wire.DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total, err := s.entities.Count(ctx, kind, req.Since)
	if err != nil {
		return nil, err
	}

	items, err := s.entities.ListPage(ctx, kind, req.Since, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}

	data := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", kind, err)
		}
		data = append(data, raw)
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	return &wire.ListEntitiesResponse{
		Data:         data,
		Page:         page,
		PageSize:     pageSize,
		TotalRecords: total,
		TotalPages:   totalPages,
	}, nil
}

// RecordingBytes resolves a recording to its blob content. Absent content is
// not-found, never a zero-length success.
func (s *Service) RecordingBytes(ctx context.Context, id uuid.UUID) ([]byte, error) {
	rec, err := s.entities.GetRecording(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, &syncerr.NotFoundError{What: "recording", ID: id.String()}
		}
		return nil, err
	}

	data, err := s.blobs.Get(ctx, rec.StorageKey)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, &syncerr.NotFoundError{What: "recording bytes", ID: id.String()}
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, &syncerr.NotFoundError{What: "recording bytes", ID: id.String()}
	}
	return data, nil
}
