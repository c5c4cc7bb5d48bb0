package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/blob"
	"github.com/clinmesh/clinsync/internal/channel"
	"github.com/clinmesh/clinsync/internal/common"
	"github.com/clinmesh/clinsync/internal/dbx"
	"github.com/clinmesh/clinsync/internal/export"
	"github.com/clinmesh/clinsync/internal/logging"
	"github.com/clinmesh/clinsync/internal/models"
	"github.com/clinmesh/clinsync/internal/nodeauth"
	"github.com/clinmesh/clinsync/internal/pull"
	"github.com/clinmesh/clinsync/internal/remote"
	"github.com/clinmesh/clinsync/internal/repositories/entities"
	"github.com/clinmesh/clinsync/internal/repositories/nodes"
	"github.com/clinmesh/clinsync/internal/repositories/synclog"
	"github.com/clinmesh/clinsync/internal/session"
	"github.com/clinmesh/clinsync/internal/syncerr"
	"github.com/clinmesh/clinsync/internal/wire"
)

const testOperatorToken = "operator-secret"

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeDirectory backs the authentication service with a fixed node registry.
type fakeDirectory struct {
	byID map[uuid.UUID]*models.Node
}

func (f *fakeDirectory) GetByID(_ context.Context, id uuid.UUID) (*models.Node, error) {
	n, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return n, nil
}

// fakeEntities serves a fixed set of syncable records to the export service.
type fakeEntities struct {
	items      map[models.Kind][]models.Syncable
	recordings map[uuid.UUID]*models.Recording
}

func (f *fakeEntities) Upsert(context.Context, models.Syncable) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *fakeEntities) ListPage(_ context.Context, kind models.Kind, _ *time.Time, limit, offset int) ([]models.Syncable, error) {
	items := f.items[kind]
	if offset >= len(items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], nil
}

func (f *fakeEntities) Count(_ context.Context, kind models.Kind, _ *time.Time) (int64, error) {
	return int64(len(f.items[kind])), nil
}

func (f *fakeEntities) Stats(_ context.Context, kind models.Kind, _ *time.Time) (models.KindStat, error) {
	return models.KindStat{Count: int64(len(f.items[kind]))}, nil
}

func (f *fakeEntities) GetRecording(_ context.Context, id uuid.UUID) (*models.Recording, error) {
	rec, ok := f.recordings[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

// Minimal repository manager for the orchestrator behind the operator API.

type fakeNodeRepo struct{}

func (fakeNodeRepo) GetByID(context.Context, uuid.UUID) (*models.Node, error) {
	return nil, common.ErrNotFound
}
func (fakeNodeRepo) List(context.Context) ([]*models.Node, error) { return nil, nil }

type fakeSyncLogRepo struct {
	recent []*models.SyncLog
}

func (f *fakeSyncLogRepo) Create(context.Context, *models.SyncLog) error   { return nil }
func (f *fakeSyncLogRepo) Finalize(context.Context, *models.SyncLog) error { return nil }
func (f *fakeSyncLogRepo) LatestCompleted(context.Context, uuid.UUID) (*models.SyncLog, error) {
	return nil, common.ErrNotFound
}
func (f *fakeSyncLogRepo) Recent(context.Context, int) ([]*models.SyncLog, error) {
	return f.recent, nil
}

type fakeRepoManager struct {
	entities entities.Repository
	logs     *fakeSyncLogRepo
}

func (f *fakeRepoManager) Entities(dbx.DBTX) entities.Repository { return f.entities }
func (f *fakeRepoManager) Nodes(dbx.DBTX) nodes.Repository       { return fakeNodeRepo{} }
func (f *fakeRepoManager) SyncLogs(dbx.DBTX) synclog.Repository  { return f.logs }
func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

type serverFixture struct {
	srv            *httptest.Server
	clientIdentity *nodeauth.Identity
	directory      *fakeDirectory
	logs           *fakeSyncLogRepo
	recordingID    uuid.UUID
}

func makeIdentity(t *testing.T, name string) *nodeauth.Identity {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}
	return &nodeauth.Identity{NodeID: uuid.New(), Name: name, PrivateKey: priv}
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	serverIdentity := makeIdentity(t, "hub")
	clientIdentity := makeIdentity(t, "site-a")

	directory := &fakeDirectory{byID: map[uuid.UUID]*models.Node{
		clientIdentity.NodeID: {
			ID:         clientIdentity.NodeID,
			Name:       "site-a",
			PublicKey:  clientIdentity.PublicKey(),
			Capability: models.CapabilityReadWrite,
			Authorized: true,
		},
	}}

	channels := channel.NewMemoryStore()
	establisher := channel.NewEstablisher(channels, 30*time.Minute)
	sessions := session.NewMemoryStore()
	gate := session.NewGate(sessions, channels, []byte("test-secret"), time.Hour)
	challenges := nodeauth.NewChallengeStore(time.Minute)
	channels.OnEvict = func(id uuid.UUID) {
		sessions.EvictChannel(id)
		challenges.EvictChannel(id)
	}

	auth := nodeauth.NewService(serverIdentity, directory, challenges, gate, discardLogger())

	recordingID := uuid.New()
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeEntities{
		items: map[models.Kind][]models.Syncable{
			models.KindVolunteer: {
				&models.Volunteer{ID: uuid.New(), Code: "V1", UpdatedAt: base},
				&models.Volunteer{ID: uuid.New(), Code: "V2", UpdatedAt: base},
			},
			models.KindRecording: {
				&models.Recording{ID: recordingID, StorageKey: "k1", ByteSize: 3, UpdatedAt: base},
			},
		},
		recordings: map[uuid.UUID]*models.Recording{
			recordingID: {ID: recordingID, StorageKey: "k1", ByteSize: 3, UpdatedAt: base},
		},
	}
	blobs := blob.NewMemoryStore()
	if err := blobs.Put(context.Background(), "k1", []byte("eeg")); err != nil {
		t.Fatalf("seeding blob: %v", err)
	}
	exportSvc := export.NewService(serverIdentity.NodeID, "hub", repo, blobs, discardLogger())

	logs := &fakeSyncLogRepo{}
	rm := &fakeRepoManager{entities: repo, logs: logs}
	orch := pull.NewOrchestrator(nil, rm, nil, blobs, serverIdentity, discardLogger())

	s := New(":0", discardLogger(), channels, establisher, gate, auth, exportSvc, orch, testOperatorToken)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return &serverFixture{
		srv:            ts,
		clientIdentity: clientIdentity,
		directory:      directory,
		logs:           logs,
		recordingID:    recordingID,
	}
}

func (f *serverFixture) dial(t *testing.T) *remote.Conn {
	t.Helper()
	conn, err := remote.Dial(context.Background(), f.srv.URL, f.srv.Client())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	return conn
}

func TestWireEndToEnd(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	conn := f.dial(t)
	token, err := remote.Handshake(ctx, conn, f.clientIdentity)
	if err != nil {
		t.Fatalf("Handshake error: %v", err)
	}

	var manifest models.SyncManifest
	if err := conn.Invoke(ctx, wire.PathManifest, token, &wire.ManifestRequest{}, &manifest); err != nil {
		t.Fatalf("manifest error: %v", err)
	}
	if manifest.NodeName != "hub" {
		t.Fatalf("manifest node name: %q", manifest.NodeName)
	}
	if manifest.Kinds[models.KindVolunteer].Count != 2 {
		t.Fatalf("volunteer count: %d", manifest.Kinds[models.KindVolunteer].Count)
	}

	var page wire.ListEntitiesResponse
	err = conn.Invoke(ctx, wire.PathEntities, token, &wire.ListEntitiesRequest{
		Kind: "volunteers", Page: 1, PageSize: 10,
	}, &page)
	if err != nil {
		t.Fatalf("entities error: %v", err)
	}
	if len(page.Data) != 2 || page.TotalRecords != 2 {
		t.Fatalf("entity page: %d items, %d total", len(page.Data), page.TotalRecords)
	}

	body, err := conn.InvokeBytes(ctx, wire.PathRecordingBytes, token, &wire.RecordingBytesRequest{ID: f.recordingID})
	if err != nil {
		t.Fatalf("recording bytes error: %v", err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading recording bytes: %v", err)
	}
	if string(data) != "eeg" {
		t.Fatalf("recording bytes: %q", data)
	}

	if err := conn.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestManifest_RequiresSession(t *testing.T) {
	f := newServerFixture(t)

	conn := f.dial(t)
	err := conn.Invoke(context.Background(), wire.PathManifest, "", &wire.ManifestRequest{}, nil)

	var authErr *syncerr.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("want AuthenticationError, got %v", err)
	}
}

func TestManifest_ReadOnlyCapabilityRejected(t *testing.T) {
	f := newServerFixture(t)
	f.directory.byID[f.clientIdentity.NodeID].Capability = models.CapabilityReadOnly

	conn := f.dial(t)
	token, err := remote.Handshake(context.Background(), conn, f.clientIdentity)
	if err != nil {
		t.Fatalf("Handshake error: %v", err)
	}

	err = conn.Invoke(context.Background(), wire.PathManifest, token, &wire.ManifestRequest{}, nil)
	var authzErr *syncerr.AuthorizationError
	if !errors.As(err, &authzErr) {
		t.Fatalf("want AuthorizationError, got %v", err)
	}
}

func TestSessionTokenBoundToChannel(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	first := f.dial(t)
	token, err := remote.Handshake(ctx, first, f.clientIdentity)
	if err != nil {
		t.Fatalf("Handshake error: %v", err)
	}

	// A token minted on one channel is worthless on another.
	second := f.dial(t)
	err = second.Invoke(ctx, wire.PathManifest, token, &wire.ManifestRequest{}, nil)
	var authErr *syncerr.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("want AuthenticationError, got %v", err)
	}
}

func TestCloseChannel_KillsSession(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	conn := f.dial(t)
	token, err := remote.Handshake(ctx, conn, f.clientIdentity)
	if err != nil {
		t.Fatalf("Handshake error: %v", err)
	}
	if err := conn.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// The channel is gone, and with it the session.
	err = conn.Invoke(ctx, wire.PathManifest, token, &wire.ManifestRequest{}, nil)
	if err == nil {
		t.Fatalf("expected error after channel close")
	}
}

func TestHandshake_UnknownNodeRejected(t *testing.T) {
	f := newServerFixture(t)

	conn := f.dial(t)
	stranger := makeIdentity(t, "stranger")
	_, err := remote.Handshake(context.Background(), conn, stranger)
	var authErr *syncerr.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("want AuthenticationError, got %v", err)
	}
}

func TestOpenChannel_MalformedKey(t *testing.T) {
	f := newServerFixture(t)

	payload, _ := json.Marshal(wire.OpenChannelRequest{ClientPublicKey: []byte{1, 2, 3}})
	resp, err := http.Post(f.srv.URL+wire.PathOpenChannel, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestWireRequest_UnknownChannel(t *testing.T) {
	f := newServerFixture(t)

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+wire.PathIdentify, bytes.NewReader([]byte("x")))
	req.Header.Set(wire.HeaderChannelID, uuid.NewString())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func operatorRequest(t *testing.T, method, url, token string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestOperator_RejectsBadToken(t *testing.T) {
	f := newServerFixture(t)

	payload, _ := json.Marshal(wire.PreviewRequest{RemoteNodeID: uuid.New()})
	resp := operatorRequest(t, http.MethodPost, f.srv.URL+wire.PathLocalPreview, "wrong", payload)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestOperator_PreviewUnknownRemote(t *testing.T) {
	f := newServerFixture(t)

	payload, _ := json.Marshal(wire.PreviewRequest{RemoteNodeID: uuid.New()})
	resp := operatorRequest(t, http.MethodPost, f.srv.URL+wire.PathLocalPreview, testOperatorToken, payload)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestOperator_Status(t *testing.T) {
	f := newServerFixture(t)

	now := time.Now().UTC()
	f.logs.recent = []*models.SyncLog{
		{ID: uuid.New(), RemoteNodeID: uuid.New(), Status: models.SyncStatusCompleted, StartedAt: now},
		{ID: uuid.New(), RemoteNodeID: uuid.New(), Status: models.SyncStatusFailed, Stage: "fetch", StartedAt: now},
	}

	resp := operatorRequest(t, http.MethodGet, f.srv.URL+wire.PathLocalStatus+"?limit=5", testOperatorToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	var body wire.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Attempts) != 2 {
		t.Fatalf("attempts: %d", len(body.Attempts))
	}
	if body.Attempts[1].Stage != "fetch" {
		t.Fatalf("stage not carried: %+v", body.Attempts[1])
	}
}
