package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/models"
	"github.com/clinmesh/clinsync/internal/wire"
)

// apiClient talks to a node's local operator API over plain HTTP with a
// bearer token. This is the trusted-network surface, distinct from the
// sealed node-to-node wire.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(opts *RootOptions) (*apiClient, error) {
	token, err := opts.resolveToken()
	if err != nil {
		return nil, err
	}
	return &apiClient{
		baseURL: strings.TrimRight(opts.Server, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Minute},
	}, nil
}

func (c *apiClient) Preview(ctx context.Context, remoteNodeID uuid.UUID, since *time.Time) (*models.SyncManifest, error) {
	var manifest models.SyncManifest
	err := c.post(ctx, wire.PathLocalPreview, wire.PreviewRequest{RemoteNodeID: remoteNodeID, Since: since}, &manifest)
	if err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (c *apiClient) Pull(ctx context.Context, remoteNodeID uuid.UUID, since *time.Time) (*models.SyncResult, error) {
	var result models.SyncResult
	err := c.post(ctx, wire.PathLocalPull, wire.PullRequest{RemoteNodeID: remoteNodeID, Since: since}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *apiClient) Status(ctx context.Context, limit int) (*wire.StatusResponse, error) {
	path := wire.PathLocalStatus
	if limit > 0 {
		path += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	var resp wire.StatusResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr wire.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.Unmarshal(data, out)
}

// parseSince converts the --since flag into an optional cutoff.
func parseSince(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --since (want RFC3339): %w", err)
	}
	return &t, nil
}
