// Package remote is the calling side of the node-to-node protocol: channel
// negotiation, the authentication handshake, and sealed request/response
// invocation against a remote node.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/cryptox"
	"github.com/clinmesh/clinsync/internal/syncerr"
	"github.com/clinmesh/clinsync/internal/wire"
)

// maxResponseBytes bounds a single sealed response body. Recordings are the
// largest payloads and are sealed whole, so this is sized generously.
const maxResponseBytes = 256 << 20

// Conn is an established channel to one remote node. It encrypts outgoing
// bodies and decrypts responses under the channel key; the session token
// rides as metadata once authentication has produced one.
type Conn struct {
	baseURL   string
	channelID uuid.UUID
	key       []byte
	http      *http.Client
}

// Dial negotiates a channel with the node at baseURL. The ephemeral private
// key is discarded after derivation; only the derived key lives on, inside
// the returned Conn.
func Dial(ctx context.Context, baseURL string, httpClient *http.Client) (*Conn, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	priv, err := cryptox.GenerateKeyExchange()
	if err != nil {
		return nil, &syncerr.ChannelError{Op: "open", Err: err}
	}

	reqBody, err := json.Marshal(wire.OpenChannelRequest{
		ClientPublicKey: priv.PublicKey().Bytes(),
	})
	if err != nil {
		return nil, &syncerr.ChannelError{Op: "open", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+wire.PathOpenChannel, bytes.NewReader(reqBody))
	if err != nil {
		return nil, &syncerr.ChannelError{Op: "open", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, &syncerr.ChannelError{Op: "open", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &syncerr.ChannelError{Op: "open",
			Err: fmt.Errorf("remote refused channel: status %d", resp.StatusCode)}
	}

	var openResp wire.OpenChannelResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&openResp); err != nil {
		return nil, &syncerr.ChannelError{Op: "open", Err: err}
	}

	key, err := cryptox.DeriveChannelKey(priv, openResp.ServerPublicKey)
	if err != nil {
		return nil, &syncerr.ChannelError{Op: "derive", Err: err}
	}

	return &Conn{
		baseURL:   baseURL,
		channelID: openResp.ChannelID,
		key:       key,
		http:      httpClient,
	}, nil
}

// ChannelID returns the remote-assigned channel identifier.
func (c *Conn) ChannelID() uuid.UUID { return c.channelID }

// Invoke seals reqBody, posts it to path with the channel id (and token, if
// any) as headers, and unseals the response into respBody.
func (c *Conn) Invoke(ctx context.Context, path, token string, reqBody, respBody any) error {
	raw, err := c.invokeRaw(ctx, path, token, reqBody)
	if err != nil {
		return err
	}
	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return &syncerr.RemoteFetchError{Path: path, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// InvokeBytes is the streaming variant for byte payloads: the decrypted
// response body is returned as a reader.
func (c *Conn) InvokeBytes(ctx context.Context, path, token string, reqBody any) (io.ReadCloser, error) {
	raw, err := c.invokeRaw(ctx, path, token, reqBody)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

// Close tears the channel down on the remote. Best effort: a channel the
// remote has already expired is already closed.
func (c *Conn) Close(ctx context.Context) error {
	return c.Invoke(ctx, wire.PathCloseChannel, "", struct{}{}, nil)
}

func (c *Conn) invokeRaw(ctx context.Context, path, token string, reqBody any) ([]byte, error) {
	sealed, err := cryptox.SealJSON(reqBody, c.key)
	if err != nil {
		return nil, &syncerr.RemoteFetchError{Path: path, Err: fmt.Errorf("sealing request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(sealed))
	if err != nil {
		return nil, &syncerr.RemoteFetchError{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", wire.ContentTypeSealed)
	req.Header.Set(wire.HeaderChannelID, c.channelID.String())
	if token != "" {
		req.Header.Set(wire.HeaderToken, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &syncerr.RemoteFetchError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &syncerr.RemoteFetchError{Path: path, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.remoteError(path, resp.StatusCode, body)
	}

	plain, err := cryptox.Open(body, c.key)
	if err != nil {
		return nil, &syncerr.RemoteFetchError{Path: path, Err: fmt.Errorf("opening response: %w", err)}
	}
	return plain, nil
}

// remoteError turns a non-200 wire response into the matching taxonomy
// error. Error bodies are sealed like any other once a channel exists, with
// a plaintext fallback for responses emitted before channel lookup.
func (c *Conn) remoteError(path string, status int, body []byte) error {
	var wireErr wire.ErrorResponse
	if plain, err := cryptox.Open(body, c.key); err == nil {
		_ = json.Unmarshal(plain, &wireErr)
	} else {
		_ = json.Unmarshal(body, &wireErr)
	}

	cause := fmt.Errorf("remote: %s", wireErr.Error)
	switch status {
	case http.StatusUnauthorized:
		return &syncerr.AuthenticationError{Reason: wireErr.Error}
	case http.StatusForbidden, http.StatusTooManyRequests:
		return &syncerr.AuthorizationError{Reason: wireErr.Error}
	case http.StatusNotFound:
		return &syncerr.NotFoundError{What: "remote resource", ID: wireErr.Error}
	default:
		return &syncerr.RemoteFetchError{Path: path, Status: status, Err: cause}
	}
}
