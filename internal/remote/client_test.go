package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/cryptox"
	"github.com/clinmesh/clinsync/internal/syncerr"
	"github.com/clinmesh/clinsync/internal/wire"
)

// testNode is a minimal in-test wire endpoint: it negotiates one channel and
// answers sealed requests with a configurable handler.
type testNode struct {
	key    []byte
	handle func(w http.ResponseWriter, key, body []byte)
}

func (n *testNode) server(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+wire.PathOpenChannel, func(w http.ResponseWriter, r *http.Request) {
		var req wire.OpenChannelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding open request: %v", err)
		}

		priv, err := cryptox.GenerateKeyExchange()
		if err != nil {
			t.Fatalf("GenerateKeyExchange error: %v", err)
		}
		n.key, err = cryptox.DeriveChannelKey(priv, req.ClientPublicKey)
		if err != nil {
			t.Fatalf("DeriveChannelKey error: %v", err)
		}

		_ = json.NewEncoder(w).Encode(wire.OpenChannelResponse{
			ChannelID:       uuid.New(),
			ServerPublicKey: priv.PublicKey().Bytes(),
		})
	})
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		n.handle(w, n.key, body)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDialAndInvoke_SealedRoundtrip(t *testing.T) {
	t.Parallel()

	node := &testNode{}
	node.handle = func(w http.ResponseWriter, key, body []byte) {
		// Echo the decrypted request back, resealed.
		var req map[string]string
		if err := cryptox.OpenJSON(body, key, &req); err != nil {
			t.Errorf("opening request: %v", err)
			return
		}
		sealed, err := cryptox.SealJSON(req, key)
		if err != nil {
			t.Errorf("sealing response: %v", err)
			return
		}
		w.Header().Set("Content-Type", wire.ContentTypeSealed)
		_, _ = w.Write(sealed)
	}
	srv := node.server(t)

	conn, err := Dial(context.Background(), srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	if conn.ChannelID() == uuid.Nil {
		t.Fatalf("no channel id assigned")
	}

	var resp map[string]string
	err = conn.Invoke(context.Background(), "/sync/manifest", "tok", map[string]string{"kind": "catalogs"}, &resp)
	if err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if resp["kind"] != "catalogs" {
		t.Fatalf("roundtrip mismatch: %v", resp)
	}
}

func TestInvokeBytes(t *testing.T) {
	t.Parallel()

	payload := []byte("raw recording bytes")
	node := &testNode{}
	node.handle = func(w http.ResponseWriter, key, _ []byte) {
		sealed, err := cryptox.Seal(payload, key)
		if err != nil {
			t.Errorf("sealing bytes: %v", err)
			return
		}
		_, _ = w.Write(sealed)
	}
	srv := node.server(t)

	conn, err := Dial(context.Background(), srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}

	body, err := conn.InvokeBytes(context.Background(), wire.PathRecordingBytes, "tok", &wire.RecordingBytesRequest{ID: uuid.New()})
	if err != nil {
		t.Fatalf("InvokeBytes error: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("bytes mismatch: %q", got)
	}
}

func TestInvoke_RemoteErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 becomes AuthenticationError",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var e *syncerr.AuthenticationError
				if !errors.As(err, &e) {
					t.Fatalf("want AuthenticationError, got %v", err)
				}
			},
		},
		{
			name:   "429 becomes AuthorizationError",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var e *syncerr.AuthorizationError
				if !errors.As(err, &e) {
					t.Fatalf("want AuthorizationError, got %v", err)
				}
			},
		},
		{
			name:   "404 becomes NotFoundError",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				var e *syncerr.NotFoundError
				if !errors.As(err, &e) {
					t.Fatalf("want NotFoundError, got %v", err)
				}
			},
		},
		{
			name:   "500 becomes RemoteFetchError",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var e *syncerr.RemoteFetchError
				if !errors.As(err, &e) {
					t.Fatalf("want RemoteFetchError, got %v", err)
				}
				if e.Status != http.StatusInternalServerError {
					t.Fatalf("status not carried: %d", e.Status)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			node := &testNode{}
			node.handle = func(w http.ResponseWriter, key, _ []byte) {
				sealed, err := cryptox.SealJSON(wire.ErrorResponse{Error: "nope"}, key)
				if err != nil {
					t.Errorf("sealing error body: %v", err)
					return
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write(sealed)
			}
			srv := node.server(t)

			conn, err := Dial(context.Background(), srv.URL, srv.Client())
			if err != nil {
				t.Fatalf("Dial error: %v", err)
			}

			err = conn.Invoke(context.Background(), "/sync/entities", "tok", struct{}{}, nil)
			tc.check(t, err)
		})
	}
}

func TestDial_RemoteRefusal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	_, err := Dial(context.Background(), srv.URL, srv.Client())
	var chanErr *syncerr.ChannelError
	if !errors.As(err, &chanErr) {
		t.Fatalf("want ChannelError, got %v", err)
	}
}
