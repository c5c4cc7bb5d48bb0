package session

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinmesh/clinsync/internal/models"
)

func TestMintAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	nodeID := uuid.New()
	channelID := uuid.New()

	tok, err := MintToken(nodeID, channelID, models.CapabilityReadWrite, secret, time.Hour)
	if err != nil {
		t.Fatalf("MintToken error: %v", err)
	}

	claims, err := ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("ParseToken error: %v", err)
	}
	if claims.NodeID != nodeID.String() {
		t.Fatalf("node id mismatch: got %q want %q", claims.NodeID, nodeID)
	}
	if claims.ChannelID != channelID.String() {
		t.Fatalf("channel id mismatch: got %q want %q", claims.ChannelID, channelID)
	}
	if claims.Capability != string(models.CapabilityReadWrite) {
		t.Fatalf("capability mismatch: got %q", claims.Capability)
	}
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := MintToken(uuid.New(), uuid.New(), models.CapabilityReadOnly, secret, -1*time.Second)
	if err != nil {
		t.Fatalf("MintToken error: %v", err)
	}

	if _, err := ParseToken(tok, secret); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := MintToken(uuid.New(), uuid.New(), models.CapabilityReadOnly, []byte("right"), time.Hour)
	if err != nil {
		t.Fatalf("MintToken error: %v", err)
	}

	if _, err := ParseToken(tok, []byte("wrong")); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}
