package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/integrity"
)

func testLockfile() *contracts.Lockfile {
	scopes := []string{"read:test"}
	return &contracts.Lockfile{
		AgentName:    "agent",
		AgentVersion: "1.0.0",
		ResolvedAt:   "2026-01-02T03:04:05.000Z",
		Servers: []contracts.LockedServer{{
			Category: "test",
			ServerID: "test-server",
			Version:  "1.0.0",
			Endpoint: "https://test.example/mcp",
			Scopes:   scopes,
			Hash:     integrity.Hash("test-server", "1.0.0", "https://test.example/mcp", scopes),
		}},
	}
}

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func TestSignVerify(t *testing.T) {
	pub, priv := newKey(t)
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := testLockfile()

	token, err := NewSigner(priv, func() time.Time { return issued }).Sign(l)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(token, "."))

	claims, err := Verify(token, l, pub)
	require.NoError(t, err)
	assert.Equal(t, "agent", claims.Agent)
	assert.Equal(t, "1.0.0", claims.AgentVersion)
	assert.True(t, strings.HasPrefix(claims.Digest, "sha256:"))
	assert.True(t, claims.IssuedAt.Time.Equal(issued))
}

func TestVerify_Failures(t *testing.T) {
	pub, priv := newKey(t)
	otherPub, _ := newKey(t)
	l := testLockfile()

	token, err := Sign(l, priv)
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := Verify(token, l, otherPub)
		assert.ErrorIs(t, err, ErrInvalidAttestation)
	})

	t.Run("lockfile changed", func(t *testing.T) {
		changed := testLockfile()
		changed.Servers[0].Version = "1.0.1"
		_, err := Verify(token, changed, pub)
		assert.ErrorIs(t, err, ErrInvalidAttestation)
		assert.ErrorContains(t, err, "digest")
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := Verify("not.a.jwt", l, pub)
		assert.ErrorIs(t, err, ErrInvalidAttestation)
	})

	t.Run("trailing newline tolerated", func(t *testing.T) {
		_, err := Verify(token+"\n", l, pub)
		assert.NoError(t, err)
	})
}

func TestKeyParsing(t *testing.T) {
	pub, priv := newKey(t)

	fromSeed, err := ParsePrivateKey(hex.EncodeToString(priv.Seed()))
	require.NoError(t, err)
	assert.True(t, priv.Equal(fromSeed))

	full, err := ParsePrivateKey(hex.EncodeToString(priv))
	require.NoError(t, err)
	assert.True(t, priv.Equal(full))

	_, err = ParsePrivateKey("abcd")
	assert.Error(t, err)
	_, err = ParsePrivateKey("zz")
	assert.Error(t, err)

	gotPub, err := ParsePublicKey(hex.EncodeToString(pub) + "\n")
	require.NoError(t, err)
	assert.True(t, pub.Equal(gotPub))
	_, err = ParsePublicKey("00")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "seed.hex")
	require.NoError(t, os.WriteFile(path, []byte(hex.EncodeToString(priv.Seed())+"\n"), 0o600))
	loaded, err := LoadPrivateKey(path)
	require.NoError(t, err)
	assert.True(t, priv.Equal(loaded))

	assert.Len(t, KeyID(pub), 16)
}
