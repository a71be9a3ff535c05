// Package attest signs and verifies lockfile attestations: compact EdDSA JWTs
// whose claims bind an agent name and version to the lockfile digest.
package attest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/lockfile"
)

// ErrInvalidAttestation is wrapped by every Verify failure.
var ErrInvalidAttestation = errors.New("attest: invalid attestation")

// Claims is the attestation payload.
type Claims struct {
	Agent        string `json:"agent"`
	AgentVersion string `json:"agentVersion"`
	Digest       string `json:"digest"`
	jwt.RegisteredClaims
}

// Signer issues attestations with one Ed25519 key.
type Signer struct {
	key ed25519.PrivateKey
	kid string
	now func() time.Time
}

// NewSigner wraps key. now defaults to time.Now when nil.
func NewSigner(key ed25519.PrivateKey, now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{key: key, kid: KeyID(key.Public().(ed25519.PublicKey)), now: now}
}

// KeyID is the hex of the first 8 bytes of the SHA-256 of pub.
func KeyID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}

// Sign returns a compact JWT attesting to l.
func (s *Signer) Sign(l *contracts.Lockfile) (string, error) {
	digest, err := lockfile.Digest(l)
	if err != nil {
		return "", fmt.Errorf("attest: %w", err)
	}
	claims := Claims{
		Agent:        l.AgentName,
		AgentVersion: l.AgentVersion,
		Digest:       digest,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = s.kid
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("attest: sign: %w", err)
	}
	return signed, nil
}

// Sign is a convenience for NewSigner(key, nil).Sign(l).
func Sign(l *contracts.Lockfile, key ed25519.PrivateKey) (string, error) {
	return NewSigner(key, nil).Sign(l)
}

// Verify checks the token signature against pub and that its claims match l.
func Verify(token string, l *contracts.Lockfile, pub ed25519.PublicKey) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttestation, err)
	}

	digest, err := lockfile.Digest(l)
	if err != nil {
		return nil, fmt.Errorf("attest: %w", err)
	}
	switch {
	case claims.Digest != digest:
		return nil, fmt.Errorf("%w: digest %s does not match lockfile %s", ErrInvalidAttestation, claims.Digest, digest)
	case claims.Agent != l.AgentName || claims.AgentVersion != l.AgentVersion:
		return nil, fmt.Errorf("%w: attested agent %s@%s, lockfile is for %s@%s",
			ErrInvalidAttestation, claims.Agent, claims.AgentVersion, l.AgentName, l.AgentVersion)
	}
	return claims, nil
}

// ParsePrivateKey decodes a hex Ed25519 seed (32 bytes) or full private key (64 bytes).
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("attest: private key hex: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	}
	return nil, fmt.Errorf("attest: private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
}

// ParsePublicKey decodes a hex Ed25519 public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("attest: public key hex: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("attest: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// LoadPrivateKey reads a hex key file for ParsePrivateKey.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attest: read key %s: %w", path, err)
	}
	return ParsePrivateKey(string(data))
}
