package integrity

import (
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestHash_Format(t *testing.T) {
	h := Hash("test-server", "1.0.0", "https://test.example/mcp", []string{"read:test"})
	assert.Len(t, h, 64)
	assert.True(t, Valid(h))
	assert.False(t, Valid("sha256:"+h))
	assert.False(t, Valid(h[:63]+"G"))
}

func TestHash_CanonicalString(t *testing.T) {
	s := CanonicalString("srv", "2.0.0", "stdio://srv", []string{"write:x", "read:x"})
	assert.Equal(t, "srv@2.0.0|stdio://srv|read:x,write:x", s)
}

func TestHash_DoesNotMutateScopes(t *testing.T) {
	scopes := []string{"b", "a"}
	_ = Hash("id", "1", "ep", scopes)
	assert.Equal(t, []string{"b", "a"}, scopes)
}

func TestHash_OrderInvariant(t *testing.T) {
	assert.Equal(t,
		Hash("id", "1.0.0", "ep", []string{"a", "b"}),
		Hash("id", "1.0.0", "ep", []string{"b", "a"}),
	)
}

func TestHash_FieldSensitivity(t *testing.T) {
	base := Hash("id", "1.0.0", "ep", []string{"a", "b"})
	variants := map[string]string{
		"id":       Hash("id2", "1.0.0", "ep", []string{"a", "b"}),
		"version":  Hash("id", "1.0.1", "ep", []string{"a", "b"}),
		"endpoint": Hash("id", "1.0.0", "ep2", []string{"a", "b"}),
		"scopes":   Hash("id", "1.0.0", "ep", []string{"a", "c"}),
		"subset":   Hash("id", "1.0.0", "ep", []string{"a"}),
	}
	for field, h := range variants {
		assert.NotEqual(t, base, h, "changing %s must change the hash", field)
	}
}

func TestHash_PermutationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("hash is invariant to scope permutation", prop.ForAll(
		func(id, version string, scopes []string, seed int64) bool {
			shuffled := make([]string, len(scopes))
			copy(shuffled, scopes)
			r := rand.New(rand.NewSource(seed))
			r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			return Hash(id, version, "ep", scopes) == Hash(id, version, "ep", shuffled)
		},
		gen.Identifier(),
		gen.NumString(),
		gen.SliceOf(gen.AlphaString()),
		gen.Int64(),
	))

	properties.Property("hash always has 64 lowercase hex chars", prop.ForAll(
		func(id, endpoint string) bool {
			return Valid(Hash(id, "1.0.0", endpoint, nil))
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
