package canonicalize

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestJCS_Sorting(t *testing.T) {
	input := map[string]any{
		"servers":    []any{},
		"agentName":  "brand-agent",
		"resolvedAt": "2026-01-01T00:00:00.000Z",
	}
	expected := `{"agentName":"brand-agent","resolvedAt":"2026-01-01T00:00:00.000Z","servers":[]}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_StructTagsAndNesting(t *testing.T) {
	type locked struct {
		ServerID string   `json:"serverId"`
		Category string   `json:"category"`
		Scopes   []string `json:"scopes"`
	}
	input := map[string]any{
		"z": locked{ServerID: "srv", Category: "test", Scopes: []string{"read:test"}},
		"a": 1,
	}
	expected := `{"a":1,"z":{"category":"test","scopes":["read:test"],"serverId":"srv"}}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]string{"endpoint": "https://mcp.example/<tenant>?a=1&b=2"}
	expected := `{"endpoint":"https://mcp.example/<tenant>?a=1&b=2"}`

	b, err := JCS(input)
	if err != nil {
		t.Fatalf("JCS failed: %v", err)
	}
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestJCS_NumberTypes(t *testing.T) {
	input := map[string]any{"num": json.Number("123.456"), "int": 60}
	expected := `{"int":60,"num":123.456}`

	b, err := JCS(input)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != expected {
		t.Errorf("Expected %s, got %s", expected, string(b))
	}
}

func TestCanonicalHash_Stability(t *testing.T) {
	v1 := map[string]any{"serverId": "a", "version": "1.0.0"}

	type S struct {
		Version  string `json:"version"`
		ServerID string `json:"serverId"`
	}
	v2 := S{ServerID: "a", Version: "1.0.0"}

	h1, err := CanonicalHash(v1)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := CanonicalHash(v2)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("Hash mismatch for semantically identical inputs: %s != %s", h1, h2)
	}
}

func TestDigest_Prefix(t *testing.T) {
	d, err := Digest(map[string]int{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(d, DigestPrefix) || len(d) != len(DigestPrefix)+64 {
		t.Fatalf("unexpected digest %q", d)
	}
	s, err := JCSString(map[string]int{"b": 2, "a": 1})
	if err != nil {
		t.Fatal(err)
	}
	if d != DigestPrefix+HashBytes([]byte(s)) {
		t.Fatal("digest must be the hash of the canonical string")
	}
}

func FuzzJCS(f *testing.F) {
	f.Add([]byte(`{"a":1,"b":2}`))
	f.Add([]byte(`{"z":{"y":"foo","x":"bar"},"a":1}`))
	f.Add([]byte(`{"unicode":"こんにちは","emoji":"🚀"}`))
	f.Add([]byte(`{"servers":[{"scopes":["read:a","write:b"]}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			t.Skip("invalid JSON input")
			return
		}

		b1, err := JCS(v)
		if err != nil {
			return
		}
		b2, err := JCS(v)
		if err != nil {
			t.Fatal("JCS returned error on second call but not first")
		}
		if string(b1) != string(b2) {
			t.Errorf("JCS non-deterministic:\n  first:  %s\n  second: %s", b1, b2)
		}

		var check any
		if err := json.Unmarshal(b1, &check); err != nil {
			t.Errorf("JCS output is not valid JSON: %s", string(b1))
		}
	})
}
