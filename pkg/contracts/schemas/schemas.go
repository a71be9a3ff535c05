// Package schemas embeds the JSON Schemas for agentlock input documents and
// validates decoded documents against them.
package schemas

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
)

//go:embed *.schema.json
var files embed.FS

// Kind names an embedded schema.
type Kind string

const (
	KindAgentManifest Kind = "agent-manifest"
	KindPolicy        Kind = "policy"
	KindCatalog       Kind = "catalog"
)

const baseURL = "https://agentlock.schemas.local/"

var (
	mu       sync.Mutex
	compiled = map[Kind]*jsonschema.Schema{}
)

// Compile returns the compiled schema for kind.
func Compile(kind Kind) (*jsonschema.Schema, error) {
	mu.Lock()
	defer mu.Unlock()
	if s, ok := compiled[kind]; ok {
		return s, nil
	}

	name := string(kind) + ".schema.json"
	src, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("schemas: unknown kind %q: %w", kind, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := baseURL + name
	if err := c.AddResource(url, bytes.NewReader(src)); err != nil {
		return nil, fmt.Errorf("schemas: load %s: %w", name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schemas: compile %s: %w", name, err)
	}
	compiled[kind] = s
	return s, nil
}

// Validate checks a decoded document (as produced by Decode) against kind and
// returns one FieldError per failing leaf constraint.
func Validate(kind Kind, doc any) (contracts.FieldErrors, error) {
	s, err := Compile(kind)
	if err != nil {
		return nil, err
	}
	err = s.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("schemas: validate %s: %w", kind, err)
	}
	var out contracts.FieldErrors
	collectLeaves(ve, &out)
	return out, nil
}

func collectLeaves(ve *jsonschema.ValidationError, out *contracts.FieldErrors) {
	if len(ve.Causes) == 0 {
		*out = append(*out, contracts.FieldError{Field: pointerToField(ve.InstanceLocation), Message: ve.Message})
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

// pointerToField turns "/requires/mcp/0/category" into "requires.mcp[0].category".
func pointerToField(ptr string) string {
	var b strings.Builder
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if tok == "" {
			continue
		}
		tok = strings.NewReplacer("~1", "/", "~0", "~").Replace(tok)
		if _, err := strconv.Atoi(tok); err == nil {
			b.WriteString("[" + tok + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}

// Format is the encoding of an input document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from a file extension; anything that is
// not .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode normalises data to JSON and returns both the JSON bytes (for typed
// unmarshalling) and the generic document (for schema validation).
func Decode(data []byte, format Format) ([]byte, any, error) {
	raw := data
	if format == FormatYAML {
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, nil, fmt.Errorf("schemas: parse yaml: %w", err)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, nil, fmt.Errorf("schemas: yaml to json: %w", err)
		}
		raw = b
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("schemas: parse json: %w", err)
	}
	return raw, doc, nil
}
