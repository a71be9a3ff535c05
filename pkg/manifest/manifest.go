// Package manifest parses agent manifests.
//
// A manifest is either a Markdown file whose YAML front-matter carries the
// declaration, a bare YAML document, or JSON. Every form is normalised to
// JSON, checked against the embedded agent-manifest schema, decoded into
// contracts.AgentManifest and NFC-normalised before Validate runs.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mindburn-Labs/agentlock/pkg/contracts"
	"github.com/Mindburn-Labs/agentlock/pkg/contracts/schemas"
)

// ErrNoFrontMatter is returned for Markdown input without a front-matter block.
var ErrNoFrontMatter = errors.New("manifest: no YAML front-matter found")

// Format selects how Parse reads its input.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
	FormatJSON     Format = "json"
)

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Parsed is a decoded manifest together with any validation failures.
// Manifest is usable only when Errors is empty.
type Parsed struct {
	Manifest contracts.AgentManifest
	Body     string // Markdown body after the front-matter
	Errors   contracts.FieldErrors
}

// ParseFile reads and parses the manifest at path.
func ParseFile(path string) (*Parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return Parse(data, FormatFromPath(path))
}

// Parse decodes data. Syntax errors are returned as error; shape and
// semantic problems are collected in Parsed.Errors.
func Parse(data []byte, format Format) (*Parsed, error) {
	out := &Parsed{}
	docFormat := schemas.FormatJSON

	switch format {
	case FormatMarkdown:
		fm, body, err := SplitFrontMatter(data)
		if err != nil {
			return nil, err
		}
		data, out.Body, docFormat = fm, body, schemas.FormatYAML
	case FormatYAML:
		docFormat = schemas.FormatYAML
	}

	raw, doc, err := schemas.Decode(data, docFormat)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	fieldErrs, err := schemas.Validate(schemas.KindAgentManifest, doc)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if len(fieldErrs) > 0 {
		out.Errors = fieldErrs
		return out, nil
	}

	if err := json.Unmarshal(raw, &out.Manifest); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	Normalize(&out.Manifest)
	out.Errors = Validate(&out.Manifest)
	return out, nil
}

// SplitFrontMatter separates a leading "---" delimited YAML block from the
// Markdown body that follows it.
func SplitFrontMatter(data []byte) (frontMatter []byte, body string, err error) {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	rest, ok := strings.CutPrefix(text, "---\n")
	if !ok {
		return nil, "", ErrNoFrontMatter
	}

	fm, body, found := strings.Cut(rest, "\n---\n")
	if !found {
		if fm, found = strings.CutSuffix(rest, "\n---"); !found {
			return nil, "", ErrNoFrontMatter
		}
		body = ""
	}
	if strings.TrimSpace(fm) == "" {
		return nil, "", ErrNoFrontMatter
	}
	return []byte(fm), body, nil
}
