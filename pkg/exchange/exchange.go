// Package exchange reads and writes portable event/settings documents, the
// shape used to move a calendar between installations.
//
// Documents are JSON or TOML. A JSON file holding a bare array of events,
// the older export shape, is accepted on import.
package exchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/daviddao/zeilumara/pkg/model"
)

// CurrentVersion is written into every exported document.
const CurrentVersion = 1

var (
	ErrDuplicateID   = errors.New("duplicate event id")
	ErrUnknownFormat = errors.New("unknown document format")
)

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// ParseFormat accepts "json" or "toml", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTOML:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnknownFormat, path)
	}
	return ParseFormat(ext)
}

// Document is one export. Settings is optional; a legacy import has none.
type Document struct {
	Version    int             `json:"version" toml:"version"`
	ExportedAt time.Time       `json:"exported_at" toml:"exported_at"`
	Settings   *model.Settings `json:"settings,omitempty" toml:"settings,omitempty"`
	Events     []model.Event   `json:"events" toml:"events"`
}

// NewDocument stamps a document for export.
func NewDocument(settings *model.Settings, events []model.Event, now time.Time) *Document {
	if events == nil {
		events = []model.Event{}
	}
	return &Document{
		Version:    CurrentVersion,
		ExportedAt: now.UTC(),
		Settings:   settings,
		Events:     events,
	}
}

// Validate checks every event and rejects repeated IDs.
func (d *Document) Validate() error {
	if d.Settings != nil {
		if err := d.Settings.Validate(); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}
	seen := make(map[string]bool, len(d.Events))
	for i, e := range d.Events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// Encode writes doc to w.
func Encode(w io.Writer, doc *Document, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	case FormatTOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding toml: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Decode reads and validates a document.
func Decode(r io.Reader, f Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	var doc Document
	switch f {
	case FormatJSON:
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &doc.Events); err != nil {
				return nil, fmt.Errorf("parsing legacy event list: %w", err)
			}
			break
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteFile encodes doc into path, choosing the format from the extension.
// The file is replaced atomically.
func WriteFile(path string, doc *Document) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, f); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing temp export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming export: %w", err)
	}
	return nil
}

// ReadFile decodes the document at path.
func ReadFile(path string) (*Document, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Decode(file, f)
}

// Merge upserts imported into existing by ID. Replaced events keep their
// position; new events are appended in import order. existing is not
// modified.
func Merge(existing, imported []model.Event) []model.Event {
	out := make([]model.Event, len(existing), len(existing)+len(imported))
	copy(out, existing)
	index := make(map[string]int, len(out))
	for i, e := range out {
		index[e.ID] = i
	}
	for _, e := range imported {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}
