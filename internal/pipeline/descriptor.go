package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/docsift/internal/doctree"
)

// DocumentRef names one input document. In a descriptor it is either a bare
// filename or an object with filename and optional title.
type DocumentRef struct {
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
}

func (d *DocumentRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Filename = s
		return nil
	}
	type plain DocumentRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("document entry: %w", err)
	}
	*d = DocumentRef(p)
	return nil
}

// Name is the identifier the document is reported under.
func (d DocumentRef) Name() string {
	return filepath.Base(filepath.FromSlash(d.Filename))
}

// flexText accepts either a string or an object holding the string under key.
type flexText struct {
	key   string
	Value string
}

func (f *flexText) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &f.Value); err == nil {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for _, k := range []string{f.key, "text", "value"} {
		if s, ok := obj[k].(string); ok {
			f.Value = s
			return nil
		}
	}
	return fmt.Errorf("object has no %q field", f.key)
}

func (f *flexText) text() string {
	if f == nil {
		return ""
	}
	return strings.TrimSpace(f.Value)
}

// Descriptor describes one collection run.
type Descriptor struct {
	Documents   []DocumentRef
	Persona     string
	JobToBeDone string
	DataPath    string // directory holding the documents, relative to the descriptor

	dir string
}

type rawDescriptor struct {
	Documents   []DocumentRef `json:"documents"`
	Persona     *flexText     `json:"persona"`
	JobToBeDone *flexText     `json:"job_to_be_done"`
	DataPath    string        `json:"data_path"`
}

// LoadDescriptor reads a JSON or YAML descriptor from path.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	d, err := ParseDescriptor(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	d.dir = filepath.Dir(abs)
	return d, nil
}

// ParseDescriptor decodes a descriptor. JSON is tried first; anything else is
// read as YAML and normalised through the same JSON rules.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty descriptor")
	}
	if data[0] != '{' {
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml descriptor: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("normalise yaml descriptor: %w", err)
		}
		data = converted
	}

	raw := rawDescriptor{
		Persona:     &flexText{key: "role"},
		JobToBeDone: &flexText{key: "task"},
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}

	d := &Descriptor{
		Documents:   raw.Documents,
		Persona:     raw.Persona.text(),
		JobToBeDone: raw.JobToBeDone.text(),
		DataPath:    raw.DataPath,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the fields every run needs.
func (d *Descriptor) Validate() error {
	for i, ref := range d.Documents {
		if strings.TrimSpace(ref.Filename) == "" {
			return fmt.Errorf("documents[%d]: empty filename", i)
		}
	}
	if d.Persona == "" && d.JobToBeDone == "" {
		return errors.New("descriptor needs a persona or a job_to_be_done")
	}
	return nil
}

func (d *Descriptor) Query() doctree.Query {
	return doctree.Query{Persona: d.Persona, JobToBeDone: d.JobToBeDone}
}

// defaultDataDirs are searched next to the descriptor when data_path is unset.
var defaultDataDirs = []string{"data", "PDFs", "pdfs", "documents", "docs"}

// DataDir resolves the directory documents are loaded from.
func (d *Descriptor) DataDir() string {
	base := d.dir
	if base == "" {
		base = "."
	}
	if d.DataPath != "" {
		if filepath.IsAbs(d.DataPath) {
			return d.DataPath
		}
		return filepath.Join(base, d.DataPath)
	}
	for _, name := range defaultDataDirs {
		dir := filepath.Join(base, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() && d.hasAnyDocument(dir) {
			return dir
		}
	}
	return base
}

func (d *Descriptor) hasAnyDocument(dir string) bool {
	if len(d.Documents) == 0 {
		return true
	}
	for _, ref := range d.Documents {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(ref.Filename))); err == nil {
			return true
		}
	}
	return false
}
