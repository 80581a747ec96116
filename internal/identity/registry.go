package identity

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry maps original patient IDs to pre-approved pseudonyms. It is loaded
// once and never modified afterwards.
type Registry struct {
	source     string
	pseudonyms map[string]string
}

// registryFile is the YAML registry layout.
type registryFile struct {
	Pseudonyms map[string]string `yaml:"pseudonyms"`
}

// LoadRegistry reads a registry from a .csv or .yaml/.yml file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read pseudonym registry %s: %w", path, err)
	}

	var reg *Registry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		reg, err = ParseRegistryYAML(data)
	default:
		reg, err = ParseRegistryCSV(strings.NewReader(string(data)))
	}
	if err != nil {
		return nil, fmt.Errorf("invalid pseudonym registry %s: %w", path, err)
	}
	reg.source = path
	return reg, nil
}

// ParseRegistryCSV parses "PatientID,Pseudoname" rows. A first row whose first
// column is "PatientID" is treated as a header; lines starting with # are
// comments; extra columns are ignored.
func ParseRegistryCSV(r io.Reader) (*Registry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	reg := newRegistry()
	first := true
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not parse csv: %w", err)
		}

		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(row[0]), "PatientID") {
				continue
			}
		}

		line, _ := cr.FieldPos(0)
		if len(row) < 2 {
			return nil, fmt.Errorf("line %d: expected PatientID,Pseudoname", line)
		}
		if err := reg.add(row[0], row[1]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// ParseRegistryYAML parses a document of the form
//
//	pseudonyms:
//	  PID0001: SUBJ01
func ParseRegistryYAML(data []byte) (*Registry, error) {
	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("could not parse yaml: %w", err)
	}

	reg := newRegistry()
	for id, pseudonym := range rf.Pseudonyms {
		if err := reg.add(id, pseudonym); err != nil {
			return nil, err
		}
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

func newRegistry() *Registry {
	return &Registry{pseudonyms: make(map[string]string)}
}

func (r *Registry) add(id, pseudonym string) error {
	id = strings.TrimSpace(id)
	pseudonym = strings.TrimSpace(pseudonym)
	if id == "" {
		return fmt.Errorf("empty patient id")
	}
	if pseudonym == "" {
		return fmt.Errorf("empty pseudonym for patient id %q", id)
	}
	if err := ValidatePathComponent(pseudonym); err != nil {
		return fmt.Errorf("pseudonym for patient id %q: %w", id, err)
	}
	if prev, ok := r.pseudonyms[id]; ok && prev != pseudonym {
		return fmt.Errorf("patient id %q mapped to both %q and %q", id, prev, pseudonym)
	}
	r.pseudonyms[id] = pseudonym
	return nil
}

// validate rejects two patient IDs sharing one pseudonym.
func (r *Registry) validate() error {
	owners := make(map[string]string, len(r.pseudonyms))
	for id, pseudonym := range r.pseudonyms {
		if other, ok := owners[pseudonym]; ok {
			a, b := other, id
			if b < a {
				a, b = b, a
			}
			return fmt.Errorf("pseudonym %q assigned to both %q and %q", pseudonym, a, b)
		}
		owners[pseudonym] = id
	}
	return nil
}

// Lookup returns the pseudonym for a patient ID.
func (r *Registry) Lookup(patientID string) (string, bool) {
	p, ok := r.pseudonyms[strings.TrimSpace(patientID)]
	return p, ok
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	return len(r.pseudonyms)
}

// Source returns the file the registry was loaded from, if any.
func (r *Registry) Source() string {
	return r.source
}
