package anonymizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// privateTag is not in the data dictionary.
var privateTag = tag.Tag{Group: 0x0011, Element: 0x1010}

// fakeRecord is an in-memory field table.
type fakeRecord struct {
	fields  map[tag.Tag]string
	stuck   map[tag.Tag]bool // tags Remove refuses to delete
	saveErr error
	store   *fakeStore
}

func newFakeRecord(fields map[tag.Tag]string) *fakeRecord {
	f := make(map[tag.Tag]string, len(fields))
	for k, v := range fields {
		f[k] = v
	}
	return &fakeRecord{fields: f}
}

func (r *fakeRecord) Lookup(t tag.Tag) (string, bool) {
	v, ok := r.fields[t]
	return v, ok
}

func (r *fakeRecord) SetString(t tag.Tag, value string) error {
	r.fields[t] = value
	return nil
}

func (r *fakeRecord) ClearTag(t tag.Tag) error {
	if _, ok := r.fields[t]; ok {
		r.fields[t] = ""
	}
	return nil
}

func (r *fakeRecord) Remove(t tag.Tag) bool {
	if r.stuck[t] {
		return false
	}
	_, ok := r.fields[t]
	delete(r.fields, t)
	return ok
}

func (r *fakeRecord) Tags() []tag.Tag {
	tags := make([]tag.Tag, 0, len(r.fields))
	for t := range r.fields {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Group != tags[j].Group {
			return tags[i].Group < tags[j].Group
		}
		return tags[i].Element < tags[j].Element
	})
	return tags
}

func (r *fakeRecord) IsRecognized(t tag.Tag) bool {
	return t != privateTag
}

func (r *fakeRecord) Save(path string) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("DICM"), 0644); err != nil {
		return err
	}
	if r.store != nil {
		r.store.saved(path, r)
	}
	return nil
}

// fakeStore serves records by path.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]map[tag.Tag]string
	loadErr map[string]error
	saveErr map[string]error
	out     map[string]map[tag.Tag]string // output path -> saved fields
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]map[tag.Tag]string),
		loadErr: make(map[string]error),
		saveErr: make(map[string]error),
		out:     make(map[string]map[tag.Tag]string),
	}
}

func (s *fakeStore) Load(path string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadErr[path]; err != nil {
		return nil, err
	}
	fields, ok := s.records[path]
	if !ok {
		return nil, fmt.Errorf("no fake record for %s", path)
	}
	rec := newFakeRecord(fields)
	rec.store = s
	rec.saveErr = s.saveErr[path]
	return rec, nil
}

func (s *fakeStore) LoadHeader(path string) (Fields, error) {
	return s.Load(path)
}

func (s *fakeStore) saved(path string, r *fakeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields := make(map[tag.Tag]string, len(r.fields))
	for k, v := range r.fields {
		fields[k] = v
	}
	s.out[path] = fields
}

func (s *fakeStore) output(path string) (map[tag.Tag]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.out[path]
	return f, ok
}

// addRecord creates an empty .dcm file under dir and registers its fields.
func (s *fakeStore) addRecord(t *testing.T, dir, name string, fields map[tag.Tag]string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, nil, 0644))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[path] = fields
	return path
}

// counterGen issues 9.N UIDs.
type counterGen struct {
	mu  sync.Mutex
	n   int
	err error
}

func (g *counterGen) NewUID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.n++
	return fmt.Sprintf("9.%d", g.n), nil
}

var errBoom = errors.New("boom")
