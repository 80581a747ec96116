package anonymizer

// IDGenerator produces globally unique identifiers under a namespace root.
type IDGenerator interface {
	NewUID() (string, error)
}

// UIDRemapper maps old UIDs to new ones within one study. The same old UID
// always yields the same new UID until Reset is called.
type UIDRemapper struct {
	gen    IDGenerator
	uids   map[string]string // old uid -> new uid
	active bool
}

// NewUIDRemapper returns a remapper that must be Reset before first use.
func NewUIDRemapper(gen IDGenerator) *UIDRemapper {
	return &UIDRemapper{gen: gen}
}

// Reset discards all mappings and opens a new study scope.
func (r *UIDRemapper) Reset() {
	r.uids = make(map[string]string)
	r.active = true
}

// Resolve returns the new UID for old, generating one on first sight.
func (r *UIDRemapper) Resolve(old string) (string, error) {
	if !r.active {
		return "", ErrRemapperNotReset
	}

	if uid, ok := r.uids[old]; ok {
		return uid, nil
	}

	uid, err := r.gen.NewUID()
	if err != nil {
		return "", err
	}
	r.uids[old] = uid
	return uid, nil
}

// Len returns the number of mappings in the current scope.
func (r *UIDRemapper) Len() int {
	return len(r.uids)
}
