package anonymizer

import (
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deid/internal/dicom"
)

// Fields is read access to a record's field table.
type Fields interface {
	Lookup(t tag.Tag) (string, bool)
}

// Record is an editable field table for one file.
type Record interface {
	Fields
	SetString(t tag.Tag, value string) error
	ClearTag(t tag.Tag) error
	Remove(t tag.Tag) bool
	Tags() []tag.Tag
	IsRecognized(t tag.Tag) bool
	Save(path string) error
}

// Store loads records from disk.
type Store interface {
	Load(path string) (Record, error)
	// LoadHeader reads the fields without pixel data; the result is never saved.
	LoadHeader(path string) (Fields, error)
}

// DicomStore is the Store backed by the DICOM reader.
type DicomStore struct{}

// Load reads a full DICOM file.
func (DicomStore) Load(path string) (Record, error) {
	ds, err := dcm.ReadDicom(path)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadHeader reads a DICOM file without pixel data.
func (DicomStore) LoadHeader(path string) (Fields, error) {
	ds, err := dcm.ReadDicomMetadataOnly(path)
	if err != nil {
		return nil, err
	}
	return ds, nil
}
