package dicom

import (
	"fmt"
	"os"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Dataset wraps a DICOM dataset as an editable field table.
type Dataset struct {
	Data     dicom.Dataset
	FilePath string
}

// ReadDicom reads a DICOM file, including pixel data, and returns the dataset.
func ReadDicom(path string) (*Dataset, error) {
	return readDicom(path)
}

// ReadDicomMetadataOnly reads only the metadata (no pixel data).
// The result must not be saved: its pixel data is gone.
func ReadDicomMetadataOnly(path string) (*Dataset, error) {
	return readDicom(path, dicom.SkipPixelData())
}

func readDicom(path string, opts ...dicom.ParseOption) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("could not stat file: %w", err)
	}

	ds, err := dicom.Parse(file, info.Size(), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not parse DICOM: %w", err)
	}

	return &Dataset{
		Data:     ds,
		FilePath: path,
	}, nil
}

// Lookup returns the string form of a top-level tag and whether it is present.
// Multi-valued strings are joined with the DICOM backslash delimiter.
func (d *Dataset) Lookup(t tag.Tag) (string, bool) {
	elem, err := d.Data.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	return elementString(elem), true
}

// Tags lists the top-level tags in dataset order.
func (d *Dataset) Tags() []tag.Tag {
	tags := make([]tag.Tag, 0, len(d.Data.Elements))
	for _, e := range d.Data.Elements {
		tags = append(tags, e.Tag)
	}
	return tags
}

// IsRecognized reports whether the tag is known to the data dictionary.
func (d *Dataset) IsRecognized(t tag.Tag) bool {
	return IsRecognized(t)
}

// IsRecognized reports whether a tag is a standard dictionary entry. Group
// length elements (gggg,0000) and the curve and overlay repeating groups
// count as recognized.
func IsRecognized(t tag.Tag) bool {
	if t.Element == 0x0000 {
		return true
	}
	if _, err := tag.Find(t); err == nil {
		return true
	}
	_, ok := repeatingName(t)
	return ok
}

func elementString(elem *dicom.Element) string {
	if elem == nil || elem.Value == nil {
		return ""
	}

	raw := elem.Value.GetValue()
	if raw == nil {
		return ""
	}

	switch v := raw.(type) {
	case []string:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = strings.TrimRight(s, " \x00")
		}
		return strings.Join(parts, `\`)
	case string:
		return strings.TrimRight(v, " \x00")
	}

	return fmt.Sprintf("%v", raw)
}
