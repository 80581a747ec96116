package dicom

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// SetString sets a string value for a tag, inserting the element in tag order
// when it is not present yet.
func (d *Dataset) SetString(t tag.Tag, value string) error {
	newValue, err := dicom.NewValue([]string{value})
	if err != nil {
		return fmt.Errorf("could not create value: %w", err)
	}

	// Replace in place, keeping the original VR
	for i, e := range d.Data.Elements {
		if e.Tag == t {
			d.Data.Elements[i] = &dicom.Element{
				Tag:                    t,
				ValueRepresentation:    e.ValueRepresentation,
				RawValueRepresentation: e.RawValueRepresentation,
				ValueLength:            uint32(len(value)),
				Value:                  newValue,
			}
			return nil
		}
	}

	elem, err := dicom.NewElement(t, []string{value})
	if err != nil {
		return fmt.Errorf("could not create element %s: %w", t, err)
	}
	d.insert(elem)
	return nil
}

// ClearTag clears a tag value (sets to empty string). Absent tags are left absent.
func (d *Dataset) ClearTag(t tag.Tag) error {
	if _, ok := d.Lookup(t); !ok {
		return nil
	}
	return d.SetString(t, "")
}

// Remove deletes a top-level element and reports whether it was present.
func (d *Dataset) Remove(t tag.Tag) bool {
	for i, e := range d.Data.Elements {
		if e.Tag == t {
			d.Data.Elements = append(d.Data.Elements[:i], d.Data.Elements[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Dataset) insert(elem *dicom.Element) {
	els := d.Data.Elements
	i := sort.Search(len(els), func(i int) bool {
		return !tagLess(els[i].Tag, elem.Tag)
	})
	els = append(els, nil)
	copy(els[i+1:], els[i:])
	els[i] = elem
	d.Data.Elements = els
}

func tagLess(a, b tag.Tag) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Element < b.Element
}

// Save writes the DICOM dataset to a file. The transfer syntax recorded in the
// file meta is kept, so encapsulated pixel data is written back untouched.
func (d *Dataset) Save(outputPath string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}

	// Write DICOM with relaxed verification (many real-world DICOM files
	// don't strictly follow VR specifications)
	if err := dicom.Write(file, d.Data,
		dicom.SkipVRVerification(),
		dicom.SkipValueTypeVerification(),
		dicom.DefaultMissingTransferSyntax(),
	); err != nil {
		file.Close()
		return fmt.Errorf("could not write DICOM: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("could not close output file: %w", err)
	}
	return nil
}
