package dicom

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const explicitVRLittleEndian = "1.2.840.10008.1.2.1"

func mustElement(t *testing.T, tg tag.Tag, data any) *dicom.Element {
	t.Helper()
	elem, err := dicom.NewElement(tg, data)
	require.NoError(t, err)
	return elem
}

func getString(d *Dataset, t tag.Tag) string {
	v, _ := d.Lookup(t)
	return v
}

func newTestDataset(t *testing.T) *Dataset {
	t.Helper()
	return &Dataset{Data: dicom.Dataset{Elements: []*dicom.Element{
		mustElement(t, tag.FileMetaInformationVersion, []byte{0x00, 0x01}),
		mustElement(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustElement(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3.4.5"}),
		mustElement(t, tag.TransferSyntaxUID, []string{explicitVRLittleEndian}),
		mustElement(t, tag.SOPInstanceUID, []string{"1.2.3.4.5"}),
		mustElement(t, tag.StudyDate, []string{"20200101"}),
		mustElement(t, tag.Modality, []string{"CT"}),
		mustElement(t, tag.PatientName, []string{"DOE^JANE"}),
		mustElement(t, tag.StudyInstanceUID, []string{"1.2.3"}),
	}}}
}

func TestLookup(t *testing.T) {
	ds := newTestDataset(t)

	v, ok := ds.Lookup(tag.PatientName)
	assert.True(t, ok)
	assert.Equal(t, "DOE^JANE", v)
	assert.Equal(t, "CT", getString(ds, tag.Modality))
	assert.Equal(t, explicitVRLittleEndian, getString(ds, tag.TransferSyntaxUID))

	_, ok = ds.Lookup(tag.PatientID)
	assert.False(t, ok)
	assert.Empty(t, getString(ds, tag.PatientID))
}

func TestLookupJoinsMultipleValues(t *testing.T) {
	ds := &Dataset{Data: dicom.Dataset{Elements: []*dicom.Element{
		mustElement(t, tag.ImageType, []string{"ORIGINAL", "PRIMARY "}),
	}}}
	v, ok := ds.Lookup(tag.ImageType)
	assert.True(t, ok)
	assert.Equal(t, `ORIGINAL\PRIMARY`, v)
}

func TestSetStringReplacesInPlace(t *testing.T) {
	ds := newTestDataset(t)
	before := ds.Tags()

	require.NoError(t, ds.SetString(tag.PatientName, "SUBJ01"))
	assert.Equal(t, "SUBJ01", getString(ds, tag.PatientName))
	assert.Equal(t, before, ds.Tags())
}

func TestSetStringInsertsInTagOrder(t *testing.T) {
	ds := newTestDataset(t)

	require.NoError(t, ds.SetString(tag.PatientID, "SUBJ01"))
	assert.Equal(t, "SUBJ01", getString(ds, tag.PatientID))

	tags := ds.Tags()
	for i := 1; i < len(tags); i++ {
		assert.True(t, tagLess(tags[i-1], tags[i]), "%s before %s", tags[i-1], tags[i])
	}
}

func TestClearTag(t *testing.T) {
	ds := newTestDataset(t)

	require.NoError(t, ds.ClearTag(tag.PatientName))
	v, ok := ds.Lookup(tag.PatientName)
	assert.True(t, ok)
	assert.Empty(t, v)

	n := len(ds.Tags())
	require.NoError(t, ds.ClearTag(tag.InstitutionName))
	_, ok = ds.Lookup(tag.InstitutionName)
	assert.False(t, ok)
	assert.Len(t, ds.Tags(), n)
}

func TestRemove(t *testing.T) {
	ds := newTestDataset(t)

	assert.True(t, ds.Remove(tag.StudyDate))
	_, ok := ds.Lookup(tag.StudyDate)
	assert.False(t, ok)
	assert.False(t, ds.Remove(tag.StudyDate))
}

func TestIsRecognized(t *testing.T) {
	tests := []struct {
		name string
		tag  tag.Tag
		want bool
	}{
		{"patient name", tag.PatientName, true},
		{"group length", tag.Tag{Group: 0x0011, Element: 0x0000}, true},
		{"private", tag.Tag{Group: 0x0011, Element: 0x1010}, false},
		{"first overlay group", tag.Tag{Group: 0x6000, Element: 0x3000}, true},
		{"repeated overlay group", tag.Tag{Group: 0x6002, Element: 0x0010}, true},
		{"last overlay group", tag.Tag{Group: 0x601E, Element: 0x0100}, true},
		{"odd overlay group", tag.Tag{Group: 0x6001, Element: 0x0010}, false},
		{"past overlay range", tag.Tag{Group: 0x6020, Element: 0x0010}, false},
		{"unknown overlay element", tag.Tag{Group: 0x6002, Element: 0x0013}, false},
		{"curve group", tag.Tag{Group: 0x5004, Element: 0x3000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRecognized(tt.tag))
		})
	}
}

func TestTagName(t *testing.T) {
	assert.Equal(t, "PatientName", TagName(tag.PatientName))
	assert.Equal(t, "OverlayRows", TagName(tag.Tag{Group: 0x6004, Element: 0x0010}))
	assert.Equal(t, "CurveData", TagName(tag.Tag{Group: 0x5002, Element: 0x3000}))
	assert.Empty(t, TagName(tag.Tag{Group: 0x0011, Element: 0x1010}))
}

func TestSaveAndRead(t *testing.T) {
	ds := newTestDataset(t)
	require.NoError(t, ds.SetString(tag.PatientID, "SUBJ01"))
	require.NoError(t, ds.SetString(tag.PatientName, "SUBJ01"))

	out := filepath.Join(t.TempDir(), "nested", "00000000")
	require.NoError(t, ds.Save(out))

	for _, read := range []func(string) (*Dataset, error){ReadDicom, ReadDicomMetadataOnly} {
		got, err := read(out)
		require.NoError(t, err)
		assert.Equal(t, out, got.FilePath)
		assert.Equal(t, "SUBJ01", getString(got, tag.PatientID))
		assert.Equal(t, "SUBJ01", getString(got, tag.PatientName))
		assert.Equal(t, "1.2.3", getString(got, tag.StudyInstanceUID))
		assert.Equal(t, explicitVRLittleEndian, getString(got, tag.TransferSyntaxUID))
	}
}

func TestReadDicomErrors(t *testing.T) {
	_, err := ReadDicom(filepath.Join(t.TempDir(), "missing.dcm"))
	assert.Error(t, err)
}
