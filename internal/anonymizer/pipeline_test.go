package anonymizer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func sampleFields() map[tag.Tag]string {
	return map[tag.Tag]string{
		tag.PatientName:                "DOE^JANE",
		tag.PatientID:                  "PID0001",
		tag.PatientAddress:             "1 Main St",
		patientInstitutionResidence:    "Ward 4",
		tag.PatientAge:                 "042Y",
		tag.PatientSex:                 "F",
		tag.PatientWeight:              "70",
		tag.InstitutionName:            "General Hospital",
		tag.ReferringPhysicianName:     "HOUSE^G",
		tag.StationName:                "CT01",
		tag.Modality:                   "CT",
		tag.StudyDate:                  "20200101",
		tag.StudyInstanceUID:           "1.2.3",
		tag.SeriesInstanceUID:          "1.2.3.1",
		tag.SOPInstanceUID:             "1.2.3.1.1",
		tag.MediaStorageSOPInstanceUID: "1.2.3.1.1",
		privateTag:                     "vendor data",
	}
}

func newTestStudy(t *testing.T) *Study {
	return &Study{
		Dir:         "/in/study1",
		Pseudonym:   "SUBJ01",
		NewStudyUID: "9.999",
		OutputDir:   filepath.Join(t.TempDir(), "SUBJ01"),
	}
}

func applyOne(t *testing.T, profile Profile, naming NamingMode, fields map[tag.Tag]string) (*fakeRecord, string) {
	t.Helper()
	gen := &counterGen{}
	p := NewPipeline(profile, gen, naming)
	uids := NewUIDRemapper(gen)
	uids.Reset()

	rec := newFakeRecord(fields)
	out, err := p.Apply(rec, newTestStudy(t), uids, 0)
	require.NoError(t, err)
	return rec, out
}

func TestPipelineApplyBasicProfile(t *testing.T) {
	profile, err := NewProfile()
	require.NoError(t, err)

	rec, out := applyOne(t, profile, NamingHex, sampleFields())
	assert.Equal(t, "00000000", filepath.Base(out))

	get := func(tg tag.Tag) string {
		v, ok := rec.Lookup(tg)
		require.True(t, ok, tg)
		return v
	}

	assert.Equal(t, "SUBJ01", get(tag.PatientName))
	assert.Equal(t, "SUBJ01", get(tag.PatientID))
	assert.Empty(t, get(tag.PatientAddress))
	assert.Equal(t, UnknownAge, get(tag.PatientAge))
	assert.Equal(t, OtherSex, get(tag.PatientSex))
	assert.Empty(t, get(tag.PatientWeight))
	assert.Empty(t, get(tag.InstitutionName))
	assert.Empty(t, get(tag.ReferringPhysicianName))
	assert.Empty(t, get(tag.StationName))
	assert.Equal(t, "CT", get(tag.Modality))
	assert.Equal(t, "20200101", get(tag.StudyDate))

	_, ok := rec.Lookup(patientInstitutionResidence)
	assert.False(t, ok)
	_, ok = rec.Lookup(privateTag)
	assert.False(t, ok)

	// Clear does not insert absent fields
	_, ok = rec.Lookup(tag.InstitutionAddress)
	assert.False(t, ok)

	assert.Equal(t, "9.999", get(tag.StudyInstanceUID))
	assert.NotEqual(t, "1.2.3.1", get(tag.SeriesInstanceUID))
	assert.NotEqual(t, "1.2.3.1.1", get(tag.SOPInstanceUID))
	assert.Equal(t, get(tag.SOPInstanceUID), get(tag.MediaStorageSOPInstanceUID))
}

func TestPipelineApplyRetainsOptions(t *testing.T) {
	profile, err := NewProfile(allOptions...)
	require.NoError(t, err)

	rec, _ := applyOne(t, profile, NamingHex, sampleFields())

	for tg, want := range map[tag.Tag]string{
		tag.PatientAge:             "042Y",
		tag.PatientSex:             "F",
		tag.PatientWeight:          "70",
		tag.InstitutionName:        "General Hospital",
		tag.ReferringPhysicianName: "HOUSE^G",
		tag.StationName:            "CT01",
	} {
		got, ok := rec.Lookup(tg)
		assert.True(t, ok, tg)
		assert.Equal(t, want, got, tg)
	}

	// The basic profile still applies
	got, _ := rec.Lookup(tag.PatientName)
	assert.Equal(t, "SUBJ01", got)
	got, _ = rec.Lookup(tag.PatientAddress)
	assert.Empty(t, got)
}

func TestPipelineInsertsReplacedFields(t *testing.T) {
	profile, err := NewProfile()
	require.NoError(t, err)

	rec, _ := applyOne(t, profile, NamingHex, map[tag.Tag]string{tag.Modality: "MR"})

	for tg, want := range map[tag.Tag]string{
		tag.PatientName: "SUBJ01",
		tag.PatientID:   "SUBJ01",
		tag.PatientAge:  UnknownAge,
		tag.PatientSex:  OtherSex,
	} {
		got, ok := rec.Lookup(tg)
		assert.True(t, ok, tg)
		assert.Equal(t, want, got, tg)
	}
}

func TestPipelineSeriesMapping(t *testing.T) {
	profile, err := NewProfile()
	require.NoError(t, err)

	gen := &counterGen{}
	p := NewPipeline(profile, gen, NamingHex)
	uids := NewUIDRemapper(gen)
	uids.Reset()
	st := newTestStudy(t)

	series := func(old string, pos int) (string, string) {
		fields := sampleFields()
		fields[tag.SeriesInstanceUID] = old
		rec := newFakeRecord(fields)
		out, err := p.Apply(rec, st, uids, pos)
		require.NoError(t, err)
		v, _ := rec.Lookup(tag.SeriesInstanceUID)
		return v, out
	}

	a1, out1 := series("1.2.3.1", 0)
	a2, out2 := series("1.2.3.1", 1)
	b, out3 := series("1.2.3.2", 2)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Equal(t, "00000001", filepath.Base(out2))
	assert.Equal(t, "00000002", filepath.Base(out3))
	assert.NotEqual(t, out1, out2)
}

func TestPipelineSeriesAbsent(t *testing.T) {
	profile, err := NewProfile()
	require.NoError(t, err)

	fields := sampleFields()
	delete(fields, tag.SeriesInstanceUID)
	rec, _ := applyOne(t, profile, NamingHex, fields)

	v, ok := rec.Lookup(tag.SeriesInstanceUID)
	assert.True(t, ok)
	assert.NotEmpty(t, v)
}

func TestPipelineCapturesIdentity(t *testing.T) {
	profile, err := NewProfile()
	require.NoError(t, err)

	gen := &counterGen{}
	p := NewPipeline(profile, gen, NamingHex)
	uids := NewUIDRemapper(gen)
	uids.Reset()

	st := newTestStudy(t)
	_, err = p.Apply(newFakeRecord(sampleFields()), st, uids, 0)
	require.NoError(t, err)
	assert.Equal(t, "DOE^JANE", st.PatientName)
	assert.Equal(t, "PID0001", st.PatientID)

	// Already captured identity is not overwritten by later records
	other := sampleFields()
	other[tag.PatientName] = "ROE^RICHARD"
	_, err = p.Apply(newFakeRecord(other), st, uids, 1)
	require.NoError(t, err)
	assert.Equal(t, "DOE^JANE", st.PatientName)
}

func TestPipelineErrors(t *testing.T) {
	profile, err := NewProfile()
	require.NoError(t, err)

	t.Run("generator failure", func(t *testing.T) {
		gen := &counterGen{}
		p := NewPipeline(profile, &counterGen{err: errBoom}, NamingHex)
		uids := NewUIDRemapper(gen)
		uids.Reset()

		_, err := p.Apply(newFakeRecord(sampleFields()), newTestStudy(t), uids, 0)
		require.ErrorIs(t, err, errBoom)
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, KindInvariant, kind)
	})

	t.Run("remapper not reset", func(t *testing.T) {
		gen := &counterGen{}
		p := NewPipeline(profile, gen, NamingHex)

		_, err := p.Apply(newFakeRecord(sampleFields()), newTestStudy(t), NewUIDRemapper(gen), 0)
		require.ErrorIs(t, err, ErrRemapperNotReset)
	})

	t.Run("save failure", func(t *testing.T) {
		gen := &counterGen{}
		p := NewPipeline(profile, gen, NamingHex)
		uids := NewUIDRemapper(gen)
		uids.Reset()

		rec := newFakeRecord(sampleFields())
		rec.saveErr = errBoom
		_, err := p.Apply(rec, newTestStudy(t), uids, 0)
		require.ErrorIs(t, err, errBoom)
		kind, _ := KindOf(err)
		assert.Equal(t, KindRecordIO, kind)
	})
}

func TestNamingModeFilename(t *testing.T) {
	tests := []struct {
		name     string
		mode     NamingMode
		position int
		modality string
		uid      string
		want     string
	}{
		{"hex first", NamingHex, 0, "CT", "1.2", "00000000"},
		{"hex uppercase", NamingHex, 255, "CT", "1.2", "000000FF"},
		{"modality sop", NamingModalitySOP, 3, "MR", "9.1", "MR9.1"},
		{"missing modality", NamingModalitySOP, 3, "", "9.1", "OT9.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.Filename(tt.position, tt.modality, tt.uid))
		})
	}
}

func TestParseNamingMode(t *testing.T) {
	m, err := ParseNamingMode("")
	require.NoError(t, err)
	assert.Equal(t, NamingHex, m)

	m, err = ParseNamingMode("modality-sop")
	require.NoError(t, err)
	assert.Equal(t, NamingModalitySOP, m)

	_, err = ParseNamingMode("uuid")
	assert.Error(t, err)
}

func TestSweepInvalidTags(t *testing.T) {
	rec := newFakeRecord(sampleFields())
	n, err := SweepInvalidTags(rec)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = SweepInvalidTags(rec)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSweepInvalidTagsCorruptRecord(t *testing.T) {
	rec := newFakeRecord(sampleFields())
	rec.stuck = map[tag.Tag]bool{privateTag: true}

	_, err := SweepInvalidTags(rec)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestPipelineProfileCompleteness(t *testing.T) {
	for mask := 0; mask < 1<<len(allOptions); mask++ {
		var selected []Option
		for i, o := range allOptions {
			if mask&(1<<i) != 0 {
				selected = append(selected, o)
			}
		}

		profile, err := NewProfile(selected...)
		require.NoError(t, err)

		fields := map[tag.Tag]string{}
		for _, r := range Rules {
			for _, tg := range r.Tags {
				fields[tg] = "original " + tg.String()
			}
		}
		rec, _ := applyOne(t, profile, NamingHex, fields)

		for _, a := range profile.Actions() {
			got, ok := rec.Lookup(a.Tag)
			switch a.Action.Kind {
			case ActionRetain:
				assert.Equal(t, fields[a.Tag], got, "%v %s", selected, a.Category)
			case ActionRemove:
				assert.False(t, ok, "%v %s", selected, a.Category)
			default:
				assert.True(t, ok, "%v %s", selected, a.Category)
				assert.NotEqual(t, fields[a.Tag], got, "%v %s", selected, a.Category)
			}
		}
	}
}
