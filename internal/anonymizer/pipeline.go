package anonymizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// NamingMode selects output file names inside a study directory.
type NamingMode string

const (
	NamingHex         NamingMode = "hex"          // 00000000, 00000001, ...
	NamingModalitySOP NamingMode = "modality-sop" // <Modality><SOPInstanceUID>
)

// ParseNamingMode maps a user-facing name onto a NamingMode.
func ParseNamingMode(s string) (NamingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hex":
		return NamingHex, nil
	case "modality-sop", "modality_sop", "modality-sopinstuid":
		return NamingModalitySOP, nil
	}
	return "", fmt.Errorf("unknown filename mode %q", s)
}

// defaultModality is used in file names when a record has no Modality.
const defaultModality = "OT"

// Filename returns the output file name for the record at position.
func (m NamingMode) Filename(position int, modality, instanceUID string) string {
	if m == NamingModalitySOP {
		if modality == "" {
			modality = defaultModality
		}
		return modality + instanceUID
	}
	return fmt.Sprintf("%08X", position)
}

// Pipeline applies the resolved profile and identifier rewrites to records.
type Pipeline struct {
	actions []FieldAction
	gen     IDGenerator
	naming  NamingMode
}

// NewPipeline builds a pipeline for a profile.
func NewPipeline(profile Profile, gen IDGenerator, naming NamingMode) *Pipeline {
	return &Pipeline{
		actions: profile.Actions(),
		gen:     gen,
		naming:  naming,
	}
}

// Apply rewrites rec for study st and saves it under st.OutputDir. position is
// the record's index within the study. It returns the output path.
func (p *Pipeline) Apply(rec Record, st *Study, uids *UIDRemapper, position int) (string, error) {
	// Original identity for the crosswalk; absent fields stay empty
	captureIdentity(rec, st)

	if err := p.applyProfile(rec, st.Pseudonym); err != nil {
		return "", studyErr(KindInvariant, st.Dir, err)
	}

	if err := remapSeries(rec, uids); err != nil {
		return "", studyErr(KindInvariant, st.Dir, err)
	}

	instanceUID, err := p.assignInstance(rec)
	if err != nil {
		return "", studyErr(KindInvariant, st.Dir, err)
	}

	if err := rec.SetString(tag.StudyInstanceUID, st.NewStudyUID); err != nil {
		return "", studyErr(KindInvariant, st.Dir, fmt.Errorf("could not set StudyInstanceUID: %w", err))
	}

	if _, err := SweepInvalidTags(rec); err != nil {
		return "", studyErr(KindInvariant, st.Dir, err)
	}

	modality, _ := rec.Lookup(tag.Modality)
	outputPath := filepath.Join(st.OutputDir, p.naming.Filename(position, modality, instanceUID))
	if err := rec.Save(outputPath); err != nil {
		return "", studyErr(KindRecordIO, outputPath, err)
	}
	return outputPath, nil
}

func captureIdentity(rec Fields, st *Study) {
	if st.PatientName == "" {
		st.PatientName, _ = rec.Lookup(tag.PatientName)
	}
	if st.PatientID == "" {
		st.PatientID, _ = rec.Lookup(tag.PatientID)
	}
}

func (p *Pipeline) applyProfile(rec Record, pseudonym string) error {
	for _, fa := range p.actions {
		var err error
		switch fa.Action.Kind {
		case ActionRetain:
			continue
		case ActionClear:
			err = rec.ClearTag(fa.Tag)
		case ActionReplace:
			err = rec.SetString(fa.Tag, fa.Action.Value)
		case ActionPseudonym:
			err = rec.SetString(fa.Tag, pseudonym)
		case ActionRemove:
			rec.Remove(fa.Tag)
		default:
			err = fmt.Errorf("unknown action %d", fa.Action.Kind)
		}
		if err != nil {
			return fmt.Errorf("%s %s (%s): %w", fa.Action.Kind, fa.Tag, fa.Category, err)
		}
	}
	return nil
}

func remapSeries(rec Record, uids *UIDRemapper) error {
	old, _ := rec.Lookup(tag.SeriesInstanceUID)
	uid, err := uids.Resolve(old)
	if err != nil {
		return fmt.Errorf("could not remap SeriesInstanceUID: %w", err)
	}
	if err := rec.SetString(tag.SeriesInstanceUID, uid); err != nil {
		return fmt.Errorf("could not set SeriesInstanceUID: %w", err)
	}
	return nil
}

// assignInstance writes a fresh instance UID to the dataset and the file meta.
func (p *Pipeline) assignInstance(rec Record) (string, error) {
	uid, err := p.gen.NewUID()
	if err != nil {
		return "", fmt.Errorf("could not generate SOPInstanceUID: %w", err)
	}
	if err := rec.SetString(tag.SOPInstanceUID, uid); err != nil {
		return "", fmt.Errorf("could not set SOPInstanceUID: %w", err)
	}
	if err := rec.SetString(tag.MediaStorageSOPInstanceUID, uid); err != nil {
		return "", fmt.Errorf("could not set MediaStorageSOPInstanceUID: %w", err)
	}
	return uid, nil
}

// SweepInvalidTags removes every top-level field the record does not
// recognize and returns how many were removed. Running it twice removes
// nothing the second time.
func SweepInvalidTags(rec Record) (int, error) {
	removed := 0
	for _, t := range rec.Tags() {
		if rec.IsRecognized(t) {
			continue
		}
		if !rec.Remove(t) {
			return removed, fmt.Errorf("%w: listed tag %s could not be removed", ErrCorruptRecord, t)
		}
		removed++
	}
	return removed, nil
}
