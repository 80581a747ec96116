package anonymizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "dicom-deid/internal/dicom"
	"dicom-deid/internal/identity"
)

// Study is one study directory and the identities assigned to it.
type Study struct {
	Dir   string
	Index int // position in discovery order
	Files []string

	// Original identity, captured from the first record
	PatientID   string
	PatientName string
	StudyDate   string
	OldStudyUID string

	// Assigned identity
	Pseudonym   string
	NewStudyUID string
	OutputDir   string

	Records int // records written
}

// StudyStatus is the terminal state of a study.
type StudyStatus string

const (
	StatusCompleted StudyStatus = "completed"
	StatusFailed    StudyStatus = "failed"
	StatusSkipped   StudyStatus = "skipped"
)

// StudyAnonymizer processes one study at a time. It is not safe for
// concurrent use; run one per worker.
type StudyAnonymizer struct {
	store      Store
	allocator  identity.Allocator
	gen        IDGenerator
	uids       *UIDRemapper
	pipeline   *Pipeline
	outputRoot string
	log        *slog.Logger
}

// NewStudyAnonymizer wires a study anonymizer. Each instance owns its UID
// remapper.
func NewStudyAnonymizer(store Store, allocator identity.Allocator, gen IDGenerator, pipeline *Pipeline, outputRoot string, log *slog.Logger) *StudyAnonymizer {
	return &StudyAnonymizer{
		store:      store,
		allocator:  allocator,
		gen:        gen,
		uids:       NewUIDRemapper(gen),
		pipeline:   pipeline,
		outputRoot: outputRoot,
		log:        log,
	}
}

// Anonymize runs the study through discovery, pseudonym allocation and the
// pipeline. The first failure abandons the remaining records; files already
// written stay on disk.
func (s *StudyAnonymizer) Anonymize(ctx context.Context, st *Study) error {
	files, err := dcm.FindDicomFiles(st.Dir, true)
	if err != nil {
		return studyErr(KindDiscovery, st.Dir, err)
	}
	if len(files) == 0 {
		return studyErr(KindDiscovery, st.Dir, ErrNoRecords)
	}
	st.Files = files
	s.log.Debug("found study files", "study", st.Dir, "files", len(files))

	if err := s.probe(st); err != nil {
		return err
	}

	pseudonym, err := s.allocator.Allocate(identity.Subject{Index: st.Index, PatientID: st.PatientID})
	if err != nil {
		return studyErr(KindConfig, st.Dir, err)
	}
	st.Pseudonym = pseudonym

	st.NewStudyUID, err = s.gen.NewUID()
	if err != nil {
		return studyErr(KindInvariant, st.Dir, fmt.Errorf("could not generate StudyInstanceUID: %w", err))
	}

	st.OutputDir = filepath.Join(s.outputRoot, pseudonym)
	if _, err := os.Stat(st.OutputDir); err == nil {
		s.log.Info("output directory exists, overwriting files", "dir", st.OutputDir)
	}
	if err := os.MkdirAll(st.OutputDir, 0755); err != nil {
		return studyErr(KindRecordIO, st.OutputDir, fmt.Errorf("could not create study output directory: %w", err))
	}
	s.log.Info("applying pseudonym", "study", st.Dir, "pseudonym", pseudonym)

	s.uids.Reset()

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := s.store.Load(f)
		if err != nil {
			return studyErr(KindRecordIO, f, err)
		}

		out, err := s.pipeline.Apply(rec, st, s.uids, i)
		if err != nil {
			return err
		}
		st.Records++
		s.log.Debug("wrote record", "input", f, "output", out)
	}

	return nil
}

// probe captures the crosswalk identity from the first record.
func (s *StudyAnonymizer) probe(st *Study) error {
	first := st.Files[0]
	fields, err := s.store.LoadHeader(first)
	if err != nil {
		return studyErr(KindRecordIO, first, err)
	}

	st.PatientID, _ = fields.Lookup(tag.PatientID)
	st.PatientName, _ = fields.Lookup(tag.PatientName)
	st.StudyDate, _ = fields.Lookup(tag.StudyDate)
	st.OldStudyUID, _ = fields.Lookup(tag.StudyInstanceUID)
	return nil
}
