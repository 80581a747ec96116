package anonymizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	dcm "dicom-deid/internal/dicom"
	"dicom-deid/internal/identity"
	"dicom-deid/internal/progress"
)

// ErrorLogName is the failure log written to the output root.
const ErrorLogName = "errors.log"

// Config holds the anonymization configuration. It is read-only for the run.
type Config struct {
	InputFolder  string
	OutputFolder string
	Profile      Profile
	Pseudonym    identity.AllocatorConfig
	UIDRoot      string
	Naming       NamingMode
	Workers      int          // studies processed in parallel; zero means 1
	Logger       *slog.Logger // nil discards log output
	Store        Store        // nil selects DicomStore
	Generator    IDGenerator  // nil selects a UIDGenerator for UIDRoot
}

// Stats holds processing statistics
type Stats struct {
	Studies   int
	Completed int
	Failed    int
	Skipped   int
	Records   int

	CrosswalkFile string
	ErrorLogFile  string
	ErrorSummary  string
	Errors        []progress.ErrorEntry // failed and skipped studies, in completion order
}

// ProgressCallback is called after each study with its terminal status.
type ProgressCallback func(current, total int, study string, status StudyStatus)

// Validate checks everything that can be checked before any study is touched.
func (c Config) Validate() error {
	if c.InputFolder == "" {
		return studyErr(KindConfig, "", fmt.Errorf("input folder is required"))
	}
	info, err := os.Stat(c.InputFolder)
	if err != nil {
		return studyErr(KindConfig, c.InputFolder, fmt.Errorf("input folder does not exist: %w", err))
	}
	if !info.IsDir() {
		return studyErr(KindConfig, c.InputFolder, fmt.Errorf("input path is not a directory"))
	}

	if c.OutputFolder == "" {
		return studyErr(KindConfig, "", fmt.Errorf("output folder is required"))
	}
	if _, err := ParseNamingMode(string(c.Naming)); err != nil {
		return studyErr(KindConfig, "", err)
	}
	if c.Workers < 0 {
		return studyErr(KindConfig, "", fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.Generator == nil {
		if err := identity.ValidateUIDRoot(c.UIDRoot); err != nil {
			return studyErr(KindConfig, "", err)
		}
	}
	if err := identity.ValidatePathComponent(c.Pseudonym.Prefix); err != nil {
		return studyErr(KindConfig, "", fmt.Errorf("invalid prefix: %w", err))
	}
	switch c.Pseudonym.Strategy {
	case "", identity.StrategyRandom, identity.StrategySequential:
	case identity.StrategyFile:
		if c.Pseudonym.RegistryFile == "" {
			return studyErr(KindConfig, "", fmt.Errorf("pseudonym strategy %q requires a registry file", c.Pseudonym.Strategy))
		}
	default:
		return studyErr(KindConfig, "", fmt.Errorf("unknown pseudonym strategy %q", c.Pseudonym.Strategy))
	}
	return nil
}

// ProcessFolder anonymizes every study directory under cfg.InputFolder.
// Study failures are reported through Stats and the error log; only
// configuration problems and cancellation return an error.
func ProcessFolder(ctx context.Context, cfg Config, progressCb ProgressCallback) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	gen := cfg.Generator
	if gen == nil {
		g, err := identity.NewUIDGenerator(cfg.UIDRoot)
		if err != nil {
			return nil, studyErr(KindConfig, "", err)
		}
		gen = g
	}

	store := cfg.Store
	if store == nil {
		store = DicomStore{}
	}

	naming, _ := ParseNamingMode(string(cfg.Naming))

	workers := cfg.Workers
	if workers == 0 {
		workers = 1
	}

	// Find study directories
	dirs, err := dcm.FindStudyDirs(cfg.InputFolder, cfg.OutputFolder)
	if err != nil {
		return nil, studyErr(KindConfig, cfg.InputFolder, err)
	}
	if len(dirs) == 0 {
		return nil, studyErr(KindConfig, cfg.InputFolder, fmt.Errorf("no study directories found"))
	}
	log.Info("found studies", "count", len(dirs), "input", cfg.InputFolder)

	allocator, err := identity.NewAllocator(cfg.Pseudonym, len(dirs))
	if err != nil {
		return nil, studyErr(KindConfig, cfg.Pseudonym.RegistryFile, err)
	}

	if err := os.MkdirAll(cfg.OutputFolder, 0755); err != nil {
		return nil, studyErr(KindConfig, cfg.OutputFolder, fmt.Errorf("could not create output directory: %w", err))
	}

	crosswalk, err := progress.NewCrosswalk(filepath.Join(cfg.OutputFolder, progress.CrosswalkFilename(cfg.Pseudonym.Prefix)))
	if err != nil {
		return nil, studyErr(KindConfig, cfg.OutputFolder, err)
	}
	defer crosswalk.Close()

	errorLogger, err := progress.NewErrorLogger(filepath.Join(cfg.OutputFolder, ErrorLogName))
	if err != nil {
		return nil, studyErr(KindConfig, cfg.OutputFolder, fmt.Errorf("could not create error logger: %w", err))
	}
	defer errorLogger.Close()

	r := &run{
		stats: &Stats{
			Studies:       len(dirs),
			CrosswalkFile: crosswalk.Path(),
			ErrorLogFile:  filepath.Join(cfg.OutputFolder, ErrorLogName),
		},
		crosswalk:   crosswalk,
		errorLogger: errorLogger,
		progressCb:  progressCb,
		log:         log,
	}

	pipeline := NewPipeline(cfg.Profile, gen, naming)

	jobs := make(chan *Study)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i, dir := range dirs {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case jobs <- &Study{Dir: dir, Index: i}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range workers {
		sa := NewStudyAnonymizer(store, allocator, gen, pipeline, cfg.OutputFolder, log)
		g.Go(func() error {
			for st := range jobs {
				r.finish(st, sa.Anonymize(gctx, st))
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	r.stats.Errors = errorLogger.Entries()
	r.stats.ErrorSummary = errorLogger.Summary()
	if err != nil {
		return r.stats, err
	}

	log.Info("run complete",
		"completed", r.stats.Completed,
		"failed", r.stats.Failed,
		"skipped", r.stats.Skipped,
		"errors", errorLogger.ErrorCount(),
		"crosswalk", crosswalk.Path(),
		"crosswalk_rows", crosswalk.Rows())

	return r.stats, nil
}

// run collects study outcomes; finish may be called from several workers.
type run struct {
	mu          sync.Mutex
	done        int
	stats       *Stats
	crosswalk   *progress.Crosswalk
	errorLogger *progress.ErrorLogger
	progressCb  ProgressCallback
	log         *slog.Logger
}

func (r *run) finish(st *Study, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		err = r.crosswalk.Append(progress.CrosswalkEntry{
			PatientID:   st.PatientID,
			PatientName: st.PatientName,
			Pseudonym:   st.Pseudonym,
			StudyDate:   st.StudyDate,
			OldStudyUID: st.OldStudyUID,
			NewStudyUID: st.NewStudyUID,
		})
		if err != nil {
			err = studyErr(KindRecordIO, r.crosswalk.Path(), err)
		}
	}

	status := StatusCompleted
	if err != nil {
		kind, ok := KindOf(err)
		kindName := kind.String()
		if !ok {
			kindName = "canceled"
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				kindName = KindInvariant.String()
			}
		}

		if ok && kind == KindDiscovery {
			status = StatusSkipped
			r.stats.Skipped++
			r.log.Warn("skipping study", "study", st.Dir, "error", err)
		} else {
			status = StatusFailed
			r.stats.Failed++
			r.log.Error("error while anonymizing study", "study", st.Dir, "kind", kindName, "error", err)
		}
		r.errorLogger.Log(st.Dir, kindName, err.Error())
	} else {
		r.stats.Completed++
		r.log.Info("study anonymized", "study", st.Dir, "pseudonym", st.Pseudonym, "records", st.Records)
	}
	r.stats.Records += st.Records

	r.done++
	if r.progressCb != nil {
		r.progressCb(r.done, r.stats.Studies, st.Dir, status)
	}
}
