package anonymizer

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNoRecords        = errors.New("no DICOM files found in study")
	ErrRemapperNotReset = errors.New("uid remapper used before reset")
	ErrCorruptRecord    = errors.New("record field table is inconsistent")
)

// ErrorKind classifies why a study was not completed.
type ErrorKind int

const (
	KindConfig    ErrorKind = iota // bad configuration, e.g. registry miss
	KindDiscovery                  // study directory empty or unreadable
	KindRecordIO                   // a record could not be read or written
	KindInvariant                  // engine defect or corrupt field table
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindDiscovery:
		return "discovery"
	case KindRecordIO:
		return "record-io"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// StudyError reports a failure tied to a study or one of its records.
type StudyError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *StudyError) Error() string {
	return fmt.Sprintf("%s error at %s: %v", e.Kind, e.Path, e.Err)
}

func (e *StudyError) Unwrap() error {
	return e.Err
}

func studyErr(kind ErrorKind, path string, err error) *StudyError {
	return &StudyError{Kind: kind, Path: path, Err: err}
}

// KindOf returns the kind of a StudyError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var se *StudyError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}
