package progress

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CrosswalkHeader is the first line of every crosswalk file.
var CrosswalkHeader = []string{
	"PatientID",
	"PatientName",
	"Pseudoname",
	"StudyDate",
	"OldStudyInstanceUID",
	"NewStudyInstanceUID",
}

// CrosswalkFilename returns the crosswalk file name for a pseudonym prefix.
func CrosswalkFilename(prefix string) string {
	return prefix + "anonym_output.csv"
}

// CrosswalkEntry is one completed study.
type CrosswalkEntry struct {
	PatientID   string
	PatientName string
	Pseudonym   string
	StudyDate   string
	OldStudyUID string
	NewStudyUID string
}

func (e CrosswalkEntry) record() []string {
	return []string{e.PatientID, e.PatientName, e.Pseudonym, e.StudyDate, e.OldStudyUID, e.NewStudyUID}
}

// Crosswalk appends re-identification rows to a CSV file. Every row is
// flushed as it is written so an interrupted run keeps what it finished.
type Crosswalk struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
	rows int
}

// NewCrosswalk creates (or truncates) the crosswalk file and writes the header.
func NewCrosswalk(path string) (*Crosswalk, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("could not create crosswalk directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create crosswalk file: %w", err)
	}

	c := &Crosswalk{path: path, file: file, w: csv.NewWriter(file)}
	if err := c.write(CrosswalkHeader); err != nil {
		file.Close()
		return nil, err
	}
	return c, nil
}

// Append writes one row.
func (c *Crosswalk) Append(e CrosswalkEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(e.record()); err != nil {
		return err
	}
	c.rows++
	return nil
}

func (c *Crosswalk) write(record []string) error {
	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("could not write crosswalk row: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("could not flush crosswalk: %w", err)
	}
	return nil
}

// Rows returns the number of data rows written.
func (c *Crosswalk) Rows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

// Path returns the crosswalk file path.
func (c *Crosswalk) Path() string {
	return c.path
}

// Close flushes and closes the file.
func (c *Crosswalk) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}
