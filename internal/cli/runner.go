package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"

	"dicom-deid/internal/anonymizer"
	dcm "dicom-deid/internal/dicom"
)

// Run executes the CLI anonymization process. Human-readable output goes to
// stdout, structured logs to stderr.
func Run(ctx context.Context, opts Options, stdout, stderr io.Writer) error {
	log, err := NewLogger(stderr, opts.LogLevel, opts.LogFormat)
	if err != nil {
		return err
	}

	cfg, err := opts.AnonymizerConfig(log)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	printHeader(stdout, opts, cfg.Profile)

	pb := newProgressBar(stdout, 50)
	progressCallback := func(current, total int, _ string, _ anonymizer.StudyStatus) {
		pb.update(current, total)
	}

	fmt.Fprintln(stdout)
	stats, err := anonymizer.ProcessFolder(ctx, cfg, progressCallback)
	if stats != nil && stats.Studies > 0 {
		fmt.Fprintln(stdout)
	}
	if err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	printSummary(stdout, stats, cfg.OutputFolder)
	return nil
}

// PrintProfiles lists the supported de-identification methods and the field
// actions of the basic profile.
func PrintProfiles(w io.Writer) {
	fmt.Fprintln(w, "Supported de-identification methods:")
	for _, m := range anonymizer.Methods {
		name := string(m.Option)
		if name == "" {
			name = "(always applied)"
		}
		fmt.Fprintf(w, "  %-12s %-45s %s\n", m.Code, m.Name, name)
		fmt.Fprintf(w, "  %-12s %s\n", "", m.Description)
	}

	basic, _ := anonymizer.NewProfile()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Field actions without retain options:")
	for _, a := range basic.Actions() {
		fmt.Fprintf(w, "  %-40s %-10s %s\n", tagName(a.Tag), a.Action.Kind, a.Category)
	}
}

func tagName(t tag.Tag) string {
	if name := dcm.TagName(t); name != "" {
		return t.String() + " " + name
	}
	return t.String()
}

// printHeader prints the CLI header with configuration
func printHeader(w io.Writer, opts Options, profile anonymizer.Profile) {
	fmt.Fprintln(w, "DICOM Anonymizer")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Input:     %s\n", opts.InputFolder)
	fmt.Fprintf(w, "Output:    %s\n", opts.OutputFolder)

	pseudonym := opts.Pseudonym
	if opts.PseudonymFile != "" {
		pseudonym += " (" + opts.PseudonymFile + ")"
	}
	if opts.Prefix != "" {
		pseudonym += ", prefix " + opts.Prefix
	}
	fmt.Fprintf(w, "Pseudonym: %s\n", pseudonym)
	fmt.Fprintf(w, "UID root:  %s\n", opts.UIDRoot)
	fmt.Fprintf(w, "Filenames: %s\n", opts.Filenames)

	var retained []string
	for _, o := range profile.Options() {
		retained = append(retained, string(o))
	}
	if len(retained) > 0 {
		fmt.Fprintf(w, "Retain:    %s\n", strings.Join(retained, ", "))
	}
	if opts.Workers > 1 {
		fmt.Fprintf(w, "Workers:   %d\n", opts.Workers)
	}
}

// printSummary prints the processing summary
func printSummary(w io.Writer, stats *anonymizer.Stats, outputFolder string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Complete! %d succeeded, %d failed, %d skipped\n",
		stats.Completed, stats.Failed, stats.Skipped)
	fmt.Fprintf(w, "Records:   %d written\n", stats.Records)
	fmt.Fprintf(w, "Output:    %s\n", outputFolder)
	fmt.Fprintf(w, "Crosswalk: %s\n", stats.CrosswalkFile)
	if len(stats.Errors) > 0 {
		fmt.Fprintf(w, "Errors:    %s\n", stats.ErrorSummary)
		for _, e := range stats.Errors {
			fmt.Fprintf(w, "  [%s] %s\n", e.Kind, e.Path)
		}
	}
}

// progressBar represents a terminal progress bar
type progressBar struct {
	w     io.Writer
	width int
}

func newProgressBar(w io.Writer, width int) *progressBar {
	return &progressBar{w: w, width: width}
}

func (pb *progressBar) update(current, total int) {
	if total == 0 {
		return
	}

	percent := float64(current) / float64(total)
	filled := int(percent * float64(pb.width))
	if filled > pb.width {
		filled = pb.width
	}

	bar := strings.Repeat("#", filled) + strings.Repeat("-", pb.width-filled)
	fmt.Fprintf(pb.w, "\r[%s] %3.0f%%  (%d/%d)", bar, percent*100, current, total)
}
