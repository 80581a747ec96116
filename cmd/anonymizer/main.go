package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dicom-deid/internal/anonymizer"
	"dicom-deid/internal/cli"
	"dicom-deid/internal/identity"
)

var version = "dev"

// flags mirrors the command line. Values only override the config file when
// the flag was set explicitly.
type flags struct {
	config string

	prefix              string
	pseudonymRandom     bool
	pseudonymInteger    bool
	pseudonymFile       string
	pseudonymBase       int
	pseudonymLength     int
	retainPatient       bool
	retainDevice        bool
	retainInstitution   bool
	printProfiles       bool
	fnoRoot             bool
	offisRoot           bool
	customRoot          string
	outDirectory        string
	filenameHex         bool
	filenameModalitySOP bool
	workers             int
	logLevel            string
	logFormat           string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "dicom-anonymizer [in-directory]",
		Short: "De-identify folders of DICOM studies",
		Long: `Anonymizes every study directory under in-directory using the DICOM
Basic Application Confidentiality Profile, optionally retaining patient
characteristics, device identity or institution identity.

Each study gets a pseudonym and fresh UIDs. A crosswalk CSV mapping original
identities to pseudonyms is written to the output directory.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.printProfiles {
				cli.PrintProfiles(cmd.OutOrStdout())
				return nil
			}

			opts, err := f.options(cmd, args)
			if err != nil {
				return err
			}
			if opts.InputFolder == "" {
				return fmt.Errorf("in-directory is required")
			}
			return cli.Run(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "YAML options file; explicit flags override it")
	fs.StringVarP(&f.prefix, "prefix", "p", "", "prefix for pseudonyms and the crosswalk file name")
	fs.BoolVar(&f.pseudonymRandom, "pseudoname-random", false, "random alphanumeric pseudonyms (default)")
	fs.BoolVar(&f.pseudonymInteger, "pseudoname-integer", false, "sequential zero-padded pseudonyms")
	fs.StringVar(&f.pseudonymFile, "pseudoname-file", "", "CSV or YAML file mapping PatientID to pseudonym")
	fs.IntVar(&f.pseudonymBase, "pseudoname-base", 1, "first value for sequential pseudonyms")
	fs.IntVar(&f.pseudonymLength, "pseudoname-length", identity.DefaultRandomLength, "length of random pseudonyms")
	fs.BoolVar(&f.retainPatient, "retain-patient-charac-tags", false, "Retain Patient Characteristics Option (DCM_113108)")
	fs.BoolVar(&f.retainDevice, "retain-device-tags", false, "Retain Device Identity Option (DCM_113109)")
	fs.BoolVar(&f.retainInstitution, "retain-institution-tags", false, "Retain Institution Identity Option (DCM_113112)")
	fs.BoolVar(&f.printProfiles, "print-anon-profiles", false, "list supported de-identification methods and exit")
	fs.BoolVar(&f.fnoRoot, "fno-uid-root", false, "generate UIDs under "+identity.FNORoot+" (default)")
	fs.BoolVar(&f.offisRoot, "offis-uid-root", false, "generate UIDs under "+identity.OFFISRoot)
	fs.StringVar(&f.customRoot, "custom-uid-root", "", "generate UIDs under this root")
	fs.StringVarP(&f.outDirectory, "out-directory", "o", cli.DefaultOutputFolder, "output directory")
	fs.BoolVar(&f.filenameHex, "filename-hex", false, "name output files by sequence number in hex (default)")
	fs.BoolVar(&f.filenameModalitySOP, "filename-modality-sop", false, "name output files by modality and SOPInstanceUID")
	fs.IntVarP(&f.workers, "workers", "j", 1, "studies processed in parallel")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "text", "log format: text or json")

	cmd.MarkFlagsMutuallyExclusive("pseudoname-random", "pseudoname-integer", "pseudoname-file")
	cmd.MarkFlagsMutuallyExclusive("fno-uid-root", "offis-uid-root", "custom-uid-root")
	cmd.MarkFlagsMutuallyExclusive("filename-hex", "filename-modality-sop")

	return cmd
}

// options layers defaults, the config file and explicitly set flags.
func (f *flags) options(cmd *cobra.Command, args []string) (cli.Options, error) {
	opts := cli.DefaultOptions()
	if f.config != "" {
		var err error
		opts, err = cli.LoadConfigFile(f.config, opts)
		if err != nil {
			return opts, err
		}
	}

	if len(args) == 1 {
		opts.InputFolder = args[0]
	}

	changed := cmd.Flags().Changed

	if changed("prefix") {
		opts.Prefix = f.prefix
	}
	switch {
	case f.pseudonymRandom:
		opts.Pseudonym = string(identity.StrategyRandom)
	case f.pseudonymInteger:
		opts.Pseudonym = string(identity.StrategySequential)
	case f.pseudonymFile != "":
		opts.Pseudonym = string(identity.StrategyFile)
		opts.PseudonymFile = f.pseudonymFile
	}
	if changed("pseudoname-base") {
		opts.PseudonymBase = f.pseudonymBase
	}
	if changed("pseudoname-length") {
		opts.PseudonymLength = f.pseudonymLength
	}

	if f.retainPatient {
		opts.Retain = append(opts.Retain, string(anonymizer.RetainPatientCharacteristics))
	}
	if f.retainDevice {
		opts.Retain = append(opts.Retain, string(anonymizer.RetainDeviceIdentity))
	}
	if f.retainInstitution {
		opts.Retain = append(opts.Retain, string(anonymizer.RetainInstitutionIdentity))
	}

	switch {
	case f.fnoRoot:
		opts.UIDRoot = identity.FNORoot
	case f.offisRoot:
		opts.UIDRoot = identity.OFFISRoot
	case f.customRoot != "":
		opts.UIDRoot = f.customRoot
	}

	if changed("out-directory") {
		opts.OutputFolder = f.outDirectory
	}

	switch {
	case f.filenameHex:
		opts.Filenames = string(anonymizer.NamingHex)
	case f.filenameModalitySOP:
		opts.Filenames = string(anonymizer.NamingModalitySOP)
	}

	if changed("workers") {
		opts.Workers = f.workers
	}
	if changed("log-level") {
		opts.LogLevel = f.logLevel
	}
	if changed("log-format") {
		opts.LogFormat = f.logFormat
	}

	return opts, nil
}
