package dicom

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExcludedNames are filenames to skip
var ExcludedNames = map[string]bool{
	"DICOMDIR":    true,
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
	"README":      true,
	"README.md":   true,
	"LICENSE":     true,
}

// ExcludedExtensions are file extensions to skip
var ExcludedExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
	".xml":  true,
	".txt":  true,
	".md":   true,
	".log":  true,
	".csv":  true,
	".zip":  true,
	".tar":  true,
	".gz":   true,
	".7z":   true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".pdf":  true,
	".html": true,
	".htm":  true,
}

// ExcludedDirs are directory names to skip entirely
var ExcludedDirs = map[string]bool{
	".git":        true,
	"__MACOSX":    true,
	"__pycache__": true,
}

// FindStudyDirs lists the immediate sub-directories of root, one per study,
// sorted by path. Directories listed in exclude (e.g. an output directory
// nested inside the input) are left out.
func FindStudyDirs(root string, exclude ...string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("could not read input directory: %w", err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		if abs, err := filepath.Abs(e); err == nil {
			skip[abs] = true
		}
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() || ExcludedDirs[entry.Name()] {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if abs, err := filepath.Abs(path); err == nil && skip[abs] {
			continue
		}
		dirs = append(dirs, path)
	}

	sort.Strings(dirs)
	return dirs, nil
}

// FindDicomFiles lists the candidate records under inputPath, sorted by path so
// that position-based output names are stable between runs. Only known
// non-DICOM names and extensions are left out; any other file is returned so
// that an unreadable one fails its study when it is loaded.
func FindDicomFiles(inputPath string, recursive bool) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == inputPath || info != nil && info.IsDir() {
				return err
			}
			// Loading it reports the access error against the study
			files = append(files, path)
			return nil
		}

		if info.IsDir() {
			// Skip excluded directories
			if ExcludedDirs[info.Name()] {
				return filepath.SkipDir
			}
			// If not recursive and this is a subdirectory, skip it
			if !recursive && path != inputPath {
				return filepath.SkipDir
			}
			return nil
		}

		if ExcludedNames[info.Name()] {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ExcludedExtensions[ext] {
			return nil
		}

		files = append(files, path)
		return nil
	}

	if err := filepath.Walk(inputPath, walkFn); err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
