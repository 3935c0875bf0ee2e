package predict

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ExampleFile describes one file under the bundled example data directory.
type ExampleFile struct {
	Path         string `json:"path"`
	RelativePath string `json:"relative_path"`
	Name         string `json:"name"`
	SizeBytes    int64  `json:"size_bytes"`
	Type         string `json:"type"`
}

// ListExamples walks dir recursively and classifies every regular file by
// extension. A missing directory yields an empty list, matching an install
// that ships no example data.
func ListExamples(dir string) ([]ExampleFile, error) {
	files := []ExampleFile{}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return files, nil
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, ExampleFile{
			Path:         path,
			RelativePath: rel,
			Name:         d.Name(),
			SizeBytes:    info.Size(),
			Type:         exampleType(path),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func exampleType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml_input"
	case ".pdb":
		return "protein_structure"
	case ".fasta", ".fa":
		return "sequence"
	case ".sdf", ".mol":
		return "ligand"
	}
	return "unknown"
}
