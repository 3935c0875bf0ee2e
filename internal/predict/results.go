package predict

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Biomolecular-Design-Nexus/boltz-mcp/pkg/utils"
)

// OutputFile is one file produced by a prediction run, path relative to the
// job's output directory.
type OutputFile struct {
	Path     string `json:"path"`
	Size     int64  `json:"size_bytes"`
	Checksum string `json:"checksum,omitempty"`
}

// OutputReport categorizes the files a finished prediction left under
// <outputDir>/predictions.
type OutputReport struct {
	Structures []OutputFile `json:"structures"`
	Confidence []OutputFile `json:"confidence"`
	Other      []OutputFile `json:"other"`

	// AffinityValues holds the numeric fields of any affinity_*.json
	// result files, keyed by field name. Empty for structure runs.
	AffinityValues map[string]decimal.Decimal `json:"affinity_values,omitempty"`
}

// ScanOutputs walks the predictions subdirectory of a job's output
// directory and categorizes what it finds: .pdb/.cif are structures,
// confidence*.json are confidence reports, affinity json files contribute
// their numeric values, everything else lands in Other. A missing
// predictions directory yields an empty report, not an error.
func ScanOutputs(outputDir string) (OutputReport, error) {
	report := OutputReport{
		Structures: []OutputFile{},
		Confidence: []OutputFile{},
		Other:      []OutputFile{},
	}
	predDir := filepath.Join(outputDir, "predictions")
	if _, err := os.Stat(predDir); os.IsNotExist(err) {
		return report, nil
	}

	err := filepath.WalkDir(predDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, _ := utils.ChecksumFile(path)
		of := OutputFile{Path: rel, Size: info.Size(), Checksum: sum}

		name := d.Name()
		switch {
		case strings.HasSuffix(name, ".pdb") || strings.HasSuffix(name, ".cif"):
			report.Structures = append(report.Structures, of)
		case strings.HasSuffix(name, ".json") && strings.Contains(name, "confidence"):
			report.Confidence = append(report.Confidence, of)
		case strings.HasSuffix(name, ".json") && strings.Contains(name, "affinity"):
			report.Other = append(report.Other, of)
			mergeAffinityValues(&report, path)
		default:
			report.Other = append(report.Other, of)
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	return report, nil
}

// mergeAffinityValues pulls numeric fields out of an affinity result file.
// Values stay decimals end to end so predicted log(IC50) numbers survive
// JSON round-trips unchanged. Unparseable files are skipped.
func mergeAffinityValues(report *OutputReport, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return
	}
	for key, raw := range fields {
		val, err := decimal.NewFromString(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		if report.AffinityValues == nil {
			report.AffinityValues = map[string]decimal.Decimal{}
		}
		report.AffinityValues[key] = val
	}
}
