package predict

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/jobs"
)

// Builder translates prediction requests into job submissions for the
// orchestrator. ScriptsDir holds the prediction wrapper scripts; WorkDir
// receives generated input YAML and batch sequence files.
type Builder struct {
	ScriptsDir string
	WorkDir    string
	// DefaultTimeout, when > 0, is applied to every built job.
	DefaultTimeout time.Duration
}

// StructureRequest mirrors the structure prediction submission surface.
// Exactly one of InputFile and Sequence must be set.
type StructureRequest struct {
	InputFile     string `json:"input_file,omitempty"`
	Sequence      string `json:"sequence,omitempty"`
	OutputDir     string `json:"output_dir,omitempty"`
	UseMSAServer  *bool  `json:"use_msa_server,omitempty"` // default true
	UsePotentials bool   `json:"use_potentials,omitempty"`
	OutputFormat  string `json:"output_format,omitempty"` // pdb or cif, default pdb
	JobName       string `json:"job_name,omitempty"`
}

// AffinityRequest mirrors the affinity prediction submission surface.
// Either InputFile, or ProteinSequence plus one of LigandSMILES/LigandCCD.
type AffinityRequest struct {
	InputFile       string `json:"input_file,omitempty"`
	ProteinSequence string `json:"protein_sequence,omitempty"`
	LigandSMILES    string `json:"ligand_smiles,omitempty"`
	LigandCCD       string `json:"ligand_ccd,omitempty"`
	OutputDir       string `json:"output_dir,omitempty"`
	UseMSAServer    *bool  `json:"use_msa_server,omitempty"`
	UsePotentials   bool   `json:"use_potentials,omitempty"`
	OutputFormat    string `json:"output_format,omitempty"`
	JobName         string `json:"job_name,omitempty"`
}

// BatchRequest submits one job that predicts structures for several
// sequences in sequence.
type BatchRequest struct {
	Sequences     []string `json:"sequences"`
	OutputDir     string   `json:"output_dir,omitempty"`
	UseMSAServer  *bool    `json:"use_msa_server,omitempty"`
	UsePotentials bool     `json:"use_potentials,omitempty"`
	OutputFormat  string   `json:"output_format,omitempty"`
	JobName       string   `json:"job_name,omitempty"`
}

// Structure builds the job submission for a structure prediction. A raw
// sequence is turned into a Boltz input YAML under WorkDir before the job
// is built, so the script always receives a ready input file.
func (b *Builder) Structure(req StructureRequest) (jobs.SubmitRequest, error) {
	if req.InputFile == "" && req.Sequence == "" {
		return jobs.SubmitRequest{}, fmt.Errorf("%w: provide input_file or sequence", jobs.ErrInvalidArgument)
	}
	if req.InputFile != "" && req.Sequence != "" {
		return jobs.SubmitRequest{}, fmt.Errorf("%w: input_file and sequence are mutually exclusive", jobs.ErrInvalidArgument)
	}
	if err := CheckOutputFormat(req.OutputFormat); err != nil {
		return jobs.SubmitRequest{}, err
	}

	input := req.InputFile
	if input == "" {
		path := filepath.Join(b.WorkDir, fmt.Sprintf("structure_input_%s.yaml", jobs.NewTempID()))
		if err := WriteProteinYAML(req.Sequence, path, useMSA(req.UseMSAServer)); err != nil {
			return jobs.SubmitRequest{}, err
		}
		input = path
	}
	args := jobs.Args{
		"input":         jobs.String(input),
		"output-format": jobs.String(outputFormat(req.OutputFormat)),
	}
	applyCommon(args, req.OutputDir, req.UseMSAServer, req.UsePotentials)

	name := req.JobName
	if name == "" {
		name = "structure_prediction"
	}
	return jobs.SubmitRequest{
		ScriptPath: filepath.Join(b.ScriptsDir, "structure_prediction.py"),
		Args:       args,
		Name:       name,
		OutputDir:  req.OutputDir,
		Timeout:    b.DefaultTimeout,
	}, nil
}

// Affinity builds the job submission for an affinity prediction. A
// sequence-and-ligand request is turned into a Boltz input YAML under
// WorkDir, the ligand given by CCD code when present and SMILES otherwise.
func (b *Builder) Affinity(req AffinityRequest) (jobs.SubmitRequest, error) {
	if err := CheckOutputFormat(req.OutputFormat); err != nil {
		return jobs.SubmitRequest{}, err
	}
	input := req.InputFile
	if input == "" {
		if req.ProteinSequence == "" || (req.LigandSMILES == "" && req.LigandCCD == "") {
			return jobs.SubmitRequest{}, fmt.Errorf("%w: provide input_file or protein_sequence plus a ligand", jobs.ErrInvalidArgument)
		}
		path := filepath.Join(b.WorkDir, fmt.Sprintf("affinity_input_%s.yaml", jobs.NewTempID()))
		if err := WriteAffinityYAML(req.ProteinSequence, req.LigandSMILES, req.LigandCCD, path, useMSA(req.UseMSAServer)); err != nil {
			return jobs.SubmitRequest{}, err
		}
		input = path
	}
	args := jobs.Args{
		"input":         jobs.String(input),
		"output-format": jobs.String(outputFormat(req.OutputFormat)),
	}
	applyCommon(args, req.OutputDir, req.UseMSAServer, req.UsePotentials)

	name := req.JobName
	if name == "" {
		name = "affinity_prediction"
	}
	return jobs.SubmitRequest{
		ScriptPath: filepath.Join(b.ScriptsDir, "affinity_prediction.py"),
		Args:       args,
		Name:       name,
		OutputDir:  req.OutputDir,
		Timeout:    b.DefaultTimeout,
	}, nil
}

// Batch writes the sequence list to a temp JSON file in WorkDir and builds
// one structure prediction job consuming it.
func (b *Builder) Batch(req BatchRequest) (jobs.SubmitRequest, error) {
	if len(req.Sequences) == 0 {
		return jobs.SubmitRequest{}, fmt.Errorf("%w: no sequences provided", jobs.ErrInvalidArgument)
	}
	if err := CheckOutputFormat(req.OutputFormat); err != nil {
		return jobs.SubmitRequest{}, err
	}

	if err := os.MkdirAll(b.WorkDir, 0o755); err != nil {
		return jobs.SubmitRequest{}, fmt.Errorf("create work dir: %w", err)
	}
	path := filepath.Join(b.WorkDir, fmt.Sprintf("batch_sequences_%s.json", jobs.NewTempID()))
	data, err := json.Marshal(map[string][]string{"sequences": req.Sequences})
	if err != nil {
		return jobs.SubmitRequest{}, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return jobs.SubmitRequest{}, fmt.Errorf("write batch sequences file: %w", err)
	}

	args := jobs.Args{
		"batch-sequences-file": jobs.String(path),
		"output-format":        jobs.String(outputFormat(req.OutputFormat)),
	}
	applyCommon(args, req.OutputDir, req.UseMSAServer, req.UsePotentials)

	name := req.JobName
	if name == "" {
		name = fmt.Sprintf("batch_structure_%d_sequences", len(req.Sequences))
	}
	return jobs.SubmitRequest{
		ScriptPath: filepath.Join(b.ScriptsDir, "structure_prediction.py"),
		Args:       args,
		Name:       name,
		OutputDir:  req.OutputDir,
		Timeout:    b.DefaultTimeout,
	}, nil
}

func applyCommon(args jobs.Args, outputDir string, useMSAServer *bool, usePotentials bool) {
	if outputDir != "" {
		args["output"] = jobs.String(outputDir)
	}
	if useMSAServer != nil && !*useMSAServer {
		args["no-msa-server"] = jobs.Flag(true)
	}
	if usePotentials {
		args["use-potentials"] = jobs.Flag(true)
	}
}

// useMSA resolves the tri-state request flag; MSA is on unless disabled.
func useMSA(flag *bool) bool {
	return flag == nil || *flag
}

func outputFormat(f string) string {
	if f == "" {
		return "pdb"
	}
	return f
}

// CheckOutputFormat rejects formats the prediction scripts do not produce.
func CheckOutputFormat(f string) error {
	switch f {
	case "", "pdb", "cif":
		return nil
	}
	return fmt.Errorf("%w: output_format must be pdb or cif, got %q", jobs.ErrInvalidArgument, f)
}
