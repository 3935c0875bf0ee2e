package predict

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Boltz input schema, version 1. Field order follows the documents the
// upstream scripts emit.
type inputDoc struct {
	Version    int           `yaml:"version"`
	Sequences  []interface{} `yaml:"sequences"`
	Properties []property    `yaml:"properties,omitempty"`
}

type proteinEntry struct {
	Protein protein `yaml:"protein"`
}

type protein struct {
	ID       string `yaml:"id"`
	Sequence string `yaml:"sequence"`
	MSA      string `yaml:"msa,omitempty"`
}

type ligandEntry struct {
	Ligand ligand `yaml:"ligand"`
}

type ligand struct {
	ID     string `yaml:"id"`
	SMILES string `yaml:"smiles,omitempty"`
	CCD    string `yaml:"ccd,omitempty"`
}

type property struct {
	Affinity *affinity `yaml:"affinity,omitempty"`
}

type affinity struct {
	Binder string `yaml:"binder"`
}

// WriteProteinYAML writes a Boltz structure prediction input for a single
// protein chain "A". When the MSA server is disabled the chain gets
// msa: empty, trading accuracy for offline operation.
func WriteProteinYAML(sequence, path string, useMSAServer bool) error {
	p := protein{ID: "A", Sequence: sequence}
	if !useMSAServer {
		p.MSA = "empty"
	}
	doc := inputDoc{
		Version:   1,
		Sequences: []interface{}{proteinEntry{Protein: p}},
	}
	return writeYAML(path, doc)
}

// WriteAffinityYAML writes a Boltz affinity prediction input: protein chain
// "A", ligand "B" given as a CCD code when provided and as SMILES
// otherwise, and an affinity property naming "B" as the binder.
func WriteAffinityYAML(proteinSequence, ligandSMILES, ligandCCD, path string, useMSAServer bool) error {
	if ligandSMILES == "" && ligandCCD == "" {
		return fmt.Errorf("ligand requires a SMILES string or a CCD code")
	}
	p := protein{ID: "A", Sequence: proteinSequence}
	if !useMSAServer {
		p.MSA = "empty"
	}
	l := ligand{ID: "B"}
	if ligandCCD != "" {
		l.CCD = ligandCCD
	} else {
		l.SMILES = ligandSMILES
	}
	doc := inputDoc{
		Version:    1,
		Sequences:  []interface{}{proteinEntry{Protein: p}, ligandEntry{Ligand: l}},
		Properties: []property{{Affinity: &affinity{Binder: "B"}}},
	}
	return writeYAML(path, doc)
}

func writeYAML(path string, doc inputDoc) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create input dir: %w", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal input yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write input yaml: %w", err)
	}
	return nil
}
