package predict

import (
	"math"
	"sort"
	"strings"
)

// the 20 standard amino acid one-letter codes
const validResidues = "ACDEFGHIKLMNPQRSTVWY"

// ResidueCount reports how often one residue occurs in a sequence.
type ResidueCount struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// SequenceReport is the outcome of protein sequence validation.
type SequenceReport struct {
	SequenceLength    int                     `json:"sequence_length"`
	Valid             bool                    `json:"valid"`
	CleanSequence     string                  `json:"clean_sequence"`
	InvalidCharacters []string                `json:"invalid_characters"`
	Composition       map[string]ResidueCount `json:"composition"`
}

// ValidateSequence normalizes a protein sequence (uppercase, whitespace
// stripped) and checks it against the standard amino acid alphabet,
// reporting length, offending characters and per-residue composition.
func ValidateSequence(sequence string) SequenceReport {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, strings.ToUpper(sequence))

	invalid := map[rune]bool{}
	counts := map[string]int{}
	for _, r := range clean {
		if strings.ContainsRune(validResidues, r) {
			counts[string(r)]++
		} else {
			invalid[r] = true
		}
	}

	report := SequenceReport{
		SequenceLength:    len(clean),
		Valid:             len(invalid) == 0 && len(clean) > 0,
		CleanSequence:     clean,
		InvalidCharacters: []string{},
		Composition:       map[string]ResidueCount{},
	}
	for r := range invalid {
		report.InvalidCharacters = append(report.InvalidCharacters, string(r))
	}
	sort.Strings(report.InvalidCharacters)

	if len(clean) > 0 {
		for aa, n := range counts {
			pct := float64(n) / float64(len(clean)) * 100
			report.Composition[aa] = ResidueCount{
				Count:      n,
				Percentage: math.Round(pct*100) / 100,
			}
		}
	}
	return report
}
