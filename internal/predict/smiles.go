package predict

import "strings"

// SMILESReport is the outcome of ligand SMILES validation. This is the
// structural tier only: character set and bracket balance, no chemistry.
type SMILESReport struct {
	Valid  bool   `json:"valid"`
	SMILES string `json:"smiles"`
	Error  string `json:"error,omitempty"`
}

const smilesChars = "ABCDEFGHIKLMNOPRSTUVWXYZabcdefghiklmnoprstuvy0123456789()[]{}=#+-@/\\%.:*$"

// ValidateSMILES checks a SMILES string for an empty value, illegal
// characters and unbalanced brackets or parentheses.
func ValidateSMILES(smiles string) SMILESReport {
	s := strings.TrimSpace(smiles)
	report := SMILESReport{SMILES: s}

	if s == "" {
		report.Error = "SMILES string is empty"
		return report
	}
	for _, r := range s {
		if !strings.ContainsRune(smilesChars, r) {
			report.Error = "invalid character in SMILES string: " + string(r)
			return report
		}
	}
	if !balanced(s, '(', ')') {
		report.Error = "unbalanced parentheses in SMILES string"
		return report
	}
	if !balanced(s, '[', ']') {
		report.Error = "unbalanced brackets in SMILES string"
		return report
	}

	report.Valid = true
	return report
}

func balanced(s string, open, close rune) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case open:
			depth++
		case close:
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
