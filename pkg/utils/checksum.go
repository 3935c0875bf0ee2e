package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// ChecksumFile returns the xxhash64 digest of a file's content as a hex
// string. Integrity label for result files and audit entries, not a
// security boundary.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// ChecksumString returns the xxhash64 digest of a string as a hex string.
func ChecksumString(data string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(data))
}
