package game

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
)

// DateLayout is the folder and file name date format.
const DateLayout = "2006-01-02"

// NextFolder returns the name of the next numbered game folder inside dir:
// one more than the highest numeric subfolder, or "1" when there is none.
// Non-numeric entries are ignored.
func NextFolder(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "1", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", dir, err)
	}

	highest := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		n, err := strconv.Atoi(e.Name())
		if err != nil || n < 1 {
			continue
		}
		highest = max(highest, n)
	}
	return strconv.Itoa(highest + 1), nil
}
