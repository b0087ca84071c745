// internal/words/words.go
//
// Secret word source for game sessions.
//
// Responsibilities:
//   - Load the answer list from an environment-provided file or fall back
//     to the embedded default list.
//   - Supply Random for session creation and Contains for guess validation.
//
// Constraints:
//   - Words are exactly 5 ASCII letters, normalized to uppercase.
//   - Initialization runs once (sync.Once); the list is immutable afterwards.
//
// Environment variables:
//   WORDS_FILE=/path/to/words.txt

package words

import (
	"bufio"
	"crypto/rand"
	_ "embed"
	"errors"
	"math/big"
	"os"
	"strings"
	"sync"
)

// Length is the fixed word length for every session.
const Length = 5

//go:embed default_words.txt
var embeddedWords string

var (
	initOnce   sync.Once
	list       []string
	set        map[string]struct{}
	initialErr error
)

// Init loads the word list exactly once.
// Returns an error if the list ends up empty.
func Init() error {
	initOnce.Do(func() {
		var words []string
		if path := os.Getenv("WORDS_FILE"); path != "" {
			var err error
			words, err = readWordFile(path)
			if err != nil {
				initialErr = err
				return
			}
		} else {
			words = normalizeLines(embeddedWords)
		}
		list = words
		set = make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		if len(list) == 0 {
			initialErr = errors.New("words: word list is empty")
		}
	})
	return initialErr
}

// readWordFile loads one word per line, uppercases, trims, and keeps only
// valid 5-letter alphabetic words.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if w, ok := normalizeWord(sc.Text()); ok {
			out = append(out, w)
		}
	}
	return out, sc.Err()
}

func normalizeLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if w, ok := normalizeWord(line); ok {
			out = append(out, w)
		}
	}
	return out
}

func normalizeWord(s string) (string, bool) {
	w := strings.ToUpper(strings.TrimSpace(s))
	if len(w) != Length || !IsUpperAlpha(w) {
		return "", false
	}
	return w, true
}

// IsUpperAlpha reports whether s is all uppercase ASCII letters.
func IsUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Random returns a uniformly random answer word.
// Falls back to "CLASS" if the list was never initialized.
func Random() string {
	if len(list) == 0 {
		return "CLASS"
	}
	nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
	return list[nBig.Int64()]
}

// Contains reports whether w is in the loaded word list.
func Contains(w string) bool {
	_, ok := set[strings.ToUpper(w)]
	return ok
}

// Count returns the number of loaded words.
func Count() int { return len(list) }
