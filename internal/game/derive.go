// internal/game/derive.go
//
// Derived views over the guess history. Everything here is a pure function
// recomputed from the full history on every change; nothing is incrementally
// mutated, so the views can never drift from the stored guesses.

package game

import "sort"

// MergedGuesses returns both players' guesses merged into one list ordered
// by submission timestamp. Ties keep playerOrder precedence, which matches
// the alternating turn structure.
func MergedGuesses(s *Session) []Guess {
	var out []Guess
	for _, id := range s.PlayerOrder {
		out = append(out, s.Players[id].Guesses...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

// LetterStates is the keyboard coloring aggregate: three disjoint letter
// sets with green taking precedence over yellow over gray.
type LetterStates struct {
	Green  []string
	Yellow []string
	Gray   []string
}

// DeriveLetterStates folds an ordered guess history into keyboard letter
// states. A letter that was ever green stays green; a letter that was ever
// yellow and never green stays yellow; gray only holds letters never seen
// as green or yellow.
func DeriveLetterStates(guesses []Guess) LetterStates {
	green := make(map[string]struct{})
	yellow := make(map[string]struct{})
	gray := make(map[string]struct{})

	for _, g := range guesses {
		for i := 0; i < len(g.Word) && i < len(g.Colors); i++ {
			letter := string(g.Word[i])
			switch g.Colors[i] {
			case ColorGreen:
				delete(yellow, letter)
				delete(gray, letter)
				green[letter] = struct{}{}
			case ColorYellow:
				if _, ok := green[letter]; !ok {
					delete(gray, letter)
					yellow[letter] = struct{}{}
				}
			default:
				if _, g1 := green[letter]; g1 {
					continue
				}
				if _, y1 := yellow[letter]; y1 {
					continue
				}
				gray[letter] = struct{}{}
			}
		}
	}
	return LetterStates{
		Green:  sortedKeys(green),
		Yellow: sortedKeys(yellow),
		Gray:   sortedKeys(gray),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
