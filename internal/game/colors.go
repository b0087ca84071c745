// internal/game/colors.go
//
// Guess-coloring algorithm: the classic two-pass scoring scheme.
//
// Pass 1:
//   - Mark exact matches green.
//   - Count remaining (non-green) answer letters.
//
// Pass 2:
//   - For each non-green guess letter: if there is remaining count for that
//     letter, mark yellow and consume one occurrence; otherwise gray.
//
// The consume-then-mark order is what makes repeated letters behave: a letter
// appearing once in the answer can never color two guessed positions yellow.

package game

// ScoreGuess computes the per-letter colors for guess against answer.
// Both inputs must be WordLength uppercase ASCII letters; validation happens
// at the submission boundary.
func ScoreGuess(answer, guess string) []Color {
	res := make([]Color, WordLength)

	// Letter frequency for the non-green answer positions (A-Z).
	var counts [26]int

	for i := 0; i < WordLength; i++ {
		if guess[i] == answer[i] {
			res[i] = ColorGreen
		} else {
			counts[idx(answer[i])]++
		}
	}

	for i := 0; i < WordLength; i++ {
		if res[i] == ColorGreen {
			continue
		}
		j := idx(guess[i])
		if j >= 0 && j < 26 && counts[j] > 0 {
			res[i] = ColorYellow
			counts[j]--
		} else {
			res[i] = ColorGray
		}
	}
	return res
}

// idx maps an uppercase ASCII letter to 0..25.
func idx(b byte) int { return int(b - 'A') }
