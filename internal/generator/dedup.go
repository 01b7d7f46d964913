package generator

import (
	"github.com/hyperjump/mondai/pkg/utils"
)

// levenshteinDistance calculates the minimum number of single-character
// edits (insertions, deletions, or substitutions) required to change one
// string into another. Operates on runes for proper Unicode handling.
func levenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	runesA := []rune(a)
	runesB := []rune(b)
	lenA := len(runesA)
	lenB := len(runesB)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	// Only two rows of the distance matrix are live at a time.
	prev := make([]int, lenB+1)
	curr := make([]int, lenB+1)
	for j := 0; j <= lenB; j++ {
		prev[j] = j
	}
	for i := 1; i <= lenA; i++ {
		curr[0] = i
		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lenB]
}

// questionSimilarity returns a similarity in [0, 1] between two questions,
// computed as 1 - distance/maxLen over their normalized forms.
func questionSimilarity(a, b string) float64 {
	na := utils.NormalizeAnswer(a)
	nb := utils.NormalizeAnswer(b)
	if na == nb {
		return 1
	}
	la := len([]rune(na))
	lb := len([]rune(nb))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(na, nb))/float64(longest)
}

// dedupSet tracks accepted questions and rejects near-duplicates.
type dedupSet struct {
	threshold float64
	questions []string
}

func newDedupSet(threshold float64, existing []string) *dedupSet {
	s := &dedupSet{threshold: threshold}
	s.questions = append(s.questions, existing...)
	return s
}

// Add accepts the question and records it, or returns false when it is a
// near-duplicate of one already recorded.
func (s *dedupSet) Add(question string) bool {
	for _, q := range s.questions {
		if questionSimilarity(q, question) > s.threshold {
			return false
		}
	}
	s.questions = append(s.questions, question)
	return true
}
