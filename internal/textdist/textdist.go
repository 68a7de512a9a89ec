// Package textdist implements the Levenshtein edit distance used to score
// predictions against the actual statement text.
//
// The metric is the minimum number of single-byte insertions, deletions, or
// substitutions transforming one string into the other. Properties:
//   - Deterministic: identical byte sequences give identical results in any
//     environment (no locale-dependent comparison, no case folding)
//   - Symmetric: Distance(a, b) == Distance(b, a)
//   - Metric: satisfies the triangle inequality
//
// The implementation uses the standard dynamic-programming recurrence with a
// rolling two-row buffer, O(min(m,n)) space and O(m*n) time. Input length is
// capped upstream by the submission text limit, which bounds the worst-case
// cost of a resolution pass at submissions * cap^2 cell updates.
//
// Reference: Levenshtein, V. (1966) "Binary codes capable of correcting
// deletions, insertions, and reversals"
package textdist

// Distance returns the Levenshtein edit distance between a and b, computed
// over raw bytes. It is pure and has no side effects.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Keep the shorter string on the column axis so the row buffers are
	// O(min(m,n)).
	if len(b) > len(a) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	// Row 0: transforming the empty prefix of a into prefixes of b.
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			ins := curr[j-1] + 1
			del := prev[j] + 1
			sub := prev[j-1] + cost

			minVal := ins
			if del < minVal {
				minVal = del
			}
			if sub < minVal {
				minVal = sub
			}
			curr[j] = minVal
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
