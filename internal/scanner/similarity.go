package scanner

import "math"

// maxDiffBytes bounds how much of each text takes part in the similarity
// computation; the algorithm is quadratic in the worst case.
const maxDiffBytes = 50 * 1024

// ChangePercent returns how much b differs from a as a percentage in
// [0, 100], rounded to 2 decimals. Identical texts yield 0, disjoint texts
// approach 100. The measure is symmetric and based on recursively matching
// the longest common substring.
func ChangePercent(a, b string) float64 {
	if len(a) > maxDiffBytes {
		a = a[:maxDiffBytes]
	}
	if len(b) > maxDiffBytes {
		b = b[:maxDiffBytes]
	}
	total := len(a) + len(b)
	if total == 0 {
		return 0.0
	}
	matched := similarChars([]byte(a), []byte(b))
	similarity := float64(2*matched) * 100.0 / float64(total)
	return math.Round((100.0-similarity)*100) / 100
}

// similarChars counts matching characters: it finds the longest common
// substring, then recurses into the unmatched prefixes and suffixes.
func similarChars(a, b []byte) int {
	pos1, pos2, length := longestCommonSubstring(a, b)
	if length == 0 {
		return 0
	}
	sum := length
	sum += similarChars(a[:pos1], b[:pos2])
	sum += similarChars(a[pos1+length:], b[pos2+length:])
	return sum
}

func longestCommonSubstring(a, b []byte) (pos1, pos2, length int) {
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			var k int
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > length {
				pos1, pos2, length = i, j, k
			}
		}
	}
	return pos1, pos2, length
}
