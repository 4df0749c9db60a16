package scanner

import "testing"

func TestChangePercentIdentical(t *testing.T) {
	if got := ChangePercent("the quick brown fox", "the quick brown fox"); got != 0.0 {
		t.Errorf("identical texts: change = %v, want 0", got)
	}
}

func TestChangePercentBothEmpty(t *testing.T) {
	if got := ChangePercent("", ""); got != 0.0 {
		t.Errorf("empty texts: change = %v, want 0", got)
	}
}

func TestChangePercentDisjoint(t *testing.T) {
	if got := ChangePercent("aaaaaaaa", "bbbbbbbb"); got != 100.0 {
		t.Errorf("disjoint texts: change = %v, want 100", got)
	}
}

func TestChangePercentPartial(t *testing.T) {
	// common substring "hello" is 5 of 16 total chars:
	// similarity = 2*5/16 = 62.5%, change = 37.5%
	if got := ChangePercent("hello world", "hello"); got != 37.5 {
		t.Errorf("partial overlap: change = %v, want 37.5", got)
	}
}

func TestChangePercentSymmetric(t *testing.T) {
	a, b := "the cat sat on the mat", "a dog sat on a log"
	if x, y := ChangePercent(a, b), ChangePercent(b, a); x != y {
		t.Errorf("measure is not symmetric: %v vs %v", x, y)
	}
}

func TestChangePercentRounding(t *testing.T) {
	// 1 common char of 3 total: similarity 66.666...%, change 33.33
	if got := ChangePercent("ab", "b"); got != 33.33 {
		t.Errorf("change = %v, want 33.33", got)
	}
}

func TestChangePercentReorderedContent(t *testing.T) {
	// Swapped paragraphs: only the longest common block (23 chars of 90
	// total) matches, since the recursion never crosses the match point.
	a := "first paragraph here. second paragraph there."
	b := "second paragraph there. first paragraph here."
	if got := ChangePercent(a, b); got != 48.89 {
		t.Errorf("reordered text: change = %v, want 48.89", got)
	}
}
