package token

// NoOrigin marks an [Edit] whose token is a pure insertion with no
// traceable origin in the original sequence.
const NoOrigin = -1

// Edit is one element of the alignment between an original and a
// corrected token sequence. Origin is the index in the original
// sequence the token inherits formatting and identity from, or
// [NoOrigin] when no such index exists. Concatenating the Token fields
// of an edit list, in order, reconstructs the corrected sequence
// exactly.
type Edit struct {
	Origin int
	Token  Token
}

// indexPair maps a token index in the original sequence to the
// corresponding index in the corrected sequence.
type indexPair struct {
	origIdx int
	corrIdx int
}

// lcs computes the longest common subsequence of the two token slices
// (by exact text equality) and returns anchor pairs in order.
// Standard O(m×n) DP; paragraph token counts are small.
func lcs(a, b []Token) []indexPair {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1].Text == b[j-1].Text {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	lcsLen := dp[m][n]
	if lcsLen == 0 {
		return nil
	}

	anchors := make([]indexPair, lcsLen)
	i, j, k := m, n, lcsLen-1
	for i > 0 && j > 0 {
		if a[i-1].Text == b[j-1].Text {
			anchors[k] = indexPair{origIdx: i - 1, corrIdx: j - 1}
			i--
			j--
			k--
		} else if dp[i-1][j] >= dp[i][j-1] {
			i--
		} else {
			j--
		}
	}
	return anchors
}

// Align decomposes the difference between orig and corr into an ordered
// edit script with origin tracking.
//
// Origin inheritance rules:
//   - Tokens matched by the common subsequence inherit their own
//     original index.
//   - Tokens in a replaced range inherit the index of the FIRST
//     original token of that range. Preferring the earlier index biases
//     merged text toward the formatting of what precedes it, which
//     preserves style better than defaulting to unformatted.
//   - Pure insertions inherit the original index immediately preceding
//     the insertion point, or [NoOrigin] at the very start.
//
// Deleted original tokens contribute no edits.
func Align(orig, corr []Token) []Edit {
	if len(corr) == 0 {
		return nil
	}

	// Identical sequences take the cheap identity path.
	if sameTexts(orig, corr) {
		edits := make([]Edit, len(corr))
		for i, t := range corr {
			edits[i] = Edit{Origin: i, Token: t}
		}
		return edits
	}

	anchors := lcs(orig, corr)
	edits := make([]Edit, 0, len(corr))

	oi, ci := 0, 0
	emitGap := func(origEnd, corrEnd int) {
		if ci >= corrEnd {
			oi = origEnd
			return
		}
		origin := NoOrigin
		switch {
		case oi < origEnd:
			// Replacement: inherit from the first replaced original token.
			origin = oi
		case oi > 0:
			// Insertion: inherit from the token preceding the insertion point.
			origin = oi - 1
		}
		for ; ci < corrEnd; ci++ {
			edits = append(edits, Edit{Origin: origin, Token: corr[ci]})
		}
		oi = origEnd
	}

	for _, a := range anchors {
		emitGap(a.origIdx, a.corrIdx)
		edits = append(edits, Edit{Origin: a.origIdx, Token: corr[a.corrIdx]})
		oi = a.origIdx + 1
		ci = a.corrIdx + 1
	}
	emitGap(len(orig), len(corr))

	return edits
}

func sameTexts(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Text != b[i].Text {
			return false
		}
	}
	return true
}
