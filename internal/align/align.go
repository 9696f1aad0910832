// Package align computes the word-level diff between what a speaker was
// supposed to say and what was transcribed.
//
// The diff is a Levenshtein alignment over tokens (not characters) with unit
// costs for substitution, insertion and deletion. Among minimal-cost
// alignments the one with the most matched words wins; any remaining tie is
// resolved walking from the left, preferring matched, then substituted, then
// missing, then extra. The result is canonical for any pair of inputs.
package align

import (
	"github.com/MrWong99/voicemeter/internal/similarity"
	"github.com/MrWong99/voicemeter/pkg/types"
)

// Mispronunciation pairs an expected word with a close but different
// transcribed word.
type Mispronunciation struct {
	Expected string  `json:"expected"`
	Actual   string  `json:"actual"`
	Score    float64 `json:"score"`
}

// Result is the outcome of [Aligner.Align].
type Result struct {
	Entries []types.AlignmentEntry

	Matched     int
	Substituted int
	Missing     int
	Extra       int

	// Distance is the word-level edit distance.
	Distance int

	// SimilarityRatio is Matched / max(1, len(expected)).
	SimilarityRatio float64

	// WordAccuracy is Matched / len(Entries), or 0 for an empty alignment.
	WordAccuracy float64

	// MissingWords and ExtraWords hold surface forms in order of first
	// occurrence, without duplicates.
	MissingWords []string
	ExtraWords   []string

	Mispronounced []Mispronunciation
}

// Option configures an [Aligner].
type Option func(*Aligner)

// WithScorer sets the scorer used to flag substitutions as likely
// mispronunciations. A nil scorer disables the check.
func WithScorer(s *similarity.Scorer) Option {
	return func(a *Aligner) {
		a.scorer = s
	}
}

// Aligner aligns token sequences. It holds no per-call state and is safe
// for concurrent use.
type Aligner struct {
	scorer *similarity.Scorer
}

// New returns an [Aligner]. By default substitutions are checked with
// [similarity.New].
func New(opts ...Option) *Aligner {
	a := &Aligner{scorer: similarity.New()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Align diffs expected against actual. Among the alignments with the fewest
// edits it picks one with the most matches. Runs in
// O(len(expected)·len(actual)) time and space.
func (a *Aligner) Align(expected, actual []types.Token) Result {
	n, m := len(expected), len(actual)
	t := newTable(expected, actual)

	res := Result{
		Entries:  make([]types.AlignmentEntry, 0, max(n, m)),
		Distance: int(t.at(0, 0).cost),
	}
	seenMissing := make(map[string]struct{})
	seenExtra := make(map[string]struct{})

	i, j := 0, 0
	for i < n || j < m {
		here := t.at(i, j)
		switch {
		case i < n && j < m && expected[i].Text == actual[j].Text && t.at(i+1, j+1).plus(0, 1) == here:
			res.Entries = append(res.Entries, types.AlignmentEntry{
				Expected: tokenRef(expected[i]),
				Actual:   tokenRef(actual[j]),
				Status:   types.StatusMatched,
			})
			res.Matched++
			i++
			j++

		case i < n && j < m && expected[i].Text != actual[j].Text && t.at(i+1, j+1).plus(1, 0) == here:
			e := types.AlignmentEntry{
				Expected: tokenRef(expected[i]),
				Actual:   tokenRef(actual[j]),
				Status:   types.StatusSubstituted,
			}
			if a.scorer != nil {
				if score, ok := a.scorer.Close(expected[i].Text, actual[j].Text); ok {
					e.Mispronounced = true
					res.Mispronounced = append(res.Mispronounced, Mispronunciation{
						Expected: expected[i].Surface,
						Actual:   actual[j].Surface,
						Score:    score,
					})
				}
			}
			res.Entries = append(res.Entries, e)
			res.Substituted++
			i++
			j++

		case i < n && t.at(i+1, j).plus(1, 0) == here:
			res.Entries = append(res.Entries, types.AlignmentEntry{
				Expected: tokenRef(expected[i]),
				Status:   types.StatusMissing,
			})
			res.Missing++
			res.MissingWords = appendUnique(res.MissingWords, seenMissing, expected[i])
			i++

		default:
			res.Entries = append(res.Entries, types.AlignmentEntry{
				Actual: tokenRef(actual[j]),
				Status: types.StatusExtra,
			})
			res.Extra++
			res.ExtraWords = appendUnique(res.ExtraWords, seenExtra, actual[j])
			j++
		}
	}

	res.SimilarityRatio = float64(res.Matched) / float64(max(1, n))
	if len(res.Entries) > 0 {
		res.WordAccuracy = float64(res.Matched) / float64(len(res.Entries))
	}
	return res
}

// score ranks partial alignments: fewer edits first, then more matches.
type score struct {
	cost    int32
	matches int32
}

func (s score) plus(cost, matches int32) score {
	return score{cost: s.cost + cost, matches: s.matches + matches}
}

func (s score) better(o score) bool {
	return s.cost < o.cost || (s.cost == o.cost && s.matches > o.matches)
}

// table holds the best score for aligning expected[i:] with actual[j:].
// Filling it from the end lets Align resolve ties greedily from the left.
type table struct {
	cols   int
	scores []score
}

func newTable(expected, actual []types.Token) *table {
	n, m := len(expected), len(actual)
	t := &table{cols: m + 1, scores: make([]score, (n+1)*(m+1))}
	for i := n; i >= 0; i-- {
		for j := m; j >= 0; j-- {
			var best score
			switch {
			case i == n:
				best = score{cost: int32(m - j)}
			case j == m:
				best = score{cost: int32(n - i)}
			default:
				if expected[i].Text == actual[j].Text {
					best = t.at(i+1, j+1).plus(0, 1)
				} else {
					best = t.at(i+1, j+1).plus(1, 0)
				}
				if c := t.at(i+1, j).plus(1, 0); c.better(best) {
					best = c
				}
				if c := t.at(i, j+1).plus(1, 0); c.better(best) {
					best = c
				}
			}
			t.scores[i*t.cols+j] = best
		}
	}
	return t
}

func (t *table) at(i, j int) score { return t.scores[i*t.cols+j] }

// ExpectedTokens returns the non-absent expected tokens of entries, in order.
func ExpectedTokens(entries []types.AlignmentEntry) []types.Token {
	var out []types.Token
	for _, e := range entries {
		if e.Expected != nil {
			out = append(out, *e.Expected)
		}
	}
	return out
}

// ActualTokens returns the non-absent actual tokens of entries, in order.
func ActualTokens(entries []types.AlignmentEntry) []types.Token {
	var out []types.Token
	for _, e := range entries {
		if e.Actual != nil {
			out = append(out, *e.Actual)
		}
	}
	return out
}

func tokenRef(t types.Token) *types.Token { return &t }

func appendUnique(words []string, seen map[string]struct{}, t types.Token) []string {
	if _, ok := seen[t.Text]; ok {
		return words
	}
	seen[t.Text] = struct{}{}
	return append(words, t.Surface)
}
