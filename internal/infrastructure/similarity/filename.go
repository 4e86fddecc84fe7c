package similarity

import (
	"context"
	"strings"
	"unicode"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

// FilenameTier is the cheapest duplicate check: normalized edit-distance and
// token overlap between the candidate's filename and filenames of
// recently-ingested entries of the same type. It catches re-uploads of an
// unchanged file under a slightly different name.
type FilenameTier struct{}

func NewFilenameTier() *FilenameTier {
	return &FilenameTier{}
}

func (t *FilenameTier) Score(_ context.Context, candidate *domain.LedgerEntry, corpus []domain.LedgerEntry) (domain.SimilarityResult, error) {
	result := domain.SimilarityResult{Method: "filename_heuristic"}

	candidateNorm := normalizeFilename(candidate.Filename)
	candidateTokens := tokenize(candidate.Filename)
	if candidateNorm == "" {
		return result, nil
	}

	for _, prior := range corpus {
		priorNorm := normalizeFilename(prior.Filename)
		if priorNorm == "" {
			continue
		}
		editScore := levenshteinRatio(candidateNorm, priorNorm)
		overlapScore := jaccard(candidateTokens, tokenize(prior.Filename))

		score := editScore
		if overlapScore > score {
			score = overlapScore
		}
		if score > result.Score {
			result.Score = score
			result.MatchedJournalID = prior.JournalID
		}
	}
	return result, nil
}

// normalizeFilename lowercases, strips the extension and keeps only
// alphanumerics, so "Report_Copy(1).JPG" and "report copy 1.jpg" compare equal.
func normalizeFilename(name string) string {
	if dot := strings.LastIndex(name, "."); dot > 0 {
		name = name[:dot]
	}
	var b strings.Builder
	for _, r := range name {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{}, 8)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out[b.String()] = struct{}{}
			b.Reset()
		}
	}
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// levenshteinRatio is 1 - dist/maxLen, so identical strings score 1.0.
func levenshteinRatio(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
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
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
