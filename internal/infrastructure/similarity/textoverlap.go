package similarity

import (
	"context"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

// TextOverlapTier computes token-set Jaccard similarity between the
// candidate's extracted text and the stored text of prior entries. It
// catches same-content, different-format duplicates the filename tier
// cannot see. Corpus entries without extracted text are skipped.
type TextOverlapTier struct{}

func NewTextOverlapTier() *TextOverlapTier {
	return &TextOverlapTier{}
}

func (t *TextOverlapTier) Score(_ context.Context, candidate *domain.LedgerEntry, corpus []domain.LedgerEntry) (domain.SimilarityResult, error) {
	result := domain.SimilarityResult{Method: "content_overlap"}
	if candidate.ExtractedText == "" {
		return result, nil
	}

	candidateTokens := tokenize(candidate.ExtractedText)
	for _, prior := range corpus {
		if prior.ExtractedText == "" {
			continue
		}
		score := jaccard(candidateTokens, tokenize(prior.ExtractedText))
		if score > result.Score {
			result.Score = score
			result.MatchedJournalID = prior.JournalID
		}
	}
	return result, nil
}
