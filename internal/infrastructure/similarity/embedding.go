package similarity

import (
	"context"
	"fmt"
	"math"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/core/ports"
)

// EmbeddingTier measures cosine similarity between vector embeddings of the
// candidate and plausible prior matches. It is the most expensive tier (one
// remote embedding call per invocation) and only runs when the cheaper tiers
// leave genuine ambiguity.
type EmbeddingTier struct {
	embedder ports.Embedder
	// maxCorpus bounds the texts sent to the embedding service per call.
	maxCorpus int
}

func NewEmbeddingTier(embedder ports.Embedder, maxCorpus int) *EmbeddingTier {
	if maxCorpus <= 0 {
		maxCorpus = 16
	}
	return &EmbeddingTier{embedder: embedder, maxCorpus: maxCorpus}
}

func (t *EmbeddingTier) Score(ctx context.Context, candidate *domain.LedgerEntry, corpus []domain.LedgerEntry) (domain.SimilarityResult, error) {
	result := domain.SimilarityResult{Method: "semantic_embedding"}

	candidateText := candidate.ExtractedText
	if candidateText == "" {
		// Image-only submissions carry no cheap text; the filename is the
		// only semantic signal left.
		candidateText = candidate.Filename
	}

	texts := []string{candidateText}
	journalIDs := make([]int64, 0, t.maxCorpus)
	for _, prior := range corpus {
		if len(journalIDs) == t.maxCorpus {
			break
		}
		priorText := prior.ExtractedText
		if priorText == "" {
			priorText = prior.Filename
		}
		if priorText == "" {
			continue
		}
		texts = append(texts, priorText)
		journalIDs = append(journalIDs, prior.JournalID)
	}
	if len(journalIDs) == 0 {
		return result, nil
	}

	vectors, err := t.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.SimilarityResult{}, fmt.Errorf("embed candidate corpus: %w", err)
	}
	if len(vectors) != len(texts) {
		return domain.SimilarityResult{}, fmt.Errorf("embedding count mismatch: %d/%d", len(vectors), len(texts))
	}

	candidateVec := vectors[0]
	for i, priorVec := range vectors[1:] {
		score := cosine(candidateVec, priorVec)
		if score > result.Score {
			result.Score = score
			result.MatchedJournalID = journalIDs[i]
		}
	}
	return result, nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score < 0 {
		return 0
	}
	return score
}
