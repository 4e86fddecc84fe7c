package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/core/ports"
)

type SubmitUseCase struct {
	ledger  ports.LedgerRepository
	storage ports.ObjectStorage
	bus     ports.EventBus
}

func NewSubmitUseCase(
	ledger ports.LedgerRepository,
	storage ports.ObjectStorage,
	bus ports.EventBus,
) *SubmitUseCase {
	return &SubmitUseCase{
		ledger:  ledger,
		storage: storage,
		bus:     bus,
	}
}

// Submit fingerprints the file, records a pending ledger entry and announces
// it to the assessment workers. The fingerprint uniqueness check lives in
// the ledger schema, so two racing submissions of the same bytes cannot both
// create a row; the loser gets domain.ErrDuplicateFingerprint.
func (uc *SubmitUseCase) Submit(ctx context.Context, req ports.SubmissionRequest) (*domain.LedgerEntry, error) {
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("read submission body: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty submission body")
	}

	sum := sha256.Sum256(raw)
	fingerprint := hex.EncodeToString(sum[:])
	storageKey := fmt.Sprintf("%s_%s", fingerprint[:16], sanitizeFilename(req.Filename))
	now := time.Now().UTC()

	entry := &domain.LedgerEntry{
		ContentFingerprint: fingerprint,
		Filename:           req.Filename,
		SourceChannel:      req.SourceChannel,
		SubmitterID:        req.SubmitterID,
		SubmittedAt:        now,
		Status:             domain.StatusPending,
		Urgent:             req.Urgent,
		CaseRef:            req.CaseRef,
		StoragePath:        storageKey,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// Ledger row first: if the fingerprint already exists we answer
	// immediately and never touch storage or the bus.
	journalID, err := uc.ledger.Create(ctx, entry)
	if err != nil {
		if domain.IsKind(err, domain.ErrDuplicateFingerprint) {
			if existing, lookupErr := uc.ledger.FindByFingerprint(ctx, fingerprint); lookupErr == nil {
				return nil, fmt.Errorf("journal %d already holds this content: %w", existing.JournalID, err)
			}
			return nil, err
		}
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}
	entry.JournalID = journalID

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save submission bytes: %w", err)
	}

	if err := uc.bus.PublishSubmissionAccepted(ctx, journalID); err != nil {
		return nil, fmt.Errorf("publish submission event: %w", err)
	}

	return entry, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
