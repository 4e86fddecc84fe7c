package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/core/ports"
)

func TestSubmitCreatesPendingEntry(t *testing.T) {
	ledger := newFakeLedger()
	storage := newFakeStorage()
	bus := &fakeBus{}
	uc := NewSubmitUseCase(ledger, storage, bus)

	content := "quarterly invoice content"
	entry, err := uc.Submit(context.Background(), ports.SubmissionRequest{
		Filename:      "Invoice Q3.pdf",
		SourceChannel: "web_portal",
		SubmitterID:   "user-17",
		Body:          strings.NewReader(content),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := sha256.Sum256([]byte(content))
	wantFingerprint := hex.EncodeToString(sum[:])
	if entry.ContentFingerprint != wantFingerprint {
		t.Fatalf("fingerprint mismatch: got %s", entry.ContentFingerprint)
	}
	if entry.Status != domain.StatusPending {
		t.Fatalf("expected pending status, got %s", entry.Status)
	}
	if entry.JournalID == 0 {
		t.Fatal("expected assigned journal id")
	}

	if _, ok := storage.saved[entry.StoragePath]; !ok {
		t.Fatalf("expected bytes saved under %q", entry.StoragePath)
	}
	if len(bus.published) != 1 || bus.published[0] != entry.JournalID {
		t.Fatalf("expected one published event for %d, got %v", entry.JournalID, bus.published)
	}
	if strings.Contains(entry.StoragePath, " ") {
		t.Fatalf("storage key must be sanitized, got %q", entry.StoragePath)
	}
}

func TestSubmitDuplicateFingerprintShortCircuits(t *testing.T) {
	ledger := newFakeLedger()
	ledger.duplicate = true
	sum := sha256.Sum256([]byte("same bytes"))
	ledger.add(domain.LedgerEntry{
		JournalID:          31,
		ContentFingerprint: hex.EncodeToString(sum[:]),
		Status:             domain.StatusQueued,
	})
	storage := newFakeStorage()
	bus := &fakeBus{}
	uc := NewSubmitUseCase(ledger, storage, bus)

	_, err := uc.Submit(context.Background(), ports.SubmissionRequest{
		Filename: "doc.pdf",
		Body:     strings.NewReader("same bytes"),
	})
	if !domain.IsKind(err, domain.ErrDuplicateFingerprint) {
		t.Fatalf("expected duplicate fingerprint error, got %v", err)
	}
	if !strings.Contains(err.Error(), "journal 31") {
		t.Fatalf("expected error to name the existing entry, got %v", err)
	}
	if len(storage.saved) != 0 {
		t.Fatal("duplicate submission must not touch storage")
	}
	if len(bus.published) != 0 {
		t.Fatal("duplicate submission must not publish events")
	}
}

func TestSubmitRejectsEmptyBody(t *testing.T) {
	uc := NewSubmitUseCase(newFakeLedger(), newFakeStorage(), &fakeBus{})

	_, err := uc.Submit(context.Background(), ports.SubmissionRequest{
		Filename: "empty.pdf",
		Body:     strings.NewReader(""),
	})
	if err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Invoice Q3.pdf":       "Invoice_Q3.pdf",
		"../../etc/passwd":     "passwd",
		"отчет.pdf":            "_____.pdf",
		"clean-name_v2.xlsx":   "clean-name_v2.xlsx",
		"":                     "document.bin",
		"weird:chars?here.doc": "weird_chars_here.doc",
	}
	for input, want := range cases {
		if got := sanitizeFilename(input); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
