package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

const pgUniqueViolation = "23505"

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	journal_id BIGSERIAL PRIMARY KEY,
	content_fingerprint TEXT NOT NULL UNIQUE,
	filename TEXT NOT NULL,
	source_channel TEXT NOT NULL,
	submitter_id TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	document_type TEXT,
	document_subtype TEXT,
	status TEXT NOT NULL,
	duplicate_of_journal_id BIGINT,
	duplicate_tier INT,
	similarity_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	case_ref TEXT,
	urgent BOOLEAN NOT NULL DEFAULT FALSE,
	storage_path TEXT NOT NULL,
	extracted_text TEXT,
	needs_review BOOLEAN NOT NULL DEFAULT FALSE,
	confidence INT NOT NULL DEFAULT 0,
	findings JSONB,
	cost_units DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_message TEXT,
	processed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_status ON ledger_entries(status);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_type_submitted ON ledger_entries(document_type, submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_needs_review ON ledger_entries(needs_review) WHERE needs_review;

CREATE TABLE IF NOT EXISTS queue_items (
	id BIGSERIAL PRIMARY KEY,
	journal_id BIGINT NOT NULL,
	priority INT NOT NULL,
	enqueued_at TIMESTAMPTZ NOT NULL,
	assigned_worker TEXT,
	assigned_at TIMESTAMPTZ,
	attempt_count INT NOT NULL DEFAULT 1,
	status TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_queue_items_active
	ON queue_items(journal_id)
	WHERE status IN ('queued', 'assigned', 'processing');
CREATE INDEX IF NOT EXISTS idx_queue_items_dequeue
	ON queue_items(priority DESC, enqueued_at ASC)
	WHERE status = 'queued';

CREATE TABLE IF NOT EXISTS step_metrics (
	id BIGSERIAL PRIMARY KEY,
	journal_id BIGINT NOT NULL,
	step TEXT NOT NULL,
	outcome TEXT NOT NULL,
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost_units DOUBLE PRECISION NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_step_metrics_journal ON step_metrics(journal_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const ledgerColumns = `journal_id, content_fingerprint, filename, source_channel, submitter_id, submitted_at,
document_type, document_subtype, status, duplicate_of_journal_id, duplicate_tier, similarity_score,
case_ref, urgent, storage_path, extracted_text, needs_review, confidence, findings, cost_units,
error_message, processed_at, created_at, updated_at`

// Create inserts the entry and returns its journal ID. The fingerprint
// uniqueness lives in the schema, so a racing duplicate loses here with
// domain.ErrDuplicateFingerprint instead of creating a second row.
func (r *LedgerRepository) Create(ctx context.Context, entry *domain.LedgerEntry) (int64, error) {
	var journalID int64
	err := r.db.QueryRowContext(ctx, `
INSERT INTO ledger_entries (
	content_fingerprint, filename, source_channel, submitter_id, submitted_at,
	status, case_ref, urgent, storage_path, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
RETURNING journal_id
`,
		entry.ContentFingerprint, entry.Filename, entry.SourceChannel, entry.SubmitterID, entry.SubmittedAt,
		string(entry.Status), entry.CaseRef, entry.Urgent, entry.StoragePath, entry.CreatedAt, entry.UpdatedAt,
	).Scan(&journalID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return 0, domain.WrapError(domain.ErrDuplicateFingerprint, "insert ledger entry", err)
		}
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}
	return journalID, nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, journalID int64) (*domain.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE journal_id = $1`, journalID)
	entry, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEntryNotFound, "get ledger entry", err)
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return entry, nil
}

func (r *LedgerRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*domain.LedgerEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE content_fingerprint = $1`, fingerprint)
	entry, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEntryNotFound, "find by fingerprint", err)
		}
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return entry, nil
}

// FindRecentByType returns the bounded comparison corpus for tier-0
// deduplication: same-type entries submitted within the window.
func (r *LedgerRepository) FindRecentByType(ctx context.Context, documentType string, window time.Duration, limit int) ([]domain.LedgerEntry, error) {
	cutoff := time.Now().UTC().Add(-window)
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ledgerColumns+`
FROM ledger_entries
WHERE document_type = $1 AND submitted_at >= $2
ORDER BY submitted_at DESC
LIMIT $3
`, documentType, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("find recent by type: %w", err)
	}
	return collectLedgerEntries(rows)
}

func (r *LedgerRepository) ListByStatus(ctx context.Context, status domain.EntryStatus, limit int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ledgerColumns+`
FROM ledger_entries
WHERE status = $1
ORDER BY submitted_at DESC
LIMIT $2
`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	return collectLedgerEntries(rows)
}

func (r *LedgerRepository) FindPendingReview(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ledgerColumns+`
FROM ledger_entries
WHERE needs_review OR status = 'skipped_manual_review'
ORDER BY submitted_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("find pending review: %w", err)
	}
	return collectLedgerEntries(rows)
}

// Transition is the guarded compare-and-swap at the heart of the state
// machine: it succeeds only while the current status is in the expected set,
// so two workers can never both claim or both complete the same entry.
func (r *LedgerRepository) Transition(ctx context.Context, journalID int64, from []domain.EntryStatus, to domain.EntryStatus) error {
	if len(from) == 0 {
		return fmt.Errorf("transition requires at least one expected status")
	}
	args := []any{journalID, string(to), time.Now().UTC()}
	placeholders := make([]string, 0, len(from))
	for i, status := range from {
		args = append(args, string(status))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+4))
	}

	result, err := r.db.ExecContext(ctx, fmt.Sprintf(`
UPDATE ledger_entries
SET status = $2, updated_at = $3
WHERE journal_id = $1 AND status IN (%s)
`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return fmt.Errorf("transition entry status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrInvalidTransition, "transition entry status",
			fmt.Errorf("journal_id=%d not in expected statuses %v", journalID, from))
	}
	return nil
}

func (r *LedgerRepository) SetClassification(ctx context.Context, journalID int64, documentType, subtype string) error {
	return r.update(ctx, "set classification", `
UPDATE ledger_entries SET document_type = $2, document_subtype = $3, updated_at = $4 WHERE journal_id = $1
`, journalID, documentType, subtype, time.Now().UTC())
}

func (r *LedgerRepository) SetDuplicate(ctx context.Context, journalID, duplicateOf int64, tier int, score float64) error {
	return r.update(ctx, "set duplicate linkage", `
UPDATE ledger_entries
SET duplicate_of_journal_id = $2, duplicate_tier = $3, similarity_score = $4, updated_at = $5
WHERE journal_id = $1
`, journalID, duplicateOf, tier, score, time.Now().UTC())
}

func (r *LedgerRepository) SetExtractedText(ctx context.Context, journalID int64, text string) error {
	return r.update(ctx, "set extracted text", `
UPDATE ledger_entries SET extracted_text = $2, updated_at = $3 WHERE journal_id = $1
`, journalID, text, time.Now().UTC())
}

func (r *LedgerRepository) SetNeedsReview(ctx context.Context, journalID int64, needsReview bool) error {
	return r.update(ctx, "set needs review", `
UPDATE ledger_entries SET needs_review = $2, updated_at = $3 WHERE journal_id = $1
`, journalID, needsReview, time.Now().UTC())
}

func (r *LedgerRepository) SetAnalysisResult(ctx context.Context, journalID int64, result domain.AnalysisResult, needsReview bool) error {
	now := time.Now().UTC()
	findings := result.StructuredFindings
	if len(findings) == 0 {
		findings = []byte("null")
	}
	return r.update(ctx, "set analysis result", `
UPDATE ledger_entries
SET confidence = $2, extracted_text = $3, findings = $4, cost_units = $5, needs_review = $6,
	processed_at = $7, updated_at = $7
WHERE journal_id = $1
`, journalID, result.Confidence, result.ExtractedText, findings, result.CostUnits, needsReview, now)
}

func (r *LedgerRepository) SetError(ctx context.Context, journalID int64, message string) error {
	return r.update(ctx, "set error message", `
UPDATE ledger_entries SET error_message = $2, updated_at = $3 WHERE journal_id = $1
`, journalID, message, time.Now().UTC())
}

func (r *LedgerRepository) update(ctx context.Context, operation, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrEntryNotFound, operation, sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLedgerEntry(row rowScanner) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	var status string
	var documentType, documentSubtype, extractedText, errorMessage sql.NullString
	var findings []byte

	err := row.Scan(
		&entry.JournalID, &entry.ContentFingerprint, &entry.Filename, &entry.SourceChannel, &entry.SubmitterID,
		&entry.SubmittedAt, &documentType, &documentSubtype, &status, &entry.DuplicateOfJournalID,
		&entry.DuplicateTier, &entry.SimilarityScore, &entry.CaseRef, &entry.Urgent, &entry.StoragePath,
		&extractedText, &entry.NeedsReview, &entry.Confidence, &findings, &entry.CostUnits,
		&errorMessage, &entry.ProcessedAt, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Status = domain.EntryStatus(status)
	entry.DocumentType = documentType.String
	entry.DocumentSubtype = documentSubtype.String
	entry.ExtractedText = extractedText.String
	entry.Error = errorMessage.String
	entry.Findings = findings
	return &entry, nil
}

func collectLedgerEntries(rows *sql.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()

	out := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return out, nil
}
