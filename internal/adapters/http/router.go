package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/core/ports"
)

const defaultListLimit = 100

type Router struct {
	intake     ports.SubmissionIntake
	dispatcher ports.WorkDispatcher
	reader     ports.LedgerReader
	metrics    ports.MetricRepository
	ruleAdmin  ports.RuleAdmin
	limiter    SubmitLimiter
}

func NewRouter(
	intake ports.SubmissionIntake,
	dispatcher ports.WorkDispatcher,
	reader ports.LedgerReader,
	metrics ports.MetricRepository,
	ruleAdmin ports.RuleAdmin,
	limiter SubmitLimiter,
) *Router {
	return &Router{
		intake:     intake,
		dispatcher: dispatcher,
		reader:     reader,
		metrics:    metrics,
		ruleAdmin:  ruleAdmin,
		limiter:    limiter,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/submissions", rt.submissions)
	mux.HandleFunc("/v1/submissions/", rt.submissionByID)
	mux.HandleFunc("/v1/review-queue", rt.reviewQueue)
	mux.HandleFunc("/v1/workers/claim", rt.claimWork)
	mux.HandleFunc("/v1/workers/outcome", rt.reportOutcome)
	mux.HandleFunc("/v1/admin/rules/reload", rt.reloadRules)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.submit(w, r)
	case http.MethodGet:
		rt.listByStatus(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) submit(w http.ResponseWriter, r *http.Request) {
	if rt.limiter != nil && !rt.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "submission rate exceeded"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	req := ports.SubmissionRequest{
		Filename:      fileHeader.Filename,
		SourceChannel: r.FormValue("source_channel"),
		SubmitterID:   r.FormValue("submitter_id"),
		Urgent:        r.FormValue("urgent") == "true",
		Body:          file,
	}
	if caseRef := strings.TrimSpace(r.FormValue("case_ref")); caseRef != "" {
		req.CaseRef = &caseRef
	}
	if req.SourceChannel == "" {
		req.SourceChannel = "bulk_import"
	}

	entry, err := rt.intake.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, entry)
}

func (rt *Router) listByStatus(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'status' is required"})
		return
	}
	entries, err := rt.reader.ListByStatus(r.Context(), domain.EntryStatus(status), queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (rt *Router) submissionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/submissions/")
	idPart, wantMetrics := rest, false
	if strings.HasSuffix(rest, "/metrics") {
		idPart = strings.TrimSuffix(rest, "/metrics")
		wantMetrics = true
	}
	journalID, err := strconv.ParseInt(strings.TrimSuffix(idPart, "/"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "journal id must be numeric"})
		return
	}

	if wantMetrics {
		steps, err := rt.metrics.ListByJournalID(r.Context(), journalID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, steps)
		return
	}

	entry, err := rt.reader.GetByID(r.Context(), journalID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (rt *Router) reviewQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	entries, err := rt.reader.FindPendingReview(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// claimWork lets an external worker pool participate in queue draining; the
// built-in workers use the same dispatcher directly.
func (rt *Router) claimWork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		WorkerID string `json:"worker_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.WorkerID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "worker_id is required"})
		return
	}

	item, err := rt.dispatcher.ClaimNext(r.Context(), req.WorkerID)
	if err != nil {
		if domain.IsKind(err, domain.ErrQueueEmpty) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (rt *Router) reportOutcome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		JournalID int64                  `json:"journal_id"`
		Error     string                 `json:"error"`
		Result    *domain.AnalysisResult `json:"result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JournalID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "journal_id is required"})
		return
	}

	var err error
	switch {
	case req.Error != "":
		err = rt.dispatcher.ReportFailed(r.Context(), req.JournalID, req.Error)
	case req.Result != nil:
		err = rt.dispatcher.ReportCompleted(r.Context(), req.JournalID, *req.Result)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "either result or error is required"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (rt *Router) reloadRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	version, err := rt.ruleAdmin.Reload(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"version": version})
}

func queryLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
