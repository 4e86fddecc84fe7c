package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/infrastructure/resilience"
)

// Client calls the external OCR/AI analysis service. The gate never
// interprets the structured findings it returns; only the confidence figure
// feeds a decision.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type analyzeRequest struct {
	JournalID     int64  `json:"journal_id"`
	DocumentType  string `json:"document_type"`
	Subtype       string `json:"document_subtype,omitempty"`
	StoragePath   string `json:"storage_path"`
	Filename      string `json:"filename"`
	ExtractedText string `json:"extracted_text,omitempty"`
}

type analyzeResponse struct {
	Confidence         int             `json:"confidence"`
	ExtractedText      string          `json:"extracted_text"`
	StructuredFindings json.RawMessage `json:"structured_findings"`
	CostUnits          float64         `json:"cost_units"`
}

func (c *Client) Analyze(ctx context.Context, entry *domain.LedgerEntry) (domain.AnalysisResult, error) {
	request := analyzeRequest{
		JournalID:     entry.JournalID,
		DocumentType:  entry.DocumentType,
		Subtype:       entry.DocumentSubtype,
		StoragePath:   entry.StoragePath,
		Filename:      entry.Filename,
		ExtractedText: entry.ExtractedText,
	}

	var response analyzeResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/analyze", request, &response)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "analyzer.analyze", call, classifyAnalyzerError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	return domain.AnalysisResult{
		Confidence:         response.Confidence,
		ExtractedText:      response.ExtractedText,
		StructuredFindings: response.StructuredFindings,
		CostUnits:          response.CostUnits,
	}, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrAnalysisService, "analyze request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return analyzerHTTPError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode analyze response: %w", err)
	}
	return nil
}

// analyzerHTTPError maps 5xx and 429 to the retryable service-failure kind;
// any other status is a permanent request defect.
func analyzerHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	cause := fmt.Errorf("analyzer status %s: %s", resp.Status, msg)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return domain.WrapError(domain.ErrAnalysisService, "analyze request", cause)
	}
	return cause
}

func classifyAnalyzerError(err error) resilience.Outcome {
	if err == nil {
		return resilience.Discard
	}
	if domain.IsKind(err, domain.ErrAnalysisService) {
		return resilience.Retry
	}
	return resilience.Fail
}
