package classify

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
)

type rulePattern struct {
	pattern      *regexp.Regexp
	documentType string
	subtype      string
}

// patterns are checked in order; first match wins, so more specific
// categories sit above generic ones.
var patterns = []rulePattern{
	{regexp.MustCompile(`(?i)(contract|agreement|nda)`), "legal_document", "contract"},
	{regexp.MustCompile(`(?i)(court|filing|motion|subpoena|affidavit)`), "legal_document", "court_filing"},
	{regexp.MustCompile(`(?i)(invoice|receipt|bill)`), "financial_record", "invoice"},
	{regexp.MustCompile(`(?i)(statement|bank|ledger)`), "financial_record", "statement"},
	{regexp.MustCompile(`(?i)(passport|license|licence|id[_\-. ]card)`), "identity_document", ""},
	{regexp.MustCompile(`(?i)(report|assessment|summary)`), "report", ""},
}

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".heic": {}, ".tiff": {}, ".bmp": {},
}

// Classifier maps filename patterns and capture-channel hints to a document
// category. It is deterministic, side-effect free and never fails: anything
// unmatched classifies as domain.TypeUnclassified and is refined later by
// the analysis step.
type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(filename, sourceChannel string) (string, string) {
	for _, candidate := range patterns {
		if candidate.pattern.MatchString(filename) {
			return candidate.documentType, candidate.subtype
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := imageExtensions[ext]; ok {
		if sourceChannel == "mobile_capture" || sourceChannel == "chat_bot" {
			return "photo_capture", "camera"
		}
		return "photo_capture", "scan"
	}

	return domain.TypeUnclassified, ""
}
