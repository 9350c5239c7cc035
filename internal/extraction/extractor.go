// Package extraction turns free-form scheme text into rules documents. The
// primary path is an LLM extraction call; a regex-based extractor serves as
// the offline fallback. Every extracted document passes the JSON schema
// gate and the rules validator before it is accepted.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openwelfare/sahayak/internal/domain"
	"github.com/openwelfare/sahayak/internal/rules"
)

// Extractor produces a raw rules document from scheme text.
type Extractor interface {
	// Extract returns the rules document for the given text. schemeID is a
	// hint used when the text itself does not yield an identifier.
	Extract(ctx context.Context, text, schemeID string) (map[string]any, error)

	// Name identifies the extractor in stored provenance.
	Name() string
}

// Pipeline runs extraction with fallback and gates the result.
type Pipeline struct {
	primary  Extractor
	fallback Extractor
	logger   *slog.Logger
}

// NewPipeline wires the extraction chain. primary may be nil, in which case
// every document goes through the fallback extractor.
func NewPipeline(primary, fallback Extractor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{primary: primary, fallback: fallback, logger: logger}
}

// Run extracts, gates, and types a rules document. The returned SchemeDoc
// carries ready status when the document passed both the schema gate and
// the rules validator, and error status otherwise; extraction provenance is
// recorded either way.
func (p *Pipeline) Run(ctx context.Context, text, schemeID string) (*domain.SchemeDoc, error) {
	doc, extractor, err := p.extract(ctx, text, schemeID)
	if err != nil {
		return nil, err
	}

	out := &domain.SchemeDoc{
		RawText:   text,
		Extractor: extractor,
	}

	if err := CheckDocumentShape(doc); err != nil {
		out.SchemeID = schemeID
		out.Status = domain.StatusError
		out.Error = err.Error()
		return out, nil
	}
	if err := rules.ValidateDocument(doc); err != nil {
		out.SchemeID = schemeID
		out.Status = domain.StatusError
		out.Error = err.Error()
		return out, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode extracted document: %w", err)
	}
	var rule domain.SchemeRule
	if err := json.Unmarshal(raw, &rule); err != nil {
		return nil, fmt.Errorf("decode extracted document: %w", err)
	}

	out.SchemeID = rule.SchemeID
	out.Rule = rule
	out.Status = domain.StatusReady
	return out, nil
}

func (p *Pipeline) extract(ctx context.Context, text, schemeID string) (map[string]any, string, error) {
	if p.primary != nil {
		doc, err := p.primary.Extract(ctx, text, schemeID)
		if err == nil {
			return doc, p.primary.Name(), nil
		}
		p.logger.Warn("primary extraction failed, using fallback",
			"schemeId", schemeID, "extractor", p.primary.Name(), "error", err)
	}
	if p.fallback == nil {
		return nil, "", fmt.Errorf("no extractor available")
	}
	doc, err := p.fallback.Extract(ctx, text, schemeID)
	if err != nil {
		return nil, "", fmt.Errorf("fallback extraction: %w", err)
	}
	return doc, p.fallback.Name(), nil
}
