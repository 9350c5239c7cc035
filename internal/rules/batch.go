package rules

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openwelfare/sahayak/internal/domain"
)

// Checker runs a profile against a collection of scheme rule documents and
// partitions the outcome into eligible schemes, near misses, and schemes
// that could not be evaluated.
type Checker struct {
	evaluator         *Evaluator
	nearMissThreshold int
	maxWorkers        int
	logger            *slog.Logger
}

// NewChecker builds a batch checker from config. Zero or negative settings
// fall back to the community-tier defaults.
func NewChecker(cfg domain.CheckConfig, logger *slog.Logger) *Checker {
	if cfg.NearMissThreshold <= 0 {
		cfg.NearMissThreshold = 2
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		evaluator:         NewEvaluator(),
		nearMissThreshold: cfg.NearMissThreshold,
		maxWorkers:        cfg.MaxWorkers,
		logger:            logger,
	}
}

// Evaluator returns the underlying single-scheme evaluator.
func (c *Checker) Evaluator() *Evaluator {
	return c.evaluator
}

// Check evaluates the profile against every document. Scheme evaluations
// are independent, so they fan out across a bounded worker pool; docs in
// error status are skipped and reported instead of evaluated.
func (c *Checker) Check(ctx context.Context, profile domain.Profile, docs []*domain.SchemeDoc) *domain.CheckResponse {
	start := time.Now()
	resp := &domain.CheckResponse{
		CheckID:        uuid.NewString(),
		Eligible:       []domain.EligibleScheme{},
		NearMisses:     []domain.NearMiss{},
		SchemesChecked: len(docs),
		Timestamp:      start.UTC(),
	}

	evals := make([]*domain.Evaluation, len(docs))
	sem := make(chan struct{}, c.maxWorkers)
	var wg sync.WaitGroup
	for i, doc := range docs {
		if !doc.Ready() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, doc *domain.SchemeDoc) {
			defer wg.Done()
			defer func() { <-sem }()
			evals[i] = c.evaluator.EvaluateScheme(profile, &doc.Rule)
		}(i, doc)
	}
	wg.Wait()

	for i, doc := range docs {
		if !doc.Ready() {
			resp.SchemeErrors = append(resp.SchemeErrors, domain.SchemeError{
				SchemeID: doc.SchemeID,
				Error:    doc.Error,
			})
			continue
		}
		eval := evals[i]
		if eval == nil {
			continue
		}
		if eval.Eligible {
			resp.Eligible = append(resp.Eligible, domain.EligibleScheme{
				SchemeID:          eval.SchemeID,
				SchemeName:        eval.SchemeName,
				Score:             eval.Score,
				Reasons:           eval.Reasons,
				RequiredDocuments: doc.Rule.RequiredDocuments,
				BenefitOutline:    doc.Rule.BenefitOutline,
				NextSteps:         doc.Rule.NextSteps,
			})
			continue
		}
		if n := eval.NearMissCount(); n > 0 && n <= c.nearMissThreshold {
			resp.NearMisses = append(resp.NearMisses, domain.NearMiss{
				SchemeID:         eval.SchemeID,
				SchemeName:       eval.SchemeName,
				Score:            eval.Score,
				FailedConditions: eval.FailedConditions,
			})
		}
	}

	sort.SliceStable(resp.Eligible, func(a, b int) bool {
		if resp.Eligible[a].Score != resp.Eligible[b].Score {
			return resp.Eligible[a].Score > resp.Eligible[b].Score
		}
		return resp.Eligible[a].SchemeID < resp.Eligible[b].SchemeID
	})
	sort.SliceStable(resp.NearMisses, func(a, b int) bool {
		la, lb := len(resp.NearMisses[a].FailedConditions), len(resp.NearMisses[b].FailedConditions)
		if la != lb {
			return la < lb
		}
		return resp.NearMisses[a].SchemeID < resp.NearMisses[b].SchemeID
	})

	resp.ProcessMs = time.Since(start).Milliseconds()
	c.logger.Debug("check complete",
		"checkId", resp.CheckID,
		"schemes", len(docs),
		"eligible", len(resp.Eligible),
		"nearMisses", len(resp.NearMisses),
		"errors", len(resp.SchemeErrors),
		"processMs", resp.ProcessMs,
	)
	return resp
}
