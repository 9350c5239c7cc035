// Package registry holds the in-memory set of scheme rule documents served
// to checks. Documents are loaded from the repository at startup and
// replaced wholesale on reload; reads are lock-protected and cheap.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/openwelfare/sahayak/internal/domain"
	"github.com/openwelfare/sahayak/internal/rules"
)

// ErrNotFound is returned when a scheme id has no registered document.
var ErrNotFound = fmt.Errorf("scheme not found")

// Registry is the tenant-scoped scheme document store backing checks.
type Registry struct {
	mu     sync.RWMutex
	docs   map[string]map[string]*domain.SchemeDoc // tenantID -> schemeID -> doc
	logger *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		docs:   make(map[string]map[string]*domain.SchemeDoc),
		logger: logger,
	}
}

// Register validates and stores a document. A document whose rule fails
// validation is still registered, in error status, so the failure is
// visible; it will never be evaluated.
func (r *Registry) Register(tenantID string, doc *domain.SchemeDoc) error {
	if doc == nil || doc.SchemeID == "" {
		return fmt.Errorf("document must have a scheme id")
	}
	if doc.Status == "" {
		if err := rules.ValidateSchemeRule(&doc.Rule); err != nil {
			doc.Status = domain.StatusError
			doc.Error = err.Error()
		} else {
			doc.Status = domain.StatusReady
		}
	}
	doc.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	tenant, ok := r.docs[tenantID]
	if !ok {
		tenant = make(map[string]*domain.SchemeDoc)
		r.docs[tenantID] = tenant
	}
	tenant[doc.SchemeID] = doc

	if doc.Status == domain.StatusError {
		r.logger.Warn("scheme registered with invalid rules",
			"tenantId", tenantID, "schemeId", doc.SchemeID, "error", doc.Error)
	} else {
		r.logger.Info("scheme registered",
			"tenantId", tenantID, "schemeId", doc.SchemeID)
	}
	return nil
}

// Get returns the document for one scheme.
func (r *Registry) Get(tenantID, schemeID string) (*domain.SchemeDoc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[tenantID][schemeID]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// List returns every registered document for a tenant, ordered by scheme
// id for stable output.
func (r *Registry) List(tenantID string) []*domain.SchemeDoc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.SchemeDoc, 0, len(r.docs[tenantID]))
	for _, doc := range r.docs[tenantID] {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SchemeID < out[j].SchemeID })
	return out
}

// Remove drops a scheme's document.
func (r *Registry) Remove(tenantID, schemeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[tenantID][schemeID]; !ok {
		return ErrNotFound
	}
	delete(r.docs[tenantID], schemeID)
	return nil
}

// Count returns the number of documents registered for a tenant.
func (r *Registry) Count(tenantID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs[tenantID])
}

// LoadFromRepository replaces a tenant's documents with the repository's
// current contents. Every document is re-validated on the way in, so rules
// edited out-of-band cannot bypass the ingestion gate.
func (r *Registry) LoadFromRepository(ctx context.Context, repo domain.Repository, tenantID string) (int, error) {
	docs, err := repo.ListSchemeDocs(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("list scheme docs: %w", err)
	}

	fresh := make(map[string]*domain.SchemeDoc, len(docs))
	for _, doc := range docs {
		if err := rules.ValidateSchemeRule(&doc.Rule); err != nil {
			doc.Status = domain.StatusError
			doc.Error = err.Error()
		} else {
			doc.Status = domain.StatusReady
			doc.Error = ""
		}
		fresh[doc.SchemeID] = doc
	}

	r.mu.Lock()
	r.docs[tenantID] = fresh
	r.mu.Unlock()

	r.logger.Info("schemes loaded", "tenantId", tenantID, "count", len(fresh))
	return len(fresh), nil
}
