// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openwelfare/sahayak/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveSchemeDoc upserts a scheme's rules document with tenant isolation.
func (r *SQLRepository) SaveSchemeDoc(ctx context.Context, tenantID string, doc *domain.SchemeDoc) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if doc.SchemeID == "" {
		return fmt.Errorf("%w: schemeID is required", ErrInvalidInput)
	}

	rule, err := json.Marshal(doc.Rule)
	if err != nil {
		return fmt.Errorf("encode rule: %w", err)
	}

	now := time.Now().UTC()
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = now
	}
	doc.UpdatedAt = now

	query := `
		INSERT INTO scheme_rules (
			scheme_id, tenant_id, rule, raw_text, status, error,
			extractor, ingested_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scheme_id, tenant_id) DO UPDATE SET
			rule = excluded.rule,
			raw_text = excluded.raw_text,
			status = excluded.status,
			error = excluded.error,
			extractor = excluded.extractor,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		doc.SchemeID, tenantID, string(rule), doc.RawText,
		doc.Status, doc.Error, doc.Extractor,
		doc.IngestedAt, doc.UpdatedAt,
	)
	return err
}

// GetSchemeDoc retrieves a scheme's rules document with tenant isolation.
func (r *SQLRepository) GetSchemeDoc(ctx context.Context, tenantID string, schemeID string) (*domain.SchemeDoc, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT scheme_id, rule, raw_text, status, error, extractor,
			   ingested_at, updated_at
		FROM scheme_rules
		WHERE tenant_id = ? AND scheme_id = ?
	`

	doc, err := scanSchemeDoc(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, schemeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return doc, err
}

// ListSchemeDocs retrieves all scheme documents for a tenant.
func (r *SQLRepository) ListSchemeDocs(ctx context.Context, tenantID string) ([]*domain.SchemeDoc, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT scheme_id, rule, raw_text, status, error, extractor,
			   ingested_at, updated_at
		FROM scheme_rules
		WHERE tenant_id = ?
		ORDER BY scheme_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.SchemeDoc
	for rows.Next() {
		doc, err := scanSchemeDoc(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteSchemeDoc removes a scheme's rules document.
func (r *SQLRepository) DeleteSchemeDoc(ctx context.Context, tenantID string, schemeID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM scheme_rules WHERE tenant_id = ? AND scheme_id = ?`
	result, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, schemeID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchemeDoc(row rowScanner) (*domain.SchemeDoc, error) {
	var doc domain.SchemeDoc
	var rule string

	err := row.Scan(
		&doc.SchemeID, &rule, &doc.RawText, &doc.Status, &doc.Error,
		&doc.Extractor, &doc.IngestedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rule), &doc.Rule); err != nil {
		return nil, fmt.Errorf("failed to parse stored rule for %s: %w", doc.SchemeID, err)
	}
	return &doc, nil
}

// SaveCheck stores a completed check with tenant isolation.
func (r *SQLRepository) SaveCheck(ctx context.Context, tenantID string, rec *domain.CheckRecord) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	profile, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	query := `
		INSERT INTO checks (
			id, tenant_id, user_id, profile, eligible_count,
			near_miss_count, response, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, tenantID, rec.UserID, string(profile),
		rec.EligibleCount, rec.NearMissCount,
		string(rec.Response), rec.CreatedAt,
	)
	return err
}

// GetCheck retrieves a check by ID with tenant isolation.
func (r *SQLRepository) GetCheck(ctx context.Context, tenantID string, checkID string) (*domain.CheckRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, user_id, profile, eligible_count,
			   near_miss_count, response, created_at
		FROM checks
		WHERE tenant_id = ? AND id = ?
	`

	rec, err := scanCheck(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, checkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// GetChecksByUser retrieves a user's checks since a point in time, most
// recent first.
func (r *SQLRepository) GetChecksByUser(ctx context.Context, tenantID string, userID string, since time.Time) ([]*domain.CheckRecord, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, user_id, profile, eligible_count,
			   near_miss_count, response, created_at
		FROM checks
		WHERE tenant_id = ? AND user_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.CheckRecord
	for rows.Next() {
		rec, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanCheck(row rowScanner) (*domain.CheckRecord, error) {
	var rec domain.CheckRecord
	var profile, response string

	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.UserID, &profile,
		&rec.EligibleCount, &rec.NearMissCount, &response, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(profile), &rec.Profile); err != nil {
		return nil, fmt.Errorf("failed to parse stored profile: %w", err)
	}
	rec.Response = []byte(response)
	return &rec, nil
}

// SaveProfile upserts a user's declared attributes with tenant isolation.
func (r *SQLRepository) SaveProfile(ctx context.Context, tenantID string, userID string, profile domain.Profile) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if userID == "" {
		return fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	attrs, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	query := `
		INSERT INTO profiles (user_id, tenant_id, attributes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, tenant_id) DO UPDATE SET
			attributes = excluded.attributes,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		userID, tenantID, string(attrs), time.Now().UTC())
	return err
}

// GetProfile retrieves a user's stored attributes with tenant isolation.
func (r *SQLRepository) GetProfile(ctx context.Context, tenantID string, userID string) (domain.Profile, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT attributes FROM profiles WHERE tenant_id = ? AND user_id = ?`

	var attrs string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, userID).Scan(&attrs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(attrs), &profile); err != nil {
		return nil, fmt.Errorf("failed to parse stored profile: %w", err)
	}
	return profile, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
