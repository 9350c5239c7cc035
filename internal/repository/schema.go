package repository

// Schema definitions for the Sahayak database.
// Compatible with both SQLite and PostgreSQL.

const schemaSchemeRules = `
CREATE TABLE IF NOT EXISTS scheme_rules (
    scheme_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    rule TEXT NOT NULL,
    raw_text TEXT,
    status TEXT NOT NULL,
    error TEXT,
    extractor TEXT,
    ingested_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (scheme_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_scheme_rules_tenant ON scheme_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_scheme_rules_status ON scheme_rules(tenant_id, status);
`

const schemaChecks = `
CREATE TABLE IF NOT EXISTS checks (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    profile TEXT NOT NULL,
    eligible_count INTEGER NOT NULL,
    near_miss_count INTEGER NOT NULL,
    response TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_tenant ON checks(tenant_id);
CREATE INDEX IF NOT EXISTS idx_checks_user ON checks(tenant_id, user_id);
CREATE INDEX IF NOT EXISTS idx_checks_created ON checks(tenant_id, created_at);
`

const schemaProfiles = `
CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    attributes TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_profiles_tenant ON profiles(tenant_id);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaSchemeRules,
		schemaChecks,
		schemaProfiles,
	}
}
