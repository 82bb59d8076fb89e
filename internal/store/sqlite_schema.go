package store

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	name             TEXT NOT NULL,
	tax_id           TEXT NOT NULL DEFAULT '',
	tax_id_validated INTEGER NOT NULL DEFAULT 0,
	sector           TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	employees_min    INTEGER NOT NULL DEFAULT 0,
	employees_max    INTEGER NOT NULL DEFAULT 0,
	capital          REAL NOT NULL DEFAULT 0,
	digital_maturity REAL,
	technologies     TEXT NOT NULL DEFAULT '[]',
	source           TEXT NOT NULL DEFAULT '',
	source_meta      TEXT NOT NULL DEFAULT '{}',
	pipeline_status  TEXT NOT NULL DEFAULT 'new',
	dedupe_key       TEXT NOT NULL,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	UNIQUE (tenant_id, dedupe_key)
);

CREATE TABLE IF NOT EXISTS icps (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	definition TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS qualification_results (
	id                       TEXT PRIMARY KEY,
	tenant_id                TEXT NOT NULL,
	company_id               TEXT NOT NULL REFERENCES companies(id),
	icp_id                   TEXT NOT NULL,
	fit_score                REAL NOT NULL,
	grade                    TEXT NOT NULL,
	sector_fit_score         REAL NOT NULL DEFAULT 0,
	geo_fit_score            REAL NOT NULL DEFAULT 0,
	capital_fit_score        REAL NOT NULL DEFAULT 0,
	maturity_score           REAL NOT NULL DEFAULT 0,
	product_similarity_score REAL NOT NULL DEFAULT 0,
	criteria                 TEXT NOT NULL DEFAULT '[]',
	pipeline_status          TEXT NOT NULL,
	discard_reason           TEXT NOT NULL DEFAULT '',
	restore_count            INTEGER NOT NULL DEFAULT 0,
	created_at               DATETIME NOT NULL,
	approved_at              DATETIME,
	discarded_at             DATETIME,
	updated_at               DATETIME NOT NULL,
	CHECK (pipeline_status <> 'discarded' OR discard_reason <> '')
);

CREATE TABLE IF NOT EXISTS leads (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	company_id       TEXT NOT NULL REFERENCES companies(id),
	qualification_id TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL,
	email            TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'open',
	last_contact_at  DATETIME,
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS deals (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	company_id       TEXT NOT NULL REFERENCES companies(id),
	lead_id          TEXT NOT NULL DEFAULT '',
	qualification_id TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL DEFAULT '',
	stage            TEXT NOT NULL,
	value            REAL NOT NULL DEFAULT 0,
	probability      REAL NOT NULL DEFAULT 0,
	stage_changed_at DATETIME NOT NULL,
	closed_at        DATETIME,
	external_id      TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS proposals (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	deal_id         TEXT NOT NULL REFERENCES deals(id),
	title           TEXT NOT NULL,
	recipient_name  TEXT NOT NULL DEFAULT '',
	recipient_email TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'draft',
	expires_at      DATETIME NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	entity_type  TEXT NOT NULL DEFAULT '',
	entity_id    TEXT NOT NULL DEFAULT '',
	rule_id      TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	assignee     TEXT NOT NULL DEFAULT '',
	due_at       DATETIME NOT NULL,
	completed_at DATETIME,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	rule_id     TEXT NOT NULL DEFAULT '',
	entity_type TEXT NOT NULL DEFAULT '',
	entity_id   TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	read_at     DATETIME,
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pipeline_events (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	company_id  TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	actor       TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS automation_rules (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	reminder_type TEXT NOT NULL,
	trigger_days  INTEGER NOT NULL,
	action_type   TEXT NOT NULL,
	action_config TEXT NOT NULL DEFAULT '{}',
	is_active     INTEGER NOT NULL DEFAULT 1,
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS automation_markers (
	rule_id             TEXT NOT NULL,
	entity_id           TEXT NOT NULL,
	tenant_id           TEXT NOT NULL,
	action_type         TEXT NOT NULL,
	status              TEXT NOT NULL,
	fired_at            DATETIME NOT NULL,
	attempts            INTEGER NOT NULL DEFAULT 0,
	next_attempt_at     DATETIME,
	last_error          TEXT NOT NULL DEFAULT '',
	provider_message_id TEXT NOT NULL DEFAULT '',
	recipient           TEXT NOT NULL DEFAULT '',
	subject             TEXT NOT NULL DEFAULT '',
	body                TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (rule_id, entity_id)
);

CREATE TABLE IF NOT EXISTS call_insights (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	lead_id          TEXT NOT NULL DEFAULT '',
	company_id       TEXT NOT NULL DEFAULT '',
	external_id      TEXT NOT NULL DEFAULT '',
	summary          TEXT NOT NULL DEFAULT '',
	sentiment        TEXT NOT NULL DEFAULT '',
	next_steps       TEXT NOT NULL DEFAULT '[]',
	keyword_counts   TEXT NOT NULL DEFAULT '{}',
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	recorded_at      DATETIME NOT NULL,
	created_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_tenant_status ON companies(tenant_id, pipeline_status);
CREATE INDEX IF NOT EXISTS idx_results_pair ON qualification_results(tenant_id, company_id, icp_id, created_at);
CREATE INDEX IF NOT EXISTS idx_results_status ON qualification_results(pipeline_status, updated_at);
CREATE INDEX IF NOT EXISTS idx_leads_tenant_status ON leads(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_deals_company ON deals(tenant_id, company_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_qualification ON leads(qualification_id) WHERE qualification_id <> '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_deals_qualification ON deals(qualification_id) WHERE qualification_id <> '';
CREATE INDEX IF NOT EXISTS idx_proposals_expires ON proposals(tenant_id, status, expires_at);
CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(tenant_id, due_at);
CREATE INDEX IF NOT EXISTS idx_events_entity ON pipeline_events(tenant_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_markers_status ON automation_markers(status, next_attempt_at);
`
