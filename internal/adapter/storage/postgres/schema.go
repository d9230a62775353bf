package postgres

import (
	"context"
	"fmt"
)

// Schema is the DDL for the ledger tables. Postings and audit rows are
// append-only: UPDATE and DELETE are rewritten to no-ops.
const Schema = `
CREATE TABLE IF NOT EXISTS wallets (
	owner_id    TEXT          NOT NULL,
	currency    TEXT          NOT NULL,
	balance     NUMERIC(20,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
	PRIMARY KEY (owner_id, currency)
);

CREATE TABLE IF NOT EXISTS transfers (
	id               UUID          PRIMARY KEY,
	idempotency_key  TEXT          CONSTRAINT transfers_idempotency_key_key UNIQUE,
	currency         TEXT          NOT NULL,
	amount           NUMERIC(20,2) NOT NULL CHECK (amount > 0),
	sender_id        TEXT          NOT NULL,
	recipient_id     TEXT          NOT NULL,
	status           TEXT          NOT NULL CHECK (status IN ('pending', 'completed', 'failed')),
	failure_reason   TEXT,
	note             TEXT,
	created_at       TIMESTAMPTZ   NOT NULL,
	completed_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_transfers_sender_created ON transfers (sender_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transfers_recipient_created ON transfers (recipient_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transfers_status_created ON transfers (status, created_at);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id            UUID          PRIMARY KEY,
	transfer_id   UUID          NOT NULL,
	owner_id      TEXT          NOT NULL,
	entry_type    TEXT          NOT NULL CHECK (entry_type IN ('debit', 'credit', 'adjustment')),
	currency      TEXT          NOT NULL,
	amount        NUMERIC(20,2) NOT NULL,
	counterparty  TEXT          NOT NULL,
	created_at    TIMESTAMPTZ   NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_transfer ON ledger_entries (transfer_id);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_owner ON ledger_entries (owner_id, created_at DESC);
CREATE OR REPLACE RULE ledger_entries_no_update AS ON UPDATE TO ledger_entries DO INSTEAD NOTHING;
CREATE OR REPLACE RULE ledger_entries_no_delete AS ON DELETE TO ledger_entries DO INSTEAD NOTHING;

CREATE TABLE IF NOT EXISTS audit_events (
	id           UUID        PRIMARY KEY,
	actor_id     TEXT        NOT NULL,
	actor_role   TEXT        NOT NULL,
	action       TEXT        NOT NULL,
	target_type  TEXT        NOT NULL,
	target_id    TEXT        NOT NULL,
	reason       TEXT        NOT NULL DEFAULT '',
	before_state JSON,
	after_state  JSON,
	metadata     JSONB,
	ip_address   TEXT        NOT NULL DEFAULT '',
	user_agent   TEXT        NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	digest       TEXT        NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_actor ON audit_events (actor_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_target ON audit_events (target_type, target_id, created_at DESC);
CREATE OR REPLACE RULE audit_events_no_update AS ON UPDATE TO audit_events DO INSTEAD NOTHING;
CREATE OR REPLACE RULE audit_events_no_delete AS ON DELETE TO audit_events DO INSTEAD NOTHING;
`

// ApplySchema creates the tables if they do not exist.
func ApplySchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
