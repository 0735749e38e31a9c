package repository

import (
	"context"
	"fmt"
)

const (
	cardNumberConstraint   = "cards_number_digest_key"
	issuedNumberConstraint = "issued_card_numbers_pkey"
)

const schema = `
CREATE SCHEMA IF NOT EXISTS bank;

-- Survives card deletion so a number is never issued twice.
CREATE TABLE IF NOT EXISTS bank.issued_card_numbers (
	number_digest CHAR(64) PRIMARY KEY,
	issued_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS bank.cards (
	id            UUID PRIMARY KEY,
	number_enc    TEXT NOT NULL,
	number_digest CHAR(64) NOT NULL,
	last4         CHAR(4) NOT NULL,
	holder_name   VARCHAR(150) NOT NULL,
	expiry_month  SMALLINT NOT NULL,
	expiry_year   SMALLINT NOT NULL,
	status        VARCHAR(16) NOT NULL CHECK (status IN ('ACTIVE', 'BLOCKED')),
	balance       BIGINT NOT NULL CHECK (balance >= 0),
	user_id       UUID NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	CONSTRAINT cards_number_digest_key UNIQUE (number_digest)
);

CREATE INDEX IF NOT EXISTS cards_user_id_created_at_idx ON bank.cards (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS bank.card_block_requests (
	id           UUID PRIMARY KEY,
	card_id      UUID NOT NULL,
	user_id      UUID NOT NULL,
	reason       TEXT NOT NULL,
	status       VARCHAR(16) NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
	requested_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS card_block_requests_card_status_idx ON bank.card_block_requests (card_id, status);

CREATE TABLE IF NOT EXISTS bank.transactions (
	id               UUID PRIMARY KEY,
	status           VARCHAR(16) NOT NULL,
	amount           BIGINT NOT NULL CHECK (amount > 0),
	from_card        UUID NOT NULL,
	from_card_last4  CHAR(4) NOT NULL,
	to_card          UUID NOT NULL,
	to_card_last4    CHAR(4) NOT NULL,
	transaction_date TIMESTAMPTZ NOT NULL,
	balance_after    BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS transactions_from_card_idx ON bank.transactions (from_card, transaction_date DESC);
CREATE INDEX IF NOT EXISTS transactions_to_card_idx ON bank.transactions (to_card, transaction_date DESC);
`

// Migrate creates the schema if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	r.log.Info("Database schema is up to date")
	return nil
}
