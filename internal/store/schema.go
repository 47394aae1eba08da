// Copyright 2025 ChorusOne
// This file is part of the monad-staking-indexer library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

package store

// schema is applied once at startup by Migrate. Every event table's unique
// key matches spec.md §3 exactly.
const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	block_number    BIGINT PRIMARY KEY,
	block_hash      TEXT NOT NULL,
	block_timestamp BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS delegate_events (
	id                BIGSERIAL PRIMARY KEY,
	val_id            BIGINT NOT NULL,
	delegator         TEXT NOT NULL,
	amount            NUMERIC NOT NULL,
	activation_epoch  BIGINT NOT NULL,
	block_number      BIGINT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	transaction_index BIGINT NOT NULL,
	UNIQUE (val_id, transaction_hash)
);

CREATE TABLE IF NOT EXISTS undelegate_events (
	id                BIGSERIAL PRIMARY KEY,
	val_id            BIGINT NOT NULL,
	delegator         TEXT NOT NULL,
	withdrawal_id     BIGINT NOT NULL,
	amount            NUMERIC NOT NULL,
	activation_epoch  BIGINT NOT NULL,
	block_number      BIGINT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	transaction_index BIGINT NOT NULL,
	UNIQUE (val_id, transaction_hash)
);

CREATE TABLE IF NOT EXISTS withdraw_events (
	id                BIGSERIAL PRIMARY KEY,
	val_id            BIGINT NOT NULL,
	delegator         TEXT NOT NULL,
	withdrawal_id     BIGINT NOT NULL,
	amount            NUMERIC NOT NULL,
	activation_epoch  BIGINT NOT NULL,
	block_number      BIGINT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	transaction_index BIGINT NOT NULL,
	UNIQUE (val_id, transaction_hash)
);

CREATE TABLE IF NOT EXISTS claim_rewards_events (
	id                BIGSERIAL PRIMARY KEY,
	val_id            BIGINT NOT NULL,
	delegator         TEXT NOT NULL,
	amount            NUMERIC NOT NULL,
	epoch             BIGINT NOT NULL,
	block_number      BIGINT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	transaction_index BIGINT NOT NULL,
	UNIQUE (val_id, transaction_hash)
);

CREATE TABLE IF NOT EXISTS validator_rewarded_events (
	id                BIGSERIAL PRIMARY KEY,
	validator_id      BIGINT NOT NULL,
	from_address      TEXT NOT NULL,
	amount            NUMERIC NOT NULL,
	epoch             BIGINT NOT NULL,
	block_number      BIGINT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	transaction_index BIGINT NOT NULL,
	UNIQUE (transaction_hash)
);

CREATE TABLE IF NOT EXISTS epoch_changed_events (
	id                BIGSERIAL PRIMARY KEY,
	old_epoch         BIGINT NOT NULL,
	new_epoch         BIGINT NOT NULL,
	block_number      BIGINT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	transaction_index BIGINT NOT NULL,
	UNIQUE (transaction_hash)
);

CREATE TABLE IF NOT EXISTS validator_created_events (
	id                BIGSERIAL PRIMARY KEY,
	validator_id      BIGINT NOT NULL,
	auth_address      TEXT NOT NULL,
	commission        NUMERIC NOT NULL,
	block_number      BIGINT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	transaction_index BIGINT NOT NULL,
	UNIQUE (transaction_hash)
);

CREATE TABLE IF NOT EXISTS validator_status_changed_events (
	id                BIGSERIAL PRIMARY KEY,
	validator_id      BIGINT NOT NULL,
	flags             BIGINT NOT NULL,
	block_number      BIGINT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	transaction_index BIGINT NOT NULL,
	UNIQUE (validator_id, transaction_hash)
);

CREATE TABLE IF NOT EXISTS commission_changed_events (
	id                BIGSERIAL PRIMARY KEY,
	validator_id      BIGINT NOT NULL,
	old_commission    NUMERIC NOT NULL,
	new_commission    NUMERIC NOT NULL,
	block_number      BIGINT NOT NULL,
	transaction_hash  TEXT NOT NULL,
	transaction_index BIGINT NOT NULL,
	UNIQUE (validator_id, transaction_hash)
);
`
