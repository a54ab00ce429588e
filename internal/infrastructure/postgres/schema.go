package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the full relational model. Uniqueness constraints are the
// storage-layer backstop for every read-check-then-insert path: one
// credential per person, one profile per role per person, one stock row
// per (center, vaccine), one administration per prescription, one
// center per admin.
const schema = `
CREATE TABLE IF NOT EXISTS person (
	id            BIGSERIAL PRIMARY KEY,
	first_name    TEXT NOT NULL,
	family_name   TEXT NOT NULL,
	date_of_birth DATE NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	email         TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('doctor', 'nurse', 'center_admin', 'patient')),
	person_id     BIGINT NOT NULL UNIQUE REFERENCES person(id)
);

CREATE TABLE IF NOT EXISTS doctor (
	id        BIGSERIAL PRIMARY KEY,
	person_id BIGINT NOT NULL UNIQUE REFERENCES person(id)
);

CREATE TABLE IF NOT EXISTS nurse (
	id        BIGSERIAL PRIMARY KEY,
	person_id BIGINT NOT NULL UNIQUE REFERENCES person(id)
);

CREATE TABLE IF NOT EXISTS center_admin (
	id        BIGSERIAL PRIMARY KEY,
	person_id BIGINT NOT NULL UNIQUE REFERENCES person(id)
);

CREATE TABLE IF NOT EXISTS patient (
	id        BIGSERIAL PRIMARY KEY,
	person_id BIGINT NOT NULL UNIQUE REFERENCES person(id)
);

CREATE TABLE IF NOT EXISTS doctor_patient (
	doctor_id  BIGINT NOT NULL REFERENCES doctor(id),
	patient_id BIGINT NOT NULL REFERENCES patient(id),
	PRIMARY KEY (doctor_id, patient_id)
);

CREATE TABLE IF NOT EXISTS medicine (
	id   BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS vaccination_center (
	id       BIGSERIAL PRIMARY KEY,
	name     TEXT NOT NULL UNIQUE,
	address  TEXT NOT NULL DEFAULT '',
	admin_id BIGINT UNIQUE REFERENCES center_admin(id)
);

CREATE TABLE IF NOT EXISTS center_stock (
	id           BIGSERIAL PRIMARY KEY,
	center_id    BIGINT NOT NULL REFERENCES vaccination_center(id),
	vaccine_id   BIGINT NOT NULL REFERENCES medicine(id),
	quantity     INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (center_id, vaccine_id)
);

CREATE TABLE IF NOT EXISTS prescription (
	id            BIGSERIAL PRIMARY KEY,
	patient_id    BIGINT NOT NULL REFERENCES patient(id),
	vaccine_id    BIGINT NOT NULL REFERENCES medicine(id),
	doctor_id     BIGINT NOT NULL REFERENCES doctor(id),
	quantity      INTEGER NOT NULL DEFAULT 1 CHECK (quantity > 0),
	status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'administered', 'cancelled')),
	prescribed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS administration_log (
	id              BIGSERIAL PRIMARY KEY,
	prescription_id BIGINT NOT NULL UNIQUE REFERENCES prescription(id),
	nurse_id        BIGINT NOT NULL REFERENCES nurse(id),
	center_id       BIGINT NOT NULL REFERENCES vaccination_center(id),
	administered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_id   TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	topic          TEXT NOT NULL,
	message_key    TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at   TIMESTAMPTZ,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	last_error     TEXT
);

CREATE INDEX IF NOT EXISTS outbox_unprocessed_idx ON outbox (created_at) WHERE processed_at IS NULL;

CREATE TABLE IF NOT EXISTS inbox (
	idempotency_key TEXT NOT NULL,
	handler         TEXT NOT NULL,
	status          TEXT NOT NULL,
	payload         JSONB,
	result          JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at      TIMESTAMPTZ,
	PRIMARY KEY (idempotency_key, handler)
);

CREATE TABLE IF NOT EXISTS coverage_daily (
	center_id  BIGINT NOT NULL,
	vaccine_id BIGINT NOT NULL,
	day        DATE NOT NULL,
	doses      INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (center_id, vaccine_id, day)
);
`

// Migrate applies the schema. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
