package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
)

// IdentityStore persists persons, credentials and role profiles.
type IdentityStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewIdentityStore creates an identity store.
func NewIdentityStore(pool *pgxpool.Pool, logger *zap.Logger) *IdentityStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityStore{pool: pool, logger: logger}
}

// profileTable maps a role tag to its profile table. The set is closed;
// an unknown tag is a programming error caught by validation upstream.
func profileTable(kind identity.RoleKind) (string, error) {
	switch kind {
	case identity.RoleDoctor:
		return "doctor", nil
	case identity.RoleNurse:
		return "nurse", nil
	case identity.RoleCenterAdmin:
		return "center_admin", nil
	case identity.RolePatient:
		return "patient", nil
	}
	return "", fmt.Errorf("unknown role %q", kind)
}

// CreateAccount inserts person, role profile, credential and the
// optional doctor link in one transaction.
func (s *IdentityStore) CreateAccount(ctx context.Context, acc identity.NewAccount, passwordHash string) (*identity.Account, error) {
	table, err := profileTable(acc.Role)
	if err != nil {
		return nil, domain.Validation("role", err.Error())
	}

	var out identity.Account
	err = WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var personID int64
		err := tx.QueryRow(ctx,
			`INSERT INTO person (first_name, family_name, date_of_birth)
			 VALUES ($1, $2, $3) RETURNING id`,
			acc.FirstName, acc.FamilyName, acc.DateOfBirth,
		).Scan(&personID)
		if err != nil {
			return fmt.Errorf("insert person: %w", err)
		}

		var profileID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO `+table+` (person_id) VALUES ($1) RETURNING id`,
			personID,
		).Scan(&profileID)
		if err != nil {
			return fmt.Errorf("insert %s profile: %w", table, err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO credentials (email, password_hash, role, person_id)
			 VALUES ($1, $2, $3, $4)`,
			acc.Email, passwordHash, acc.Role, personID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateEmail
			}
			return fmt.Errorf("insert credentials: %w", err)
		}

		if acc.Role == identity.RolePatient && acc.RegisteredBy > 0 {
			_, err = tx.Exec(ctx,
				`INSERT INTO doctor_patient (doctor_id, patient_id) VALUES ($1, $2)`,
				acc.RegisteredBy, profileID,
			)
			if err != nil {
				return fmt.Errorf("link patient to doctor: %w", err)
			}
		}

		out = identity.Account{
			Person: identity.Person{
				ID:          personID,
				FirstName:   acc.FirstName,
				FamilyName:  acc.FamilyName,
				DateOfBirth: acc.DateOfBirth,
			},
			Email: acc.Email,
			Role:  identity.Role{Kind: acc.Role, ProfileID: profileID},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CredentialByEmail fetches a credential, ErrNotFound when absent.
func (s *IdentityStore) CredentialByEmail(ctx context.Context, email string) (*identity.Credential, error) {
	var c identity.Credential
	err := s.pool.QueryRow(ctx,
		`SELECT email, password_hash, role, person_id FROM credentials WHERE email = $1`,
		email,
	).Scan(&c.Email, &c.PasswordHash, &c.Role, &c.PersonID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Infra("credential by email", err)
	}
	return &c, nil
}

// PersonByID fetches a person row.
func (s *IdentityStore) PersonByID(ctx context.Context, id int64) (*identity.Person, error) {
	var p identity.Person
	err := s.pool.QueryRow(ctx,
		`SELECT id, first_name, family_name, date_of_birth FROM person WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.FirstName, &p.FamilyName, &p.DateOfBirth)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Infra("person by id", err)
	}
	return &p, nil
}

// RoleProfile resolves the profile row id for a (person, role) pair.
func (s *IdentityStore) RoleProfile(ctx context.Context, personID int64, kind identity.RoleKind) (int64, error) {
	table, err := profileTable(kind)
	if err != nil {
		return 0, domain.Validation("role", err.Error())
	}
	var id int64
	err = s.pool.QueryRow(ctx,
		`SELECT id FROM `+table+` WHERE person_id = $1`, personID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, domain.Infra("role profile", err)
	}
	return id, nil
}

const patientSummaryQuery = `
	SELECT pa.id, pe.id, pe.first_name, pe.family_name, pe.date_of_birth
	FROM patient pa
	JOIN person pe ON pa.person_id = pe.id
`

// ListPatients lists every patient, family name first.
func (s *IdentityStore) ListPatients(ctx context.Context) ([]identity.PatientSummary, error) {
	rows, err := s.pool.Query(ctx, patientSummaryQuery+` ORDER BY pe.family_name, pe.first_name`)
	if err != nil {
		return nil, domain.Infra("list patients", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

// ListPatientsOfDoctor lists the patients linked to a doctor.
func (s *IdentityStore) ListPatientsOfDoctor(ctx context.Context, doctorID int64) ([]identity.PatientSummary, error) {
	rows, err := s.pool.Query(ctx, patientSummaryQuery+`
		JOIN doctor_patient dp ON dp.patient_id = pa.id
		WHERE dp.doctor_id = $1
		ORDER BY pe.family_name, pe.first_name`, doctorID)
	if err != nil {
		return nil, domain.Infra("list patients of doctor", err)
	}
	defer rows.Close()
	return scanPatients(rows)
}

// LinkPatient inserts a doctor-patient link. A duplicate pair is a
// conflict.
func (s *IdentityStore) LinkPatient(ctx context.Context, doctorID, patientID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO doctor_patient (doctor_id, patient_id) VALUES ($1, $2)`,
		doctorID, patientID,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return domain.Infra("link patient", err)
	}
	return nil
}

func scanPatients(rows pgx.Rows) ([]identity.PatientSummary, error) {
	var out []identity.PatientSummary
	for rows.Next() {
		var p identity.PatientSummary
		if err := rows.Scan(&p.PatientID, &p.PersonID, &p.FirstName, &p.FamilyName, &p.DateOfBirth); err != nil {
			return nil, domain.Infra("scan patient", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
