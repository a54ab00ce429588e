package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Seed populates an empty database with a small demo data set: two
// doctors, two patients, two nurses, one center admin, the vaccine
// catalog, two centers and their stock, and a few prescriptions. It is
// a no-op when persons already exist.
func Seed(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var persons int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM person`).Scan(&persons); err != nil {
		return fmt.Errorf("count persons: %w", err)
	}
	if persons > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	err = WithTx(ctx, pool, func(tx pgx.Tx) error {
		accounts := []struct {
			first, family, dob, email, role string
		}{
			{"John", "Doe", "1980-01-15", "doc1@example.com", "doctor"},
			{"Alice", "Smith", "1990-04-10", "doc2@example.com", "doctor"},
			{"Robert", "Patient", "2000-06-01", "patient1@example.com", "patient"},
			{"Laura", "Palmer", "2001-07-21", "patient2@example.com", "patient"},
			{"Michael", "Nurse", "1985-03-30", "nurse1@example.com", "nurse"},
			{"Claire", "Admin", "1970-12-12", "admin1@example.com", "center_admin"},
			{"David", "Lee", "1992-08-25", "nurse2@example.com", "nurse"},
		}
		for _, a := range accounts {
			var personID int64
			err := tx.QueryRow(ctx, `
				INSERT INTO person (first_name, family_name, date_of_birth)
				VALUES ($1, $2, $3::date) RETURNING id`,
				a.first, a.family, a.dob,
			).Scan(&personID)
			if err != nil {
				return fmt.Errorf("seed person: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO `+a.role+` (person_id) VALUES ($1)`, personID); err != nil {
				return fmt.Errorf("seed %s profile: %w", a.role, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO credentials (email, password_hash, role, person_id)
				VALUES ($1, $2, $3, $4)`,
				a.email, string(hash), a.role, personID); err != nil {
				return fmt.Errorf("seed credentials: %w", err)
			}
		}

		links := [][2]int64{{1, 1}, {1, 2}, {2, 2}}
		for _, l := range links {
			if _, err := tx.Exec(ctx,
				`INSERT INTO doctor_patient (doctor_id, patient_id) VALUES ($1, $2)`,
				l[0], l[1]); err != nil {
				return fmt.Errorf("seed doctor link: %w", err)
			}
		}

		vaccines := []string{
			"COVID-19 Vaccine (Pfizer)",
			"Influenza Vaccine (Flu Shot)",
			"Hepatitis B Vaccine",
			"MMR Vaccine (Measles, Mumps, Rubella)",
		}
		for _, v := range vaccines {
			if _, err := tx.Exec(ctx, `INSERT INTO medicine (name) VALUES ($1)`, v); err != nil {
				return fmt.Errorf("seed vaccine: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO vaccination_center (name, address, admin_id)
			VALUES ('City Central Vaccination Clinic', '123 Health St, Anytown', 1)`); err != nil {
			return fmt.Errorf("seed center: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO vaccination_center (name, address)
			VALUES ('Community Health Hub', '456 Wellness Ave, Otherville')`); err != nil {
			return fmt.Errorf("seed center: %w", err)
		}

		stocks := []struct {
			center, vaccine int64
			qty             int32
		}{
			{1, 1, 100}, {1, 2, 150}, {1, 3, 75},
			{2, 1, 50}, {2, 4, 60},
		}
		for _, s := range stocks {
			if _, err := tx.Exec(ctx, `
				INSERT INTO center_stock (center_id, vaccine_id, quantity)
				VALUES ($1, $2, $3)`, s.center, s.vaccine, s.qty); err != nil {
				return fmt.Errorf("seed stock: %w", err)
			}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO prescription (patient_id, vaccine_id, doctor_id, quantity, status)
			VALUES (1, 1, 1, 1, 'pending'), (2, 2, 1, 1, 'pending')`); err != nil {
			return fmt.Errorf("seed prescriptions: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO prescription (patient_id, vaccine_id, doctor_id, quantity, status, prescribed_at)
			VALUES (2, 3, 2, 1, 'administered', NOW() - INTERVAL '7 days')`); err != nil {
			return fmt.Errorf("seed administered prescription: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO administration_log (prescription_id, nurse_id, center_id, administered_at)
			VALUES (3, 1, 1, NOW() - INTERVAL '7 days')`); err != nil {
			return fmt.Errorf("seed administration log: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("seeded demo data set")
	return nil
}
