package identity

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/carelogix/go-vaxtrack/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NewAccount carries the inputs for a registration.
type NewAccount struct {
	FirstName   string
	FamilyName  string
	DateOfBirth time.Time
	Email       string
	Password    string
	Role        RoleKind

	// RegisteredBy links a freshly registered patient to the registering
	// doctor's profile. Zero means no link.
	RegisteredBy int64
}

// Store is the persistence contract for identities. CreateAccount is
// atomic: person, role profile, credential and the optional doctor link
// commit together or not at all.
type Store interface {
	CreateAccount(ctx context.Context, acc NewAccount, passwordHash string) (*Account, error)
	CredentialByEmail(ctx context.Context, email string) (*Credential, error)
	PersonByID(ctx context.Context, id int64) (*Person, error)
	RoleProfile(ctx context.Context, personID int64, kind RoleKind) (int64, error)
	ListPatients(ctx context.Context) ([]PatientSummary, error)
	ListPatientsOfDoctor(ctx context.Context, doctorID int64) ([]PatientSummary, error)
	LinkPatient(ctx context.Context, doctorID, patientID int64) error
}

// Service implements registration and authentication.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates an identity service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Register creates a person, its role profile and its credential. The
// email must be globally unique; the check runs before any write and the
// unique constraint on credentials is the backstop.
func (s *Service) Register(ctx context.Context, acc NewAccount) (*Account, error) {
	if acc.FirstName == "" {
		return nil, domain.Validation("first_name", "required")
	}
	if acc.FamilyName == "" {
		return nil, domain.Validation("family_name", "required")
	}
	if acc.DateOfBirth.IsZero() {
		return nil, domain.Validation("date_of_birth", "required")
	}
	if !emailPattern.MatchString(acc.Email) {
		return nil, domain.Validation("email", "malformed")
	}
	if len(acc.Password) < 6 {
		return nil, domain.Validation("password", "must be at least 6 characters")
	}
	if _, err := ParseRoleKind(string(acc.Role)); err != nil {
		return nil, domain.Validation("role", "unknown role")
	}

	if existing, err := s.store.CredentialByEmail(ctx, acc.Email); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	} else if existing != nil {
		return nil, domain.ErrDuplicateEmail
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.Infra("hash password", err)
	}

	created, err := s.store.CreateAccount(ctx, acc, string(hash))
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered",
		zap.String("role", string(created.Role.Kind)),
		zap.Int64("person_id", created.Person.ID))
	return created, nil
}

// Authenticate verifies a credential and builds the session object.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	if !emailPattern.MatchString(email) {
		return nil, domain.Validation("email", "malformed")
	}
	cred, err := s.store.CredentialByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrNotFound
	}

	profileID, err := s.store.RoleProfile(ctx, cred.PersonID, cred.Role)
	if err != nil {
		return nil, err
	}
	person, err := s.store.PersonByID(ctx, cred.PersonID)
	if err != nil {
		return nil, err
	}

	return &Session{
		PersonID:  cred.PersonID,
		FirstName: person.FirstName,
		Role:      Role{Kind: cred.Role, ProfileID: profileID},
	}, nil
}

// Patients lists every patient in the system, family name first. Used by
// the nurse dashboard.
func (s *Service) Patients(ctx context.Context) ([]PatientSummary, error) {
	return s.store.ListPatients(ctx)
}

// PatientsOfDoctor lists the patients linked to a doctor.
func (s *Service) PatientsOfDoctor(ctx context.Context, doctorID int64) ([]PatientSummary, error) {
	return s.store.ListPatientsOfDoctor(ctx, doctorID)
}

// AssignPatient explicitly links an existing patient to a doctor. The
// pair is unique; re-linking is a conflict.
func (s *Service) AssignPatient(ctx context.Context, doctorID, patientID int64) error {
	if doctorID <= 0 || patientID <= 0 {
		return domain.Validation("link", "doctor and patient ids required")
	}
	return s.store.LinkPatient(ctx, doctorID, patientID)
}
