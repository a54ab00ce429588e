package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/api/middleware"
	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/administration"
	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
	"github.com/carelogix/go-vaxtrack/internal/domain/prescription"
	"github.com/carelogix/go-vaxtrack/internal/domain/stock"
)

const testSecret = "handler-test-secret"

// fakeIdentityStore is an in-memory identity.Store backing the auth
// endpoints under test.
type fakeIdentityStore struct {
	accounts map[string]*identity.Credential
	persons  map[int64]*identity.Person
	profiles map[int64]int64
	nextID   int64
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{
		accounts: make(map[string]*identity.Credential),
		persons:  make(map[int64]*identity.Person),
		profiles: make(map[int64]int64),
		nextID:   1,
	}
}

func (f *fakeIdentityStore) CreateAccount(_ context.Context, acc identity.NewAccount, hash string) (*identity.Account, error) {
	if _, taken := f.accounts[acc.Email]; taken {
		return nil, domain.ErrDuplicateEmail
	}
	id := f.nextID
	f.nextID++
	f.persons[id] = &identity.Person{ID: id, FirstName: acc.FirstName, FamilyName: acc.FamilyName, DateOfBirth: acc.DateOfBirth}
	f.profiles[id] = id
	f.accounts[acc.Email] = &identity.Credential{Email: acc.Email, PasswordHash: hash, Role: acc.Role, PersonID: id}
	return &identity.Account{
		Person: *f.persons[id],
		Email:  acc.Email,
		Role:   identity.Role{Kind: acc.Role, ProfileID: id},
	}, nil
}

func (f *fakeIdentityStore) CredentialByEmail(_ context.Context, email string) (*identity.Credential, error) {
	cred, ok := f.accounts[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cred, nil
}

func (f *fakeIdentityStore) PersonByID(_ context.Context, id int64) (*identity.Person, error) {
	p, ok := f.persons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeIdentityStore) RoleProfile(_ context.Context, personID int64, _ identity.RoleKind) (int64, error) {
	id, ok := f.profiles[personID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func (f *fakeIdentityStore) ListPatients(context.Context) ([]identity.PatientSummary, error) {
	return nil, nil
}

func (f *fakeIdentityStore) ListPatientsOfDoctor(context.Context, int64) ([]identity.PatientSummary, error) {
	return nil, nil
}

func (f *fakeIdentityStore) LinkPatient(context.Context, int64, int64) error { return nil }

// fakeAdminStore backs the administration engine with a single pending
// prescription and one stocked center.
type fakeAdminStore struct {
	prescription *prescription.Prescription
	stock        int32
	records      []administration.Record
}

func (f *fakeAdminStore) PrescriptionByID(_ context.Context, id int64) (*prescription.Prescription, error) {
	if f.prescription == nil || f.prescription.ID != id {
		return nil, domain.ErrNotFound
	}
	cp := *f.prescription
	return &cp, nil
}

func (f *fakeAdminStore) FindSource(_ context.Context, _ int64, minimum int32) (*stock.Source, error) {
	if f.stock < minimum {
		return nil, nil
	}
	return &stock.Source{CenterID: 7, Quantity: f.stock}, nil
}

func (f *fakeAdminStore) Administer(_ context.Context, rec *administration.Record, _ *prescription.Prescription) (*administration.Record, error) {
	f.stock--
	f.prescription.Status = prescription.StatusAdministered
	stored := *rec
	stored.ID = int64(len(f.records) + 1)
	f.records = append(f.records, stored)
	return &stored, nil
}

func (f *fakeAdminStore) HistoryByPatient(context.Context, int64) ([]administration.HistoryEntry, error) {
	return []administration.HistoryEntry{}, nil
}

// testServer wires the auth and administration handlers behind the real
// session middleware, the way the API binary mounts them.
func testServer(t *testing.T, adminStore *fakeAdminStore) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	identitySvc := identity.NewService(newFakeIdentityStore(), logger)
	engine := administration.NewEngine(adminStore, logger)

	authHandler := NewAuthHandler(identitySvc, testSecret, "vaxtrack-test", time.Hour, nil, logger)
	adminHandler := NewAdministrationHandler(engine, nil, logger)

	r := chi.NewRouter()
	r.Mount("/auth", authHandler.Routes())
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(testSecret))
		r.Mount("/administrations", adminHandler.Routes())
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func registerAndLogin(t *testing.T, srv *httptest.Server, email, role string) string {
	t.Helper()

	register := map[string]string{
		"first_name":    "Alice",
		"family_name":   "Martin",
		"date_of_birth": "1990-04-02",
		"email":         email,
		"password":      "secret-pass",
		"role":          role,
	}
	resp := postJSON(t, srv, "/auth/register", "", register)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv, "/auth/login", "", map[string]string{
		"email":    email,
		"password": "secret-pass",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}

	var login LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if login.Token == "" {
		t.Fatal("login returned empty token")
	}
	return login.Token
}

func postJSON(t *testing.T, srv *httptest.Server, path, token string, body any) *http.Response {
	t.Helper()

	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestAdministerEndpoint(t *testing.T) {
	store := &fakeAdminStore{
		prescription: &prescription.Prescription{ID: 1, PatientID: 2, VaccineID: 3, DoctorID: 4, Quantity: 1, Status: prescription.StatusPending},
		stock:        5,
	}
	srv := testServer(t, store)
	token := registerAndLogin(t, srv, "nurse@chu.fr", "nurse")

	resp := postJSON(t, srv, "/administrations/", token, AdministerRequest{PrescriptionID: 1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("administer status = %d, want 201", resp.StatusCode)
	}

	var result administration.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.CenterID != 7 {
		t.Errorf("center = %d, want 7", result.CenterID)
	}
	if result.Prescription.Status != prescription.StatusAdministered {
		t.Errorf("status = %s, want administered", result.Prescription.Status)
	}
	if store.stock != 4 {
		t.Errorf("stock = %d, want 4", store.stock)
	}
}

func TestAdministerRequiresNurseRole(t *testing.T) {
	store := &fakeAdminStore{
		prescription: &prescription.Prescription{ID: 1, VaccineID: 3, Status: prescription.StatusPending},
		stock:        5,
	}
	srv := testServer(t, store)
	token := registerAndLogin(t, srv, "doc@chu.fr", "doctor")

	resp := postJSON(t, srv, "/administrations/", token, AdministerRequest{PrescriptionID: 1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if len(store.records) != 0 {
		t.Fatal("dose administered despite role rejection")
	}
}

func TestAdministerRequiresToken(t *testing.T) {
	srv := testServer(t, &fakeAdminStore{})

	resp := postJSON(t, srv, "/administrations/", "", AdministerRequest{PrescriptionID: 1})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAdministerOutOfStock(t *testing.T) {
	store := &fakeAdminStore{
		prescription: &prescription.Prescription{ID: 1, VaccineID: 3, Status: prescription.StatusPending},
		stock:        0,
	}
	srv := testServer(t, store)
	token := registerAndLogin(t, srv, "nurse2@chu.fr", "nurse")

	resp := postJSON(t, srv, "/administrations/", token, AdministerRequest{PrescriptionID: 1})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if store.prescription.Status != prescription.StatusPending {
		t.Fatal("prescription left pending-less after failed administration")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := testServer(t, &fakeAdminStore{})
	registerAndLogin(t, srv, "nurse3@chu.fr", "nurse")

	resp := postJSON(t, srv, "/auth/login", "", map[string]string{
		"email":    "nurse3@chu.fr",
		"password": "wrong-pass",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.Validation("field", "required"), http.StatusBadRequest},
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"invalid state", domain.ErrInvalidState, http.StatusConflict},
		{"insufficient stock", domain.ErrInsufficientStock, http.StatusConflict},
		{"duplicate email", domain.ErrDuplicateEmail, http.StatusConflict},
		{"infrastructure", domain.Infra("query", context.DeadlineExceeded), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			domainError(rec, tc.err)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
