// Package integration exercises the full vaccination workflow over the
// HTTP surface: registration, login, catalog and center setup, stock
// intake, prescription and administration, all against an in-memory
// persistence backend.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carelogix/go-vaxtrack/internal/api/handlers"
	"github.com/carelogix/go-vaxtrack/internal/api/middleware"
	"github.com/carelogix/go-vaxtrack/internal/domain"
	"github.com/carelogix/go-vaxtrack/internal/domain/administration"
	"github.com/carelogix/go-vaxtrack/internal/domain/catalog"
	"github.com/carelogix/go-vaxtrack/internal/domain/center"
	"github.com/carelogix/go-vaxtrack/internal/domain/identity"
	"github.com/carelogix/go-vaxtrack/internal/domain/prescription"
	"github.com/carelogix/go-vaxtrack/internal/domain/stock"
)

const testSecret = "integration-test-secret"

// state is the shared in-memory database. Each store type below
// implements one domain's persistence contract against it.
type state struct {
	mu sync.Mutex

	accounts      map[string]*identity.Credential
	persons       map[int64]*identity.Person
	roles         map[int64]identity.Role
	profilePerson map[identity.RoleKind]map[int64]int64
	links         map[[2]int64]bool

	vaccines      map[int64]*catalog.Vaccine
	centers       map[int64]*center.Center
	stocks        map[[2]int64]*stock.Entry
	prescriptions map[int64]*prescription.Prescription
	records       []administration.Record

	seq int64
}

func newState() *state {
	s := &state{
		accounts:      make(map[string]*identity.Credential),
		persons:       make(map[int64]*identity.Person),
		roles:         make(map[int64]identity.Role),
		profilePerson: make(map[identity.RoleKind]map[int64]int64),
		links:         make(map[[2]int64]bool),
		vaccines:      make(map[int64]*catalog.Vaccine),
		centers:       make(map[int64]*center.Center),
		stocks:        make(map[[2]int64]*stock.Entry),
		prescriptions: make(map[int64]*prescription.Prescription),
	}
	for _, kind := range []identity.RoleKind{identity.RoleDoctor, identity.RoleNurse, identity.RoleCenterAdmin, identity.RolePatient} {
		s.profilePerson[kind] = make(map[int64]int64)
	}
	return s
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

func (s *state) familyName(kind identity.RoleKind, profileID int64) string {
	personID, ok := s.profilePerson[kind][profileID]
	if !ok {
		return ""
	}
	return s.persons[personID].FamilyName
}

type identityStore struct{ s *state }

func (st identityStore) CreateAccount(_ context.Context, acc identity.NewAccount, hash string) (*identity.Account, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	if _, taken := st.s.accounts[acc.Email]; taken {
		return nil, domain.ErrDuplicateEmail
	}
	person := &identity.Person{
		ID:          st.s.next(),
		FirstName:   acc.FirstName,
		FamilyName:  acc.FamilyName,
		DateOfBirth: acc.DateOfBirth,
	}
	st.s.persons[person.ID] = person

	role := identity.Role{Kind: acc.Role, ProfileID: st.s.next()}
	st.s.roles[person.ID] = role
	st.s.profilePerson[acc.Role][role.ProfileID] = person.ID
	st.s.accounts[acc.Email] = &identity.Credential{
		Email:        acc.Email,
		PasswordHash: hash,
		Role:         acc.Role,
		PersonID:     person.ID,
	}
	if acc.Role == identity.RolePatient && acc.RegisteredBy > 0 {
		st.s.links[[2]int64{acc.RegisteredBy, role.ProfileID}] = true
	}
	return &identity.Account{Person: *person, Email: acc.Email, Role: role}, nil
}

func (st identityStore) CredentialByEmail(_ context.Context, email string) (*identity.Credential, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	cred, ok := st.s.accounts[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *cred
	return &cp, nil
}

func (st identityStore) PersonByID(_ context.Context, id int64) (*identity.Person, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	p, ok := st.s.persons[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (st identityStore) RoleProfile(_ context.Context, personID int64, kind identity.RoleKind) (int64, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	role, ok := st.s.roles[personID]
	if !ok || role.Kind != kind {
		return 0, domain.ErrNotFound
	}
	return role.ProfileID, nil
}

func (st identityStore) ListPatients(_ context.Context) ([]identity.PatientSummary, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	var out []identity.PatientSummary
	for profileID, personID := range st.s.profilePerson[identity.RolePatient] {
		p := st.s.persons[personID]
		out = append(out, identity.PatientSummary{
			PatientID:   profileID,
			PersonID:    p.ID,
			FirstName:   p.FirstName,
			FamilyName:  p.FamilyName,
			DateOfBirth: p.DateOfBirth,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FamilyName < out[j].FamilyName })
	return out, nil
}

func (st identityStore) ListPatientsOfDoctor(ctx context.Context, doctorID int64) ([]identity.PatientSummary, error) {
	all, err := st.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	var out []identity.PatientSummary
	for _, p := range all {
		if st.s.links[[2]int64{doctorID, p.PatientID}] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (st identityStore) LinkPatient(_ context.Context, doctorID, patientID int64) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	k := [2]int64{doctorID, patientID}
	if st.s.links[k] {
		return domain.ErrConflict
	}
	st.s.links[k] = true
	return nil
}

type catalogStore struct{ s *state }

func (st catalogStore) Insert(_ context.Context, name string) (*catalog.Vaccine, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	for _, v := range st.s.vaccines {
		if v.Name == name {
			return nil, domain.ErrDuplicateName
		}
	}
	v := &catalog.Vaccine{ID: st.s.next(), Name: name}
	st.s.vaccines[v.ID] = v
	return v, nil
}

func (st catalogStore) ByID(_ context.Context, id int64) (*catalog.Vaccine, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	v, ok := st.s.vaccines[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (st catalogStore) List(_ context.Context) ([]catalog.Vaccine, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	var out []catalog.Vaccine
	for _, v := range st.s.vaccines {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type centerStore struct{ s *state }

func (st centerStore) Insert(_ context.Context, name, address string, adminID int64) (*center.Center, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	c := &center.Center{ID: st.s.next(), Name: name, Address: address, AdminID: &adminID}
	st.s.centers[c.ID] = c
	cp := *c
	return &cp, nil
}

func (st centerStore) ByID(_ context.Context, id int64) (*center.Center, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	c, ok := st.s.centers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (st centerStore) ByName(_ context.Context, name string) (*center.Center, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	for _, c := range st.s.centers {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (st centerStore) ByAdmin(_ context.Context, adminID int64) (*center.Center, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	for _, c := range st.s.centers {
		if c.AdminID != nil && *c.AdminID == adminID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (st centerStore) ListUnmanaged(_ context.Context) ([]center.Center, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	var out []center.Center
	for _, c := range st.s.centers {
		if c.AdminID == nil {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (st centerStore) SetAdmin(_ context.Context, centerID, adminID int64) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	c, ok := st.s.centers[centerID]
	if !ok {
		return domain.ErrNotFound
	}
	c.AdminID = &adminID
	return nil
}

type stockStore struct{ s *state }

func (st stockStore) Quantity(_ context.Context, centerID, vaccineID int64) (int32, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if e, ok := st.s.stocks[[2]int64{centerID, vaccineID}]; ok {
		return e.Quantity, nil
	}
	return 0, nil
}

func (st stockStore) Add(_ context.Context, centerID, vaccineID int64, amount int32) (*stock.Entry, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	k := [2]int64{centerID, vaccineID}
	e, ok := st.s.stocks[k]
	if !ok {
		e = &stock.Entry{CenterID: centerID, VaccineID: vaccineID}
		st.s.stocks[k] = e
	}
	e.Quantity += amount
	e.LastUpdated = time.Now().UTC()
	cp := *e
	return &cp, nil
}

func (st stockStore) Remove(_ context.Context, centerID, vaccineID int64, amount int32) (*stock.Entry, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	e, ok := st.s.stocks[[2]int64{centerID, vaccineID}]
	if !ok || e.Quantity < amount {
		return nil, domain.ErrInsufficientStock
	}
	e.Quantity -= amount
	e.LastUpdated = time.Now().UTC()
	cp := *e
	return &cp, nil
}

func (st stockStore) FindSource(_ context.Context, vaccineID int64, minimum int32) (*stock.Source, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.s.findSourceLocked(vaccineID, minimum), nil
}

// findSourceLocked applies the ledger's selection policy: largest
// quantity first, ties broken by ascending center id.
func (s *state) findSourceLocked(vaccineID int64, minimum int32) *stock.Source {
	var best *stock.Source
	for k, e := range s.stocks {
		if k[1] != vaccineID || e.Quantity < minimum {
			continue
		}
		if best == nil || e.Quantity > best.Quantity ||
			(e.Quantity == best.Quantity && k[0] < best.CenterID) {
			best = &stock.Source{CenterID: k[0], Quantity: e.Quantity}
		}
	}
	return best
}

func (st stockStore) Overview(_ context.Context, centerID int64) ([]stock.Level, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	var out []stock.Level
	for k, e := range st.s.stocks {
		if k[0] != centerID {
			continue
		}
		out = append(out, stock.Level{
			VaccineID:   k[1],
			VaccineName: st.s.vaccines[k[1]].Name,
			Quantity:    e.Quantity,
			LastUpdated: e.LastUpdated,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VaccineName < out[j].VaccineName })
	return out, nil
}

func (st stockStore) AvailabilityByVaccine(_ context.Context, vaccineID int64) ([]stock.Availability, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	var out []stock.Availability
	for k, e := range st.s.stocks {
		if k[1] != vaccineID || e.Quantity <= 0 {
			continue
		}
		out = append(out, stock.Availability{
			CenterID:   k[0],
			CenterName: st.s.centers[k[0]].Name,
			Quantity:   e.Quantity,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CenterID < out[j].CenterID })
	return out, nil
}

type prescriptionStore struct{ s *state }

func (st prescriptionStore) Insert(_ context.Context, p *prescription.Prescription) (*prescription.Prescription, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	cp := *p
	cp.ID = st.s.next()
	st.s.prescriptions[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (st prescriptionStore) ByID(_ context.Context, id int64) (*prescription.Prescription, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	p, ok := st.s.prescriptions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (st prescriptionStore) list(patientID int64, pendingOnly bool) []prescription.Detail {
	var out []prescription.Detail
	for _, p := range st.s.prescriptions {
		if p.PatientID != patientID {
			continue
		}
		if pendingOnly && p.Status != prescription.StatusPending {
			continue
		}
		out = append(out, prescription.Detail{
			Prescription:     *p,
			VaccineName:      st.s.vaccines[p.VaccineID].Name,
			DoctorFamilyName: st.s.familyName(identity.RoleDoctor, p.DoctorID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (st prescriptionStore) ListPending(_ context.Context, patientID int64) ([]prescription.Detail, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.list(patientID, true), nil
}

func (st prescriptionStore) ListByPatient(_ context.Context, patientID int64) ([]prescription.Detail, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.list(patientID, false), nil
}

func (st prescriptionStore) Cancel(_ context.Context, id int64) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	p, ok := st.s.prescriptions[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = prescription.StatusCancelled
	return nil
}

type administrationStore struct{ s *state }

func (st administrationStore) PrescriptionByID(ctx context.Context, id int64) (*prescription.Prescription, error) {
	return prescriptionStore{st.s}.ByID(ctx, id)
}

func (st administrationStore) FindSource(_ context.Context, vaccineID int64, minimum int32) (*stock.Source, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.s.findSourceLocked(vaccineID, minimum), nil
}

// Administer is the atomic unit: decrement one dose, flip the
// prescription status and append the log row, all or nothing.
func (st administrationStore) Administer(_ context.Context, rec *administration.Record, p *prescription.Prescription) (*administration.Record, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()

	e, ok := st.s.stocks[[2]int64{rec.CenterID, p.VaccineID}]
	if !ok || e.Quantity < 1 {
		return nil, domain.ErrInsufficientStock
	}
	stored, ok := st.s.prescriptions[p.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if stored.Status != prescription.StatusPending {
		return nil, domain.ErrInvalidState
	}

	e.Quantity--
	e.LastUpdated = time.Now().UTC()
	stored.Status = prescription.StatusAdministered

	cp := *rec
	cp.ID = st.s.next()
	st.s.records = append(st.s.records, cp)
	out := cp
	return &out, nil
}

func (st administrationStore) HistoryByPatient(_ context.Context, patientID int64) ([]administration.HistoryEntry, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	var out []administration.HistoryEntry
	for _, rec := range st.s.records {
		p := st.s.prescriptions[rec.PrescriptionID]
		if p == nil || p.PatientID != patientID {
			continue
		}
		out = append(out, administration.HistoryEntry{
			VaccineName:     st.s.vaccines[p.VaccineID].Name,
			Quantity:        p.Quantity,
			AdministeredAt:  rec.AdministeredAt,
			CenterName:      st.s.centers[rec.CenterID].Name,
			NurseFamilyName: st.s.familyName(identity.RoleNurse, rec.NurseID),
		})
	}
	return out, nil
}

// api bundles the test server with per-role tokens.
type api struct {
	srv    *httptest.Server
	tokens map[string]string
}

func newAPI(t *testing.T) *api {
	t.Helper()

	s := newState()
	logger := zap.NewNop()

	identitySvc := identity.NewService(identityStore{s}, logger)
	catalogSvc := catalog.NewService(catalogStore{s}, logger)
	registry := center.NewRegistry(centerStore{s}, logger)
	ledger := stock.NewLedger(stockStore{s}, logger)
	rxSvc := prescription.NewService(prescriptionStore{s}, logger)
	engine := administration.NewEngine(administrationStore{s}, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(logger))
	r.Mount("/auth", handlers.NewAuthHandler(identitySvc, testSecret, "vaxtrack-test", time.Hour, nil, logger).Routes())
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(testSecret))
		r.Mount("/vaccines", handlers.NewCatalogHandler(catalogSvc, ledger, logger).Routes())
		r.Mount("/centers", handlers.NewCenterHandler(registry, ledger, nil, logger).Routes())
		r.Mount("/patients", handlers.NewPatientHandler(identitySvc, rxSvc, engine, nil, logger).Routes())
		r.Mount("/prescriptions", handlers.NewPrescriptionHandler(rxSvc, nil, logger).Routes())
		r.Mount("/administrations", handlers.NewAdministrationHandler(engine, nil, logger).Routes())
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &api{srv: srv, tokens: make(map[string]string)}
}

func (a *api) do(t *testing.T, method, path, role string, body, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, ok := a.tokens[role]
		if !ok {
			t.Fatalf("no token for role %q", role)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// signup registers an account and logs it in, caching the token under
// the role name.
func (a *api) signup(t *testing.T, role, email, familyName string) {
	t.Helper()

	status := a.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"first_name":    "Test",
		"family_name":   familyName,
		"date_of_birth": "1985-06-10",
		"email":         email,
		"password":      "secret-pass",
		"role":          role,
	}, nil)
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d", role, status)
	}
	a.login(t, role, email)
}

func (a *api) login(t *testing.T, role, email string) {
	t.Helper()

	var login handlers.LoginResponse
	status := a.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": "secret-pass",
	}, &login)
	if status != http.StatusOK {
		t.Fatalf("login %s: status %d", role, status)
	}
	a.tokens[role] = login.Token
}

func TestVaccinationWorkflow(t *testing.T) {
	a := newAPI(t)

	a.signup(t, "doctor", "doctor@chu.fr", "House")
	a.signup(t, "nurse", "nurse@chu.fr", "Chapel")
	a.signup(t, "center_admin", "admin@chu.fr", "Cuddy")

	// Doctor adds the vaccine to the catalog.
	var vaccine catalog.Vaccine
	if status := a.do(t, http.MethodPost, "/vaccines/", "doctor", map[string]string{"name": "Comirnaty"}, &vaccine); status != http.StatusCreated {
		t.Fatalf("add vaccine: status %d", status)
	}

	// Admin registers a center and stocks it.
	var c center.Center
	if status := a.do(t, http.MethodPost, "/centers/", "center_admin", map[string]string{
		"name":    "CHU Nord",
		"address": "1 rue de la Sante",
	}, &c); status != http.StatusCreated {
		t.Fatalf("register center: status %d", status)
	}

	var entry stock.Entry
	addStock := handlers.StockRequest{VaccineID: vaccine.ID, Amount: 10}
	if status := a.do(t, http.MethodPost, fmt.Sprintf("/centers/%d/stock/add", c.ID), "center_admin", addStock, &entry); status != http.StatusOK {
		t.Fatalf("add stock: status %d", status)
	}
	if entry.Quantity != 10 {
		t.Fatalf("stock = %d, want 10", entry.Quantity)
	}

	// Doctor registers a patient; the patient can then log in.
	var patient identity.Account
	if status := a.do(t, http.MethodPost, "/patients/", "doctor", map[string]string{
		"first_name":    "Paul",
		"family_name":   "Durand",
		"date_of_birth": "1970-03-22",
		"email":         "paul.durand@mail.fr",
		"password":      "secret-pass",
	}, &patient); status != http.StatusCreated {
		t.Fatalf("register patient: status %d", status)
	}
	a.login(t, "patient", "paul.durand@mail.fr")

	// The patient shows up on the doctor's list.
	var linked []identity.PatientSummary
	if status := a.do(t, http.MethodGet, "/patients/", "doctor", nil, &linked); status != http.StatusOK {
		t.Fatalf("list patients: status %d", status)
	}
	if len(linked) != 1 || linked[0].PatientID != patient.Role.ProfileID {
		t.Fatalf("doctor patients = %+v, want the registered patient", linked)
	}

	// Doctor prescribes one dose.
	var rx prescription.Prescription
	if status := a.do(t, http.MethodPost, "/prescriptions/", "doctor", handlers.CreatePrescriptionRequest{
		PatientID: patient.Role.ProfileID,
		VaccineID: vaccine.ID,
		Quantity:  1,
	}, &rx); status != http.StatusCreated {
		t.Fatalf("create prescription: status %d", status)
	}
	if rx.Status != prescription.StatusPending {
		t.Fatalf("status = %s, want pending", rx.Status)
	}

	// The nurse sees it pending on the patient's file.
	var pending []prescription.Detail
	path := fmt.Sprintf("/patients/%d/prescriptions/pending", patient.Role.ProfileID)
	if status := a.do(t, http.MethodGet, path, "nurse", nil, &pending); status != http.StatusOK {
		t.Fatalf("pending prescriptions: status %d", status)
	}
	if len(pending) != 1 || pending[0].VaccineName != "Comirnaty" || pending[0].DoctorFamilyName != "House" {
		t.Fatalf("pending = %+v, want one Comirnaty by Dr House", pending)
	}

	// Nurse administers the dose.
	var result administration.Result
	if status := a.do(t, http.MethodPost, "/administrations/", "nurse", handlers.AdministerRequest{
		PrescriptionID: rx.ID,
	}, &result); status != http.StatusCreated {
		t.Fatalf("administer: status %d", status)
	}
	if result.CenterID != c.ID {
		t.Errorf("source center = %d, want %d", result.CenterID, c.ID)
	}
	if result.Prescription.Status != prescription.StatusAdministered {
		t.Errorf("status = %s, want administered", result.Prescription.Status)
	}

	// Exactly one dose left the shelf.
	var levels []stock.Level
	if status := a.do(t, http.MethodGet, fmt.Sprintf("/centers/%d/stock", c.ID), "center_admin", nil, &levels); status != http.StatusOK {
		t.Fatalf("stock overview: status %d", status)
	}
	if len(levels) != 1 || levels[0].Quantity != 9 {
		t.Fatalf("levels = %+v, want 9 doses of one vaccine", levels)
	}

	// Administering the same prescription again is rejected and changes
	// nothing.
	if status := a.do(t, http.MethodPost, "/administrations/", "nurse", handlers.AdministerRequest{
		PrescriptionID: rx.ID,
	}, nil); status != http.StatusConflict {
		t.Fatalf("second administer: status %d, want 409", status)
	}
	a.do(t, http.MethodGet, fmt.Sprintf("/centers/%d/stock", c.ID), "center_admin", nil, &levels)
	if levels[0].Quantity != 9 {
		t.Fatalf("stock after rejected administer = %d, want 9", levels[0].Quantity)
	}

	// The patient sees the administered prescription and the history row.
	var mine []prescription.Detail
	if status := a.do(t, http.MethodGet, "/prescriptions/mine", "patient", nil, &mine); status != http.StatusOK {
		t.Fatalf("my prescriptions: status %d", status)
	}
	if len(mine) != 1 || mine[0].Status != prescription.StatusAdministered {
		t.Fatalf("my prescriptions = %+v, want one administered", mine)
	}

	var history []administration.HistoryEntry
	if status := a.do(t, http.MethodGet, "/administrations/mine", "patient", nil, &history); status != http.StatusOK {
		t.Fatalf("my history: status %d", status)
	}
	if len(history) != 1 {
		t.Fatalf("history = %+v, want one entry", history)
	}
	if history[0].CenterName != "CHU Nord" || history[0].NurseFamilyName != "Chapel" || history[0].VaccineName != "Comirnaty" {
		t.Fatalf("history entry = %+v", history[0])
	}
}

func TestCancelledPrescriptionCannotBeAdministered(t *testing.T) {
	a := newAPI(t)

	a.signup(t, "doctor", "doctor@chu.fr", "House")
	a.signup(t, "nurse", "nurse@chu.fr", "Chapel")
	a.signup(t, "center_admin", "admin@chu.fr", "Cuddy")

	var vaccine catalog.Vaccine
	a.do(t, http.MethodPost, "/vaccines/", "doctor", map[string]string{"name": "Vaxzevria"}, &vaccine)
	var c center.Center
	a.do(t, http.MethodPost, "/centers/", "center_admin", map[string]string{"name": "CHU Sud", "address": "2 avenue du Parc"}, &c)
	a.do(t, http.MethodPost, fmt.Sprintf("/centers/%d/stock/add", c.ID), "center_admin", handlers.StockRequest{VaccineID: vaccine.ID, Amount: 5}, nil)

	var patient identity.Account
	a.do(t, http.MethodPost, "/patients/", "doctor", map[string]string{
		"first_name":    "Anna",
		"family_name":   "Petit",
		"date_of_birth": "1992-11-05",
		"email":         "anna.petit@mail.fr",
		"password":      "secret-pass",
	}, &patient)

	var rx prescription.Prescription
	a.do(t, http.MethodPost, "/prescriptions/", "doctor", handlers.CreatePrescriptionRequest{
		PatientID: patient.Role.ProfileID,
		VaccineID: vaccine.ID,
		Quantity:  1,
	}, &rx)

	if status := a.do(t, http.MethodPost, fmt.Sprintf("/prescriptions/%d/cancel", rx.ID), "doctor", nil, nil); status != http.StatusOK {
		t.Fatalf("cancel: status %d", status)
	}
	// Cancelling twice is an invalid transition.
	if status := a.do(t, http.MethodPost, fmt.Sprintf("/prescriptions/%d/cancel", rx.ID), "doctor", nil, nil); status != http.StatusConflict {
		t.Fatalf("second cancel: status %d, want 409", status)
	}

	if status := a.do(t, http.MethodPost, "/administrations/", "nurse", handlers.AdministerRequest{
		PrescriptionID: rx.ID,
	}, nil); status != http.StatusConflict {
		t.Fatalf("administer cancelled: status %d, want 409", status)
	}

	// Stock never moved.
	var levels []stock.Level
	a.do(t, http.MethodGet, fmt.Sprintf("/centers/%d/stock", c.ID), "center_admin", nil, &levels)
	if len(levels) != 1 || levels[0].Quantity != 5 {
		t.Fatalf("levels = %+v, want untouched 5", levels)
	}
}
