package prescription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carelogix/go-vaxtrack/internal/domain"
)

type fakeStore struct {
	prescriptions map[int64]*Prescription
	nextID        int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{prescriptions: make(map[int64]*Prescription), nextID: 1}
}

func (f *fakeStore) Insert(_ context.Context, p *Prescription) (*Prescription, error) {
	cp := *p
	cp.ID = f.nextID
	f.nextID++
	f.prescriptions[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) ByID(_ context.Context, id int64) (*Prescription, error) {
	p, ok := f.prescriptions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListPending(_ context.Context, patientID int64) ([]Detail, error) {
	var out []Detail
	for _, p := range f.prescriptions {
		if p.PatientID == patientID && p.Status == StatusPending {
			out = append(out, Detail{Prescription: *p})
		}
	}
	return out, nil
}

func (f *fakeStore) ListByPatient(_ context.Context, patientID int64) ([]Detail, error) {
	var out []Detail
	for _, p := range f.prescriptions {
		if p.PatientID == patientID {
			out = append(out, Detail{Prescription: *p})
		}
	}
	return out, nil
}

func (f *fakeStore) Cancel(_ context.Context, id int64) error {
	p, ok := f.prescriptions[id]
	if !ok || p.Status != StatusPending {
		return domain.ErrInvalidState
	}
	p.Status = StatusCancelled
	return nil
}

func TestCreatePrescription(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	p, err := svc.Create(context.Background(), 5, 7, 2, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != StatusPending {
		t.Fatalf("status = %s, want pending", p.Status)
	}
	if !p.Date.Equal(fixed) {
		t.Fatalf("date = %v, want %v", p.Date, fixed)
	}
	if p.ID == 0 {
		t.Fatal("expected assigned id")
	}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	cases := []struct {
		name      string
		patientID int64
		vaccineID int64
		doctorID  int64
		quantity  int32
	}{
		{"missing patient", 0, 7, 2, 1},
		{"missing vaccine", 5, 0, 2, 1},
		{"missing doctor", 5, 7, 0, 1},
		{"zero quantity", 5, 7, 2, 0},
		{"negative quantity", 5, 7, 2, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.patientID, tc.vaccineID, tc.doctorID, tc.quantity); !domain.IsValidation(err) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestCancelPending(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)

	p, err := svc.Create(context.Background(), 5, 7, 2, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Cancel(context.Background(), p.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if store.prescriptions[p.ID].Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", store.prescriptions[p.ID].Status)
	}
}

func TestCancelTerminalIsRejected(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil)

	p, _ := svc.Create(context.Background(), 5, 7, 2, 1)
	store.prescriptions[p.ID].Status = StatusAdministered

	if err := svc.Cancel(context.Background(), p.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}

	// Cancelling twice is also rejected.
	q, _ := svc.Create(context.Background(), 5, 7, 2, 1)
	if err := svc.Cancel(context.Background(), q.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := svc.Cancel(context.Background(), q.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second cancel err = %v, want ErrInvalidState", err)
	}
}

func TestCancelUnknown(t *testing.T) {
	svc := NewService(newFakeStore(), nil)

	if err := svc.Cancel(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	if !StatusAdministered.Terminal() || !StatusCancelled.Terminal() {
		t.Fatal("administered and cancelled must be terminal")
	}
}
