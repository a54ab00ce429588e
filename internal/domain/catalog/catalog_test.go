package catalog

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/carelogix/go-vaxtrack/internal/domain"
)

type fakeStore struct {
	vaccines map[int64]*Vaccine
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{vaccines: make(map[int64]*Vaccine), nextID: 1}
}

func (f *fakeStore) Insert(_ context.Context, name string) (*Vaccine, error) {
	for _, v := range f.vaccines {
		if v.Name == name {
			return nil, domain.ErrDuplicateName
		}
	}
	v := &Vaccine{ID: f.nextID, Name: name}
	f.nextID++
	f.vaccines[v.ID] = v
	return v, nil
}

func (f *fakeStore) ByID(_ context.Context, id int64) (*Vaccine, error) {
	v, ok := f.vaccines[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (f *fakeStore) List(_ context.Context) ([]Vaccine, error) {
	var out []Vaccine
	for _, v := range f.vaccines {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func TestAddVaccine(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	v, err := svc.Add(ctx, "Comirnaty")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if v.ID == 0 || v.Name != "Comirnaty" {
		t.Fatalf("vaccine = %+v", v)
	}

	got, err := svc.Get(ctx, v.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Comirnaty" {
		t.Fatalf("name = %q", got.Name)
	}
}

func TestAddVaccineRejectsEmptyName(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	if _, err := svc.Add(context.Background(), ""); !domain.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestAddVaccineRejectsDuplicateName(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, "Spikevax"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Add(ctx, "Spikevax"); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
}

func TestListOrdersByName(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	ctx := context.Background()

	for _, name := range []string{"Vaxzevria", "Comirnaty", "Spikevax"} {
		if _, err := svc.Add(ctx, name); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"Comirnaty", "Spikevax", "Vaxzevria"}
	if len(list) != len(want) {
		t.Fatalf("len = %d, want %d", len(list), len(want))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Name, name)
		}
	}
}
