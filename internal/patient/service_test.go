package patient

import (
	"context"
	"testing"
	"time"

	"github.com/dentistplus/clinic-api/internal/apperr"
	"github.com/dentistplus/clinic-api/internal/audit"
	"github.com/dentistplus/clinic-api/internal/auth"
	"github.com/dentistplus/clinic-api/internal/model"
	"github.com/dentistplus/clinic-api/internal/store"
)

type fixture struct {
	svc       Service
	st        *store.Store
	dentistID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	guard := auth.NewService(st, audit.NewNop(), auth.Config{JWTSecret: "test-secret", TokenExpiry: time.Hour})
	svc := NewService(st, guard, audit.NewNop())

	dentist := &model.User{
		Username: "dr.smith",
		Password: "pw",
		Email:    "smith@clinic.test",
		Roles:    model.Roles{model.RoleDentist},
	}
	if err := st.Users.Create(context.Background(), dentist); err != nil {
		t.Fatalf("seed dentist: %v", err)
	}
	return &fixture{svc: svc, st: st, dentistID: dentist.ID}
}

func (f *fixture) seedProfile(t *testing.T, first, last string) *model.PatientProfile {
	t.Helper()
	user := &model.User{
		Username: first + "." + last,
		Password: "pw",
		Email:    first + "." + last + "@clinic.test",
		Roles:    model.Roles{model.RolePatient},
	}
	if err := f.st.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	profile := &model.PatientProfile{
		UserID:    user.ID,
		FirstName: first,
		LastName:  last,
	}
	if err := f.st.Profiles.Create(context.Background(), profile); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return profile
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedProfile(t, "John", "Doe")
	f.seedProfile(t, "Jane", "Smith")
	f.seedProfile(t, "Bob", "Johnson")

	t.Run("first-name match", func(t *testing.T) {
		got, err := f.svc.Search(ctx, f.dentistID, "jane")
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(got) != 1 || got[0].FirstName != "Jane" || got[0].LastName != "Smith" {
			t.Fatalf("got %v, want exactly Jane Smith", got)
		}
	})

	t.Run("substring matches either name", func(t *testing.T) {
		got, err := f.svc.Search(ctx, f.dentistID, "john")
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		// "john" hits John Doe on first name and Bob Johnson on last name.
		if len(got) != 2 {
			t.Fatalf("got %d profiles, want 2", len(got))
		}
	})

	t.Run("patient caller rejected", func(t *testing.T) {
		p := f.seedProfile(t, "Eve", "Adams")
		_, err := f.svc.Search(ctx, p.UserID, "jane")
		if apperr.KindOf(err) != apperr.KindUnauthorized {
			t.Fatalf("want Unauthorized, got %v", err)
		}
	})
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile := f.seedProfile(t, "John", "Doe")

	got, err := f.svc.Get(ctx, f.dentistID, profile.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != profile.ID {
		t.Fatalf("got profile %s", got.ID)
	}

	if _, err := f.svc.Get(ctx, f.dentistID, "no-such-id"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestUpdateReplacesWholesale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile := f.seedProfile(t, "John", "Doe")
	profile.ContactPhone = "555-0100"
	if err := f.st.Profiles.Save(ctx, profile); err != nil {
		t.Fatalf("save: %v", err)
	}

	dob := time.Date(1985, time.March, 12, 0, 0, 0, 0, time.UTC)
	updated, err := f.svc.Update(ctx, f.dentistID, profile.ID, UpdateProfileParams{
		FirstName:   "John",
		LastName:    "Doe",
		DateOfBirth: dob,
		Address:     "1 Main St",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Address != "1 Main St" || !updated.DateOfBirth.Equal(dob) {
		t.Fatalf("update not applied: %+v", updated)
	}
	// Full replace: a field absent from the params is cleared, not kept.
	if updated.ContactPhone != "" {
		t.Fatalf("contactPhone = %q, want cleared", updated.ContactPhone)
	}
	if !updated.UpdatedAt.After(profile.UpdatedAt) && !updated.UpdatedAt.Equal(profile.UpdatedAt) {
		t.Fatal("updatedAt must be bumped")
	}
}

func TestMyProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile := f.seedProfile(t, "Jane", "Smith")

	got, err := f.svc.MyProfile(ctx, profile.UserID)
	if err != nil {
		t.Fatalf("MyProfile: %v", err)
	}
	if got.ID != profile.ID {
		t.Fatalf("got profile %s", got.ID)
	}

	// Dentists have no profile and no patient role.
	if _, err := f.svc.MyProfile(ctx, f.dentistID); apperr.KindOf(err) != apperr.KindUnauthorized {
		t.Fatalf("want Unauthorized, got %v", err)
	}
}
