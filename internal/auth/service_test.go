package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dentistplus/clinic-api/internal/apperr"
	"github.com/dentistplus/clinic-api/internal/audit"
	"github.com/dentistplus/clinic-api/internal/model"
	"github.com/dentistplus/clinic-api/internal/store"
)

func newTestService(t *testing.T) (Service, *store.Store) {
	t.Helper()
	st := store.NewMemory()
	svc := NewService(st, audit.NewNop(), Config{JWTSecret: "test-secret", TokenExpiry: time.Hour})
	return svc, st
}

func seedUser(t *testing.T, st *store.Store, username, password string, roles ...model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Username: username,
		Password: password,
		Email:    username + "@clinic.test",
		Roles:    roles,
	}
	if err := st.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func TestRequireRole(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	dentist := seedUser(t, st, "dr.smith", "pw", model.RoleDentist)
	patient := seedUser(t, st, "john.doe", "pw", model.RolePatient)

	t.Run("unknown caller", func(t *testing.T) {
		_, err := svc.RequireRole(ctx, "no-such-id", model.RoleDentist)
		if apperr.KindOf(err) != apperr.KindUnauthorized {
			t.Fatalf("want Unauthorized, got %v", err)
		}
	})

	t.Run("role held", func(t *testing.T) {
		u, err := svc.RequireRole(ctx, dentist.ID, model.RoleDentist)
		if err != nil {
			t.Fatalf("RequireRole: %v", err)
		}
		if u.Username != "dr.smith" {
			t.Fatalf("got user %s", u.Username)
		}
	})

	t.Run("patient-only user fails dentist check", func(t *testing.T) {
		_, err := svc.RequireRole(ctx, patient.ID, model.RoleDentist)
		if apperr.KindOf(err) != apperr.KindUnauthorized {
			t.Fatalf("want Unauthorized, got %v", err)
		}
	})

	t.Run("revocation takes effect immediately", func(t *testing.T) {
		if _, err := svc.RequireRole(ctx, dentist.ID, model.RoleDentist); err != nil {
			t.Fatalf("precondition: %v", err)
		}
		if err := st.Users.Delete(ctx, dentist.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		_, err := svc.RequireRole(ctx, dentist.ID, model.RoleDentist)
		if apperr.KindOf(err) != apperr.KindUnauthorized {
			t.Fatalf("want Unauthorized after deletion, got %v", err)
		}
	})
}

func TestLogin(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	admin := seedUser(t, st, "admin", "admin123", model.RoleAdmin)

	t.Run("success", func(t *testing.T) {
		resp, err := svc.Login(ctx, "admin", "admin123")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if resp.Token == "" {
			t.Fatal("empty token")
		}
		claims, err := svc.ValidateToken(ctx, resp.Token)
		if err != nil {
			t.Fatalf("ValidateToken: %v", err)
		}
		if claims.UserID != admin.ID {
			t.Fatalf("claims user %s, want %s", claims.UserID, admin.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "admin", "nope")
		if apperr.KindOf(err) != apperr.KindUnauthorized {
			t.Fatalf("want Unauthorized, got %v", err)
		}
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := svc.Login(ctx, "ghost", "admin123")
		if apperr.KindOf(err) != apperr.KindUnauthorized {
			t.Fatalf("want Unauthorized, got %v", err)
		}
	})
}

func TestRegisterPatient(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	params := RegisterPatientParams{
		Username:  "jane.smith",
		Password:  "pw",
		Email:     "jane@clinic.test",
		FirstName: "Jane",
		LastName:  "Smith",
	}

	user, err := svc.RegisterPatient(ctx, params)
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	if !user.Roles.Has(model.RolePatient) {
		t.Fatalf("roles = %v, want PATIENT", user.Roles)
	}

	profile, err := st.Profiles.ByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("linked profile: %v", err)
	}
	if profile.FirstName != "Jane" || profile.LastName != "Smith" {
		t.Fatalf("profile name %s %s", profile.FirstName, profile.LastName)
	}

	t.Run("duplicate username", func(t *testing.T) {
		dup := params
		dup.Email = "other@clinic.test"
		_, err := svc.RegisterPatient(ctx, dup)
		if apperr.KindOf(err) != apperr.KindConflict {
			t.Fatalf("want Conflict, got %v", err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := params
		dup.Username = "jane2"
		_, err := svc.RegisterPatient(ctx, dup)
		if apperr.KindOf(err) != apperr.KindConflict {
			t.Fatalf("want Conflict, got %v", err)
		}
	})

	if _, err := st.Users.ByUsername(ctx, "jane2"); !errors.Is(err, store.ErrNoDocument) {
		t.Fatalf("failed registration must not persist a user, got %v", err)
	}
}
