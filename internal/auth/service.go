// Package auth resolves caller identity and asserts role membership. Every
// other service calls RequireRole before touching any entity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/dentistplus/clinic-api/internal/apperr"
	"github.com/dentistplus/clinic-api/internal/audit"
	"github.com/dentistplus/clinic-api/internal/model"
	"github.com/dentistplus/clinic-api/internal/store"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type RegisterPatientParams struct {
	Username     string
	Password     string
	Email        string
	FirstName    string
	LastName     string
	DateOfBirth  time.Time
	ContactPhone string
	Address      string
}

type Service interface {
	// RequireRole resolves callerID to a user and asserts the role. It
	// re-reads the user record on every call so a revoked role or a deleted
	// account takes effect immediately.
	RequireRole(ctx context.Context, callerID string, role model.Role) (*model.User, error)
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*LoginResponse, error)
	RegisterPatient(ctx context.Context, params RegisterPatientParams) (*model.User, error)
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

type Config struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

type service struct {
	users       store.Users
	profiles    store.Profiles
	audit       audit.Service
	jwtSecret   []byte
	tokenExpiry time.Duration
}

func NewService(st *store.Store, auditSvc audit.Service, cfg Config) Service {
	return &service{
		users:       st.Users,
		profiles:    st.Profiles,
		audit:       auditSvc,
		jwtSecret:   []byte(cfg.JWTSecret),
		tokenExpiry: cfg.TokenExpiry,
	}
}

func (s *service) RequireRole(ctx context.Context, callerID string, role model.Role) (*model.User, error) {
	user, err := s.users.ByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.Unauthorized("invalid user")
		}
		return nil, err
	}
	if !user.Roles.Has(role) {
		return nil, apperr.Unauthorized("insufficient permissions, required role: %s", role)
	}
	return user, nil
}

func (s *service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return nil, apperr.Unauthorized("invalid user")
		}
		return nil, err
	}
	return user, nil
}

// Login compares the supplied secret against the stored secret and returns a
// signed token on match. The comparison is plaintext because that is what the
// stored credentials are; see DESIGN.md before changing this.
func (s *service) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	user, err := s.users.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			s.auditLogin(ctx, "", "failure")
			return nil, apperr.Unauthorized("invalid username or password")
		}
		return nil, err
	}

	if user.Password != password {
		s.auditLogin(ctx, user.ID, "failure")
		return nil, apperr.Unauthorized("invalid username or password")
	}

	token, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	s.auditLogin(ctx, user.ID, "success")
	return &LoginResponse{Token: token, User: user}, nil
}

func (s *service) RegisterPatient(ctx context.Context, params RegisterPatientParams) (*model.User, error) {
	taken, err := s.users.ExistsByUsername(ctx, params.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("username already exists")
	}
	taken, err = s.users.ExistsByEmail(ctx, params.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperr.Conflict("email already exists")
	}

	now := time.Now()
	user := &model.User{
		Username:  params.Username,
		Password:  params.Password,
		Email:     params.Email,
		Roles:     model.Roles{model.RolePatient},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	profile := &model.PatientProfile{
		UserID:       user.ID,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		DateOfBirth:  params.DateOfBirth,
		ContactPhone: params.ContactPhone,
		Address:      params.Address,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}

	s.audit.LogEvent(ctx, &audit.Event{
		EventType:  audit.EventModify,
		UserID:     user.ID,
		Action:     "REGISTER",
		Resource:   "user",
		ResourceID: user.ID,
		Status:     "success",
	})
	return user, nil
}

func (s *service) generateToken(user *model.User) (string, error) {
	roles := make([]string, len(user.Roles))
	for i, r := range user.Roles {
		roles[i] = string(r)
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
			Subject:   user.ID,
		},
		UserID:   user.ID,
		Username: user.Username,
		Roles:    roles,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *service) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// The token only establishes identity. Roles are re-checked against the
	// store by every service, so the account must still exist.
	if _, err := s.users.ByID(ctx, claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *service) auditLogin(ctx context.Context, userID, status string) {
	s.audit.LogEvent(ctx, &audit.Event{
		EventType: audit.EventLogin,
		UserID:    userID,
		Action:    "LOGIN",
		Resource:  "user",
		Status:    status,
	})
}
