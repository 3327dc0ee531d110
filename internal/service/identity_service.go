package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/judyrop/tequilas-restaurant/internal/apperr"
	"github.com/judyrop/tequilas-restaurant/internal/auth"
	"github.com/judyrop/tequilas-restaurant/internal/store"
	"github.com/judyrop/tequilas-restaurant/models"
)

type RegisterRequest struct {
	UserName string `json:"userName" validate:"required,max=256"`
	Email    string `json:"email" validate:"required,email,max=256"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
	Email      string    `json:"email"`
	UserName   string    `json:"userName"`
	Roles      []string  `json:"roles"`
}

type CurrentUser struct {
	UserID   uint     `json:"userId"`
	Email    string   `json:"email"`
	UserName string   `json:"userName"`
	Roles    []string `json:"roles"`
}

// IdentityService registers users and exchanges credentials for bearer tokens.
type IdentityService struct {
	store  *store.Store
	tokens *auth.TokenIssuer
	oidc   auth.IDTokenVerifier
	log    zerolog.Logger
}

// NewIdentityService builds the service. verifier may be nil, which disables
// sign-in with external id tokens.
func NewIdentityService(s *store.Store, tokens *auth.TokenIssuer, verifier auth.IDTokenVerifier, log zerolog.Logger) *IdentityService {
	return &IdentityService{store: s, tokens: tokens, oidc: verifier, log: log}
}

// Register creates a customer account. Every policy and uniqueness problem is
// reported at once.
func (s *IdentityService) Register(ctx context.Context, req RegisterRequest) (*CurrentUser, error) {
	trimSpace(&req.UserName, &req.Email)
	if err := invalid(fieldErrors(req)); err != nil {
		return nil, err
	}

	problems := auth.PasswordProblems(req.Password)
	if _, err := s.store.Users.FindByEmail(ctx, req.Email); err == nil {
		problems = append(problems, fmt.Sprintf("Email '%s' is already taken.", req.Email))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal(err, "failed to load user")
	}
	taken, err := s.store.Users.ExistsByUserName(ctx, req.UserName)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user")
	}
	if taken {
		problems = append(problems, fmt.Sprintf("Username '%s' is already taken.", req.UserName))
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("registration failed").WithDetails(problems...)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal(err, "failed to hash password")
	}
	user := &models.User{UserName: req.UserName, Email: req.Email, PasswordHash: hash}
	if err := s.store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("registration failed").WithDetails("Email or username is already taken.")
		}
		return nil, apperr.Internal(err, "failed to create user")
	}
	s.log.Info().Uint("user_id", user.ID).Str("user_name", user.UserName).Msg("user registered")
	return currentUser(auth.ClaimsForUser(user)), nil
}

// Login checks the password and issues a token. Unknown email and wrong
// password fail the same way.
func (s *IdentityService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	trimSpace(&req.Email)
	if err := invalid(fieldErrors(req)); err != nil {
		return nil, err
	}
	user, err := s.store.Users.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Internal(err, "failed to load user")
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	return s.issue(user)
}

// LoginWithIDToken signs in with an id token from the configured OpenID
// Connect provider, creating a local account on first use.
func (s *IdentityService) LoginWithIDToken(ctx context.Context, rawIDToken string) (*LoginResponse, error) {
	if s.oidc == nil {
		return nil, apperr.NotFound("external sign-in is not enabled")
	}
	if strings.TrimSpace(rawIDToken) == "" {
		return nil, apperr.ValidationFields(map[string]string{"idToken": "is required"})
	}
	id, err := auth.VerifyIDToken(ctx, s.oidc, rawIDToken)
	if err != nil {
		s.log.Debug().Err(err).Msg("id token rejected")
		return nil, apperr.Unauthenticated("invalid id token")
	}

	user, err := s.store.Users.FindByEmail(ctx, id.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = s.createExternalUser(ctx, id)
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user")
	}
	return s.issue(user)
}

func (s *IdentityService) createExternalUser(ctx context.Context, id *auth.ExternalIdentity) (*models.User, error) {
	base := id.Name
	if base == "" {
		base, _, _ = strings.Cut(id.Email, "@")
	}
	name := base
	for n := 2; ; n++ {
		taken, err := s.store.Users.ExistsByUserName(ctx, name)
		if err != nil {
			return nil, err
		}
		if !taken {
			break
		}
		name = fmt.Sprintf("%s%d", base, n)
	}
	user := &models.User{UserName: name, Email: id.Email}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info().Uint("user_id", user.ID).Str("issuer", id.Issuer).Msg("external user created")
	return user, nil
}

// EnsureAdmin makes sure the Admin role exists and, when email is set, that
// an account with that email holds it.
func (s *IdentityService) EnsureAdmin(ctx context.Context, email, password string) error {
	return s.store.Transaction(ctx, func(tx *store.Store) error {
		role, err := tx.Users.EnsureRole(ctx, models.RoleAdmin)
		if err != nil {
			return fmt.Errorf("ensure admin role: %w", err)
		}
		if email == "" {
			return nil
		}
		user, err := tx.Users.FindByEmail(ctx, email)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if password == "" {
				return errors.New("admin password is required to create the admin account")
			}
			hash, herr := auth.HashPassword(password)
			if herr != nil {
				return herr
			}
			name, _, _ := strings.Cut(email, "@")
			user = &models.User{UserName: name, Email: email, PasswordHash: hash}
			err = tx.Users.Create(ctx, user)
		}
		if err != nil {
			return fmt.Errorf("ensure admin user: %w", err)
		}
		return tx.Users.AddRole(ctx, user, role)
	})
}

// Me describes the caller.
func (s *IdentityService) Me(actor *auth.Claims) (*CurrentUser, error) {
	if !auth.IsAuthenticated(actor) {
		return nil, apperr.Unauthenticated("authentication required")
	}
	return currentUser(actor), nil
}

func (s *IdentityService) issue(user *models.User) (*LoginResponse, error) {
	claims := auth.ClaimsForUser(user)
	token, exp, err := s.tokens.Issue(claims)
	if err != nil {
		return nil, apperr.Internal(err, "failed to issue token")
	}
	return &LoginResponse{
		Token:      token,
		Expiration: exp,
		Email:      user.Email,
		UserName:   user.UserName,
		Roles:      claims.Roles.List(),
	}, nil
}

func currentUser(c *auth.Claims) *CurrentUser {
	return &CurrentUser{UserID: c.UserID, Email: c.Email, UserName: c.UserName, Roles: c.Roles.List()}
}
