package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"identity-server/internal/model"
)

// UserService orchestrates registration, login and refresh on top of the
// credential store and the token service.
type UserService struct {
	store      CredentialStore
	roles      RoleStore
	tokens     *TokenService
	refreshTTL time.Duration
}

func NewUserService(store CredentialStore, roles RoleStore, tokens *TokenService, refreshTTL time.Duration) *UserService {
	if refreshTTL <= 0 {
		refreshTTL = 168 * time.Hour
	}

	return &UserService{
		store:      store,
		roles:      roles,
		tokens:     tokens,
		refreshTTL: refreshTTL,
	}
}

// Register creates a user with a fresh refresh token, assigns the
// requested role and returns a token pair. The role must already exist;
// nothing is created when it does not.
func (s *UserService) Register(ctx context.Context, req model.RegisterRequest) (model.TokenPair, error) {
	if err := validateRegister(req); err != nil {
		return model.TokenPair{}, err
	}

	role, err := s.roles.FindRoleByName(ctx, req.Role)
	if errors.Is(err, model.ErrRoleNotFound) {
		return model.TokenPair{}, model.NewValidationError(fmt.Sprintf("role %q does not exist", req.Role))
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return model.TokenPair{}, err
	}

	now := time.Now().UTC()
	user := model.User{
		ID:                    uuid.NewString(),
		Username:              strings.TrimSpace(req.Username),
		Email:                 strings.TrimSpace(req.Email),
		Phone:                 strings.TrimSpace(req.Phone),
		DisplayName:           strings.TrimSpace(req.Name),
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: now.Add(s.refreshTTL),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	created, err := s.store.Create(ctx, user, req.Password)
	if errors.Is(err, model.ErrUserAlreadyExists) {
		return model.TokenPair{}, model.NewValidationError(fmt.Sprintf("username %q is already taken", user.Username))
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.store.AddRoleToUser(ctx, created.ID, role.Name); err != nil {
		return model.TokenPair{}, err
	}

	accessToken, err := s.tokens.IssueAccessToken(created, []string{role.Name})
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Login authenticates the user and rotates the refresh token. Unknown
// usernames and bad passwords both surface as ErrInvalidCredentials so
// nothing is leaked about which one failed.
func (s *UserService) Login(ctx context.Context, username string, password string) (model.TokenPair, error) {
	user, err := s.store.CheckPassword(ctx, username, password)
	if errors.Is(err, model.ErrInvalidCredentials) || errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	return s.issueTokenPair(ctx, user)
}

// Refresh exchanges an expired-but-untampered access token plus the
// current refresh token for a new pair. The refresh token is one-time
// use: rotation makes the presented value worthless immediately.
func (s *UserService) Refresh(ctx context.Context, accessToken string, refreshToken string) (model.TokenPair, error) {
	claims, err := s.tokens.ParseExpired(accessToken)
	if err != nil {
		return model.TokenPair{}, model.ErrInvalidToken
	}

	user, err := s.store.FindByUsername(ctx, claims.Username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, model.ErrInvalidToken
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if user.RefreshToken == "" || refreshToken == "" {
		return model.TokenPair{}, model.ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		return model.TokenPair{}, model.ErrInvalidToken
	}
	if !user.RefreshTokenExpiresAt.After(time.Now().UTC()) {
		return model.TokenPair{}, model.ErrInvalidToken
	}

	return s.issueTokenPair(ctx, user)
}

// GetByUsername returns the public profile with every role held.
func (s *UserService) GetByUsername(ctx context.Context, username string) (model.Profile, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		return model.Profile{}, err
	}

	roles, err := s.store.RolesForUser(ctx, user.ID)
	if err != nil {
		return model.Profile{}, err
	}

	return model.Profile{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Phone:       user.Phone,
		DisplayName: user.DisplayName,
		Roles:       roles,
	}, nil
}

// Update changes the profile fields (name, phone, email) of an existing user.
func (s *UserService) Update(ctx context.Context, req model.UpdateUserRequest) error {
	if err := validateUpdate(req); err != nil {
		return err
	}

	user, err := s.store.FindByUsername(ctx, req.Username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.NewValidationError(fmt.Sprintf("no user exists with username %q", req.Username))
	}
	if err != nil {
		return err
	}

	user.DisplayName = strings.TrimSpace(req.Name)
	user.Phone = strings.TrimSpace(req.Phone)
	user.Email = strings.TrimSpace(req.Email)
	user.UpdatedAt = time.Now().UTC()

	return s.store.Update(ctx, user)
}

// Delete removes the user record, its role assignments with it.
func (s *UserService) Delete(ctx context.Context, username string) error {
	err := s.store.Delete(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.NewValidationError(fmt.Sprintf("no user exists with username %q", username))
	}

	return err
}

func (s *UserService) issueTokenPair(ctx context.Context, user model.User) (model.TokenPair, error) {
	refreshToken, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return model.TokenPair{}, err
	}

	expiresAt := time.Now().UTC().Add(s.refreshTTL)
	if err := s.store.SetRefreshToken(ctx, user.ID, refreshToken, expiresAt); err != nil {
		return model.TokenPair{}, err
	}

	roles, err := s.store.RolesForUser(ctx, user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}

	accessToken, err := s.tokens.IssueAccessToken(user, roles)
	if err != nil {
		return model.TokenPair{}, err
	}

	return model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func validateRegister(req model.RegisterRequest) error {
	return toValidationError(validation.Errors{
		"username": validation.Validate(req.Username, validation.Required, validation.Length(3, 64)),
		"email":    validation.Validate(req.Email, validation.Required, is.Email),
		"name":     validation.Validate(req.Name, validation.Required, validation.Length(1, 100)),
		"phone":    validation.Validate(req.Phone, is.E164),
		"password": validation.Validate(req.Password, validation.Required, validation.Length(8, 72)),
		"role":     validation.Validate(req.Role, validation.Required),
	}.Filter())
}

func validateUpdate(req model.UpdateUserRequest) error {
	return toValidationError(validation.Errors{
		"username": validation.Validate(req.Username, validation.Required),
		"email":    validation.Validate(req.Email, validation.Required, is.Email),
		"name":     validation.Validate(req.Name, validation.Required, validation.Length(1, 100)),
		"phone":    validation.Validate(req.Phone, is.E164),
	}.Filter())
}

// toValidationError flattens ozzo's per-field error map into the
// aggregated message list the API reports.
func toValidationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	messages := make([]string, 0, len(fields))
	for _, field := range fields {
		messages = append(messages, fmt.Sprintf("%s: %s", field, fieldErrs[field]))
	}

	return &model.ValidationError{Messages: messages}
}
