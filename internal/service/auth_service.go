package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"fitzone/internal/entity"
	"fitzone/internal/repository"
	"fitzone/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Profile  entity.Profile
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress *string
}

type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
	IPAddress       *string
}

// PrincipalUpdate names the fields to change; nil fields keep their value.
// Handlers decide which fields a caller may set.
type PrincipalUpdate struct {
	Username      *string
	Gender        *string
	Age           *int
	HeightCM      *float64
	WeightKG      *float64
	FitnessGoal   *string
	ActivityLevel *string
	Password      *string
	IsVerified    *bool
	IPAddress     *string
}

func (u PrincipalUpdate) apply(p *entity.Principal, passwordHash string) []string {
	var changed []string
	if u.Username != nil {
		p.Username = strings.TrimSpace(*u.Username)
		changed = append(changed, "username")
	}
	if u.Gender != nil {
		p.Profile.Gender = *u.Gender
		changed = append(changed, "gender")
	}
	if u.Age != nil {
		p.Profile.Age = *u.Age
		changed = append(changed, "age")
	}
	if u.HeightCM != nil {
		p.Profile.HeightCM = *u.HeightCM
		changed = append(changed, "height")
	}
	if u.WeightKG != nil {
		p.Profile.WeightKG = *u.WeightKG
		changed = append(changed, "weight")
	}
	if u.FitnessGoal != nil {
		p.Profile.FitnessGoal = *u.FitnessGoal
		changed = append(changed, "fitness_goal")
	}
	if u.ActivityLevel != nil {
		p.Profile.ActivityLevel = *u.ActivityLevel
		changed = append(changed, "activity_level")
	}
	if passwordHash != "" {
		p.PasswordHash = passwordHash
		changed = append(changed, "password")
	}
	if u.IsVerified != nil {
		p.IsVerified = *u.IsVerified
		if p.IsVerified {
			p.ClearCode(entity.PurposeVerification)
		}
		changed = append(changed, "is_verified")
	}
	return changed
}

type LoginResult struct {
	AccessToken string
	ExpiresIn   int64
	Principal   *entity.Principal
}

// NotVerifiedError is returned by Login for a correct password on an account
// that has not redeemed its verification code yet.
type NotVerifiedError struct {
	PrincipalID string
}

func (e *NotVerifiedError) Error() string {
	return ErrEmailNotVerified.Error()
}

func (e *NotVerifiedError) Unwrap() error {
	return ErrEmailNotVerified
}

// AuthService is the account surface for one principal kind. Code issuance
// and redemption go through the RecoveryEngine; the service adds login,
// token issuance and password change on top.
type AuthService struct {
	engine       *RecoveryEngine
	principals   repository.PrincipalRepository
	securityLogs repository.SecurityLogRepository

	passwordHash PasswordHasher
	accessTokens AccessTokenIssuer
	clock        Clock
	logger       logrus.FieldLogger
	metrics      *Metrics
}

func NewAuthService(
	engine *RecoveryEngine,
	principals repository.PrincipalRepository,
	securityLogs repository.SecurityLogRepository,
	passwordHash PasswordHasher,
	accessTokens AccessTokenIssuer,
	clock Clock,
	logger logrus.FieldLogger,
	metrics *Metrics,
) *AuthService {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &AuthService{
		engine:       engine,
		principals:   principals,
		securityLogs: securityLogs,
		passwordHash: passwordHash,
		accessTokens: accessTokens,
		clock:        clock,
		logger:       logger.WithField("principal", string(engine.Role())),
		metrics:      metrics,
	}
}

func (s *AuthService) Role() entity.Role {
	return s.engine.Role()
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*entity.Principal, error) {
	return s.engine.Enroll(ctx, EnrollInput(input))
}

func (s *AuthService) RequestVerificationCode(ctx context.Context, email string) error {
	return s.engine.RequestVerificationCode(ctx, email)
}

func (s *AuthService) ResendVerificationCode(ctx context.Context, email string) error {
	return s.engine.ResendVerificationCode(ctx, email)
}

// VerifyAndLogin redeems the verification code and issues a token for the
// now verified account.
func (s *AuthService) VerifyAndLogin(ctx context.Context, email string, code string) (*LoginResult, error) {
	principal, err := s.engine.RedeemVerificationCode(ctx, email, code)
	if err != nil {
		return nil, err
	}
	return s.issue(principal)
}

func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	return s.engine.RequestPasswordReset(ctx, email)
}

func (s *AuthService) VerifyResetCode(ctx context.Context, principalID string, code string) error {
	return s.engine.VerifyResetCode(ctx, principalID, code)
}

func (s *AuthService) ResetPassword(ctx context.Context, input CompleteResetInput) error {
	return s.engine.CompletePasswordReset(ctx, input)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	if strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	email := utils.NormalizeEmail(input.Email)
	principal, err := s.principals.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		s.loginFailed(ctx, nil, input.IPAddress, email, "unknown_email")
		return nil, ErrInvalidCredentials
	}
	if !s.passwordHash.Verify(principal.PasswordHash, input.Password) {
		s.loginFailed(ctx, &principal.ID, input.IPAddress, email, "wrong_password")
		return nil, ErrInvalidCredentials
	}
	if !principal.IsVerified {
		s.metrics.observeLogin(string(s.Role()), "email_not_verified")
		return nil, &NotVerifiedError{PrincipalID: principal.ID}
	}

	result, err := s.issue(principal)
	if err != nil {
		return nil, err
	}
	s.metrics.observeLogin(string(s.Role()), "ok")
	s.logSecurity(ctx, &principal.ID, input.IPAddress, entity.LoginSuccess, nil)
	return result, nil
}

// ChangePassword replaces the credential of an authenticated principal.
// Outstanding reset codes are left alone.
func (s *AuthService) ChangePassword(ctx context.Context, principalID string, input ChangePasswordInput) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return ErrInvalidInput
	}
	if input.NewPassword != input.ConfirmPassword {
		return ErrPasswordMismatch
	}
	if err := CheckPasswordStrength(input.NewPassword); err != nil {
		return err
	}

	var hash string
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		principal, err := s.principals.FindByID(ctx, principalID)
		if err != nil {
			return err
		}
		if principal == nil {
			return ErrPrincipalNotFound
		}
		if !s.passwordHash.Verify(principal.PasswordHash, input.CurrentPassword) {
			return ErrInvalidCredentials
		}
		if hash == "" {
			if hash, err = s.passwordHash.Hash(input.NewPassword); err != nil {
				return err
			}
		}
		principal.PasswordHash = hash
		err = s.principals.Save(ctx, principal)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return err
		}
		s.logSecurity(ctx, &principal.ID, input.IPAddress, entity.PasswordChanged, nil)
		return nil
	}
	return fmt.Errorf("change password: %w", repository.ErrVersionConflict)
}

// UpdatePrincipal applies update to the principal with a version-checked
// write. A new password must pass the strength policy; marking a principal
// verified drops its outstanding verification code.
func (s *AuthService) UpdatePrincipal(ctx context.Context, principalID string, update PrincipalUpdate) (*entity.Principal, error) {
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if username == "" {
			return nil, ErrInvalidInput
		}
		taken, err := s.principals.FindByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if taken != nil && taken.ID != principalID {
			return nil, ErrUsernameTaken
		}
	}
	var hash string
	if update.Password != nil {
		if err := CheckPasswordStrength(*update.Password); err != nil {
			return nil, err
		}
		var err error
		if hash, err = s.passwordHash.Hash(*update.Password); err != nil {
			return nil, err
		}
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		principal, err := s.principals.FindByID(ctx, principalID)
		if err != nil {
			return nil, err
		}
		if principal == nil {
			return nil, ErrPrincipalNotFound
		}
		changed := update.apply(principal, hash)
		err = s.principals.Save(ctx, principal)
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			continue
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailAlreadyRegistered
		case err != nil:
			return nil, err
		}
		s.logSecurity(ctx, &principal.ID, update.IPAddress, entity.PrincipalUpdated, datatypes.JSONMap{"fields": changed})
		return principal, nil
	}
	return nil, fmt.Errorf("update principal: %w", repository.ErrVersionConflict)
}

func (s *AuthService) DeletePrincipal(ctx context.Context, principalID string, ipAddress *string) error {
	err := s.principals.Delete(ctx, principalID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrPrincipalNotFound
	}
	if err != nil {
		return err
	}
	s.logger.WithField("principal_id", principalID).Info("principal deleted")
	s.logSecurity(ctx, &principalID, ipAddress, entity.PrincipalDeleted, nil)
	return nil
}

func (s *AuthService) GetPrincipal(ctx context.Context, principalID string) (*entity.Principal, error) {
	principal, err := s.principals.FindByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if principal == nil {
		return nil, ErrPrincipalNotFound
	}
	return principal, nil
}

// ListPrincipals returns one page, newest first. Limits outside 1..100
// fall back to the default page size.
func (s *AuthService) ListPrincipals(ctx context.Context, limit, offset int) ([]entity.Principal, int, int, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	principals, err := s.principals.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, 0, err
	}
	return principals, limit, offset, nil
}

func (s *AuthService) Ping(ctx context.Context) error {
	return s.principals.Ping(ctx)
}

func (s *AuthService) issue(principal *entity.Principal) (*LoginResult, error) {
	token, expiresIn, err := s.accessTokens.IssueAccessToken(principal.ID, s.Role())
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   int64(expiresIn.Seconds()),
		Principal:   principal,
	}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, principalID *string, ipAddress *string, email string, cause string) {
	s.metrics.observeLogin(string(s.Role()), "invalid_credentials")
	s.logger.WithFields(logrus.Fields{"email_domain": utils.EmailDomain(email), "cause": cause}).Warn("login failed")
	s.logSecurity(ctx, principalID, ipAddress, entity.LoginFailed, datatypes.JSONMap{"cause": cause})
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	principalID *string,
	ipAddress *string,
	action entity.SecurityAction,
	metadata datatypes.JSONMap,
) {
	if s.securityLogs == nil {
		return
	}
	log := &entity.SecurityLog{
		ID:            uuid.NewString(),
		PrincipalID:   principalID,
		PrincipalRole: s.Role(),
		IPAddress:     ipAddress,
		Action:        action,
		Metadata:      metadata,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.securityLogs.Log(ctx, log); err != nil {
		s.logger.WithError(err).Warn("write security log")
	}
}

func (s *AuthService) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
