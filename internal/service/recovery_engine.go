package service

import (
	"context"
	"crypto/subtle"
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

const maxWriteAttempts = 3

const (
	opEnroll              = "enroll"
	opRequestVerification = "request_verification_code"
	opResendVerification  = "resend_verification_code"
	opRedeemVerification  = "redeem_verification_code"
	opRequestReset        = "request_password_reset"
	opVerifyReset         = "verify_reset_code"
	opCompleteReset       = "complete_password_reset"
)

var opPurpose = map[string]entity.CodePurpose{
	opEnroll:              entity.PurposeVerification,
	opRequestVerification: entity.PurposeVerification,
	opResendVerification:  entity.PurposeVerification,
	opRedeemVerification:  entity.PurposeVerification,
	opRequestReset:        entity.PurposeReset,
	opVerifyReset:         entity.PurposeReset,
	opCompleteReset:       entity.PurposeReset,
}

type EnrollInput struct {
	Username string
	Email    string
	Password string
	Profile  entity.Profile
}

type CompleteResetInput struct {
	PrincipalID     string
	Code            string
	NewPassword     string
	ConfirmPassword string
}

// RecoveryEngine issues and redeems one-time codes for one principal kind.
// Verification and reset codes are two independent lifecycles stored on the
// same record.
type RecoveryEngine struct {
	role         entity.Role
	principals   repository.PrincipalRepository
	securityLogs repository.SecurityLogRepository

	domains  DomainChecker
	mailer   MailSender
	hasher   PasswordHasher
	cooldown Cooldown
	clock    Clock
	logger   logrus.FieldLogger
	metrics  *Metrics
	config   RecoveryConfig

	generateCode func() (string, error)
}

func NewRecoveryEngine(
	role entity.Role,
	principals repository.PrincipalRepository,
	securityLogs repository.SecurityLogRepository,
	domains DomainChecker,
	mailer MailSender,
	hasher PasswordHasher,
	cooldown Cooldown,
	clock Clock,
	logger logrus.FieldLogger,
	metrics *Metrics,
	config RecoveryConfig,
) *RecoveryEngine {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &RecoveryEngine{
		role:         role,
		principals:   principals,
		securityLogs: securityLogs,
		domains:      domains,
		mailer:       mailer,
		hasher:       hasher,
		cooldown:     cooldown,
		clock:        clock,
		logger:       logger.WithField("principal", string(role)),
		metrics:      metrics,
		config:       config,
		generateCode: utils.GenerateNumericCode,
	}
}

func (e *RecoveryEngine) Role() entity.Role {
	return e.role
}

// Enroll creates an unverified principal carrying a fresh verification code.
// The code is mailed first; nothing is created when delivery fails.
func (e *RecoveryEngine) Enroll(ctx context.Context, input EnrollInput) (*entity.Principal, error) {
	email := utils.NormalizeEmail(input.Email)
	username := strings.TrimSpace(input.Username)
	if email == "" || username == "" || input.Password == "" {
		return nil, e.finish(ctx, opEnroll, nil, email, ErrInvalidInput)
	}
	if err := e.checkDomain(ctx, email); err != nil {
		return nil, e.finish(ctx, opEnroll, nil, email, err)
	}

	existing, err := e.principals.FindByEmail(ctx, email)
	if err != nil {
		return nil, e.fault(opEnroll, err)
	}
	if existing != nil {
		if existing.IsVerified {
			return nil, e.finish(ctx, opEnroll, existing, email, ErrEmailAlreadyRegistered)
		}
		return nil, e.finish(ctx, opEnroll, existing, email, ErrPendingVerification)
	}
	taken, err := e.principals.FindByUsername(ctx, username)
	if err != nil {
		return nil, e.fault(opEnroll, err)
	}
	if taken != nil {
		return nil, e.finish(ctx, opEnroll, nil, email, ErrUsernameTaken)
	}
	if err := CheckPasswordStrength(input.Password); err != nil {
		return nil, e.finish(ctx, opEnroll, nil, email, err)
	}
	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, e.fault(opEnroll, err)
	}

	code, expiresAt, err := e.dispatch(ctx, email, entity.PurposeVerification)
	if err != nil {
		return nil, e.finishOrFault(ctx, opEnroll, nil, email, err)
	}

	principal := &entity.Principal{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Profile:      input.Profile,
	}
	principal.IssueCode(entity.PurposeVerification, code, expiresAt)
	if err := e.principals.Create(ctx, principal); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, e.finish(ctx, opEnroll, nil, email, ErrPendingVerification)
		}
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, e.finish(ctx, opEnroll, nil, email, ErrUsernameTaken)
		}
		return nil, e.fault(opEnroll, err)
	}
	_ = e.finish(ctx, opEnroll, principal, email, nil)
	return principal, nil
}

// RequestVerificationCode mails a new verification code to an existing,
// unverified principal. Any outstanding verification code is superseded.
func (e *RecoveryEngine) RequestVerificationCode(ctx context.Context, email string) error {
	return e.requestVerification(ctx, opRequestVerification, email)
}

// ResendVerificationCode is RequestVerificationCode for clients that
// already went through sign-up.
func (e *RecoveryEngine) ResendVerificationCode(ctx context.Context, email string) error {
	return e.requestVerification(ctx, opResendVerification, email)
}

func (e *RecoveryEngine) requestVerification(ctx context.Context, op string, rawEmail string) error {
	email := utils.NormalizeEmail(rawEmail)
	if email == "" {
		return e.finish(ctx, op, nil, email, ErrInvalidInput)
	}
	if err := e.checkDomain(ctx, email); err != nil {
		return e.finish(ctx, op, nil, email, err)
	}

	principal, err := e.principals.FindByEmail(ctx, email)
	if err != nil {
		return e.fault(op, err)
	}
	if principal == nil {
		return e.finish(ctx, op, nil, email, ErrPrincipalNotFound)
	}
	if principal.IsVerified {
		return e.finish(ctx, op, principal, email, ErrAlreadyVerified)
	}

	code, expiresAt, err := e.dispatch(ctx, email, entity.PurposeVerification)
	if err != nil {
		return e.finishOrFault(ctx, op, principal, email, err)
	}
	if err := e.persistCode(ctx, principal, entity.PurposeVerification, code, expiresAt); err != nil {
		return e.finishOrFault(ctx, op, principal, email, err)
	}
	return e.finish(ctx, op, principal, email, nil)
}

// RedeemVerificationCode marks the principal verified and consumes the code.
// The returned principal is the stored state after the change.
func (e *RecoveryEngine) RedeemVerificationCode(ctx context.Context, rawEmail string, code string) (*entity.Principal, error) {
	email := utils.NormalizeEmail(rawEmail)
	if email == "" {
		return nil, e.finish(ctx, opRedeemVerification, nil, email, ErrInvalidInput)
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		principal, err := e.principals.FindByEmail(ctx, email)
		if err != nil {
			return nil, e.fault(opRedeemVerification, err)
		}
		if principal == nil {
			return nil, e.finish(ctx, opRedeemVerification, nil, email, ErrPrincipalNotFound)
		}
		if err := e.checkCode(principal, entity.PurposeVerification, code); err != nil {
			return nil, e.finish(ctx, opRedeemVerification, principal, email, err)
		}

		principal.IsVerified = true
		principal.ClearCode(entity.PurposeVerification)
		err = e.principals.Save(ctx, principal)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, e.fault(opRedeemVerification, err)
		}
		_ = e.finish(ctx, opRedeemVerification, principal, email, nil)
		return principal, nil
	}
	return nil, e.fault(opRedeemVerification, repository.ErrVersionConflict)
}

// RequestPasswordReset mails a reset code and returns the principal id the
// later steps refer to. Verification state is neither required nor touched.
func (e *RecoveryEngine) RequestPasswordReset(ctx context.Context, rawEmail string) (string, error) {
	email := utils.NormalizeEmail(rawEmail)
	if email == "" {
		return "", e.finish(ctx, opRequestReset, nil, email, ErrInvalidInput)
	}
	if err := e.checkDomain(ctx, email); err != nil {
		return "", e.finish(ctx, opRequestReset, nil, email, err)
	}

	principal, err := e.principals.FindByEmail(ctx, email)
	if err != nil {
		return "", e.fault(opRequestReset, err)
	}
	if principal == nil {
		return "", e.finish(ctx, opRequestReset, nil, email, ErrPrincipalNotFound)
	}

	code, expiresAt, err := e.dispatch(ctx, email, entity.PurposeReset)
	if err != nil {
		return "", e.finishOrFault(ctx, opRequestReset, principal, email, err)
	}
	if err := e.persistCode(ctx, principal, entity.PurposeReset, code, expiresAt); err != nil {
		return "", e.finishOrFault(ctx, opRequestReset, principal, email, err)
	}
	return principal.ID, e.finish(ctx, opRequestReset, principal, email, nil)
}

// VerifyResetCode checks a reset code without consuming it.
func (e *RecoveryEngine) VerifyResetCode(ctx context.Context, principalID string, code string) error {
	if strings.TrimSpace(principalID) == "" {
		return e.finish(ctx, opVerifyReset, nil, "", ErrInvalidInput)
	}
	principal, err := e.principals.FindByID(ctx, principalID)
	if err != nil {
		return e.fault(opVerifyReset, err)
	}
	if principal == nil {
		return e.finish(ctx, opVerifyReset, nil, "", ErrPrincipalNotFound)
	}
	if err := e.checkCode(principal, entity.PurposeReset, code); err != nil {
		return e.finish(ctx, opVerifyReset, principal, principal.Email, resetCodeError(err))
	}
	return e.finish(ctx, opVerifyReset, principal, principal.Email, nil)
}

// CompletePasswordReset replaces the credential and consumes the reset code.
// Confirmation and strength are checked before the code so that a rejected
// password never burns it.
func (e *RecoveryEngine) CompletePasswordReset(ctx context.Context, input CompleteResetInput) error {
	if strings.TrimSpace(input.PrincipalID) == "" {
		return e.finish(ctx, opCompleteReset, nil, "", ErrInvalidInput)
	}
	if input.NewPassword != input.ConfirmPassword {
		return e.finish(ctx, opCompleteReset, nil, "", ErrPasswordMismatch)
	}
	if err := CheckPasswordStrength(input.NewPassword); err != nil {
		return e.finish(ctx, opCompleteReset, nil, "", err)
	}

	var hash string
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		principal, err := e.principals.FindByID(ctx, input.PrincipalID)
		if err != nil {
			return e.fault(opCompleteReset, err)
		}
		if principal == nil {
			return e.finish(ctx, opCompleteReset, nil, "", ErrPrincipalNotFound)
		}
		if err := e.checkCode(principal, entity.PurposeReset, input.Code); err != nil {
			return e.finish(ctx, opCompleteReset, principal, principal.Email, resetCodeError(err))
		}
		if hash == "" {
			if hash, err = e.hasher.Hash(input.NewPassword); err != nil {
				return e.fault(opCompleteReset, err)
			}
		}

		principal.PasswordHash = hash
		principal.ClearCode(entity.PurposeReset)
		err = e.principals.Save(ctx, principal)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return e.fault(opCompleteReset, err)
		}
		return e.finish(ctx, opCompleteReset, principal, principal.Email, nil)
	}
	return e.fault(opCompleteReset, repository.ErrVersionConflict)
}

func (e *RecoveryEngine) checkCode(p *entity.Principal, purpose entity.CodePurpose, submitted string) error {
	stored, expiresAt, ok := p.OutstandingCode(purpose)
	if !ok {
		return ErrNoCodeOutstanding
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		return ErrCodeMismatch
	}
	if !e.now().Before(expiresAt) {
		return ErrCodeExpired
	}
	return nil
}

// resetCodeError folds a missing reset code into the generic code error; the
// reset flow never tells clients more than "invalid or expired".
func resetCodeError(err error) error {
	if errors.Is(err, ErrNoCodeOutstanding) {
		return fmt.Errorf("%w: %w", ErrInvalidOrExpiredCode, err)
	}
	return err
}

func (e *RecoveryEngine) checkDomain(ctx context.Context, email string) error {
	if e.domains == nil {
		return ErrDomainUnreachable
	}
	lookupCtx, cancel := context.WithTimeout(ctx, e.lookupTimeout())
	defer cancel()
	if !e.domains.IsDomainReachable(lookupCtx, email) {
		return ErrDomainUnreachable
	}
	return nil
}

// dispatch generates a code and mails it. The returned expiry is computed
// before the send so delivery latency eats into the window, never extends it.
func (e *RecoveryEngine) dispatch(ctx context.Context, email string, purpose entity.CodePurpose) (string, time.Time, error) {
	key := e.cooldownKey(purpose, email)
	if e.cooldown != nil {
		ok, err := e.cooldown.Reserve(ctx, key)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("reserve cooldown: %w", err)
		}
		if !ok {
			return "", time.Time{}, ErrResendTooSoon
		}
	}

	code, err := e.generateCode()
	if err != nil {
		e.releaseCooldown(ctx, key)
		return "", time.Time{}, fmt.Errorf("generate code: %w", err)
	}
	expiresAt := e.now().Add(e.codeTTL())

	if e.mailer == nil {
		e.releaseCooldown(ctx, key)
		return "", time.Time{}, fmt.Errorf("%w: mail sender not configured", ErrMailDispatchFailed)
	}
	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout())
	defer cancel()
	if err := e.mailer.SendCode(sendCtx, email, code, purpose); err != nil {
		e.releaseCooldown(ctx, key)
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrMailDispatchFailed, err)
	}
	return code, expiresAt, nil
}

// persistCode stores a dispatched code. On a concurrent write it re-applies
// the code to the fresh record, so the last dispatched code wins.
func (e *RecoveryEngine) persistCode(ctx context.Context, p *entity.Principal, purpose entity.CodePurpose, code string, expiresAt time.Time) error {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		p.IssueCode(purpose, code, expiresAt)
		err := e.principals.Save(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		fresh, err := e.principals.FindByID(ctx, p.ID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return ErrPrincipalNotFound
		}
		if purpose == entity.PurposeVerification && fresh.IsVerified {
			return ErrAlreadyVerified
		}
		*p = *fresh
	}
	return repository.ErrVersionConflict
}

func (e *RecoveryEngine) releaseCooldown(ctx context.Context, key string) {
	if e.cooldown == nil {
		return
	}
	if err := e.cooldown.Release(ctx, key); err != nil {
		e.logger.WithError(err).Warn("release cooldown")
	}
}

func (e *RecoveryEngine) cooldownKey(purpose entity.CodePurpose, email string) string {
	return string(e.role) + ":" + string(purpose) + ":" + email
}

// finishOrFault routes known engine errors to finish and everything else
// (storage, cooldown backend) to fault.
func (e *RecoveryEngine) finishOrFault(ctx context.Context, op string, p *entity.Principal, email string, err error) error {
	if reason(err) == "error" {
		return e.fault(op, err)
	}
	return e.finish(ctx, op, p, email, err)
}

// finish records the outcome of op and returns err unchanged.
func (e *RecoveryEngine) finish(ctx context.Context, op string, p *entity.Principal, email string, err error) error {
	outcome := reason(err)
	e.metrics.observeRecovery(string(e.role), op, outcome)

	fields := logrus.Fields{"op": op, "reason": outcome}
	if domain := utils.EmailDomain(email); domain != "" {
		fields["email_domain"] = domain
	}
	var principalID *string
	if p != nil {
		fields["principal_id"] = p.ID
		id := p.ID
		principalID = &id
	}
	entry := e.logger.WithFields(fields)
	if err != nil {
		entry.Warn("recovery rejected")
	} else {
		entry.Info("recovery succeeded")
	}

	action, ok := securityAction(op, err)
	if !ok {
		return err
	}
	metadata := datatypes.JSONMap{"op": op, "purpose": string(opPurpose[op])}
	if err != nil {
		metadata["reason"] = outcome
	}
	e.logSecurity(ctx, principalID, action, metadata)
	return err
}

func (e *RecoveryEngine) fault(op string, err error) error {
	e.metrics.observeRecovery(string(e.role), op, "error")
	e.logger.WithFields(logrus.Fields{"op": op}).WithError(err).Error("recovery failed")
	return fmt.Errorf("%s: %w", strings.ReplaceAll(op, "_", " "), err)
}

func securityAction(op string, err error) (entity.SecurityAction, bool) {
	switch {
	case err == nil && op == opRedeemVerification:
		return entity.EmailVerified, true
	case err == nil && op == opCompleteReset:
		return entity.Reset, true
	case err == nil && op == opVerifyReset:
		return "", false
	case err == nil:
		return entity.CodeIssued, true
	case errors.Is(err, ErrDomainUnreachable):
		return entity.DomainUnreachable, true
	case errors.Is(err, ErrMailDispatchFailed):
		return entity.MailDispatchFailed, true
	case errors.Is(err, ErrInvalidOrExpiredCode), errors.Is(err, ErrNoCodeOutstanding):
		return entity.CodeRejected, true
	}
	return "", false
}

func (e *RecoveryEngine) logSecurity(ctx context.Context, principalID *string, action entity.SecurityAction, metadata datatypes.JSONMap) {
	if e.securityLogs == nil {
		return
	}
	log := &entity.SecurityLog{
		ID:            uuid.NewString(),
		PrincipalID:   principalID,
		PrincipalRole: e.role,
		Action:        action,
		Metadata:      metadata,
		CreatedAt:     e.now().UTC(),
	}
	if err := e.securityLogs.Log(ctx, log); err != nil {
		e.logger.WithError(err).Warn("write security log")
	}
}

func (e *RecoveryEngine) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock.Now()
}

func (e *RecoveryEngine) codeTTL() time.Duration {
	if e.config.CodeTTL > 0 {
		return e.config.CodeTTL
	}
	return 10 * time.Minute
}

func (e *RecoveryEngine) lookupTimeout() time.Duration {
	if e.config.LookupTimeout > 0 {
		return e.config.LookupTimeout
	}
	return 5 * time.Second
}

func (e *RecoveryEngine) sendTimeout() time.Duration {
	if e.config.SendTimeout > 0 {
		return e.config.SendTimeout
	}
	return 20 * time.Second
}
