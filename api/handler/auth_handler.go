package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"fitzone/api/middleware"
	"fitzone/internal/dto"
	"fitzone/internal/entity"
	"fitzone/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const genericErrorMessage = "something went wrong, please try again later"

// AuthHandler serves the account routes of one principal kind. The end-user
// and admin groups each get their own instance.
type AuthHandler struct {
	Service  *service.AuthService
	Validate *validator.Validate
	Logger   logrus.FieldLogger
}

func NewAuthHandler(svc *service.AuthService, validate *validator.Validate, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{Service: svc, Validate: validate, Logger: logger}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req dto.RegisterRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	input := service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}
	if h.Service.Role() == entity.RoleUser {
		input.Profile = entity.Profile{
			Gender:        req.Gender,
			Age:           req.Age,
			HeightCM:      req.Height,
			WeightKG:      req.Weight,
			FitnessGoal:   req.FitnessGoal,
			ActivityLevel: req.ActivityLevel,
		}
	}
	principal, err := h.Service.Register(c.Request().Context(), input)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.RegisterResponse{
		Message:     "registered, a verification code was sent to your email",
		PrincipalID: principal.ID,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Service.Login(c.Request().Context(), service.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: stringPtr(c.RealIP()),
	})
	if err != nil {
		var notVerified *service.NotVerifiedError
		if errors.As(err, &notVerified) {
			return c.JSON(http.StatusForbidden, dto.NotVerifiedResponse{
				Message:           err.Error(),
				PrincipalID:       notVerified.PrincipalID,
				NeedsVerification: true,
			})
		}
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, h.mapLoginResponse(result, "login successful"))
}

func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req dto.VerifyOTPRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	result, err := h.Service.VerifyAndLogin(c.Request().Context(), req.Email, req.OTP)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, h.mapLoginResponse(result, "email verified"))
}

func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req dto.EmailRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.RequestVerificationCode(c.Request().Context(), req.Email); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "verification code sent"})
}

func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req dto.EmailRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.ResendVerificationCode(c.Request().Context(), req.Email); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "verification code resent"})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req dto.EmailRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	principalID, err := h.Service.RequestPasswordReset(c.Request().Context(), req.Email)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ForgotPasswordResponse{
		Message:     "password reset code sent",
		PrincipalID: principalID,
	})
}

func (h *AuthHandler) VerifyResetOTP(c echo.Context) error {
	var req dto.VerifyResetOTPRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.VerifyResetCode(c.Request().Context(), req.PrincipalID, req.OTP); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "code verified"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req dto.ResetPasswordRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	err := h.Service.ResetPassword(c.Request().Context(), service.CompleteResetInput{
		PrincipalID:     req.PrincipalID,
		Code:            req.OTP,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "password reset successful"})
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	principalID, ok := middleware.PrincipalIDFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req dto.ChangePasswordRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	err := h.Service.ChangePassword(c.Request().Context(), principalID, service.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
		IPAddress:       stringPtr(c.RealIP()),
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "password changed"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	principalID, ok := middleware.PrincipalIDFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	principal, err := h.Service.GetPrincipal(c.Request().Context(), principalID)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.PrincipalResponseFromEntity(principal, h.Service.Role()))
}

// GetByID returns the caller's own record addressed by id.
func (h *AuthHandler) GetByID(c echo.Context) error {
	principalID, err := requireOwner(c)
	if err != nil {
		return err
	}
	principal, err := h.Service.GetPrincipal(c.Request().Context(), principalID)
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.PrincipalResponseFromEntity(principal, h.Service.Role()))
}

// UpdateByID lets an end-user change their username and fitness profile.
func (h *AuthHandler) UpdateByID(c echo.Context) error {
	principalID, err := requireOwner(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	principal, err := h.Service.UpdatePrincipal(c.Request().Context(), principalID, service.PrincipalUpdate{
		Username:      req.Username,
		Gender:        req.Gender,
		Age:           req.Age,
		HeightCM:      req.Height,
		WeightKG:      req.Weight,
		FitnessGoal:   req.FitnessGoal,
		ActivityLevel: req.ActivityLevel,
		IPAddress:     stringPtr(c.RealIP()),
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.PrincipalResponseFromEntity(principal, h.Service.Role()))
}

func (h *AuthHandler) DeleteByID(c echo.Context) error {
	principalID, err := requireOwner(c)
	if err != nil {
		return err
	}
	if err := h.Service.DeletePrincipal(c.Request().Context(), principalID, stringPtr(c.RealIP())); err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "account deleted"})
}

// UpdateProfile changes the authenticated admin's username. Passwords go
// through change-password, which checks the current one.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	principalID, ok := middleware.PrincipalIDFromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	var req dto.UpdateAdminProfileRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	principal, err := h.Service.UpdatePrincipal(c.Request().Context(), principalID, service.PrincipalUpdate{
		Username:  req.Username,
		IPAddress: stringPtr(c.RealIP()),
	})
	if err != nil {
		return h.writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.PrincipalResponseFromEntity(principal, h.Service.Role()))
}

func (h *AuthHandler) validate(value any) error {
	if h.Validate == nil {
		return nil
	}
	if err := h.Validate.Struct(value); err != nil {
		return fmt.Errorf("%w: %s", service.ErrInvalidInput, err.Error())
	}
	return nil
}

func (h *AuthHandler) mapLoginResponse(result *service.LoginResult, message string) dto.LoginResponse {
	return dto.LoginResponse{
		Message:     message,
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   result.ExpiresIn,
		Principal:   dto.PrincipalResponseFromEntity(result.Principal, h.Service.Role()),
	}
}

func (h *AuthHandler) writeServiceError(c echo.Context, err error) error {
	return writeServiceError(c, h.Logger, err)
}

// requireOwner returns the :id path parameter when it names the caller.
func requireOwner(c echo.Context) (string, error) {
	principalID, ok := middleware.PrincipalIDFromContext(c)
	if !ok {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if c.Param("id") != principalID {
		return "", echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return principalID, nil
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return errors.New("invalid request body")
	}
	return nil
}

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, dto.MessageResponse{Message: err.Error()})
}

// writeServiceError maps service errors to a status and a client message.
// Code check failures all read as the generic invalid-or-expired message,
// and unknown errors never leak their text.
func writeServiceError(c echo.Context, logger logrus.FieldLogger, err error) error {
	status := http.StatusInternalServerError
	var message string
	switch {
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		status, message = http.StatusBadRequest, service.ErrInvalidOrExpiredCode.Error()
	case errors.Is(err, service.ErrMailDispatchFailed):
		status, message = http.StatusBadRequest, service.ErrMailDispatchFailed.Error()
	case errors.Is(err, service.ErrInvalidInput):
		status, message = http.StatusBadRequest, service.ErrInvalidInput.Error()
	case errors.Is(err, service.ErrWeakCredential),
		errors.Is(err, service.ErrPasswordMismatch),
		errors.Is(err, service.ErrNoCodeOutstanding),
		errors.Is(err, service.ErrDomainUnreachable),
		errors.Is(err, service.ErrAlreadyVerified):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailNotVerified):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrPrincipalNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEmailAlreadyRegistered),
		errors.Is(err, service.ErrPendingVerification),
		errors.Is(err, service.ErrUsernameTaken):
		status = http.StatusConflict
	case errors.Is(err, service.ErrResendTooSoon):
		status = http.StatusTooManyRequests
	}
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.WithError(err).WithField("route", c.Path()).Error("request failed")
		}
		message = genericErrorMessage
	}
	if message == "" {
		message = err.Error()
	}
	return c.JSON(status, dto.MessageResponse{Message: message})
}

func parseLimitOffset(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
