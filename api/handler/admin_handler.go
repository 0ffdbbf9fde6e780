package handler

import (
	"fmt"
	"net/http"

	"fitzone/internal/dto"
	"fitzone/internal/entity"
	"fitzone/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves admin-only views over end-user accounts.
type AdminHandler struct {
	Users    *service.AuthService
	Validate *validator.Validate
	Logger   logrus.FieldLogger
}

func NewAdminHandler(users *service.AuthService, validate *validator.Validate, logger logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{Users: users, Validate: validate, Logger: logger}
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, offset := parseLimitOffset(c)
	users, limit, offset, err := h.Users.ListPrincipals(c.Request().Context(), limit, offset)
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.PrincipalListResponse{
		Items:  dto.PrincipalResponsesFromEntities(users, entity.RoleUser),
		Limit:  limit,
		Offset: offset,
	})
}

// UpdateUser lets an admin rename an end-user, set a new password or
// change the verified flag.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	var req dto.AdminUpdateUserRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			return writeServiceError(c, h.Logger, fmt.Errorf("%w: %s", service.ErrInvalidInput, err.Error()))
		}
	}
	user, err := h.Users.UpdatePrincipal(c.Request().Context(), c.Param("id"), service.PrincipalUpdate{
		Username:   req.Username,
		Password:   req.Password,
		IsVerified: req.IsVerified,
		IPAddress:  stringPtr(c.RealIP()),
	})
	if err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.PrincipalResponseFromEntity(user, entity.RoleUser))
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	if err := h.Users.DeletePrincipal(c.Request().Context(), c.Param("id"), stringPtr(c.RealIP())); err != nil {
		return writeServiceError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "user deleted"})
}
