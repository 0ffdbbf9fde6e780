package dto

import (
	"time"

	"fitzone/internal/entity"
)

type RegisterRequest struct {
	Username      string  `json:"username" validate:"required,max=64"`
	Email         string  `json:"email" validate:"required,email"`
	Password      string  `json:"password" validate:"required"`
	Gender        string  `json:"gender" validate:"omitempty,max=32"`
	Age           int     `json:"age" validate:"omitempty,gte=0,lte=150"`
	Height        float64 `json:"height" validate:"omitempty,gte=0"`
	Weight        float64 `json:"weight" validate:"omitempty,gte=0"`
	FitnessGoal   string  `json:"fitness_goal" validate:"omitempty,max=128"`
	ActivityLevel string  `json:"activity_level" validate:"omitempty,max=64"`
}

// UpdateProfileRequest is a partial update; omitted fields keep their value.
type UpdateProfileRequest struct {
	Username      *string  `json:"username" validate:"omitempty,min=1,max=64"`
	Gender        *string  `json:"gender" validate:"omitempty,max=32"`
	Age           *int     `json:"age" validate:"omitempty,gte=0,lte=150"`
	Height        *float64 `json:"height" validate:"omitempty,gte=0"`
	Weight        *float64 `json:"weight" validate:"omitempty,gte=0"`
	FitnessGoal   *string  `json:"fitness_goal" validate:"omitempty,max=128"`
	ActivityLevel *string  `json:"activity_level" validate:"omitempty,max=64"`
}

type UpdateAdminProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1,max=64"`
}

type AdminUpdateUserRequest struct {
	Username   *string `json:"username" validate:"omitempty,min=1,max=64"`
	Password   *string `json:"password"`
	IsVerified *bool   `json:"is_verified"`
}

type RegisterResponse struct {
	Message     string `json:"message"`
	PrincipalID string `json:"principal_id"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Message     string            `json:"message,omitempty"`
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int64             `json:"expires_in"`
	Principal   PrincipalResponse `json:"principal"`
}

// NotVerifiedResponse is returned with 403 when a login names an account
// that still has to redeem its verification code.
type NotVerifiedResponse struct {
	Message           string `json:"message"`
	PrincipalID       string `json:"principal_id"`
	NeedsVerification bool   `json:"needs_verification"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ForgotPasswordResponse struct {
	Message     string `json:"message"`
	PrincipalID string `json:"principal_id"`
}

type VerifyResetOTPRequest struct {
	PrincipalID string `json:"principal_id" validate:"required"`
	OTP         string `json:"otp" validate:"required"`
}

type ResetPasswordRequest struct {
	PrincipalID     string `json:"principal_id" validate:"required"`
	OTP             string `json:"otp" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type PrincipalResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	IsVerified    bool      `json:"is_verified"`
	Gender        string    `json:"gender,omitempty"`
	Age           int       `json:"age,omitempty"`
	Height        float64   `json:"height,omitempty"`
	Weight        float64   `json:"weight,omitempty"`
	FitnessGoal   string    `json:"fitness_goal,omitempty"`
	ActivityLevel string    `json:"activity_level,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type PrincipalListResponse struct {
	Items  []PrincipalResponse `json:"items"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

func PrincipalResponseFromEntity(p *entity.Principal, role entity.Role) PrincipalResponse {
	return PrincipalResponse{
		ID:            p.ID,
		Username:      p.Username,
		Email:         p.Email,
		Role:          string(role),
		IsVerified:    p.IsVerified,
		Gender:        p.Profile.Gender,
		Age:           p.Profile.Age,
		Height:        p.Profile.HeightCM,
		Weight:        p.Profile.WeightKG,
		FitnessGoal:   p.Profile.FitnessGoal,
		ActivityLevel: p.Profile.ActivityLevel,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func PrincipalResponsesFromEntities(principals []entity.Principal, role entity.Role) []PrincipalResponse {
	responses := make([]PrincipalResponse, 0, len(principals))
	for i := range principals {
		responses = append(responses, PrincipalResponseFromEntity(&principals[i], role))
	}
	return responses
}
