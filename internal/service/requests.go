package service

// RegisterRequest creates an account
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,strongpassword"`
}

type RegisterResult struct {
	UserID string `json:"userId"`
}

// LoginRequest is the first login step
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// PendingMFA means a code was emailed and the second step can proceed
type PendingMFA struct {
	UserID string `json:"userId"`
}

// VerifyMFARequest is the second login step
type VerifyMFARequest struct {
	UserID string `json:"userId" validate:"required"`
	Code   string `json:"mfaCode" validate:"required"`
}

type LoginResult struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type UpdatePasswordRequest struct {
	UserID          string `json:"-" validate:"required"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}
