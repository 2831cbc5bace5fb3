package auth

// login request payload. ClientIP is filled in by the handler, not the body;
// it only feeds the auth failure log.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	ClientIP string `json:"-"`
}

// registration request payload; the company fields feed onboarding template
// targeting
type RegisterRequest struct {
	FirstName   string `json:"first_name" validate:"required,min=2,max=100"`
	LastName    string `json:"last_name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	Company     string `json:"company,omitempty" validate:"omitempty,max=255"`
	Industry    string `json:"industry,omitempty" validate:"omitempty,max=100"`
	CompanySize string `json:"company_size,omitempty" validate:"omitempty,max=50"`
	JobRole     string `json:"job_role,omitempty" validate:"omitempty,max=100"`
	SessionID   string `json:"session_id,omitempty"` // ties the signup to a funnel session
}

// represents refresh token request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// represents change password request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// represents logout request
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}
