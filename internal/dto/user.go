package dto

import "github.com/noah-isme/coursework-api/internal/models"

// CreateUserRequest is the admin payload for creating an account with any role.
type CreateUserRequest struct {
	Username  string          `json:"username" validate:"required,min=3,max=50,username"`
	Password  string          `json:"password" validate:"required,min=6"`
	Email     string          `json:"email" validate:"required,email,max=100"`
	FirstName string          `json:"firstName" validate:"required,max=50,personname"`
	LastName  string          `json:"lastName" validate:"required,max=50,personname"`
	Phone     *string         `json:"phone" validate:"omitempty,phone"`
	Role      models.UserRole `json:"role" validate:"required,oneof=STUDENT PROFESSOR ADMIN"`
}

// RegisterRequest is the self-service sign up payload. Accounts created this way are students.
type RegisterRequest struct {
	Username  string  `json:"username" validate:"required,min=3,max=50,username"`
	Password  string  `json:"password" validate:"required,min=6"`
	Email     string  `json:"email" validate:"required,email,max=100"`
	FirstName string  `json:"firstName" validate:"required,max=50,personname"`
	LastName  string  `json:"lastName" validate:"required,max=50,personname"`
	Phone     *string `json:"phone" validate:"omitempty,phone"`
}

// UpdateUserRequest replaces a user's profile. An empty password keeps the current one.
type UpdateUserRequest struct {
	Username  string          `json:"username" validate:"required,min=3,max=50,username"`
	Password  string          `json:"password" validate:"omitempty,min=6"`
	Email     string          `json:"email" validate:"required,email,max=100"`
	FirstName string          `json:"firstName" validate:"required,max=50,personname"`
	LastName  string          `json:"lastName" validate:"required,max=50,personname"`
	Phone     *string         `json:"phone" validate:"omitempty,phone"`
	Role      models.UserRole `json:"role" validate:"required,oneof=STUDENT PROFESSOR ADMIN"`
}

// CreateUserRequest lifts a registration into a student account request.
func (r RegisterRequest) CreateUserRequest() CreateUserRequest {
	return CreateUserRequest{
		Username:  r.Username,
		Password:  r.Password,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Phone:     r.Phone,
		Role:      models.RoleStudent,
	}
}
