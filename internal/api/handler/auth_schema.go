package handler

import (
	"time"

	"github.com/arkind/identity-api/internal/core/domain"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// userSummary is the caller-facing shape of an account inside auth responses.
type userSummary struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

type accountResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

type loginResponse struct {
	User        userSummary `json:"user"`
	AccessToken string      `json:"accessToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// errorResponse mirrors the envelope the API error handler renders; it exists
// here for the swagger annotations.
type errorResponse struct {
	Error string `json:"error"`
}

func toUserSummary(a *domain.Account) userSummary {
	return userSummary{ID: a.ID, Name: a.Name, Role: a.Role}
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}
