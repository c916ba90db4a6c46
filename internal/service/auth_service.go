package service

import (
	"context"

	"talentlink/internal/domain"
	"talentlink/internal/dto"
)

type AuthService interface {
	Register(ctx context.Context, r dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, r dto.LoginRequest) (*dto.AuthResponse, error)
	// Authenticate resolves a bearer session token to its user.
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	RequestPasswordReset(ctx context.Context, r dto.ForgotPasswordRequest) (*dto.ForgotPasswordResponse, error)
	ResetPassword(ctx context.Context, r dto.ResetPasswordRequest) (*dto.ResetPasswordResponse, error)
}
