package auth

import (
	"context"
	"log"
	"time"

	"activation-server/internal/database"
)

// Service handles authentication for admin and reseller accounts
type Service struct {
	repo            *database.Repository
	jwtManager      *JWTManager
	passwordManager *PasswordManager
	config          Config
}

// NewService creates a new authentication service
func NewService(repo *database.Repository, passwordManager *PasswordManager, config Config) *Service {
	if config.JWTSecret == "" {
		log.Fatal("JWT secret is required")
	}

	if config.AccessTokenDuration == 0 {
		config.AccessTokenDuration = 12 * time.Hour
	}

	return &Service{
		repo:            repo,
		jwtManager:      NewJWTManager(config.JWTSecret, config.AccessTokenDuration),
		passwordManager: passwordManager,
		config:          config,
	}
}

// GetJWTManager returns the JWT manager for use in middleware
func (s *Service) GetJWTManager() *JWTManager {
	return s.jwtManager
}

// LoginAdmin authenticates an admin account and issues an access token
func (s *Service) LoginAdmin(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	admin, err := s.repo.GetAdminByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if admin == nil || !s.passwordManager.Verify(req.Password, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(UserClaims{
		UserID: admin.ID,
		Email:  admin.Email,
		Name:   admin.Name,
		Role:   RoleAdmin,
	})
}

// LoginReseller authenticates a reseller account and issues an access token
func (s *Service) LoginReseller(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	reseller, err := s.repo.GetResellerByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if reseller == nil || !s.passwordManager.Verify(req.Password, reseller.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(UserClaims{
		UserID: reseller.ID,
		Email:  reseller.Email,
		Name:   reseller.Name,
		Role:   RoleReseller,
	})
}

func (s *Service) issueToken(claims UserClaims) (*LoginResponse, error) {
	token, err := s.jwtManager.GenerateAccessToken(claims)
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		ID:          claims.UserID,
		Email:       claims.Email,
		Name:        claims.Name,
		Role:        claims.Role,
		AccessToken: token,
		ExpiresIn:   s.jwtManager.GetAccessTokenDuration(),
		TokenType:   "Bearer",
	}, nil
}
