package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HadichaRaxmat/online-market-api/internal/auth"
	"github.com/HadichaRaxmat/online-market-api/internal/broker"
	"github.com/HadichaRaxmat/online-market-api/internal/mailer"
	"github.com/HadichaRaxmat/online-market-api/internal/models"
	"github.com/HadichaRaxmat/online-market-api/internal/store"
	"github.com/HadichaRaxmat/online-market-api/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserStorage is the persistence surface the user service needs.
type UserStorage interface {
	RunInTx(ctx context.Context, fn func(tx store.Tx) error) error
	CreateUser(ctx context.Context, user *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, email, passwordHash string) error
	CreateVerification(ctx context.Context, v *models.EmailVerification) error
}

// UserService handles registration, verification, authentication, and
// profile management.
type UserService struct {
	storage         UserStorage
	tokens          *auth.TokenManager
	mailer          mailer.Mailer
	publisher       broker.Publisher
	verificationTTL time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

// NewUserService creates a new user service
func NewUserService(
	storage UserStorage,
	tokens *auth.TokenManager,
	m mailer.Mailer,
	publisher broker.Publisher,
	verificationTTL time.Duration,
) *UserService {
	return &UserService{
		storage:         storage,
		tokens:          tokens,
		mailer:          m,
		publisher:       publisher,
		verificationTTL: verificationTTL,
		logger:          util.GetLogger(),
		now:             time.Now,
	}
}

// RegisterRequest carries the registration payload.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register creates an inactive account and dispatches a verification
// code. The account cannot log in until the code is submitted.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Register")
	defer span.End()

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		Balance:      decimal.Zero,
		IsActive:     false,
	}

	if err := s.storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newValidationError("a user with this email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	verification, err := s.createVerification(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	util.UsersRegisteredTotal.Inc()
	s.logger.Info("User registered", zap.Int64("user_id", user.ID))

	event := &models.UserRegisteredEvent{
		BaseEvent: broker.NewBaseEvent(models.EventTypeUserRegistered),
		UserID:    user.ID,
		Email:     user.Email,
	}
	if err := s.publisher.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Error("Failed to publish UserRegistered event", zap.Error(err))
	}

	if err := s.mailer.Send(ctx, mailer.VerificationMessage(user.Email, verification.Code)); err != nil {
		s.logger.Error("Failed to dispatch verification mail",
			zap.Int64("user_id", user.ID), zap.Error(err))
	}

	return user, nil
}

// createVerification inserts a code row, retrying on the rare code
// collision since the code column is unique.
func (s *UserService) createVerification(ctx context.Context, userID int64) (*models.EmailVerification, error) {
	for attempt := 0; attempt < 3; attempt++ {
		code, err := generateCode(6)
		if err != nil {
			return nil, err
		}

		v := &models.EmailVerification{
			UserID:    userID,
			Code:      code,
			ExpiresAt: s.now().Add(s.verificationTTL),
		}
		err = s.storage.CreateVerification(ctx, v)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create verification: %w", err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("failed to create verification: code space exhausted")
}

// VerifyEmail consumes an activation code and switches the account to
// active. The code row is deleted in the same transaction.
func (s *UserService) VerifyEmail(ctx context.Context, code string) error {
	ctx, span := util.StartSpan(ctx, "UserService.VerifyEmail")
	defer span.End()

	return s.storage.RunInTx(ctx, func(tx store.Tx) error {
		v, err := tx.VerificationByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return newValidationError("invalid verification code")
		}
		if err != nil {
			return fmt.Errorf("failed to look up verification: %w", err)
		}

		if v.IsExpired(s.now()) {
			return newValidationError("verification code expired")
		}

		if err := tx.ActivateUser(ctx, v.UserID); err != nil {
			return fmt.Errorf("failed to activate user: %w", err)
		}
		return tx.DeleteVerification(ctx, v.ID)
	})
}

// Login checks credentials and issues a token pair.
func (s *UserService) Login(ctx context.Context, email, password string) (*auth.TokenPair, error) {
	ctx, span := util.StartSpan(ctx, "UserService.Login")
	defer span.End()

	user, err := s.storage.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newValidationError("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, newValidationError("invalid email or password")
	}
	if !user.IsActive {
		return nil, newValidationError("account not verified")
	}

	return s.tokens.IssuePair(user.ID, user.Email)
}

// Refresh rotates a refresh token: the old token is blacklisted and a
// new pair is issued.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(ctx, refreshToken)
	if err != nil {
		return nil, newValidationError("invalid or revoked refresh token")
	}

	user, err := s.storage.UserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newValidationError("invalid or revoked refresh token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return s.tokens.IssuePair(user.ID, user.Email)
}

// Logout blacklists the refresh token for its remaining lifetime.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return newValidationError("invalid or already revoked token")
	}
	return nil
}

// Profile returns the caller's account.
func (s *UserService) Profile(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.storage.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

// UpdateProfileRequest carries optional profile changes; balance is
// never writable here.
type UpdateProfileRequest struct {
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"omitempty,min=8"`
}

// UpdateProfile applies email and password changes.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*models.User, error) {
	user, err := s.storage.UserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	email := user.Email
	if req.Email != "" {
		email = strings.ToLower(req.Email)
	}

	hash := user.PasswordHash
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		hash = string(hashed)
	}

	if err := s.storage.UpdateUser(ctx, userID, email, hash); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newValidationError("a user with this email already exists")
		}
		return nil, err
	}

	user.Email = email
	user.PasswordHash = hash
	return user, nil
}
