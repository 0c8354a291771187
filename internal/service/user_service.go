package service

import (
	"context"

	"renthub/internal/apperr"
	"renthub/internal/models"
	"renthub/internal/store"
	"renthub/internal/util"

	"go.uber.org/zap"
)

var validRoles = map[string]bool{
	models.RoleAdmin:  true,
	models.RoleSeller: true,
	models.RoleBuyer:  true,
}

// UserService owns account records. Authentication is out of scope; identity
// arrives resolved from upstream.
type UserService struct {
	store  *store.Store
	logger *zap.Logger
}

func NewUserService(s *store.Store) *UserService {
	return &UserService{store: s, logger: util.GetLogger()}
}

// CreateUserInput is the account registration request.
type CreateUserInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Role    string `json:"role" binding:"required"`
}

// CreateUser registers an account with a role-prefixed sequential id.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.CreateUser")
	defer span.End()

	if !validRoles[input.Role] {
		return nil, apperr.Newf(apperr.KindValidation, "invalid role: %s", input.Role)
	}

	if _, err := s.store.GetUserByEmail(ctx, input.Email); err == nil {
		return nil, apperr.Newf(apperr.KindConflict, "email already registered: %s", input.Email)
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	user := &models.User{
		Name:    input.Name,
		Email:   input.Email,
		Phone:   input.Phone,
		Address: input.Address,
		Role:    input.Role,
		Status:  models.UserStatusActive,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		zap.String("user_id", user.UserID),
		zap.String("role", user.Role))
	return user, nil
}

// GetUser retrieves a user by its public id.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.GetUser")
	defer span.End()
	return s.store.GetUserByUserID(ctx, userID)
}

// GetUserByEmail retrieves a user by email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.GetUserByEmail")
	defer span.End()
	return s.store.GetUserByEmail(ctx, email)
}

// SetUserStatus activates or blocks an account.
func (s *UserService) SetUserStatus(ctx context.Context, userID, status string) error {
	ctx, span := util.StartSpan(ctx, "UserService.SetUserStatus")
	defer span.End()

	if status != models.UserStatusActive && status != models.UserStatusBlocked {
		return apperr.Newf(apperr.KindValidation, "invalid user status: %s", status)
	}
	return s.store.UpdateUserStatus(ctx, userID, status)
}
