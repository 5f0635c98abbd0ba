package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/storage"
)

var (
	// ErrInvalidEmail 无效的邮箱格式
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrEmailExists 邮箱已存在
	ErrEmailExists = errors.New("email already exists")
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive 用户已被禁用
	ErrUserInactive = errors.New("user is inactive")
	// ErrUserNotApproved 用户尚未通过管理员审核
	ErrUserNotApproved = errors.New("user is not approved")
	// ErrRegistrationClosed 系统当前未开放注册
	ErrRegistrationClosed = errors.New("registration is closed")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Service 认证服务
type Service struct {
	store storage.Store
	jwt   *JWTManager
	log   *zap.Logger
}

// NewService 创建认证服务
func NewService(store storage.Store, jwt *JWTManager, log *zap.Logger) *Service {
	return &Service{
		store: store,
		jwt:   jwt,
		log:   log,
	}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Email    string
	Password string
}

// LoginInput 登录输入
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// AuthResponse 认证响应
type AuthResponse struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresIn int64        `json:"expiresIn"`
}

// Register 用户注册
//
// 注册开关关闭时拒绝；新用户继承注册时刻的系统默认配额，
// 之后修改系统默认值不影响已注册用户。
func (s *Service) Register(input RegisterInput) (*domain.User, error) {
	settings, err := s.store.GetSystemSettings()
	if err != nil {
		return nil, fmt.Errorf("load system settings: %w", err)
	}
	if !settings.RegistrationOpen {
		return nil, ErrRegistrationClosed
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	if existing, err := s.store.GetUserByEmail(email); err == nil && existing != nil {
		return nil, ErrEmailExists
	}

	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      false,
		IsApproved:   false, // 注册后等待管理员审核
		IsActive:     true,
		MaxInboxes:   settings.MaxInboxesPerUser,
		MaxEmails:    settings.MaxEmailsPerInbox,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(user); err != nil {
		if err == storage.ErrEmailExists {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("email", email))
	return user, nil
}

// Login 用户登录
//
// 成功与失败都记录一条登录事件；事件落库失败只写日志，
// 不影响登录流程本身。
func (s *Service) Login(input LoginInput) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		s.recordLogin(user.ID, false, input)
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.recordLogin(user.ID, false, input)
		return nil, ErrUserInactive
	}
	if !user.IsApproved && !user.IsAdmin {
		s.recordLogin(user.ID, false, input)
		return nil, ErrUserNotApproved
	}

	token, expiresIn, err := s.jwt.GenerateToken(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := s.store.UpdateUser(user); err != nil {
		s.log.Warn("failed to update last login time", zap.String("user_id", user.ID), zap.Error(err))
	}
	s.recordLogin(user.ID, true, input)

	return &AuthResponse{
		User:      user,
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: expiresIn,
	}, nil
}

// GetUserByID 根据 ID 获取用户
func (s *Service) GetUserByID(userID string) (*domain.User, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword 修改密码
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}

	if !CheckPassword(oldPassword, user.PasswordHash) {
		return errors.New("invalid old password")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = newHash
	return s.store.UpdateUser(user)
}

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func (s *Service) recordLogin(userID string, success bool, input LoginInput) {
	event := &domain.LoginEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Success:   success,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.RecordLoginEvent(event); err != nil {
		s.log.Warn("failed to record login event", zap.String("user_id", userID), zap.Error(err))
	}
}
