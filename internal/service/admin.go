package service

import (
	"errors"
	"time"

	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/storage"
)

// ErrCannotModifySelf 管理员不能禁用或删除自己
var ErrCannotModifySelf = errors.New("cannot modify own account")

// AdminService 封装管理后台操作。
type AdminService struct {
	store storage.Store
}

// NewAdminService 创建管理后台服务。
func NewAdminService(store storage.Store) *AdminService {
	return &AdminService{store: store}
}

// ListUsers 返回全部用户。
func (s *AdminService) ListUsers() ([]domain.User, error) {
	return s.store.ListUsers()
}

// GetUser 返回单个用户。
func (s *AdminService) GetUser(userID string) (*domain.User, error) {
	return s.store.GetUserByID(userID)
}

// ApproveUser 审核通过用户。
func (s *AdminService) ApproveUser(userID string) (*domain.User, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	user.IsApproved = true
	user.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateUserInput 管理员可修改的用户字段，nil 表示不变。
type UpdateUserInput struct {
	IsActive       *bool
	IsApproved     *bool
	IsAdmin        *bool
	MaxInboxes     *int
	MaxEmails      *int
	RetentionHours *int // 指向 0 表示清除用户级覆盖，回退系统默认
}

// UpdateUser 修改用户状态与配额。
func (s *AdminService) UpdateUser(adminID, userID string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	// 管理员不能降级或禁用自己
	if adminID == userID && (input.IsActive != nil || input.IsAdmin != nil) {
		return nil, ErrCannotModifySelf
	}

	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}
	if input.IsApproved != nil {
		user.IsApproved = *input.IsApproved
	}
	if input.IsAdmin != nil {
		user.IsAdmin = *input.IsAdmin
	}
	if input.MaxInboxes != nil {
		user.MaxInboxes = *input.MaxInboxes
	}
	if input.MaxEmails != nil {
		user.MaxEmails = *input.MaxEmails
	}
	if input.RetentionHours != nil {
		if *input.RetentionHours <= 0 {
			user.RetentionHours = nil
		} else {
			user.RetentionHours = input.RetentionHours
		}
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser 删除用户及其名下全部邮箱与邮件。
func (s *AdminService) DeleteUser(adminID, userID string) error {
	if adminID == userID {
		return ErrCannotModifySelf
	}

	inboxes, err := s.store.ListInboxesByUserID(userID)
	if err != nil {
		return err
	}
	for i := range inboxes {
		if err := s.store.DeleteInbox(inboxes[i].ID); err != nil {
			return err
		}
	}
	return s.store.DeleteUser(userID)
}

// ListInboxes 返回全部邮箱。
func (s *AdminService) ListInboxes() ([]domain.Inbox, error) {
	return s.store.ListInboxes()
}

// DeleteInbox 删除任意用户的邮箱及其下全部邮件。
func (s *AdminService) DeleteInbox(inboxID string) error {
	return s.store.DeleteInbox(inboxID)
}

// GetSettings 返回系统策略。
func (s *AdminService) GetSettings() (*domain.SystemSettings, error) {
	return s.store.GetSystemSettings()
}

// UpdateSettingsInput 可修改的系统策略字段，nil 表示不变。
type UpdateSettingsInput struct {
	LoginRequired         *bool
	RegistrationOpen      *bool
	DefaultRetentionHours *int
	MaxInboxesPerUser     *int
	MaxEmailsPerInbox     *int
	DeleteOldOnLimit      *bool
}

// UpdateSettings 修改系统策略，立即对后续投递和清理生效。
func (s *AdminService) UpdateSettings(input UpdateSettingsInput) (*domain.SystemSettings, error) {
	settings, err := s.store.GetSystemSettings()
	if err != nil {
		return nil, err
	}

	if input.LoginRequired != nil {
		settings.LoginRequired = *input.LoginRequired
	}
	if input.RegistrationOpen != nil {
		settings.RegistrationOpen = *input.RegistrationOpen
	}
	if input.DefaultRetentionHours != nil && *input.DefaultRetentionHours > 0 {
		settings.DefaultRetentionHours = *input.DefaultRetentionHours
	}
	if input.MaxInboxesPerUser != nil && *input.MaxInboxesPerUser > 0 {
		settings.MaxInboxesPerUser = *input.MaxInboxesPerUser
	}
	if input.MaxEmailsPerInbox != nil && *input.MaxEmailsPerInbox > 0 {
		settings.MaxEmailsPerInbox = *input.MaxEmailsPerInbox
	}
	if input.DeleteOldOnLimit != nil {
		settings.DeleteOldOnLimit = *input.DeleteOldOnLimit
	}
	settings.UpdatedAt = time.Now().UTC()

	if err := s.store.SaveSystemSettings(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// GetStatistics 返回系统统计信息。
func (s *AdminService) GetStatistics() (*domain.SystemStatistics, error) {
	return s.store.GetSystemStatistics()
}

// ListLoginEvents 返回用户最近的登录记录。
func (s *AdminService) ListLoginEvents(userID string, limit int) ([]domain.LoginEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListLoginEvents(userID, limit)
}
