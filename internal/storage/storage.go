package storage

import (
	"errors"
	"time"

	"dropmail/backend/internal/domain"
)

var (
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists 注册邮箱已存在错误
	ErrEmailExists = errors.New("email already registered")
	// ErrInboxNotFound 邮箱未找到错误
	ErrInboxNotFound = errors.New("inbox not found")
	// ErrAddressTaken 邮箱地址已被占用错误
	ErrAddressTaken = errors.New("address already exists")
	// ErrMessageNotFound 邮件未找到错误
	ErrMessageNotFound = errors.New("email not found")
	// ErrAttachmentNotFound 附件未找到错误
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	ListUsers() ([]domain.User, error)
	UpdateUser(user *domain.User) error
	DeleteUser(id string) error
	RecordLoginEvent(event *domain.LoginEvent) error
	ListLoginEvents(userID string, limit int) ([]domain.LoginEvent, error)
}

// InboxRepository 定义邮箱数据存取操作。
type InboxRepository interface {
	SaveInbox(inbox *domain.Inbox) error
	GetInbox(id string) (*domain.Inbox, error)
	GetInboxByAddress(address string) (*domain.Inbox, error)
	ListInboxesByUserID(userID string) ([]domain.Inbox, error)
	ListInboxes() ([]domain.Inbox, error)
	CountInboxesByUserID(userID string) (int64, error)
	DeleteInbox(id string) error // 级联删除其下全部邮件
}

// EmailRepository 定义邮件数据存取操作。
//
// 批量删除方法采用 delete-where-matching 语义：按条件删除并返回数量，
// 与并发投递侧的逐条淘汰互不冲突。
type EmailRepository interface {
	SaveEmail(email *domain.Email) error
	// StoreEmailWithCap 在单个事务内完成容量检查、必要的最旧邮件淘汰与插入。
	// evictOldest 为 false 且邮箱已满时 stored 返回 false（邮件被丢弃）。
	StoreEmailWithCap(email *domain.Email, maxEmails int, evictOldest bool) (stored bool, evicted int64, err error)
	GetEmail(id string) (*domain.Email, error)
	ListEmails(inboxID string) ([]domain.Email, error) // 按接收时间倒序
	CountEmails(inboxID string) (int64, error)
	DeleteEmail(id string) error
	DeleteEmailsBefore(inboxID string, cutoff time.Time) (int64, error)
	// TrimEmailsToLimit 删除超出 limit 的最旧邮件（保留最新的 limit 封）。
	TrimEmailsToLimit(inboxID string, limit int) (int64, error)
	GetAttachment(emailID, attachmentID string) (*domain.Attachment, error)
}

// SettingsRepository 定义系统策略数据存取操作。
type SettingsRepository interface {
	GetSystemSettings() (*domain.SystemSettings, error) // 不存在时返回默认值并落库
	SaveSystemSettings(settings *domain.SystemSettings) error
}

// StatsRepository 定义管理后台统计查询。
type StatsRepository interface {
	GetSystemStatistics() (*domain.SystemStatistics, error)
}

// Store 定义完整的存储接口。
type Store interface {
	UserRepository
	InboxRepository
	EmailRepository
	SettingsRepository
	StatsRepository

	Close() error
	Health() error
}
