package postgres

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/storage"
)

// Store 关系型数据库存储实现（PostgreSQL / MySQL）
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// attachmentRecord 附件的持久化形态
//
// 内容以 base64 文本列存储，编码/解码只发生在本存储层，
// 领域模型始终携带原始字节。
type attachmentRecord struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	EmailID     string `gorm:"type:varchar(36);index;not null"`
	Position    int    `gorm:"not null"` // 接收顺序
	Filename    string `gorm:"type:varchar(255)"`
	ContentType string `gorm:"type:varchar(100)"`
	Size        int64
	Content     string `gorm:"type:text"` // base64
}

func (attachmentRecord) TableName() string { return "attachments" }

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewStore 根据数据库类型创建存储实例
//
// PostgreSQL 通过 pgx 的 database/sql 驱动连接，MySQL 通过 go-sql-driver。
func NewStore(dbType, dsn string, pool PoolConfig) (*Store, error) {
	var (
		sqlDB     *sql.DB
		dialector gorm.Dialector
		err       error
	)

	switch dbType {
	case "postgres":
		sqlDB, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres connection: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	case "mysql":
		sqlDB, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql connection: %w", err)
		}
		dialector = mysql.New(mysql.Config{Conn: sqlDB})
	default:
		return nil, fmt.Errorf("unsupported database type: %q", dbType)
	}

	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	store := &Store{db: db, sqlDB: sqlDB}
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

// Migrate 自动迁移数据库表结构
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.LoginEvent{},
		&domain.Inbox{},
		&domain.Email{},
		&attachmentRecord{},
		&domain.SystemSettings{},
	)
}

// ========== User Repository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(user *domain.User) error {
	var count int64
	if err := s.db.Model(&domain.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrEmailExists
	}
	return s.db.Create(user).Error
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail 根据注册邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListUsers 返回全部用户（按创建时间倒序）
func (s *Store) ListUsers() ([]domain.User, error) {
	var users []domain.User
	err := s.db.Order("created_at DESC").Find(&users).Error
	return users, err
}

// UpdateUser 更新用户
func (s *Store) UpdateUser(user *domain.User) error {
	result := s.db.Save(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// DeleteUser 删除用户及其全部邮箱和邮件
func (s *Store) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var inboxIDs []string
		if err := tx.Model(&domain.Inbox{}).Where("user_id = ?", id).Pluck("id", &inboxIDs).Error; err != nil {
			return err
		}
		for _, inboxID := range inboxIDs {
			if err := deleteInboxCascade(tx, inboxID); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.LoginEvent{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&domain.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrUserNotFound
		}
		return nil
	})
}

// RecordLoginEvent 记录登录事件
func (s *Store) RecordLoginEvent(event *domain.LoginEvent) error {
	return s.db.Create(event).Error
}

// ListLoginEvents 返回指定用户最近的登录事件
func (s *Store) ListLoginEvents(userID string, limit int) ([]domain.LoginEvent, error) {
	var events []domain.LoginEvent
	err := s.db.Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ========== Inbox Repository ==========

// SaveInbox 保存邮箱
func (s *Store) SaveInbox(inbox *domain.Inbox) error {
	var count int64
	if err := s.db.Model(&domain.Inbox{}).
		Where("address = ? AND id <> ?", inbox.Address, inbox.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return storage.ErrAddressTaken
	}
	return s.db.Save(inbox).Error
}

// GetInbox 根据 ID 获取邮箱
func (s *Store) GetInbox(id string) (*domain.Inbox, error) {
	var inbox domain.Inbox
	err := s.db.Where("id = ?", id).First(&inbox).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrInboxNotFound
		}
		return nil, err
	}
	s.fillEmailCount(&inbox)
	return &inbox, nil
}

// GetInboxByAddress 根据归一化地址获取邮箱
func (s *Store) GetInboxByAddress(address string) (*domain.Inbox, error) {
	var inbox domain.Inbox
	err := s.db.Where("address = ?", address).First(&inbox).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrInboxNotFound
		}
		return nil, err
	}
	s.fillEmailCount(&inbox)
	return &inbox, nil
}

// ListInboxesByUserID 返回指定用户的全部邮箱
func (s *Store) ListInboxesByUserID(userID string) ([]domain.Inbox, error) {
	var inboxes []domain.Inbox
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&inboxes).Error
	if err != nil {
		return nil, err
	}
	for i := range inboxes {
		s.fillEmailCount(&inboxes[i])
	}
	return inboxes, nil
}

// ListInboxes 返回全部邮箱
func (s *Store) ListInboxes() ([]domain.Inbox, error) {
	var inboxes []domain.Inbox
	err := s.db.Order("created_at DESC").Find(&inboxes).Error
	if err != nil {
		return nil, err
	}
	for i := range inboxes {
		s.fillEmailCount(&inboxes[i])
	}
	return inboxes, nil
}

// CountInboxesByUserID 统计指定用户的邮箱数量
func (s *Store) CountInboxesByUserID(userID string) (int64, error) {
	var count int64
	err := s.db.Model(&domain.Inbox{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// DeleteInbox 删除邮箱，级联删除其下全部邮件与附件
func (s *Store) DeleteInbox(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Inbox{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return storage.ErrInboxNotFound
		}
		return deleteInboxCascade(tx, id)
	})
}

func deleteInboxCascade(tx *gorm.DB, inboxID string) error {
	if err := tx.Exec(
		"DELETE FROM attachments WHERE email_id IN (SELECT id FROM emails WHERE inbox_id = ?)",
		inboxID,
	).Error; err != nil {
		return err
	}
	if err := tx.Where("inbox_id = ?", inboxID).Delete(&domain.Email{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", inboxID).Delete(&domain.Inbox{}).Error
}

func (s *Store) fillEmailCount(inbox *domain.Inbox) {
	var count int64
	s.db.Model(&domain.Email{}).Where("inbox_id = ?", inbox.ID).Count(&count)
	inbox.EmailCount = int(count)
}

// ========== Email Repository ==========

// SaveEmail 保存邮件及其附件
func (s *Store) SaveEmail(email *domain.Email) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return saveEmailTx(tx, email)
	})
}

func saveEmailTx(tx *gorm.DB, email *domain.Email) error {
	if err := tx.Create(email).Error; err != nil {
		return err
	}
	for i, att := range email.Attachments {
		record := attachmentRecord{
			ID:          att.ID,
			EmailID:     email.ID,
			Position:    i,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        att.Size,
			Content:     base64.StdEncoding.EncodeToString(att.Content),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}

// StoreEmailWithCap 在单个事务内完成容量检查、淘汰与插入
//
// 对邮箱行加排他锁，串行化同一邮箱上的并发投递，
// 保证邮件数不会超过 maxEmails。
func (s *Store) StoreEmailWithCap(email *domain.Email, maxEmails int, evictOldest bool) (bool, int64, error) {
	var (
		stored  bool
		evicted int64
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var inbox domain.Inbox
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", email.InboxID).
			First(&inbox).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return storage.ErrInboxNotFound
			}
			return err
		}

		if maxEmails > 0 {
			var count int64
			if err := tx.Model(&domain.Email{}).Where("inbox_id = ?", email.InboxID).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(maxEmails) {
				if !evictOldest {
					return nil // 丢弃新邮件
				}
				toEvict := count - int64(maxEmails) + 1
				n, err := deleteOldestTx(tx, email.InboxID, toEvict)
				if err != nil {
					return err
				}
				evicted = n
			}
		}

		if err := saveEmailTx(tx, email); err != nil {
			return err
		}
		stored = true
		return nil
	})

	return stored, evicted, err
}

// deleteOldestTx 删除邮箱中最旧的 n 封邮件
//
// 派生表写法兼容 MySQL 对 IN 子查询中 LIMIT 的限制。
func deleteOldestTx(tx *gorm.DB, inboxID string, n int64) (int64, error) {
	if err := tx.Exec(
		`DELETE FROM attachments WHERE email_id IN (
			SELECT id FROM (
				SELECT id FROM emails WHERE inbox_id = ? ORDER BY received_at ASC LIMIT ?
			) oldest
		)`, inboxID, n,
	).Error; err != nil {
		return 0, err
	}

	result := tx.Exec(
		`DELETE FROM emails WHERE id IN (
			SELECT id FROM (
				SELECT id FROM emails WHERE inbox_id = ? ORDER BY received_at ASC LIMIT ?
			) oldest
		)`, inboxID, n,
	)
	return result.RowsAffected, result.Error
}

// GetEmail 获取单封邮件（含附件元数据，不含附件内容）
func (s *Store) GetEmail(id string) (*domain.Email, error) {
	var email domain.Email
	err := s.db.Where("id = ?", id).First(&email).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrMessageNotFound
		}
		return nil, err
	}

	var records []attachmentRecord
	if err := s.db.Where("email_id = ?", id).Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	for _, record := range records {
		email.Attachments = append(email.Attachments, &domain.Attachment{
			ID:          record.ID,
			EmailID:     record.EmailID,
			Filename:    record.Filename,
			ContentType: record.ContentType,
			Size:        record.Size,
		})
	}
	return &email, nil
}

// ListEmails 返回某个邮箱下的全部邮件（接收时间倒序，不含附件）
func (s *Store) ListEmails(inboxID string) ([]domain.Email, error) {
	var emails []domain.Email
	err := s.db.Where("inbox_id = ?", inboxID).Order("received_at DESC").Find(&emails).Error
	return emails, err
}

// CountEmails 统计某个邮箱下的邮件数量
func (s *Store) CountEmails(inboxID string) (int64, error) {
	var count int64
	err := s.db.Model(&domain.Email{}).Where("inbox_id = ?", inboxID).Count(&count).Error
	return count, err
}

// DeleteEmail 删除单封邮件及其附件
func (s *Store) DeleteEmail(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email_id = ?", id).Delete(&attachmentRecord{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.Email{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrMessageNotFound
		}
		return nil
	})
}

// DeleteEmailsBefore 批量删除早于 cutoff 的邮件，返回删除数量
func (s *Store) DeleteEmailsBefore(inboxID string, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"DELETE FROM attachments WHERE email_id IN (SELECT id FROM emails WHERE inbox_id = ? AND received_at < ?)",
			inboxID, cutoff,
		).Error; err != nil {
			return err
		}
		result := tx.Where("inbox_id = ? AND received_at < ?", inboxID, cutoff).Delete(&domain.Email{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}

// TrimEmailsToLimit 删除超出 limit 的最旧邮件，返回删除数量
func (s *Store) TrimEmailsToLimit(inboxID string, limit int) (int64, error) {
	if limit < 0 {
		return 0, nil
	}

	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Email{}).Where("inbox_id = ?", inboxID).Count(&count).Error; err != nil {
			return err
		}
		if count <= int64(limit) {
			return nil
		}
		n, err := deleteOldestTx(tx, inboxID, count-int64(limit))
		deleted = n
		return err
	})
	return deleted, err
}

// GetAttachment 获取附件，内容从 base64 解码为原始字节
func (s *Store) GetAttachment(emailID, attachmentID string) (*domain.Attachment, error) {
	var record attachmentRecord
	err := s.db.Where("id = ? AND email_id = ?", attachmentID, emailID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, storage.ErrAttachmentNotFound
		}
		return nil, err
	}

	content, err := base64.StdEncoding.DecodeString(record.Content)
	if err != nil {
		return nil, fmt.Errorf("decode attachment content: %w", err)
	}
	return &domain.Attachment{
		ID:          record.ID,
		EmailID:     record.EmailID,
		Filename:    record.Filename,
		ContentType: record.ContentType,
		Size:        record.Size,
		Content:     content,
	}, nil
}

// ========== Settings Repository ==========

// GetSystemSettings 返回系统策略，不存在时初始化为默认值
func (s *Store) GetSystemSettings() (*domain.SystemSettings, error) {
	var settings domain.SystemSettings
	err := s.db.First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		defaults := domain.DefaultSystemSettings()
		if err := s.db.Create(defaults).Error; err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSystemSettings 保存系统策略
func (s *Store) SaveSystemSettings(settings *domain.SystemSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	return s.db.Save(settings).Error
}

// ========== Stats Repository ==========

// GetSystemStatistics 返回系统统计信息
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	stats := &domain.SystemStatistics{}

	if err := s.db.Model(&domain.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.User{}).Where("is_active = ?", true).Count(&stats.ActiveUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.Inbox{}).Count(&stats.TotalInboxes).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.Email{}).Count(&stats.TotalEmails).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.LoginEvent{}).
		Where("timestamp > ?", time.Now().Add(-24*time.Hour)).
		Count(&stats.RecentLogins).Error; err != nil {
		return nil, err
	}

	rows, err := s.db.Raw(
		`SELECT DATE(received_at) AS day, COUNT(*) AS count
		 FROM emails WHERE received_at >= ?
		 GROUP BY DATE(received_at) ORDER BY day DESC`,
		time.Now().AddDate(0, 0, -7),
	).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.EmailDayCount
		if err := rows.Scan(&entry.Date, &entry.Count); err != nil {
			return nil, err
		}
		stats.EmailsByDay = append(stats.EmailsByDay, entry)
	}
	return stats, rows.Err()
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Health 数据库连通性检查
func (s *Store) Health() error {
	return s.sqlDB.Ping()
}
