package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/storage"
)

// Store 基于内存的存储实现
//
// 用于开发模式与单元测试，所有操作持有互斥锁，
// StoreEmailWithCap 因此天然满足"检查+插入"的原子性要求。
type Store struct {
	mu          sync.RWMutex
	users       map[string]*domain.User
	inboxes     map[string]*domain.Inbox
	emails      map[string]*domain.Email
	loginEvents []domain.LoginEvent
	settings    *domain.SystemSettings
}

// NewStore 创建内存存储实例
func NewStore() *Store {
	return &Store{
		users:   make(map[string]*domain.User),
		inboxes: make(map[string]*domain.Inbox),
		emails:  make(map[string]*domain.Email),
	}
}

// ========== User Repository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return storage.ErrEmailExists
		}
	}

	clone := *user
	s.users[user.ID] = &clone
	return nil
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

// GetUserByEmail 根据注册邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

// ListUsers 返回全部用户（按创建时间倒序）
func (s *Store) ListUsers() ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

// UpdateUser 更新用户
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrUserNotFound
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

// DeleteUser 删除用户及其全部邮箱和邮件
func (s *Store) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrUserNotFound
	}
	delete(s.users, id)

	for inboxID, inbox := range s.inboxes {
		if inbox.UserID == id {
			s.deleteInboxLocked(inboxID)
		}
	}
	return nil
}

// RecordLoginEvent 记录登录事件
func (s *Store) RecordLoginEvent(event *domain.LoginEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loginEvents = append(s.loginEvents, *event)
	return nil
}

// ListLoginEvents 返回指定用户最近的登录事件
func (s *Store) ListLoginEvents(userID string, limit int) ([]domain.LoginEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]domain.LoginEvent, 0, limit)
	for i := len(s.loginEvents) - 1; i >= 0 && len(events) < limit; i-- {
		if s.loginEvents[i].UserID == userID {
			events = append(events, s.loginEvents[i])
		}
	}
	return events, nil
}

// ========== Inbox Repository ==========

// SaveInbox 保存邮箱
func (s *Store) SaveInbox(inbox *domain.Inbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.inboxes {
		if id != inbox.ID && existing.Address == inbox.Address {
			return storage.ErrAddressTaken
		}
	}
	clone := *inbox
	s.inboxes[inbox.ID] = &clone
	return nil
}

// GetInbox 根据 ID 获取邮箱
func (s *Store) GetInbox(id string) (*domain.Inbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inbox, ok := s.inboxes[id]
	if !ok {
		return nil, storage.ErrInboxNotFound
	}
	clone := *inbox
	clone.EmailCount = s.countEmailsLocked(id)
	return &clone, nil
}

// GetInboxByAddress 根据地址获取邮箱
func (s *Store) GetInboxByAddress(address string) (*domain.Inbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inbox := range s.inboxes {
		if inbox.Address == address {
			clone := *inbox
			clone.EmailCount = s.countEmailsLocked(inbox.ID)
			return &clone, nil
		}
	}
	return nil, storage.ErrInboxNotFound
}

// ListInboxesByUserID 返回指定用户的全部邮箱（按创建时间倒序）
func (s *Store) ListInboxesByUserID(userID string) ([]domain.Inbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inboxes := make([]domain.Inbox, 0)
	for _, inbox := range s.inboxes {
		if inbox.UserID == userID {
			clone := *inbox
			clone.EmailCount = s.countEmailsLocked(inbox.ID)
			inboxes = append(inboxes, clone)
		}
	}
	sort.Slice(inboxes, func(i, j int) bool {
		return inboxes[i].CreatedAt.After(inboxes[j].CreatedAt)
	})
	return inboxes, nil
}

// ListInboxes 返回全部邮箱
func (s *Store) ListInboxes() ([]domain.Inbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inboxes := make([]domain.Inbox, 0, len(s.inboxes))
	for _, inbox := range s.inboxes {
		clone := *inbox
		clone.EmailCount = s.countEmailsLocked(inbox.ID)
		inboxes = append(inboxes, clone)
	}
	sort.Slice(inboxes, func(i, j int) bool {
		return inboxes[i].CreatedAt.After(inboxes[j].CreatedAt)
	})
	return inboxes, nil
}

// CountInboxesByUserID 统计指定用户的邮箱数量
func (s *Store) CountInboxesByUserID(userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, inbox := range s.inboxes {
		if inbox.UserID == userID {
			count++
		}
	}
	return count, nil
}

// DeleteInbox 删除邮箱及其全部邮件
func (s *Store) DeleteInbox(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inboxes[id]; !ok {
		return storage.ErrInboxNotFound
	}
	s.deleteInboxLocked(id)
	return nil
}

func (s *Store) deleteInboxLocked(id string) {
	delete(s.inboxes, id)
	for emailID, email := range s.emails {
		if email.InboxID == id {
			delete(s.emails, emailID)
		}
	}
}

// ========== Email Repository ==========

// SaveEmail 保存邮件
func (s *Store) SaveEmail(email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveEmailLocked(email)
}

func (s *Store) saveEmailLocked(email *domain.Email) error {
	if _, ok := s.inboxes[email.InboxID]; !ok {
		return storage.ErrInboxNotFound
	}
	clone := cloneEmail(email)
	s.emails[email.ID] = clone
	return nil
}

// StoreEmailWithCap 在容量约束下保存邮件
//
// 同一把锁内完成计数、淘汰与插入，并发投递不会超出上限。
func (s *Store) StoreEmailWithCap(email *domain.Email, maxEmails int, evictOldest bool) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inboxes[email.InboxID]; !ok {
		return false, 0, storage.ErrInboxNotFound
	}

	var evicted int64
	if maxEmails > 0 {
		count := int64(s.countEmailsLocked(email.InboxID))
		if count >= int64(maxEmails) {
			if !evictOldest {
				return false, 0, nil
			}
			// 淘汰最旧邮件腾出空位
			toEvict := count - int64(maxEmails) + 1
			evicted = s.deleteOldestLocked(email.InboxID, toEvict)
		}
	}

	if err := s.saveEmailLocked(email); err != nil {
		return false, evicted, err
	}
	return true, evicted, nil
}

// GetEmail 获取单封邮件
func (s *Store) GetEmail(id string) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[id]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	return cloneEmail(email), nil
}

// ListEmails 返回某个邮箱下的全部邮件（接收时间倒序）
func (s *Store) ListEmails(inboxID string) ([]domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	emails := make([]domain.Email, 0)
	for _, email := range s.emails {
		if email.InboxID == inboxID {
			emails = append(emails, *cloneEmail(email))
		}
	}
	sort.Slice(emails, func(i, j int) bool {
		return emails[i].ReceivedAt.After(emails[j].ReceivedAt)
	})
	return emails, nil
}

// CountEmails 统计某个邮箱下的邮件数量
func (s *Store) CountEmails(inboxID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(s.countEmailsLocked(inboxID)), nil
}

// DeleteEmail 删除单封邮件
func (s *Store) DeleteEmail(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[id]; !ok {
		return storage.ErrMessageNotFound
	}
	delete(s.emails, id)
	return nil
}

// DeleteEmailsBefore 删除邮箱中早于 cutoff 的全部邮件，返回删除数量
func (s *Store) DeleteEmailsBefore(inboxID string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, email := range s.emails {
		if email.InboxID == inboxID && email.ReceivedAt.Before(cutoff) {
			delete(s.emails, id)
			count++
		}
	}
	return count, nil
}

// TrimEmailsToLimit 保留最新的 limit 封邮件，删除其余，返回删除数量
func (s *Store) TrimEmailsToLimit(inboxID string, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := int64(s.countEmailsLocked(inboxID))
	if limit < 0 || count <= int64(limit) {
		return 0, nil
	}
	return s.deleteOldestLocked(inboxID, count-int64(limit)), nil
}

// GetAttachment 获取邮件附件
func (s *Store) GetAttachment(emailID, attachmentID string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[emailID]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	for _, att := range email.Attachments {
		if att.ID == attachmentID {
			clone := *att
			return &clone, nil
		}
	}
	return nil, storage.ErrAttachmentNotFound
}

// deleteOldestLocked 删除邮箱中最旧的 n 封邮件
func (s *Store) deleteOldestLocked(inboxID string, n int64) int64 {
	type entry struct {
		id string
		at time.Time
	}
	entries := make([]entry, 0)
	for id, email := range s.emails {
		if email.InboxID == inboxID {
			entries = append(entries, entry{id: id, at: email.ReceivedAt})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].at.Before(entries[j].at)
	})

	var deleted int64
	for _, e := range entries {
		if deleted >= n {
			break
		}
		delete(s.emails, e.id)
		deleted++
	}
	return deleted
}

func (s *Store) countEmailsLocked(inboxID string) int {
	count := 0
	for _, email := range s.emails {
		if email.InboxID == inboxID {
			count++
		}
	}
	return count
}

func cloneEmail(email *domain.Email) *domain.Email {
	clone := *email
	clone.Attachments = make([]*domain.Attachment, 0, len(email.Attachments))
	for _, att := range email.Attachments {
		attClone := *att
		clone.Attachments = append(clone.Attachments, &attClone)
	}
	if len(clone.Attachments) == 0 {
		clone.Attachments = nil
	}
	return &clone
}

// ========== Settings Repository ==========

// GetSystemSettings 返回系统策略，不存在时初始化为默认值
func (s *Store) GetSystemSettings() (*domain.SystemSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settings == nil {
		s.settings = domain.DefaultSystemSettings()
	}
	clone := *s.settings
	return &clone, nil
}

// SaveSystemSettings 保存系统策略
func (s *Store) SaveSystemSettings(settings *domain.SystemSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *settings
	s.settings = &clone
	return nil
}

// ========== Stats Repository ==========

// GetSystemStatistics 返回系统统计信息
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.SystemStatistics{
		TotalUsers:   int64(len(s.users)),
		TotalInboxes: int64(len(s.inboxes)),
		TotalEmails:  int64(len(s.emails)),
	}
	for _, u := range s.users {
		if u.IsActive {
			stats.ActiveUsers++
		}
	}
	dayAgo := time.Now().Add(-24 * time.Hour)
	for _, ev := range s.loginEvents {
		if ev.Timestamp.After(dayAgo) {
			stats.RecentLogins++
		}
	}

	byDay := make(map[time.Time]int64)
	weekAgo := time.Now().AddDate(0, 0, -7)
	for _, email := range s.emails {
		if email.ReceivedAt.After(weekAgo) {
			day := email.ReceivedAt.UTC().Truncate(24 * time.Hour)
			byDay[day]++
		}
	}
	for day, count := range byDay {
		stats.EmailsByDay = append(stats.EmailsByDay, domain.EmailDayCount{Date: day, Count: count})
	}
	sort.Slice(stats.EmailsByDay, func(i, j int) bool {
		return stats.EmailsByDay[i].Date.After(stats.EmailsByDay[j].Date)
	})
	return stats, nil
}

// Close 关闭存储（内存实现为空操作）
func (s *Store) Close() error { return nil }

// Health 健康检查（内存实现始终健康）
func (s *Store) Health() error { return nil }
