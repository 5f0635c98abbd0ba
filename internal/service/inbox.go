package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"dropmail/backend/internal/config"
	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/storage"
)

var (
	// ErrDomainNotAllowed 域名不在允许列表中
	ErrDomainNotAllowed = errors.New("domain not allowed")
	// ErrLocalPartInvalid 自定义前缀不合法
	ErrLocalPartInvalid = errors.New("local part invalid")
	// ErrInboxLimitReached 已达到用户邮箱数量上限
	ErrInboxLimitReached = errors.New("inbox limit reached")
	// ErrNotOwner 资源不属于当前用户
	ErrNotOwner = errors.New("not the owner of this resource")
)

// 自定义前缀只允许小写字母、数字、点、下划线和连字符
var localPartRegex = regexp.MustCompile(`^[a-z0-9._-]+$`)

// InboxService 封装一次性邮箱相关业务操作。
type InboxService struct {
	store     storage.Store
	cfg       *config.Config
	domainSet map[string]struct{}
}

// NewInboxService 创建邮箱业务服务。
func NewInboxService(store storage.Store, cfg *config.Config) *InboxService {
	domainSet := make(map[string]struct{}, len(cfg.Mail.AllowedDomains))
	for _, d := range cfg.Mail.AllowedDomains {
		domainSet[d] = struct{}{}
	}

	return &InboxService{
		store:     store,
		cfg:       cfg,
		domainSet: domainSet,
	}
}

// CreateInboxInput 定义创建邮箱所需的输入。
type CreateInboxInput struct {
	UserID    string
	LocalPart string // 可选：自定义前缀，留空则随机生成
	Domain    string // 可选：留空使用第一个允许域名
}

// Create 创建新的一次性邮箱。
//
// 随机前缀与已有地址冲突时自动重试；自定义前缀冲突直接返回
// ErrAddressTaken，由调用方换一个前缀。
func (s *InboxService) Create(input CreateInboxInput) (*domain.Inbox, error) {
	user, err := s.store.GetUserByID(input.UserID)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetSystemSettings()
	if err != nil {
		return nil, fmt.Errorf("load system settings: %w", err)
	}

	maxInboxes := user.MaxInboxes
	if maxInboxes <= 0 {
		maxInboxes = settings.MaxInboxesPerUser
	}
	count, err := s.store.CountInboxesByUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	if maxInboxes > 0 && count >= int64(maxInboxes) {
		return nil, ErrInboxLimitReached
	}

	selectedDomain := s.pickDomain(input.Domain)
	if selectedDomain == "" {
		return nil, ErrDomainNotAllowed
	}

	custom := input.LocalPart != ""
	localPart, err := s.resolveLocalPart(input.LocalPart)
	if err != nil {
		return nil, err
	}

	// 自定义前缀不重试，随机前缀冲突时重新生成
	attempts := 1
	if !custom {
		attempts = 5
	}
	for i := 0; i < attempts; i++ {
		inbox := &domain.Inbox{
			ID:        uuid.NewString(),
			UserID:    input.UserID,
			Address:   fmt.Sprintf("%s@%s", localPart, selectedDomain),
			CreatedAt: time.Now().UTC(),
		}
		err = s.store.SaveInbox(inbox)
		if err == nil {
			return inbox, nil
		}
		if err != storage.ErrAddressTaken || custom {
			return nil, err
		}
		localPart = randomLocalPart()
	}
	return nil, err
}

// Get 获取邮箱，校验归属。
func (s *InboxService) Get(userID, inboxID string) (*domain.Inbox, error) {
	inbox, err := s.store.GetInbox(inboxID)
	if err != nil {
		return nil, err
	}
	if inbox.UserID != userID {
		return nil, ErrNotOwner
	}
	return inbox, nil
}

// List 返回当前用户的全部邮箱。
func (s *InboxService) List(userID string) ([]domain.Inbox, error) {
	return s.store.ListInboxesByUserID(userID)
}

// Delete 删除邮箱及其下全部邮件，校验归属。
func (s *InboxService) Delete(userID, inboxID string) error {
	inbox, err := s.store.GetInbox(inboxID)
	if err != nil {
		return err
	}
	if inbox.UserID != userID {
		return ErrNotOwner
	}
	return s.store.DeleteInbox(inboxID)
}

// pickDomain 挑选合法的邮箱域名。
func (s *InboxService) pickDomain(requested string) string {
	if requested == "" {
		return s.cfg.Mail.AllowedDomains[0]
	}
	requested = strings.ToLower(strings.TrimSpace(requested))
	if _, ok := s.domainSet[requested]; ok {
		return requested
	}
	return ""
}

// resolveLocalPart 生成或验证邮箱前缀。
func (s *InboxService) resolveLocalPart(prefix string) (string, error) {
	if prefix == "" {
		return randomLocalPart(), nil
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) > 64 || !localPartRegex.MatchString(prefix) {
		return "", ErrLocalPartInvalid
	}
	return prefix, nil
}

// randomLocalPart 生成随机前缀。
func randomLocalPart() string {
	base := strings.ReplaceAll(uuid.NewString(), "-", "")
	return base[:12]
}
