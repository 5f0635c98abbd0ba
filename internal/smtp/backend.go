package smtp

import (
	"context"
	"io"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"dropmail/backend/internal/ingest"
	"dropmail/backend/internal/mail"
	"dropmail/backend/internal/storage"
)

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的 SMTP 服务器：只接受发送到本系统一次性
// 邮箱的邮件，不做任何转发。Rcpt 阶段严格校验收件域名与邮箱存在性，
// 外部地址一律返回 550 拒绝，服务器不会成为开放中继。
type Backend struct {
	store          storage.Store
	processor      *ingest.Processor
	limiter        *RcptLimiter
	allowedDomains map[string]struct{}
	log            *zap.Logger
}

// NewBackend 创建 SMTP Backend。
//
// 新邮件通知由 Processor 的 Notifier 负责，Backend 不直接依赖
// WebSocket Hub。
func NewBackend(store storage.Store, processor *ingest.Processor, limiter *RcptLimiter, allowedDomains []string, log *zap.Logger) *Backend {
	domainSet := make(map[string]struct{}, len(allowedDomains))
	for _, d := range allowedDomains {
		domainSet[strings.ToLower(d)] = struct{}{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		store:          store,
		processor:      processor,
		limiter:        limiter,
		allowedDomains: domainSet,
		log:            log,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	remoteAddr := ""
	if c != nil && c.Conn() != nil {
		remoteAddr = c.Conn().RemoteAddr().String()
	}
	return &session{
		backend:    b,
		remoteAddr: remoteAddr,
	}, nil
}

type session struct {
	backend     *Backend
	remoteAddr  string
	fromAddress string
	recipients  []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = from
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 防止邮件中继的核心：收件域名必须在允许列表中，且对应的
// 一次性邮箱必须已存在，否则返回 550。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	if s.backend.limiter != nil && !s.backend.limiter.Allow(s.remoteAddr) {
		return &gosmtp.SMTPError{
			Code:         451,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 1},
			Message:      "too many recipients, slow down",
		}
	}

	addr, err := mail.ResolveAddress(to)
	if err != nil {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}
	if _, ok := s.backend.allowedDomains[parts[1]]; !ok {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	if _, err := s.backend.store.GetInboxByAddress(addr); err != nil {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "recipient mailbox not found",
		}
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 处理邮件内容。
//
// 解析一次，按信封收件人逐个投递；Rcpt 阶段已验证过邮箱存在，
// 业务性丢弃（容量满等）不向发送方暴露为错误。
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(r, ingest.MaxMessageBytes))
	if err != nil {
		return err
	}

	parsed, err := mail.Parse(raw)
	if err != nil {
		s.backend.log.Warn("failed to parse inbound message",
			zap.String("from", s.fromAddress),
			zap.Error(err),
		)
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "message could not be parsed",
		}
	}

	for _, addr := range s.recipients {
		if _, err := s.backend.processor.Deliver(context.Background(), addr, parsed); err != nil {
			s.backend.log.Error("delivery failed",
				zap.String("address", addr),
				zap.Error(err),
			)
			return &gosmtp.SMTPError{
				Code:         451,
				EnhancedCode: gosmtp.EnhancedCode{4, 3, 0},
				Message:      "temporary delivery failure",
			}
		}
	}
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	return nil
}
