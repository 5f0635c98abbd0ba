package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dropmail/backend/internal/domain"
	"dropmail/backend/internal/mail"
	"dropmail/backend/internal/monitoring"
	"dropmail/backend/internal/security"
	"dropmail/backend/internal/storage"
)

// MaxMessageBytes 单封邮件的读取上限
//
// 上游 MTA 自身有更低的投递限制，这里只做内存保护。
const MaxMessageBytes = 25 << 20 // 25MB

// Outcome 表示一次投递处理的业务结果
//
// 无论结果如何，入口进程都以成功状态退出，避免 MTA 向
// 可能伪造的发件人生成退信；Outcome 仅用于日志与指标。
type Outcome string

const (
	// OutcomeStored 邮件已入库
	OutcomeStored Outcome = "stored"
	// OutcomeDroppedUnknownRecipient 收件地址无法解析或不存在对应邮箱
	OutcomeDroppedUnknownRecipient Outcome = "dropped_unknown_recipient"
	// OutcomeDroppedCapacity 邮箱已满且未启用淘汰策略
	OutcomeDroppedCapacity Outcome = "dropped_capacity"
	// OutcomeDroppedParseError 邮件无法解析
	OutcomeDroppedParseError Outcome = "dropped_parse_error"
	// OutcomeFailed 存储层故障（同样不向 MTA 暴露失败）
	OutcomeFailed Outcome = "failed"
)

// Notifier 接收邮件入库成功后的通知
type Notifier interface {
	NotifyNewMail(email *domain.Email)
}

// Processor 入站邮件处理器
//
// 每封邮件对应一次独立调用，调用之间不共享可变状态，
// 并发安全完全依赖存储层的事务保证。
type Processor struct {
	store    storage.Store
	policy   *security.AttachmentPolicy
	metrics  *monitoring.Metrics
	log      *zap.Logger
	notifier Notifier
}

// SetNotifier 设置入库通知接收方（如 WebSocket Hub）
func (p *Processor) SetNotifier(notifier Notifier) {
	p.notifier = notifier
}

// NewProcessor 创建入站邮件处理器
func NewProcessor(store storage.Store, policy *security.AttachmentPolicy, metrics *monitoring.Metrics, log *zap.Logger) *Processor {
	if policy == nil {
		policy = security.DefaultAttachmentPolicy()
	}
	return &Processor{
		store:   store,
		policy:  policy,
		metrics: metrics,
		log:     log,
	}
}

// Process 处理一封完整的原始邮件流
//
// 返回的 error 仅表示存储层故障；业务性丢弃（地址未知、容量已满、
// 解析失败）通过 Outcome 区分并返回 nil error。
func (p *Processor) Process(ctx context.Context, r io.Reader) (Outcome, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxMessageBytes))
	if err != nil {
		p.countOutcome(OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("read message stream: %w", err)
	}

	parsed, err := mail.Parse(raw)
	if err != nil {
		p.log.Warn("failed to parse inbound message", zap.Error(err))
		p.countOutcome(OutcomeDroppedParseError)
		return OutcomeDroppedParseError, nil
	}

	address, err := mail.ResolveAddress(parsed.To)
	if err != nil {
		p.log.Info("no recipient address found", zap.String("to", parsed.To))
		p.countOutcome(OutcomeDroppedUnknownRecipient)
		return OutcomeDroppedUnknownRecipient, nil
	}

	return p.Deliver(ctx, address, parsed)
}

// Deliver 将已解析的邮件投递到指定的归一化地址
//
// SMTP 前端在 RCPT 阶段已经拿到信封收件人，走这里跳过头部解析。
func (p *Processor) Deliver(ctx context.Context, address string, parsed *mail.ParsedMessage) (Outcome, error) {
	// 策略每次投递都重新读取，后台修改立即生效
	settings, err := p.store.GetSystemSettings()
	if err != nil {
		p.countOutcome(OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("load system settings: %w", err)
	}

	inbox, err := p.store.GetInboxByAddress(address)
	if err != nil {
		if err == storage.ErrInboxNotFound {
			p.log.Info("inbox not found, discarding message", zap.String("address", address))
			p.countOutcome(OutcomeDroppedUnknownRecipient)
			return OutcomeDroppedUnknownRecipient, nil
		}
		p.countOutcome(OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("lookup inbox: %w", err)
	}

	user, err := p.store.GetUserByID(inbox.UserID)
	if err != nil {
		p.countOutcome(OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("lookup inbox owner: %w", err)
	}
	maxEmails := user.EffectiveMaxEmails(settings.MaxEmailsPerInbox)

	accepted, rejected := p.policy.Filter(parsed.Attachments)
	for _, reason := range rejected {
		p.log.Info("attachment rejected",
			zap.String("address", address),
			zap.String("reason", string(reason)),
		)
		if p.metrics != nil {
			p.metrics.AttachmentsRejected.WithLabelValues(string(reason)).Inc()
		}
	}

	subject := parsed.Subject
	if subject == "" {
		subject = domain.DefaultSubject
	}

	email := &domain.Email{
		ID:          uuid.NewString(),
		InboxID:     inbox.ID,
		From:        parsed.From,
		To:          address,
		Subject:     subject,
		TextBody:    parsed.Text,
		HTMLBody:    parsed.HTML,
		ReceivedAt:  time.Now().UTC(),
		Attachments: accepted, // 无通过附件时为 nil，而非空集合
	}
	for _, att := range email.Attachments {
		att.EmailID = email.ID
	}

	stored, evicted, err := p.store.StoreEmailWithCap(email, maxEmails, settings.DeleteOldOnLimit)
	if err != nil {
		p.countOutcome(OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("store email: %w", err)
	}
	if !stored {
		p.log.Info("inbox at capacity, discarding message",
			zap.String("address", address),
			zap.Int("max_emails", maxEmails),
		)
		p.countOutcome(OutcomeDroppedCapacity)
		return OutcomeDroppedCapacity, nil
	}

	if evicted > 0 {
		p.log.Info("evicted oldest email to make room",
			zap.String("address", address),
			zap.Int64("evicted", evicted),
		)
	}
	p.log.Info("email stored",
		zap.String("address", address),
		zap.String("email_id", email.ID),
		zap.Int("attachments", len(accepted)),
	)
	if p.notifier != nil {
		p.notifier.NotifyNewMail(email)
	}
	p.countOutcome(OutcomeStored)
	return OutcomeStored, nil
}

func (p *Processor) countOutcome(outcome Outcome) {
	if p.metrics != nil {
		p.metrics.IngestOutcomes.WithLabelValues(string(outcome)).Inc()
	}
}
