package domain

import "time"

// DefaultSubject 邮件缺失主题时的占位值
const DefaultSubject = "(no subject)"

// Email 表示投递到某个邮箱的一封已解析邮件
//
// Email 只属于一个 Inbox，随 Inbox 删除而级联删除。
type Email struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	InboxID    string    `json:"inboxId" gorm:"type:varchar(36);index;not null"`
	From       string    `json:"from" gorm:"type:varchar(255)"`
	To         string    `json:"to" gorm:"type:varchar(255)"`
	Subject    string    `json:"subject" gorm:"type:varchar(500)"`
	TextBody   string    `json:"textBody" gorm:"type:text"`
	HTMLBody   string    `json:"htmlBody" gorm:"type:text"`
	ReceivedAt time.Time `json:"receivedAt" gorm:"index"`

	// 附件随邮件一起创建和销毁（顺序为接收顺序）
	Attachments []*Attachment `json:"attachments,omitempty" gorm:"-"`
}
