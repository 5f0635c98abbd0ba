package domain

import "time"

// User 表示注册用户的业务实体
//
// MaxInboxes / MaxEmails 是每个用户独立的容量配额，
// RetentionHours 为 nil 时使用系统默认保留时长。
type User struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email          string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash   string     `json:"-" gorm:"type:varchar(255)"` // 不返回给前端
	IsAdmin        bool       `json:"isAdmin" gorm:"default:false"`
	IsApproved     bool       `json:"isApproved" gorm:"default:false;index"`
	IsActive       bool       `json:"isActive" gorm:"default:true"`
	MaxInboxes     int        `json:"maxInboxes" gorm:"default:5"`
	MaxEmails      int        `json:"maxEmails" gorm:"default:50"`
	RetentionHours *int       `json:"retentionHours,omitempty"` // nil 表示使用系统默认值
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	LastLoginAt    *time.Time `json:"lastLoginAt,omitempty"`
}

// EffectiveRetentionHours 返回用户生效的邮件保留时长（小时）
func (u *User) EffectiveRetentionHours(defaultHours int) int {
	if u.RetentionHours != nil && *u.RetentionHours > 0 {
		return *u.RetentionHours
	}
	return defaultHours
}

// EffectiveMaxEmails 返回用户生效的单邮箱邮件上限
//
// 用户自身的 MaxEmails 优先，未设置（<=0）时回退到系统默认值。
// 该回退与 RetentionHours 无关。
func (u *User) EffectiveMaxEmails(defaultMax int) int {
	if u.MaxEmails > 0 {
		return u.MaxEmails
	}
	return defaultMax
}

// LoginEvent 记录一次登录尝试（成功或失败）
type LoginEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);index"`
	Success   bool      `json:"success"`
	IPAddress string    `json:"ipAddress,omitempty" gorm:"type:varchar(45)"`
	UserAgent string    `json:"userAgent,omitempty" gorm:"type:varchar(255)"`
	Timestamp time.Time `json:"timestamp" gorm:"index"`
}
