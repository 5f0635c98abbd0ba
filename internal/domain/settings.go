package domain

import "time"

// SystemSettings 系统策略单例
//
// 每次投递和每轮清理都重新读取，不做进程内缓存，
// 保证后台修改立即生效。
type SystemSettings struct {
	ID                    string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	LoginRequired         bool      `json:"loginRequired" gorm:"default:false"`
	RegistrationOpen      bool      `json:"registrationOpen" gorm:"default:true"`
	DefaultRetentionHours int       `json:"defaultRetentionHours" gorm:"default:72"`
	MaxInboxesPerUser     int       `json:"maxInboxesPerUser" gorm:"default:5"`
	MaxEmailsPerInbox     int       `json:"maxEmailsPerInbox" gorm:"default:50"`
	DeleteOldOnLimit      bool      `json:"deleteOldOnLimit" gorm:"default:false"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// DefaultSystemSettings 返回默认系统策略
func DefaultSystemSettings() *SystemSettings {
	return &SystemSettings{
		ID:                    "system",
		LoginRequired:         false,
		RegistrationOpen:      true,
		DefaultRetentionHours: 72,
		MaxInboxesPerUser:     5,
		MaxEmailsPerInbox:     50,
		DeleteOldOnLimit:      false,
		UpdatedAt:             time.Now().UTC(),
	}
}
