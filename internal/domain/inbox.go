package domain

import "time"

// Inbox 表示一次性邮箱的业务实体
//
// Address 全局唯一且已小写归一化，归属于唯一的用户。
type Inbox struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address   string    `json:"address" gorm:"type:varchar(255);uniqueIndex;not null"`
	UserID    string    `json:"userId" gorm:"type:varchar(36);index;not null"`
	CreatedAt time.Time `json:"createdAt"`

	// 统计字段（查询时填充，不存数据库）
	EmailCount int `json:"emailCount" gorm:"-"`
}
