package domain

import "time"

// SystemStatistics 管理后台的系统统计信息
type SystemStatistics struct {
	TotalUsers   int64           `json:"totalUsers"`
	ActiveUsers  int64           `json:"activeUsers"`
	TotalInboxes int64           `json:"totalInboxes"`
	TotalEmails  int64           `json:"totalEmails"`
	RecentLogins int64           `json:"recentLogins"` // 最近24小时
	EmailsByDay  []EmailDayCount `json:"emailsByDay"`  // 最近7天
}

// EmailDayCount 按天聚合的收件数量
type EmailDayCount struct {
	Date  time.Time `json:"date"`
	Count int64     `json:"count"`
}
