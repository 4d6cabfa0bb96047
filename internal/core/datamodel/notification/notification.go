package notification

import "time"

type Notification struct {
	ID        int64      `gorm:"primaryKey"`
	StudentID string     `gorm:"column:student_id;not null;index"`
	Message   string     `gorm:"column:message;not null"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string { return "notifications" }
