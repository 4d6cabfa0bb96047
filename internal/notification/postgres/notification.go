package postgres

import (
	"context"

	notificationmodel "github.com/frahmantamala/document-request/internal/core/datamodel/notification"
	"github.com/frahmantamala/document-request/internal/notification"
	"gorm.io/gorm"
)

var (
	_ notification.RepositoryAPI = (*NotificationRepository)(nil)
	_ notification.Lister        = (*NotificationRepository)(nil)
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *notificationmodel.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]*notificationmodel.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []*notificationmodel.Notification
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
