package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	docrequestmodel "github.com/frahmantamala/document-request/internal/core/datamodel/docrequest"
	"github.com/frahmantamala/document-request/internal/docrequest"
)

const uniqueViolationCode = "23505"

var _ docrequest.RepositoryAPI = (*DocumentRequestRepository)(nil)

type DocumentRequestRepository struct {
	db *gorm.DB
}

func NewDocumentRequestRepository(db *gorm.DB) *DocumentRequestRepository {
	return &DocumentRequestRepository{db: db}
}

// Persist writes the request, its items and its payment row in one
// transaction. A second request for the same gateway session fails with
// docrequest.ErrDuplicateSession and leaves nothing behind.
func (r *DocumentRequestRepository) Persist(ctx context.Context, req *docrequest.NewRequest) (*docrequest.DocumentRequest, error) {
	row, pay := docrequest.ToDataModel(req)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		pay.RequestID = row.ID
		return tx.Create(pay).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", docrequest.ErrDuplicateSession, req.GatewaySessionID)
		}
		return nil, err
	}
	return docrequest.FromDataModel(row), nil
}

func (r *DocumentRequestRepository) FindBySessionID(ctx context.Context, sessionID string) (*docrequest.DocumentRequest, error) {
	var row docrequestmodel.DocumentRequest
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("gateway_session_id = ?", sessionID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return docrequest.FromDataModel(&row), nil
}

func (r *DocumentRequestRepository) GetByID(ctx context.Context, id int64) (*docrequest.DocumentRequest, error) {
	var row docrequestmodel.DocumentRequest
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, docrequest.ErrNotFound
		}
		return nil, err
	}
	return docrequest.FromDataModel(&row), nil
}

func (r *DocumentRequestRepository) UpdateStatus(ctx context.Context, id int64, status docrequest.Status, rescheduled *time.Time) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if rescheduled != nil {
		updates["rescheduled_pickup_date"] = *rescheduled
	}

	result := r.db.WithContext(ctx).
		Model(&docrequestmodel.DocumentRequest{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return docrequest.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	// sqlite
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
