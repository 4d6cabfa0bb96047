package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/document-request/internal/catalog"
	docrequestmodel "github.com/frahmantamala/document-request/internal/core/datamodel/docrequest"
)

var _ catalog.RepositoryAPI = (*CatalogRepository)(nil)

const documentTypeColumns = "id, name, price, is_active, created_at, updated_at"

type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) ListActive(ctx context.Context) ([]*docrequestmodel.DocumentType, error) {
	var rows []*docrequestmodel.DocumentType
	query := "SELECT " + documentTypeColumns + " FROM document_types WHERE is_active = TRUE ORDER BY name ASC"
	err := r.db.SelectContext(ctx, &rows, query)
	return rows, err
}

func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []int64) ([]*docrequestmodel.DocumentType, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+documentTypeColumns+" FROM document_types WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}

	var rows []*docrequestmodel.DocumentType
	err = r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...)
	return rows, err
}

// Upsert creates the document type or refreshes its price, re-activating it.
func (r *CatalogRepository) Upsert(ctx context.Context, name string, price decimal.Decimal) error {
	query := r.db.Rebind(`INSERT INTO document_types (name, price, is_active)
		VALUES (?, ?, TRUE)
		ON CONFLICT (name) DO UPDATE SET price = excluded.price, is_active = TRUE, updated_at = CURRENT_TIMESTAMP`)
	_, err := r.db.ExecContext(ctx, query, name, price)
	return err
}

// DeactivateExcept hides every active document type whose name is not listed.
func (r *CatalogRepository) DeactivateExcept(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE document_types SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE is_active = TRUE AND name NOT IN (?)`, names)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
