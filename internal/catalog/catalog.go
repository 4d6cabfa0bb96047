package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	docrequestmodel "github.com/frahmantamala/document-request/internal/core/datamodel/docrequest"
)

type DocumentType struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (d *DocumentType) ToResponse() DocumentTypeResponse {
	return DocumentTypeResponse{
		ID:    d.ID,
		Name:  d.Name,
		Price: d.Price.StringFixed(2),
	}
}

func FromDataModel(d *docrequestmodel.DocumentType) *DocumentType {
	return &DocumentType{
		ID:        d.ID,
		Name:      d.Name,
		Price:     d.Price,
		IsActive:  d.IsActive,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// SeedEntry is a document type the seed command makes sure exists.
type SeedEntry struct {
	Name  string
	Price decimal.Decimal
}

func DefaultDocumentTypes() []SeedEntry {
	return []SeedEntry{
		{Name: "Transcript of Records", Price: decimal.NewFromInt(150)},
		{Name: "Certificate of Enrollment", Price: decimal.NewFromInt(50)},
		{Name: "Certificate of Good Moral Character", Price: decimal.NewFromInt(75)},
		{Name: "Form 137", Price: decimal.NewFromInt(200)},
		{Name: "Diploma (Certified True Copy)", Price: decimal.NewFromInt(100)},
		{Name: "Honorable Dismissal", Price: decimal.NewFromInt(120)},
	}
}
