package catalog

import (
	"context"
	"log/slog"

	docrequestmodel "github.com/frahmantamala/document-request/internal/core/datamodel/docrequest"
)

type RepositoryAPI interface {
	ListActive(ctx context.Context) ([]*docrequestmodel.DocumentType, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*docrequestmodel.DocumentType, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) ListActive(ctx context.Context) ([]DocumentTypeResponse, error) {
	rows, err := s.repo.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to get document types from repository", "error", err)
		return nil, err
	}

	responses := make([]DocumentTypeResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, FromDataModel(row).ToResponse())
	}

	s.logger.Debug("retrieved document types", "count", len(responses))
	return responses, nil
}

// Lookup returns the document types with the given ids, keyed by id.
// Inactive types are included so callers can tell them apart from unknown ids.
func (s *Service) Lookup(ctx context.Context, ids []int64) (map[int64]*docrequestmodel.DocumentType, error) {
	out := make(map[int64]*docrequestmodel.DocumentType, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to look up document types", "ids", ids, "error", err)
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
