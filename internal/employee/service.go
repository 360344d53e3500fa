package employee

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Employee, error)
	GetPermissions(ctx context.Context, id int64) ([]string, error)
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Employee, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee by id: %w", err)
	}

	perms, err := s.repo.GetPermissions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee permissions: %w", err)
	}
	e.Permissions = perms

	return e, nil
}
