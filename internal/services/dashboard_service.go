package services

import (
	"context"

	"github.com/SAP-F-2025/examination-service/internal/authz"
	"github.com/SAP-F-2025/examination-service/internal/models"
)

type dashboardService struct {
	deps   *ServiceDeps
	loader *repositoryLookupLoader
}

func NewDashboardService(deps *ServiceDeps) DashboardService {
	return &dashboardService{deps: deps, loader: &repositoryLookupLoader{repo: deps.Repo}}
}

// GetStats returns the admin dashboard counters, cached for a short TTL
func (s *dashboardService) GetStats(ctx context.Context, actor authz.Actor) (*models.DashboardStats, error) {
	if err := s.deps.authorize(ctx, actor, authz.ActionRead, authz.Resource{Kind: authz.KindDashboard}); err != nil {
		return nil, err
	}
	if s.deps.Lookups == nil {
		return s.loader.LoadDashboardStats(ctx)
	}
	return s.deps.Lookups.DashboardStats(ctx)
}
