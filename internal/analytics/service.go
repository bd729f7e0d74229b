package analytics

import (
	"context"

	"github.com/nulzo/polychat/internal/store"
	"github.com/nulzo/polychat/pkg/api"
)

const (
	defaultDays = 7
	maxDays     = 365
)

type Service interface {
	GetUsageOverview(ctx context.Context, days int) ([]api.UsageDay, error)
}

type service struct {
	repo store.Repository
}

func NewService(repo store.Repository) Service {
	return &service{
		repo: repo,
	}
}

func (s *service) GetUsageOverview(ctx context.Context, days int) ([]api.UsageDay, error) {
	if days <= 0 {
		days = defaultDays
	}
	if days > maxDays {
		days = maxDays
	}

	stats, err := s.repo.Requests().GetDailyStats(ctx, days)
	if err != nil {
		return nil, err
	}

	out := make([]api.UsageDay, 0, len(stats))
	for _, st := range stats {
		out = append(out, api.UsageDay{
			Date:           st.Date,
			TotalRequests:  st.TotalRequests,
			ErrorCount:     st.ErrorCount,
			StreamedCount:  st.StreamedCount,
			AvgLatencyMS:   st.AverageLatency.Float64,
			TotalChunks:    st.TotalChunks,
			DistinctModels: st.DistinctModels,
		})
	}
	return out, nil
}
