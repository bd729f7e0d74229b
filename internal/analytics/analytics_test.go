package analytics_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nulzo/polychat/internal/analytics"
	"github.com/nulzo/polychat/internal/store/model"
	"github.com/nulzo/polychat/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIngestor_FlushesOnStop(t *testing.T) {
	repo, err := sqlite.NewSQLiteStorage(":memory:", zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	ing := analytics.NewIngestor(zap.NewNop(), repo, analytics.Options{BatchSize: 3, FlushEvery: time.Hour})
	ing.Start(context.Background())

	for i := 0; i < 5; i++ {
		ing.Log(&model.RequestLog{
			ID:         fmt.Sprintf("r%d", i),
			DispatchID: "d",
			ModelID:    "mock",
			Status:     "ok",
			LatencyMS:  10,
			CreatedAt:  time.Now(),
		})
	}
	ing.Stop()
	// logging after stop is a no-op rather than a panic
	ing.Log(&model.RequestLog{ID: "late"})

	rows, err := repo.Requests().GetByDispatch(context.Background(), "d")
	require.NoError(t, err)
	assert.Len(t, rows, 5)

	usage, err := analytics.NewService(repo).GetUsageOverview(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 5, usage[0].TotalRequests)
	assert.Equal(t, 1, usage[0].DistinctModels)
	assert.InDelta(t, 10.0, usage[0].AvgLatencyMS, 0.001)
}

func TestIngestor_FlushesOnContextCancel(t *testing.T) {
	repo, err := sqlite.NewSQLiteStorage(":memory:", zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ing := analytics.NewIngestor(zap.NewNop(), repo, analytics.Options{BatchSize: 100, FlushEvery: time.Hour})
	ing.Start(ctx)

	ing.Log(&model.RequestLog{ID: "x", DispatchID: "c", ModelID: "m", Status: "timeout", CreatedAt: time.Now()})
	cancel()

	assert.Eventually(t, func() bool {
		rows, err := repo.Requests().GetByDispatch(context.Background(), "c")
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
