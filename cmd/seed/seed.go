package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jessevdk/go-flags"
	"github.com/nulzo/polychat/internal/analytics"
	"github.com/nulzo/polychat/internal/cli"
	"github.com/nulzo/polychat/internal/store"
	"github.com/nulzo/polychat/internal/store/model"
	"github.com/nulzo/polychat/internal/store/sqlite"
	"go.uber.org/zap"
)

// Fills request_logs with synthetic dispatches so the usage endpoint has
// something to show on a fresh install.
type options struct {
	DSN    string   `long:"dsn" default:"file:polychat.db?_journal_mode=WAL&_busy_timeout=5000" description:"sqlite DSN"`
	Days   int      `long:"days" default:"7" description:"how many past days to cover"`
	PerDay int      `long:"per-day" default:"20" description:"dispatches per day"`
	Models []string `long:"model" default:"gpt-4o-mini" default:"claude-haiku" default:"gemini-flash" description:"model id to attribute rows to (repeatable)"`
}

var upstreams = map[string]struct{ typ, model string }{
	"gpt-4o-mini":  {"openai", "gpt-4o-mini"},
	"claude-haiku": {"anthropic", "claude-3-5-haiku-latest"},
	"gemini-flash": {"google", "gemini-2.0-flash"},
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(2)
	}

	repo, err := sqlite.NewSQLiteStorage(opts.DSN, zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	defer repo.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	total := 0
	err = repo.WithTx(ctx, func(tx store.Repository) error {
		for d := 0; d < opts.Days; d++ {
			day := time.Now().AddDate(0, 0, -d)
			for i := 0; i < opts.PerDay; i++ {
				dispatchID := uuid.NewString()
				streamed := rng.Intn(2) == 0
				at := day.Add(-time.Duration(rng.Intn(3600)) * time.Second)

				for _, id := range opts.Models {
					if err := tx.Requests().Log(ctx, fakeRow(rng, dispatchID, id, streamed, at)); err != nil {
						return err
					}
					total++
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Seeded %d request rows across %d days\n\n", total, opts.Days)

	overview, err := analytics.NewService(repo).GetUsageOverview(ctx, opts.Days)
	if err != nil {
		log.Fatal(err)
	}
	cli.PrettyPrint(overview)
}

func fakeRow(rng *rand.Rand, dispatchID, id string, streamed bool, at time.Time) *model.RequestLog {
	up, ok := upstreams[id]
	if !ok {
		up.typ, up.model = "mock", id
	}

	row := &model.RequestLog{
		ID:              uuid.NewString(),
		DispatchID:      dispatchID,
		ModelID:         id,
		ProviderType:    up.typ,
		UpstreamModelID: up.model,
		Status:          "ok",
		LatencyMS:       int64(300 + rng.Intn(4000)),
		IsStreamed:      streamed,
		PromptChars:     20 + rng.Intn(400),
		CreatedAt:       at,
	}

	// roughly one in twelve fails
	if rng.Intn(12) == 0 {
		row.Status = "upstream_429"
		row.StatusCode = 429
		row.ErrorMessage = "Rate limit reached"
		return row
	}

	if streamed {
		row.ChunkCount = 10 + rng.Intn(200)
		row.TTFTMS = sql.NullInt64{Int64: int64(100 + rng.Intn(900)), Valid: true}
	}
	return row
}
