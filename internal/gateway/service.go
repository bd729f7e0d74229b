package gateway

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nulzo/polychat/internal/analytics"
	"github.com/nulzo/polychat/internal/llm"
	"github.com/nulzo/polychat/internal/store/cache"
	"github.com/nulzo/polychat/internal/store/model"
	"github.com/nulzo/polychat/pkg/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultTimeout = 60 * time.Second

// Service fans one prompt out to many models.
type Service interface {
	// Dispatch returns one response per requested id, in request order. It never
	// fails as a whole; per-model failures are carried in AIResponse.Error.
	Dispatch(ctx context.Context, prompt *api.Prompt, ids []string) []api.AIResponse

	// DispatchStream multiplexes every model's stream into one channel. Each id
	// gets exactly one terminal event and the channel is closed after the last.
	DispatchStream(ctx context.Context, prompt *api.Prompt, ids []string) <-chan api.StreamEvent

	Models() []api.ModelInfo
}

type Options struct {
	// Timeout bounds one provider call unless the provider sets its own.
	Timeout time.Duration
	// MaxConcurrency caps in-flight provider calls per dispatch; 0 is unlimited.
	MaxConcurrency int
	// CacheTTL is how long successful answers stay cached.
	CacheTTL time.Duration
}

type service struct {
	logger   *zap.Logger
	registry *Registry
	ingestor analytics.Ingestor
	cache    cache.CacheService
	opts     Options
	tracer   trace.Tracer
}

// NewService wires the dispatcher. ingestor and cache may be nil.
func NewService(logger *zap.Logger, registry *Registry, ingestor analytics.Ingestor, cache cache.CacheService, opts Options) Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	return &service{
		logger:   logger,
		registry: registry,
		ingestor: ingestor,
		cache:    cache,
		opts:     opts,
		tracer:   otel.Tracer("github.com/nulzo/polychat/internal/gateway"),
	}
}

func (s *service) Models() []api.ModelInfo {
	return s.registry.Models()
}

func (s *service) group() *errgroup.Group {
	g := new(errgroup.Group)
	if s.opts.MaxConcurrency > 0 {
		g.SetLimit(s.opts.MaxConcurrency)
	}
	return g
}

func (s *service) timeout(e Entry) time.Duration {
	if e.Config.Timeout > 0 {
		return e.Config.Timeout
	}
	return s.opts.Timeout
}

func (s *service) Dispatch(ctx context.Context, prompt *api.Prompt, ids []string) []api.AIResponse {
	dispatchID := uuid.NewString()
	results := make([]api.AIResponse, len(ids))

	// a plain group: one model failing must not cancel its siblings
	g := s.group()
	for i, id := range ids {
		g.Go(func() error {
			results[i] = s.chat(ctx, dispatchID, prompt, id)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *service) chat(ctx context.Context, dispatchID string, prompt *api.Prompt, id string) api.AIResponse {
	start := time.Now()
	resp := api.AIResponse{Model: id}

	entry, ok := s.registry.Lookup(id)
	if !ok {
		err := llm.UnknownModel(id)
		resp.Error = err.Message
		resp.Timestamp = time.Now().UnixMilli()
		s.record(dispatchID, id, nil, prompt, start, outcome{err: err})
		return resp
	}

	ctx, span := s.tracer.Start(ctx, "gateway.chat", trace.WithAttributes(
		attribute.String("model.id", id),
		attribute.String("provider.type", entry.Provider.Type()),
		attribute.String("dispatch.id", dispatchID),
	))
	defer span.End()

	key := cacheKey(entry, prompt)
	if s.cacheable(prompt) {
		var cached string
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			resp.Text = cached
			resp.Timestamp = time.Now().UnixMilli()
			s.record(dispatchID, id, &entry, prompt, start, outcome{cached: true})
			return resp
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Debug("Cache lookup failed", zap.String("model", id), zap.Error(err))
		}
	}

	taskCtx, cancel := context.WithTimeout(ctx, s.timeout(entry))
	defer cancel()

	text, err := entry.Provider.Chat(taskCtx, prompt)
	resp.Timestamp = time.Now().UnixMilli()

	if err != nil {
		llmErr := llm.Wrap(entry.Provider.Name(), err, nil)
		resp.Error = llmErr.Message
		span.RecordError(llmErr)
		span.SetStatus(codes.Error, string(llmErr.Kind))
		s.record(dispatchID, id, &entry, prompt, start, outcome{err: llmErr})
		return resp
	}

	resp.Text = text
	if s.cacheable(prompt) {
		if err := s.cache.Set(ctx, key, text, s.opts.CacheTTL); err != nil {
			s.logger.Debug("Cache store failed", zap.String("model", id), zap.Error(err))
		}
	}
	s.record(dispatchID, id, &entry, prompt, start, outcome{})
	return resp
}

func (s *service) DispatchStream(ctx context.Context, prompt *api.Prompt, ids []string) <-chan api.StreamEvent {
	out := make(chan api.StreamEvent)
	dispatchID := uuid.NewString()

	go func() {
		defer close(out)

		g := s.group()
		for _, id := range ids {
			g.Go(func() error {
				s.stream(ctx, dispatchID, prompt, id, out)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return out
}

// emit forwards ev unless the caller went away.
func emit(ctx context.Context, out chan<- api.StreamEvent, ev api.StreamEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *service) stream(ctx context.Context, dispatchID string, prompt *api.Prompt, id string, out chan<- api.StreamEvent) {
	start := time.Now()

	entry, ok := s.registry.Lookup(id)
	if !ok {
		err := llm.UnknownModel(id)
		emit(ctx, out, api.StreamEvent{Model: id, Error: err.Message, Done: true})
		s.record(dispatchID, id, nil, prompt, start, outcome{err: err, streamed: true})
		return
	}

	ctx, span := s.tracer.Start(ctx, "gateway.stream", trace.WithAttributes(
		attribute.String("model.id", id),
		attribute.String("provider.type", entry.Provider.Type()),
		attribute.String("dispatch.id", dispatchID),
	))
	defer span.End()

	taskCtx, cancel := context.WithTimeout(ctx, s.timeout(entry))
	defer cancel()

	res := outcome{streamed: true}
	name := entry.Provider.Name()

	deltas, err := entry.Provider.Stream(taskCtx, prompt)
	if err != nil {
		res.err = err
	} else {
		for d := range deltas {
			if d.Err != nil {
				res.err = d.Err
				continue
			}
			if d.Text == "" {
				continue
			}
			if res.chunks == 0 {
				res.ttft = time.Since(start)
			}
			res.chunks++
			if !emit(ctx, out, api.StreamEvent{Model: id, Chunk: d.Text}) {
				res.err = ctx.Err()
				break
			}
		}
		// a stream that ends because the deadline hit is not a normal end
		if res.err == nil {
			if ctxErr := llm.FromContext(taskCtx, name); ctxErr != nil {
				res.err = ctxErr
			}
		}
	}

	if res.err != nil {
		llmErr := llm.Wrap(name, res.err, nil)
		res.err = llmErr
		span.RecordError(llmErr)
		span.SetStatus(codes.Error, string(llmErr.Kind))
		emit(ctx, out, api.StreamEvent{Model: id, Error: llmErr.Message, Done: true})
	} else {
		emit(ctx, out, api.StreamEvent{Model: id, Chunk: "", Done: true})
	}
	span.SetAttributes(attribute.Int("stream.chunks", res.chunks))

	s.record(dispatchID, id, &entry, prompt, start, res)
}

type outcome struct {
	err      error
	chunks   int
	ttft     time.Duration
	streamed bool
	cached   bool
}

func (s *service) cacheable(prompt *api.Prompt) bool {
	return s.cache != nil && !prompt.HasImages()
}

func cacheKey(e Entry, prompt *api.Prompt) string {
	h := sha256.New()
	h.Write([]byte(e.Config.ID))
	h.Write([]byte{0})
	h.Write([]byte(e.Config.Model))
	h.Write([]byte{0})
	h.Write([]byte(prompt.Text))
	return "chat:" + hex.EncodeToString(h.Sum(nil))
}

func (s *service) record(dispatchID, id string, entry *Entry, prompt *api.Prompt, start time.Time, res outcome) {
	latency := time.Since(start)

	fields := []zap.Field{
		zap.String("dispatch_id", dispatchID),
		zap.String("model", id),
		zap.Duration("latency", latency),
		zap.Bool("streamed", res.streamed),
	}
	if entry != nil {
		fields = append(fields, zap.String("provider", entry.Provider.Type()))
	}
	if res.err != nil {
		s.logger.Warn("Model call failed", append(fields, zap.String("status", llm.StatusText(res.err)), zap.Error(res.err))...)
	} else {
		s.logger.Debug("Model call finished", append(fields, zap.Int("chunks", res.chunks), zap.Bool("cached", res.cached))...)
	}

	if s.ingestor == nil {
		return
	}

	row := &model.RequestLog{
		ID:          uuid.NewString(),
		DispatchID:  dispatchID,
		ModelID:     id,
		Status:      llm.StatusText(res.err),
		LatencyMS:   latency.Milliseconds(),
		ChunkCount:  res.chunks,
		IsStreamed:  res.streamed,
		IsCached:    res.cached,
		PromptChars: len([]rune(prompt.Text)),
		ImageCount:  len(prompt.Images),
		CreatedAt:   time.Now(),
	}
	if entry != nil {
		row.ProviderType = entry.Provider.Type()
		row.UpstreamModelID = entry.Config.Model
	}
	if res.err != nil {
		row.ErrorMessage = res.err.Error()
		var llmErr *llm.Error
		if errors.As(res.err, &llmErr) {
			row.StatusCode = llmErr.Status
		}
	}
	if res.streamed && res.chunks > 0 {
		row.TTFTMS = sql.NullInt64{Int64: res.ttft.Milliseconds(), Valid: true}
	}

	s.ingestor.Log(row)
}
