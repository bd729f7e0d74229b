package gateway_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nulzo/polychat/internal/config"
	"github.com/nulzo/polychat/internal/gateway"
	"github.com/nulzo/polychat/internal/llm"
	"github.com/nulzo/polychat/internal/llm/openai"
	"github.com/nulzo/polychat/internal/store/cache"
	"github.com/nulzo/polychat/internal/store/model"
	"github.com/nulzo/polychat/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockProvider is a testify mock of llm.Provider.
type MockProvider struct {
	mock.Mock
	name string
}

func (m *MockProvider) Name() string { return m.name }
func (m *MockProvider) Type() string { return "mock" }

func (m *MockProvider) Chat(ctx context.Context, prompt *api.Prompt) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) Stream(ctx context.Context, prompt *api.Prompt) (<-chan llm.Delta, error) {
	args := m.Called(ctx, prompt)
	ch, _ := args.Get(0).(<-chan llm.Delta)
	return ch, args.Error(1)
}

// scripted streams the given pieces, then optionally a final error.
func scripted(ctx context.Context, pieces []string, gap time.Duration, final error) <-chan llm.Delta {
	ch := make(chan llm.Delta)
	go func() {
		defer close(ch)
		for _, p := range pieces {
			if gap > 0 {
				select {
				case <-time.After(gap):
				case <-ctx.Done():
					return
				}
			}
			if llm.Send(ctx, ch, llm.Delta{Text: p}) != nil {
				return
			}
		}
		if final != nil {
			_ = llm.Send(ctx, ch, llm.Delta{Err: final})
		}
	}()
	return ch
}

func entry(id string, p llm.Provider) gateway.Entry {
	return gateway.Entry{Config: config.ProviderConfig{ID: id, Name: p.Name(), Type: "mock"}, Provider: p}
}

func newService(t *testing.T, opts gateway.Options, entries ...gateway.Entry) gateway.Service {
	t.Helper()
	reg, err := gateway.RegistryOf(entries...)
	require.NoError(t, err)
	return gateway.NewService(zap.NewNop(), reg, nil, nil, opts)
}

func collect(ch <-chan api.StreamEvent) []api.StreamEvent {
	var events []api.StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestDispatch_IsolatesFailures(t *testing.T) {
	good := &MockProvider{name: "Good"}
	good.On("Chat", mock.Anything, mock.Anything).Return("hi from good", nil)

	bad := &MockProvider{name: "Bad"}
	bad.On("Chat", mock.Anything, mock.Anything).
		Return("", &llm.Error{Kind: llm.KindUpstream, Status: 500, Message: "Bad API error"})

	svc := newService(t, gateway.Options{}, entry("good", good), entry("bad", bad))
	out := svc.Dispatch(context.Background(), &api.Prompt{Text: "hello"}, []string{"good", "bad", "nope"})

	require.Len(t, out, 3)

	assert.Equal(t, "good", out[0].Model)
	assert.Equal(t, "hi from good", out[0].Text)
	assert.Empty(t, out[0].Error)
	assert.NotZero(t, out[0].Timestamp)

	assert.Equal(t, "bad", out[1].Model)
	assert.Empty(t, out[1].Text)
	assert.Equal(t, "Bad API error", out[1].Error)

	assert.Equal(t, "nope", out[2].Model)
	assert.Equal(t, "Model nope not found", out[2].Error)

	good.AssertExpectations(t)
	bad.AssertExpectations(t)
}

func TestDispatch_DuplicateIDsAreIndependent(t *testing.T) {
	p := &MockProvider{name: "P"}
	p.On("Chat", mock.Anything, mock.Anything).Return("same", nil).Twice()

	svc := newService(t, gateway.Options{}, entry("p", p))
	out := svc.Dispatch(context.Background(), &api.Prompt{Text: "x"}, []string{"p", "p"})

	require.Len(t, out, 2)
	assert.Equal(t, "same", out[0].Text)
	assert.Equal(t, "same", out[1].Text)
	p.AssertNumberOfCalls(t, "Chat", 2)
}

func TestDispatch_EmptyModelList(t *testing.T) {
	svc := newService(t, gateway.Options{})
	out := svc.Dispatch(context.Background(), &api.Prompt{Text: "x"}, nil)
	assert.Empty(t, out)
}

func TestDispatch_TimeoutBecomesError(t *testing.T) {
	slow := &MockProvider{name: "Slow"}
	slow.On("Chat", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	fast := &MockProvider{name: "Fast"}
	fast.On("Chat", mock.Anything, mock.Anything).Return("quick", nil)

	svc := newService(t, gateway.Options{Timeout: 30 * time.Millisecond}, entry("slow", slow), entry("fast", fast))

	start := time.Now()
	out := svc.Dispatch(context.Background(), &api.Prompt{Text: "x"}, []string{"slow", "fast"})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "Slow request timed out", out[0].Error)
	assert.Equal(t, "quick", out[1].Text)
}

func TestDispatch_MissingCredential(t *testing.T) {
	t.Setenv("POLYCHAT_TEST_MISSING_KEY", "")

	cfg := config.ProviderConfig{
		ID:        "keyed",
		Type:      "openai",
		Name:      "Keyed",
		BaseURL:   "http://127.0.0.1:1",
		Model:     "gpt-4o-mini",
		APIKeyEnv: "POLYCHAT_TEST_MISSING_KEY",
	}
	p, err := openai.NewAdapter(cfg)
	require.NoError(t, err)

	svc := newService(t, gateway.Options{}, gateway.Entry{Config: cfg, Provider: p})

	out := svc.Dispatch(context.Background(), &api.Prompt{Text: "x"}, []string{"keyed"})
	assert.Equal(t, "Keyed API key not configured", out[0].Error)

	events := collect(svc.DispatchStream(context.Background(), &api.Prompt{Text: "x"}, []string{"keyed"}))
	require.Len(t, events, 1)
	assert.True(t, events[0].Done)
	assert.Equal(t, "Keyed API key not configured", events[0].Error)

	assert.False(t, svc.Models()[0].Configured)
}

func TestDispatch_CachesSuccessfulTextAnswers(t *testing.T) {
	p := &MockProvider{name: "P"}
	p.On("Chat", mock.Anything, mock.Anything).Return("cached answer", nil).Once()

	reg, err := gateway.RegistryOf(entry("p", p))
	require.NoError(t, err)
	svc := gateway.NewService(zap.NewNop(), reg, nil, cache.NewMemoryCache(), gateway.Options{CacheTTL: time.Minute})

	prompt := &api.Prompt{Text: "same question"}
	first := svc.Dispatch(context.Background(), prompt, []string{"p"})
	second := svc.Dispatch(context.Background(), prompt, []string{"p"})

	assert.Equal(t, "cached answer", first[0].Text)
	assert.Equal(t, "cached answer", second[0].Text)
	p.AssertNumberOfCalls(t, "Chat", 1)
}

func TestDispatchStream_TerminalPerModel(t *testing.T) {
	ctx := context.Background()
	a := &MockProvider{name: "A"}
	a.On("Stream", mock.Anything, mock.Anything).
		Return(scripted(ctx, []string{"Hel", "lo"}, time.Millisecond, nil), nil)

	b := &MockProvider{name: "B"}
	b.On("Stream", mock.Anything, mock.Anything).
		Return(scripted(ctx, []string{"partial"}, 0, &llm.Error{Kind: llm.KindUpstream, Message: "B API error"}), nil)

	c := &MockProvider{name: "C"}
	c.On("Stream", mock.Anything, mock.Anything).
		Return(nil, &llm.Error{Kind: llm.KindConfiguration, Message: "C API key not configured"})

	svc := newService(t, gateway.Options{}, entry("a", a), entry("b", b), entry("c", c))
	events := collect(svc.DispatchStream(ctx, &api.Prompt{Text: "x"}, []string{"a", "b", "c", "zzz"}))

	terminals := map[string]api.StreamEvent{}
	chunks := map[string][]string{}
	for _, ev := range events {
		if ev.Done {
			_, dup := terminals[ev.Model]
			assert.False(t, dup, "second terminal for %s", ev.Model)
			terminals[ev.Model] = ev
			continue
		}
		_, finished := terminals[ev.Model]
		assert.False(t, finished, "chunk after terminal for %s", ev.Model)
		chunks[ev.Model] = append(chunks[ev.Model], ev.Chunk)
	}

	require.Len(t, terminals, 4)

	assert.Equal(t, []string{"Hel", "lo"}, chunks["a"])
	assert.Empty(t, terminals["a"].Error)
	assert.Equal(t, "", terminals["a"].Chunk)

	assert.Equal(t, []string{"partial"}, chunks["b"])
	assert.Equal(t, "B API error", terminals["b"].Error)

	assert.Empty(t, chunks["c"])
	assert.Equal(t, "C API key not configured", terminals["c"].Error)

	assert.Equal(t, "Model zzz not found", terminals["zzz"].Error)
}

func TestDispatchStream_ReassemblesToBatchText(t *testing.T) {
	full := "The quick brown fox jumps over the lazy dog"
	pieces := strings.SplitAfter(full, " ")

	p := &MockProvider{name: "P"}
	p.On("Chat", mock.Anything, mock.Anything).Return(full, nil)
	p.On("Stream", mock.Anything, mock.Anything).Return(scripted(context.Background(), pieces, 0, nil), nil)

	svc := newService(t, gateway.Options{}, entry("p", p))

	batch := svc.Dispatch(context.Background(), &api.Prompt{Text: "x"}, []string{"p"})

	var sb strings.Builder
	for _, ev := range collect(svc.DispatchStream(context.Background(), &api.Prompt{Text: "x"}, []string{"p"})) {
		sb.WriteString(ev.Chunk)
	}
	assert.Equal(t, batch[0].Text, sb.String())
}

// streamFunc builds its stream from the context the dispatcher hands it.
type streamFunc func(ctx context.Context) <-chan llm.Delta

func (f streamFunc) Name() string { return "Slow" }
func (f streamFunc) Type() string { return "mock" }
func (f streamFunc) Chat(ctx context.Context, prompt *api.Prompt) (string, error) {
	return "", errors.New("not used")
}
func (f streamFunc) Stream(ctx context.Context, prompt *api.Prompt) (<-chan llm.Delta, error) {
	return f(ctx), nil
}

func TestDispatchStream_TimeoutAfterPartialOutput(t *testing.T) {
	slow := streamFunc(func(ctx context.Context) <-chan llm.Delta {
		return scripted(ctx, []string{"a", "b", "c", "d"}, 40*time.Millisecond, nil)
	})

	svc := newService(t, gateway.Options{Timeout: 60 * time.Millisecond}, entry("slow", slow))
	events := collect(svc.DispatchStream(context.Background(), &api.Prompt{Text: "x"}, []string{"slow"}))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.Done)
	assert.Equal(t, "Slow request timed out", last.Error)
	assert.Less(t, len(events)-1, 4)
}

func TestDispatchStream_CancelClosesChannel(t *testing.T) {
	endless := streamFunc(func(ctx context.Context) <-chan llm.Delta {
		ch := make(chan llm.Delta)
		go func() {
			defer close(ch)
			for llm.Send(ctx, ch, llm.Delta{Text: "tick "}) == nil {
			}
		}()
		return ch
	})

	ctx, cancel := context.WithCancel(context.Background())
	svc := newService(t, gateway.Options{}, entry("e", endless), entry("e2", endless))
	out := svc.DispatchStream(ctx, &api.Prompt{Text: "x"}, []string{"e", "e2"})

	first := <-out
	assert.False(t, first.Done)
	cancel()

	done := make(chan struct{})
	go func() {
		for range out {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream channel was not closed after cancellation")
	}
}

type recordingIngestor struct {
	mu   sync.Mutex
	rows []*model.RequestLog
}

func (r *recordingIngestor) Log(l *model.RequestLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, l)
}
func (r *recordingIngestor) Start(context.Context) {}
func (r *recordingIngestor) Stop()                 {}

func TestDispatch_RecordsAnalytics(t *testing.T) {
	p := &MockProvider{name: "P"}
	p.On("Chat", mock.Anything, mock.Anything).Return("", errors.New("connection reset"))

	reg, err := gateway.RegistryOf(entry("p", p))
	require.NoError(t, err)
	ing := &recordingIngestor{}
	svc := gateway.NewService(zap.NewNop(), reg, ing, nil, gateway.Options{})

	svc.Dispatch(context.Background(), &api.Prompt{Text: "x"}, []string{"p", "ghost"})

	require.Len(t, ing.rows, 2)
	byModel := map[string]*model.RequestLog{}
	for _, r := range ing.rows {
		byModel[r.ModelID] = r
	}
	assert.Equal(t, "transport", byModel["p"].Status)
	assert.Equal(t, "unknown_model", byModel["ghost"].Status)
	assert.Equal(t, byModel["p"].DispatchID, byModel["ghost"].DispatchID)
}

func TestRegistry(t *testing.T) {
	p := &MockProvider{name: "P"}

	_, err := gateway.RegistryOf(entry("p", p), entry("p", p))
	assert.Error(t, err)

	reg, err := gateway.RegistryOf(entry("b", p), entry("a", p))
	require.NoError(t, err)

	_, ok := reg.Lookup("missing")
	assert.False(t, ok)

	models := reg.Models()
	require.Len(t, models, 2)
	assert.Equal(t, "a", models[0].ID)
	assert.True(t, models[0].Configured)
}
