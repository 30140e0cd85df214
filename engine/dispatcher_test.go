package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	name  string
	title string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{Title: f.title, EngineName: f.name}, nil
}

func containsLifeline(title string) bool {
	return strings.Contains(strings.ToLower(title), "lifeline")
}

func TestDispatcher_FirstAcceptedWins(t *testing.T) {
	fast := &fakeEngine{name: "http", title: "Lifeline"}
	slow := &fakeEngine{name: "browser", title: "Lifeline", delay: time.Second}
	mem := NewEngineMemory(time.Hour)
	defer mem.Stop()

	d := NewDispatcher([]Engine{fast, slow}, []time.Duration{0, 50 * time.Millisecond}, mem)
	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "http://localhost:63441", Accept: containsLifeline})
	require.NoError(t, err)

	assert.Equal(t, "http", res.EngineName)
	assert.Equal(t, "http", mem.Get("localhost:63441"))
}

func TestDispatcher_EscalatesPastRejectedTitle(t *testing.T) {
	static := &fakeEngine{name: "http", title: "Loading"}
	rendered := &fakeEngine{name: "browser", title: "Lifeline", delay: 10 * time.Millisecond}

	d := NewDispatcher([]Engine{static, rendered}, nil, nil)
	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "http://localhost:1", Accept: containsLifeline})
	require.NoError(t, err)
	assert.Equal(t, "browser", res.EngineName)
}

func TestDispatcher_NoAcceptedTitleReturnsMostFaithful(t *testing.T) {
	static := &fakeEngine{name: "http", title: "Static"}
	rendered := &fakeEngine{name: "browser", title: "Untitled", delay: 10 * time.Millisecond}

	d := NewDispatcher([]Engine{static, rendered}, nil, nil)
	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "http://localhost:1", Accept: containsLifeline})
	require.NoError(t, err)
	assert.Equal(t, "Untitled", res.Title)
}

func TestDispatcher_AllFail(t *testing.T) {
	boom := errors.New("connection refused")
	d := NewDispatcher([]Engine{
		&fakeEngine{name: "http", err: boom},
		&fakeEngine{name: "browser", err: boom},
	}, nil, nil)

	_, err := d.Dispatch(context.Background(), &FetchRequest{URL: "http://localhost:1"})
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_MemoryHitSkipsRace(t *testing.T) {
	httpEng := &fakeEngine{name: "http", title: "Lifeline"}
	browserEng := &fakeEngine{name: "browser", title: "Lifeline"}
	mem := NewEngineMemory(time.Hour)
	defer mem.Stop()
	mem.Set("localhost:63441", "browser")

	d := NewDispatcher([]Engine{httpEng, browserEng}, []time.Duration{0, time.Second}, mem)
	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "http://localhost:63441/", Accept: containsLifeline})
	require.NoError(t, err)

	assert.Equal(t, "browser", res.EngineName)
	assert.Equal(t, int32(0), httpEng.calls.Load())
}

func TestDispatcher_MemoryMissFallsBackToRace(t *testing.T) {
	httpEng := &fakeEngine{name: "http", title: "Lifeline"}
	browserEng := &fakeEngine{name: "browser", err: errors.New("crashed")}
	mem := NewEngineMemory(time.Hour)
	defer mem.Stop()
	mem.Set("localhost:63441", "browser")

	d := NewDispatcher([]Engine{httpEng, browserEng}, []time.Duration{0, 50 * time.Millisecond}, mem)
	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "http://localhost:63441", Accept: containsLifeline})
	require.NoError(t, err)

	assert.Equal(t, "http", res.EngineName)
	assert.Equal(t, "http", mem.Get("localhost:63441"))
	assert.Equal(t, int32(1), browserEng.calls.Load(), "remembered engine must not be fetched twice")
	assert.Equal(t, int32(1), httpEng.calls.Load())
}

func TestDispatcher_EachEngineFetchedOnce(t *testing.T) {
	httpEng := &fakeEngine{name: "http", title: "Static"}
	browserEng := &fakeEngine{name: "browser", err: errors.New("crashed")}
	mem := NewEngineMemory(time.Hour)
	defer mem.Stop()
	mem.Set("localhost:63441", "browser")

	d := NewDispatcher([]Engine{httpEng, browserEng}, nil, mem)
	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "http://localhost:63441", Accept: containsLifeline})
	require.NoError(t, err)

	assert.Equal(t, "Static", res.Title)
	assert.Equal(t, int32(1), browserEng.calls.Load())
	assert.Equal(t, int32(1), httpEng.calls.Load())
	assert.Empty(t, mem.Get("localhost:63441"), "failed engine is forgotten")
}

func TestDispatcher_RememberedEngineHitsDeadline(t *testing.T) {
	httpEng := &fakeEngine{name: "http", title: "Lifeline", delay: time.Hour}
	browserEng := &fakeEngine{name: "browser", title: "Lifeline", delay: time.Hour}
	mem := NewEngineMemory(time.Hour)
	defer mem.Stop()
	mem.Set("localhost:63441", "browser")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	d := NewDispatcher([]Engine{httpEng, browserEng}, []time.Duration{0, time.Second}, mem)
	_, err := d.Dispatch(ctx, &FetchRequest{URL: "http://localhost:63441", Accept: containsLifeline})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), browserEng.calls.Load())
	assert.Equal(t, int32(0), httpEng.calls.Load())
}

func TestDispatcher_DeadlineBeforeAnyEngineStarts(t *testing.T) {
	httpEng := &fakeEngine{name: "http", title: "Lifeline"}
	browserEng := &fakeEngine{name: "browser", title: "Lifeline"}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	d := NewDispatcher([]Engine{httpEng, browserEng}, []time.Duration{time.Second, time.Second}, nil)
	_, err := d.Dispatch(ctx, &FetchRequest{URL: "http://localhost:63441"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, httpEng.calls.Load()+browserEng.calls.Load())
}
