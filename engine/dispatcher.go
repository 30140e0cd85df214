package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher coordinates multi-engine racing with staged escalation.
// It starts the cheapest engine first and progressively escalates to
// heavier engines if earlier ones fail or load a title that is not accepted.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	memory           *EngineMemory
}

// NewDispatcher creates a Dispatcher with the given engines and escalation delays.
// engines[i] starts after escalationDelays[i] from the race beginning; missing
// delays default to 0. Engines are ordered from cheapest to most faithful.
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, memory *EngineMemory) *Dispatcher {
	delays := make([]time.Duration, len(engines))
	copy(delays, escalationDelays)
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		memory:           memory,
	}
}

// Name identifies the dispatcher when it is used as an Engine.
func (d *Dispatcher) Name() string { return "auto" }

// Fetch implements Engine.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	return d.Dispatch(ctx, req)
}

// Dispatch returns the first result whose title is accepted. If no engine
// produces an accepted title, it returns the loaded result of the most
// faithful engine that loaded the page, so the caller can still report the
// actual title. If nothing loaded, it returns the last error, or the context
// error when the deadline ended the race. Each engine is fetched at most once.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	host := hostKey(req.URL)

	remembered := ""
	if d.memory != nil {
		remembered = d.memory.Get(host)
	}
	if remembered != "" {
		slog.Debug("engine memory hit", "host", host, "engine", remembered)
	}

	result, err := d.race(ctx, req, host, d.plan(remembered))
	if d.memory != nil && remembered != "" && (err != nil || !req.accepts(result.Title)) {
		slog.Info("engine memory miss", "host", host, "engine", remembered, "error", err)
		d.memory.Delete(host)
	}
	return result, err
}

// entrant is one engine's slot in a race.
type entrant struct {
	engine Engine
	rank   int // position in d.engines; higher is more faithful
	delay  time.Duration
}

// plan orders the race. A remembered engine moves to the front and takes the
// first delay slot; the others keep their relative order behind it.
func (d *Dispatcher) plan(remembered string) []entrant {
	order := make([]int, 0, len(d.engines))
	for i, eng := range d.engines {
		if remembered != "" && eng.Name() == remembered {
			order = append([]int{i}, order...)
			continue
		}
		order = append(order, i)
	}

	plan := make([]entrant, len(order))
	for slot, i := range order {
		plan[slot] = entrant{engine: d.engines[i], rank: i, delay: d.escalationDelays[slot]}
	}
	return plan
}

// race runs the planned engines with staged delays.
func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, host string, plan []entrant) (*FetchResult, error) {
	type raceResult struct {
		rank   int
		result *FetchResult
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(plan))
	var wg sync.WaitGroup

	for _, en := range plan {
		wg.Add(1)
		go func(en entrant) {
			defer wg.Done()

			if en.delay > 0 {
				timer := time.NewTimer(en.delay)
				defer timer.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-timer.C:
				}
			}

			select {
			case <-raceCtx.Done():
				return
			default:
			}

			e := en.engine
			slog.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- raceResult{rank: en.rank, result: result, err: err}
		}(en)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		lastErr  error
		best     *FetchResult
		bestRank = -1
	)
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		if req.accepts(rr.result.Title) {
			raceCancel()
			slog.Info("engine won race", "engine", rr.result.EngineName, "url", req.URL)
			if d.memory != nil {
				d.memory.Set(host, rr.result.EngineName)
			}
			return rr.result, nil
		}
		if rr.rank > bestRank {
			best, bestRank = rr.result, rr.rank
		}
	}

	switch {
	case best != nil:
		return best, nil
	case lastErr != nil:
		return nil, lastErr
	case ctx.Err() != nil:
		return nil, fmt.Errorf("dispatcher: no engine finished for %s: %w", req.URL, ctx.Err())
	default:
		return nil, fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
}

// hostKey returns host:port for a URL, so apps on different local ports
// are remembered separately.
func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
