package dissect

import (
	"context"
	"runtime"
	"sync"
)

// Result is the outcome of dissecting one frame.
type Result struct {
	// Index is the position of the frame in the input
	Index int
	Chain *Chain
	Err   error
}

// indexedFrame pairs a frame with its input position.
type indexedFrame struct {
	index int
	frame Frame
}

// Analyzer dissects batches of frames over one Session using a pool of
// workers.
type Analyzer struct {
	session *Session
	workers int
}

// NewAnalyzer creates an analyzer over s. workers <= 0 uses GOMAXPROCS.
func NewAnalyzer(s *Session, workers int) *Analyzer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Analyzer{session: s, workers: workers}
}

// Session returns the session the analyzer dissects with.
func (a *Analyzer) Session() *Session {
	return a.session
}

// Analyze dissects frames and returns one result per frame in input
// order. The first frame is dissected before the workers start so that it
// sets the session baseline. Analyze returns ctx.Err() if the context is
// cancelled before every frame was dissected.
func (a *Analyzer) Analyze(ctx context.Context, frames []Frame) ([]Result, error) {
	results := make([]Result, len(frames))
	if len(frames) == 0 {
		return results, nil
	}

	ch, err := a.session.Dissect(frames[0])
	results[0] = Result{Index: 0, Chain: ch, Err: err}
	if len(frames) == 1 {
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	concurrency := a.workers
	if concurrency > len(frames)-1 {
		concurrency = len(frames) - 1
	}

	jobs := make(chan indexedFrame, concurrency)
	out := make(chan Result, concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.worker(ctx, jobs, out)
		}()
	}

	go func() {
		defer close(jobs)
		for i := 1; i < len(frames); i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- indexedFrame{index: i, frame: frames[i]}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	done := 1
	for r := range out {
		results[r.Index] = r
		done++
	}

	if done < len(frames) {
		return results, ctx.Err()
	}
	return results, nil
}

// worker dissects frames from jobs until the channel closes.
func (a *Analyzer) worker(ctx context.Context, jobs <-chan indexedFrame, out chan<- Result) {
	for j := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ch, err := a.session.Dissect(j.frame)
		out <- Result{Index: j.index, Chain: ch, Err: err}
	}
}
