package exec

import (
	"sync"

	"github.com/geoobj/gol/internal/filter"
	"github.com/geoobj/gol/internal/taskqueue"
	"github.com/geoobj/gol/internal/tilewalk"
)

// RunConcurrent drains view the same way Run's sequential Iterator would,
// but dispatches each surviving tile's decode+match+filter work across
// workerCount goroutines pulling from a bounded internal/taskqueue.Queue
// (spec.md §5's multi-threaded mode). The quadtree walk itself stays
// strictly sequential — tilewalk.Walker is a single depth-first cursor,
// not safe for concurrent Next calls — only the per-tile work fans out.
//
// Candidates within one tile keep that tile's order; across tiles, the
// result order depends on goroutine scheduling and is not reproducible
// between runs. Callers that need a stable order should use Run instead.
func RunConcurrent(view View, workerCount int) ([]Candidate, error) {
	if workerCount < 1 {
		workerCount = 1
	}

	w := tilewalk.NewWalker(view.Source, view.RootPointer, view.RootTile, view.QueryBox)
	q := taskqueue.New(workerCount * 4)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var results []Candidate
	var firstErr error
	recordErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i := 0; i < workerCount; i++ {
		go func() {
			for {
				t, err := q.Process()
				if err != nil {
					return
				}
				t()
			}
		}()
	}

	for {
		payload, ok := w.Next()
		if !ok {
			break
		}
		hint := filter.TileAll
		if view.Filter != nil {
			hint = view.Filter.AcceptTile(payload.Tile, payload.Tile.MercatorBounds())
		}
		if hint == filter.TileNone {
			continue
		}

		wg.Add(1)
		ptr := payload.FeatureListPointer
		tileAll := hint == filter.TileAll
		_ = q.Submit(taskqueue.Task(func() {
			defer wg.Done()
			cands, err := processTile(view, ptr, tileAll)
			if err != nil {
				recordErr(err)
				return
			}
			mu.Lock()
			results = append(results, cands...)
			mu.Unlock()
		}))
	}
	if err := w.Err(); err != nil {
		recordErr(err)
	}

	wg.Wait()
	q.Shutdown()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func processTile(view View, pointer uint32, tileAll bool) ([]Candidate, error) {
	data, err := view.Source.ReadNode(pointer)
	if err != nil {
		return nil, err
	}
	cands, err := view.Decode(data)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if accept(view, c, tileAll) {
			out = append(out, c)
		}
	}
	return out, nil
}
