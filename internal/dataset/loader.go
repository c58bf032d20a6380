package dataset

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"

	"kws-trainer/internal/model"
)

// LoaderOptions configures batching of a Dataset.
type LoaderOptions struct {
	BatchSize  int
	Shuffle    bool
	NumWorkers int
	Seed       int64
	// DropLast discards a trailing batch smaller than BatchSize.
	DropLast bool
}

// Loader yields batches over a Dataset, one full pass per Stream call.
// Stream must not be called concurrently on the same Loader.
type Loader struct {
	ds   *Dataset
	opts LoaderOptions
	rng  *rand.Rand
}

// NewLoader validates opts and binds them to ds.
func NewLoader(ds *Dataset, opts LoaderOptions) (*Loader, error) {
	if ds == nil {
		return nil, errors.New("loader: nil dataset")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("loader: batch size must be > 0 (got %d)", opts.BatchSize)
	}
	if opts.NumWorkers < 0 {
		return nil, fmt.Errorf("loader: workers must be >= 0 (got %d)", opts.NumWorkers)
	}
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	return &Loader{ds: ds, opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}, nil
}

// NumBatches returns the number of batches in one pass.
func (l *Loader) NumBatches() int {
	n := l.ds.Len()
	if l.opts.DropLast {
		return n / l.opts.BatchSize
	}
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

type batchJob struct {
	id      int
	indices []int
}

type batchResult struct {
	id    int
	batch model.Batch
	err   error
}

// Stream starts one pass over the dataset. Batches arrive in pass order
// regardless of NumWorkers. The batch channel closes when the pass ends;
// the error channel then yields at most one error before closing.
func (l *Loader) Stream(parent context.Context) (<-chan model.Batch, <-chan error) {
	plan := l.plan()
	ctx, cancel := context.WithCancel(parent)
	out := make(chan model.Batch, max(l.opts.NumWorkers, 1))
	errCh := make(chan error, 1)

	if l.opts.NumWorkers == 0 {
		go func() {
			defer cancel()
			defer close(errCh)
			defer close(out)
			for _, job := range plan {
				batch, err := l.build(job.indices)
				if err != nil {
					errCh <- err
					return
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- batch:
				}
			}
		}()
		return out, errCh
	}

	jobs := make(chan batchJob, l.opts.NumWorkers)
	results := make(chan batchResult, l.opts.NumWorkers)

	go func() {
		defer close(jobs)
		for _, job := range plan {
			select {
			case <-ctx.Done():
				return
			case jobs <- job:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < l.opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.worker(ctx, jobs, results)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer cancel()
		defer close(errCh)
		defer close(out)
		if err := runAggregator(ctx, results, out, len(plan)); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (l *Loader) worker(ctx context.Context, jobs <-chan batchJob, results chan<- batchResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			batch, err := l.build(job.indices)
			select {
			case <-ctx.Done():
				return
			case results <- batchResult{id: job.id, batch: batch, err: err}:
			}
		}
	}
}

// runAggregator re-sequences worker results by job id.
func runAggregator(ctx context.Context, results <-chan batchResult, out chan<- model.Batch, total int) error {
	pending := make(map[int]batchResult)
	next := 0
	for res := range results {
		pending[res.id] = res
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if ready.err != nil {
				return ready.err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- ready.batch:
			}
			next++
		}
	}
	if next < total {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("loader: pass ended after %d of %d batches", next, total)
	}
	return nil
}

// plan fixes the sample order of one pass and cuts it into batch jobs.
func (l *Loader) plan() []batchJob {
	n := l.ds.Len()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if l.opts.Shuffle {
		l.rng.Shuffle(n, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	jobs := make([]batchJob, 0, l.NumBatches())
	for start := 0; start < n; start += l.opts.BatchSize {
		end := min(start+l.opts.BatchSize, n)
		if l.opts.DropLast && end-start < l.opts.BatchSize {
			break
		}
		jobs = append(jobs, batchJob{id: len(jobs), indices: order[start:end]})
	}
	return jobs
}

func (l *Loader) build(indices []int) (model.Batch, error) {
	batch := model.Batch{
		Inputs:  make([]*mat.Dense, 0, len(indices)),
		Labels:  make([]int, 0, len(indices)),
		Indices: append([]int(nil), indices...),
	}
	for _, idx := range indices {
		sample, err := l.ds.At(idx)
		if err != nil {
			return model.Batch{}, err
		}
		batch.Inputs = append(batch.Inputs, sample.Features)
		batch.Labels = append(batch.Labels, sample.Label)
	}
	return batch, nil
}
