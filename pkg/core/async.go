package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pbtsvinaysukhesh/researchrag-go/pkg/rag"
)

// defaultBatchConcurrency bounds parallel ingestion within a batch.
const defaultBatchConcurrency = 4

// BatchResult reports the outcome of a batch ingestion run.
type BatchResult struct {
	// RunID identifies the batch run in logs.
	RunID string

	// Results holds one entry per input, in input order. Failed inputs
	// leave a nil entry and an entry in Errors at the same position.
	Results []*IngestResult

	// Errors holds per-input errors, nil where ingestion succeeded.
	Errors []error

	// Ingested and Duplicates count the outcomes.
	Ingested   int
	Duplicates int
	Failed     int

	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// AsyncIngestResult carries one asynchronous ingestion outcome.
type AsyncIngestResult struct {
	Result *IngestResult
	Error  error
}

// AsyncRetrieveResult carries one asynchronous retrieval outcome.
type AsyncRetrieveResult struct {
	Result *rag.Result
	Error  error
}

// AsyncClient wraps a Client with concurrent batch ingestion and
// channel-returning single operations. Wait blocks until every
// operation started through it has finished; call it before Close.
type AsyncClient struct {
	*Client
	concurrency int
	wg          sync.WaitGroup
}

// AsyncOption configures the async client.
type AsyncOption func(*AsyncClient)

// WithBatchConcurrency bounds how many articles ingest in parallel.
func WithBatchConcurrency(n int) AsyncOption {
	return func(a *AsyncClient) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewAsyncClient wraps an existing client.
func NewAsyncClient(client *Client, opts ...AsyncOption) *AsyncClient {
	a := &AsyncClient{
		Client:      client,
		concurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IngestAsync runs Ingest in a goroutine and delivers the outcome on the
// returned channel. The channel is buffered and closed after one send.
func (a *AsyncClient) IngestAsync(ctx context.Context, input *IngestInput) <-chan *AsyncIngestResult {
	resultChan := make(chan *AsyncIngestResult, 1)
	a.wg.Add(1)

	go func() {
		defer a.wg.Done()
		res, err := a.Ingest(ctx, input)
		resultChan <- &AsyncIngestResult{Result: res, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// RetrieveAsync runs Retrieve in a goroutine and delivers the outcome on
// the returned channel.
func (a *AsyncClient) RetrieveAsync(ctx context.Context, query string, opts *rag.Options) <-chan *AsyncRetrieveResult {
	resultChan := make(chan *AsyncRetrieveResult, 1)
	a.wg.Add(1)

	go func() {
		defer a.wg.Done()
		res, err := a.Retrieve(ctx, query, opts)
		resultChan <- &AsyncRetrieveResult{Result: res, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until all in-flight asynchronous operations complete.
func (a *AsyncClient) Wait() {
	a.wg.Wait()
}

// IngestBatch ingests a slice of inputs with bounded concurrency.
// Individual failures are collected per input rather than aborting the
// batch; the returned error is non-nil only when the context is
// canceled.
func (a *AsyncClient) IngestBatch(ctx context.Context, inputs []*IngestInput) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{
		RunID:   uuid.NewString(),
		Results: make([]*IngestResult, len(inputs)),
		Errors:  make([]error, len(inputs)),
	}

	a.logger.Infof("batch %s: ingesting %d articles with concurrency %d",
		result.RunID, len(inputs), a.concurrency)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)

	for i, input := range inputs {
		i, input := i, input
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := a.Ingest(gctx, input)
			if err != nil {
				result.Errors[i] = err
				return nil
			}
			result.Results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, NewPipelineError("ingest-batch", err)
	}

	for i := range inputs {
		switch {
		case result.Errors[i] != nil:
			result.Failed++
		case result.Results[i].Duplicate:
			result.Duplicates++
		default:
			result.Ingested++
		}
	}
	result.Elapsed = time.Since(start)

	a.logger.Infof("batch %s: %d ingested, %d duplicates, %d failed in %s",
		result.RunID, result.Ingested, result.Duplicates, result.Failed, result.Elapsed)
	return result, nil
}
