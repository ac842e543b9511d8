package tcgplayer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/joshwilhelmi/tcgplayer-go/internal/constants"
)

// BatchOperation is one request in a batch. The caller-chosen ID is echoed
// back on the matching BatchResult.
type BatchOperation struct {
	ID       string
	Request  *Request
	Callback func(result *BatchResult)
}

// BatchResult reports the outcome of a single operation.
type BatchResult struct {
	ID       string
	Success  bool
	Response *Response
	Error    error
	Duration time.Duration
}

// BatchExecutor fans a set of operations out over a client, at most
// concurrency at a time. The bound caps in-flight goroutines; dispatch onto
// the wire stays metered by the client's rate limiter.
type BatchExecutor struct {
	client      Client
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor returns an executor running at most concurrency operations
// at once. Out-of-range values are pulled back into [1, 10].
func NewBatchExecutor(client Client, concurrency int) *BatchExecutor {
	switch {
	case concurrency <= 0:
		concurrency = constants.DefaultBatchConcurrency
	case concurrency > constants.MaxBatchConcurrency:
		concurrency = constants.MaxBatchConcurrency
	}

	return &BatchExecutor{
		client:      client,
		concurrency: concurrency,
		timeout:     constants.DefaultBatchTimeout,
	}
}

// SetTimeout overrides the per-operation timeout.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs every operation and returns results indexed by operation
// order, whatever order they finish in. Failures are reported on the
// individual results; Execute itself does not fail with them.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(operations))
	slots := make(chan struct{}, b.concurrency)

	var wg sync.WaitGroup

	for i, operation := range operations {
		i, operation := i, operation

		slots <- struct{}{}

		wg.Add(1)

		go func() {
			defer func() {
				<-slots

				wg.Done()
			}()

			results[i] = b.run(ctx, operation)

			if operation.Callback != nil {
				operation.Callback(&results[i])
			}
		}()
	}

	wg.Wait()

	return results, nil
}

// run performs one operation under the executor's timeout, stamping how long
// the client call took.
func (b *BatchExecutor) run(ctx context.Context, operation BatchOperation) BatchResult {
	result := BatchResult{ID: operation.ID}

	if operation.Request == nil {
		result.Error = ErrRequestRequired

		return result
	}

	opCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	result.Response, result.Error = b.client.Execute(opCtx, operation.Request)
	result.Duration = time.Since(start)
	result.Success = result.Error == nil

	return result
}

// BatchBuilder accumulates operations for a single Execute call.
type BatchBuilder struct {
	operations []BatchOperation
}

// NewBatchBuilder returns an empty builder.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{}
}

// AddGet queues a cache-eligible GET of path. Params, when present, are
// encoded onto the query string.
func (b *BatchBuilder) AddGet(id, path string, params *QueryParams) *BatchBuilder {
	req := &Request{
		Method:        http.MethodGet,
		Path:          path,
		CacheEligible: true,
	}
	if params != nil {
		req.Query = params.ToValues()
	}

	return b.AddRequest(id, req)
}

// AddPost queues a POST of body to path.
func (b *BatchBuilder) AddPost(id, path string, body interface{}) *BatchBuilder {
	return b.AddRequest(id, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// AddRequest queues a fully specified request under id.
func (b *BatchBuilder) AddRequest(id string, req *Request) *BatchBuilder {
	return b.AddOperation(BatchOperation{ID: id, Request: req})
}

// AddOperation queues a pre-built operation, callback included.
func (b *BatchBuilder) AddOperation(operation BatchOperation) *BatchBuilder {
	b.operations = append(b.operations, operation)

	return b
}

// Build returns the queued operations.
func (b *BatchBuilder) Build() []BatchOperation {
	return b.operations
}
