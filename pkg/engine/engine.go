package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/G9000/argenta-finance-sub001/internal/metrics"
)

// stepsPerChain is the up-front per-chain step estimate used for progress:
// chain switch + deposit + the assumed approval. It is an estimate only,
// not a contract on the actual step count.
const stepsPerChain = 3

// state is the engine's exclusive-access state. A batch and a retry are
// mutually exclusive even when they target different chains: there is one
// signer, and it can only be active on one chain at a time.
type state int

const (
	stateIdle state = iota
	stateBatchRunning
	stateChainRetrying
)

// Engine is the batch deposit orchestrator. It owns the only mutable
// state in the core: the exclusive-access guard and the accumulated
// results of the running batch.
type Engine struct {
	executor *Executor
	events   *Emitter
	cfg      BatchConfig
	logger   *zap.Logger

	mu            sync.Mutex
	state         state
	retryingChain uint64
}

// New wires the injected capabilities into an engine.
func New(
	wallet Wallet,
	reader ChainReader,
	watcher ConfirmationWatcher,
	book AddressBook,
	cfg BatchConfig,
	logger *zap.Logger,
) *Engine {
	events := NewEmitter()
	prep := NewPreparer(book)
	return &Engine{
		executor: NewExecutor(wallet, reader, watcher, prep, events, cfg, logger),
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}
}

// On subscribes a handler to the engine's event stream.
func (e *Engine) On(name EventName, handler Handler) Subscription {
	return e.events.On(name, handler)
}

// Off removes a previously registered handler.
func (e *Engine) Off(name EventName, id Subscription) {
	e.events.Off(name, id)
}

// ExecuteBatch processes the requested chain amounts strictly in caller
// order, one at a time. A single chain's failure never aborts the batch;
// the full per-chain results slice is returned regardless of aggregate
// success. Only guard violations produce a non-nil error.
func (e *Engine) ExecuteBatch(ctx context.Context, amounts []ChainAmount) ([]ChainResult, error) {
	if err := e.acquireBatch(); err != nil {
		return nil, err
	}
	defer e.release()

	batchID := uuid.NewString()
	batchStart := time.Now()
	totalSteps := stepsPerChain * len(amounts)

	e.logger.Info("Batch started",
		zap.String("batch_id", batchID),
		zap.Int("chains", len(amounts)),
		zap.Int("total_steps", totalSteps))
	e.events.Emit(EventBatchStarted, BatchStartedEvent{
		BatchID:    batchID,
		ChainCount: len(amounts),
		TotalSteps: totalSteps,
	})

	results := make([]ChainResult, 0, len(amounts))
	completed := 0
	for i, ca := range amounts {
		e.events.Emit(EventChainStarted, ChainStartedEvent{ChainID: ca.ChainID, Index: i})

		res := e.runChainWithRetry(ctx, ca)
		if res.Status == StatusSuccess {
			e.events.Emit(EventChainCompleted, ChainCompletedEvent{ChainID: ca.ChainID, Result: *res})
		} else {
			e.events.Emit(EventChainFailed, ChainFailedEvent{ChainID: ca.ChainID, Result: *res})
		}
		results = append(results, *res)

		completed += stepsPerChain
		e.emitProgress(completed, totalSteps)
	}

	e.finishBatch(batchID, results)
	metrics.BatchDuration.Observe(time.Since(batchStart).Seconds())
	return results, nil
}

// RetryChain re-runs the step executor for one previously failed chain,
// as a batch of size one. The retry starts over from the chain switch: a
// prior partial result's approval does not exempt it from re-checking the
// current allowance.
func (e *Engine) RetryChain(ctx context.Context, chainID uint64, amount string) (*ChainResult, error) {
	if err := e.acquireRetry(chainID); err != nil {
		return nil, err
	}
	defer e.release()

	batchID := uuid.NewString()
	e.logger.Info("Retrying chain",
		zap.String("batch_id", batchID),
		zap.Uint64("chain_id", chainID),
		zap.String("amount", amount))
	e.events.Emit(EventBatchStarted, BatchStartedEvent{
		BatchID:    batchID,
		ChainCount: 1,
		TotalSteps: stepsPerChain,
	})
	e.events.Emit(EventChainStarted, ChainStartedEvent{ChainID: chainID, Index: 0})

	res := e.runChainWithRetry(ctx, ChainAmount{ChainID: chainID, Amount: amount})
	if res.Status == StatusSuccess {
		e.events.Emit(EventChainCompleted, ChainCompletedEvent{ChainID: chainID, Result: *res})
	} else {
		e.events.Emit(EventChainFailed, ChainFailedEvent{ChainID: chainID, Result: *res})
	}
	e.emitProgress(stepsPerChain, stepsPerChain)

	e.finishBatch(batchID, []ChainResult{*res})
	return res, nil
}

// runChainWithRetry executes one chain up to RetryAttempts times. The loop
// stops early on success, on a non-retryable classification, or when the
// operator cancelled a signing prompt: a cancelled or partial outcome needs
// a human decision, not another prompt.
func (e *Engine) runChainWithRetry(ctx context.Context, ca ChainAmount) *ChainResult {
	attempts := e.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	// The terminal outcome is carried on res; the retry error only steers
	// the loop.
	var res *ChainResult
	_ = retry.Do(
		func() error {
			res = e.executor.ExecuteChain(ctx, ca)
			switch {
			case res.Status == StatusSuccess:
				return nil
			case res.UserCancelled:
				return retry.Unrecoverable(res.Err)
			case res.Err != nil && !res.Err.Retryable:
				return retry.Unrecoverable(res.Err)
			case res.Err != nil:
				return res.Err
			default:
				return fmt.Errorf("chain %d did not reach a terminal status", ca.ChainID)
			}
		},
		retry.Attempts(attempts),
		retry.Delay(e.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			metrics.ChainRetries.Inc()
			e.logger.Info("Chain execution failed, retrying",
				zap.Uint64("chain_id", ca.ChainID),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	return res
}

// finishBatch emits the aggregate event. Callers still get the full
// per-chain results regardless of aggregate success.
func (e *Engine) finishBatch(batchID string, results []ChainResult) {
	failed := 0
	for _, r := range results {
		if r.Status != StatusSuccess {
			failed++
		}
	}

	if failed == 0 {
		metrics.BatchesTotal.WithLabelValues("completed").Inc()
		e.logger.Info("Batch completed", zap.String("batch_id", batchID), zap.Int("chains", len(results)))
		e.events.Emit(EventBatchCompleted, BatchCompletedEvent{BatchID: batchID, Results: results})
		return
	}

	operr := Classify(fmt.Errorf("%d of %d chains did not finish with a mined deposit", failed, len(results)))
	operr.SuggestedAction = "retry failed chains individually"
	metrics.BatchesTotal.WithLabelValues("failed").Inc()
	e.logger.Warn("Batch finished with failures",
		zap.String("batch_id", batchID),
		zap.Int("failed", failed),
		zap.Int("chains", len(results)))
	e.events.Emit(EventBatchFailed, BatchFailedEvent{BatchID: batchID, Err: operr, Results: results})
}

func (e *Engine) emitProgress(completed, total int) {
	pct := 100
	if total > 0 {
		pct = int(math.Round(100 * float64(completed) / float64(total)))
	}
	if pct > 100 {
		pct = 100
	}
	e.events.Emit(EventProgressUpdated, ProgressUpdatedEvent{
		Completed:  completed,
		Total:      total,
		Percentage: pct,
	})
}

// acquireBatch takes the exclusive-access guard for a batch. It is checked
// synchronously at entry; release happens in all exit paths.
func (e *Engine) acquireBatch() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateBatchRunning:
		return serviceError(ErrBatchInProgress)
	case stateChainRetrying:
		return serviceError(fmt.Errorf("%w (chain %d)", ErrAnotherChainRetries, e.retryingChain))
	}
	e.state = stateBatchRunning
	return nil
}

// acquireRetry takes the guard for a single-chain retry. Only one retry or
// one batch may be in flight system-wide at any instant.
func (e *Engine) acquireRetry(chainID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateBatchRunning:
		return serviceError(ErrRetryWhileBatch)
	case stateChainRetrying:
		if e.retryingChain == chainID {
			return serviceError(fmt.Errorf("retry for chain %d already in progress", chainID))
		}
		return serviceError(fmt.Errorf("%w (chain %d)", ErrAnotherChainRetries, e.retryingChain))
	}
	e.state = stateChainRetrying
	e.retryingChain = chainID
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.state = stateIdle
	e.retryingChain = 0
	e.mu.Unlock()
}
