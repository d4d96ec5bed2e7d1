// Package mutate executes user commands against the copy service with
// optimistic cache writes. Every command follows the same protocol:
// snapshot the cached record, write the provisional status, dispatch the
// request, then either invalidate the collection (success) or restore the
// snapshot (failure). The post-settlement refresh reconciles whatever the
// optimistic write could not know, counters included.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"telecopy/internal/cache"
	"telecopy/internal/logger"
	"telecopy/internal/model"
	"telecopy/internal/transport"
)

// ErrNotCached means the target job has never been seen by the cache, so
// there is no record to transition.
var ErrNotCached = errors.New("job not in cache")

// TransitionError rejects a command whose target status is not reachable
// from the cached one. No request is issued.
type TransitionError struct {
	ID   string
	From model.JobStatus
	To   model.JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot go from %s to %s", e.ID, e.From, e.To)
}

type Commander interface {
	CreateJob(ctx context.Context, spec model.CopySpec) (transport.CreateResult, error)
	StopJob(ctx context.Context, id string) error
	PauseJob(ctx context.Context, id string) error
	ResumeJob(ctx context.Context, id string) error
}

// Notifier receives the per-job progress/outcome notifications the UI
// shows while a command settles.
type Notifier interface {
	Progress(id, message string)
	Success(id, message string)
	Failure(id, message string)
}

// Gate is the synchronous pre-check consulted before create.
type Gate interface {
	AllowCreate(realTime bool) error
}

type Orchestrator struct {
	client Commander
	store  *cache.Store
	notify Notifier
	gate   Gate

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(client Commander, store *cache.Store, notify Notifier, gate Gate) *Orchestrator {
	return &Orchestrator{
		client: client,
		store:  store,
		notify: notify,
		gate:   gate,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Create asks the server for a new job. Nothing is fabricated locally; the
// server assigns the id. On success the owner's collection is invalidated
// so the next refresh picks the job up authoritatively.
func (o *Orchestrator) Create(ctx context.Context, spec model.CopySpec) (transport.CreateResult, error) {
	if o.gate != nil {
		if err := o.gate.AllowCreate(spec.RealTime); err != nil {
			return transport.CreateResult{}, err
		}
	}

	key := "create:" + spec.SourceChannel
	o.notify.Progress(key, "creating copy job")

	res, err := o.client.CreateJob(ctx, spec)
	if err != nil {
		o.notify.Failure(key, "failed to create copy job")
		return transport.CreateResult{}, err
	}

	// Same key as the progress notification so a replace-by-key notifier
	// swaps the "creating" entry for the outcome.
	o.notify.Success(key, fmt.Sprintf("copy job %s created", res.ID))
	o.store.Invalidate(spec.Owner)

	logger.Log.Info("job created",
		zap.String("id", res.ID),
		zap.String("source", spec.SourceChannel),
		zap.String("target", spec.TargetChannel),
		zap.Bool("real_time", spec.RealTime))

	return res, nil
}

func (o *Orchestrator) Stop(ctx context.Context, id string) error {
	return o.runOptimistic(ctx, id, model.JobStatusStopped, "stopping job", func(ctx context.Context) error {
		return o.client.StopJob(ctx, id)
	})
}

func (o *Orchestrator) Pause(ctx context.Context, id string) error {
	return o.runOptimistic(ctx, id, model.JobStatusPaused, "pausing job", func(ctx context.Context) error {
		return o.client.PauseJob(ctx, id)
	})
}

func (o *Orchestrator) Resume(ctx context.Context, id string) error {
	return o.runOptimistic(ctx, id, model.JobStatusRunning, "resuming job", func(ctx context.Context) error {
		return o.client.ResumeJob(ctx, id)
	})
}

// runOptimistic is the shared command protocol. Commands on the same job
// serialize on a per-id lock; commands on different jobs never interact.
func (o *Orchestrator) runOptimistic(ctx context.Context, id string, target model.JobStatus, verb string, dispatch func(context.Context) error) error {
	lock := o.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	snapshot, ok := o.store.Job(id)
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotCached)
	}
	if !model.CanTransition(snapshot.Status, target) {
		return &TransitionError{ID: id, From: snapshot.Status, To: target}
	}

	provisional := snapshot
	provisional.Status = target
	o.store.Apply(provisional)
	o.notify.Progress(id, verb)

	if err := dispatch(ctx); err != nil {
		o.store.Apply(snapshot)
		o.notify.Failure(id, failureMessage(err))
		return err
	}

	o.notify.Success(id, "job is now "+string(target))
	o.store.Invalidate(snapshot.Owner)

	return nil
}

func (o *Orchestrator) lockFor(id string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[id] = lock
	}

	return lock
}

func failureMessage(err error) string {
	var te *transport.Error
	if !errors.As(err, &te) {
		return "command failed"
	}

	switch te.Kind {
	case transport.KindConnection:
		return "cannot reach the copy service"
	case transport.KindUnauthorized:
		return "session expired, please log in again"
	case transport.KindForbidden:
		return "this job belongs to another account"
	case transport.KindNotFound:
		return "job no longer exists on the server"
	case transport.KindRateLimited:
		return "too many requests, try again shortly"
	default:
		return "the copy service reported an error"
	}
}
