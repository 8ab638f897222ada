// Package pipeline owns the scan job lifecycle: it validates submissions,
// runs the preset's tools concurrently, aggregates their findings into a
// scored result and schedules AI enrichment once a job completes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hakim/cybershield/internal/enrich"
	"github.com/hakim/cybershield/internal/findings"
	"github.com/hakim/cybershield/internal/models"
	"github.com/hakim/cybershield/internal/storage"
	"github.com/hakim/cybershield/internal/targets"
	"github.com/hakim/cybershield/internal/tools"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = errors.New("orchestrator is shutting down")

const defaultPollInterval = 100 * time.Millisecond

// Enricher summarizes a completed result. It must not fail; problems are
// reported through Analysis.Err.
type Enricher interface {
	Summarize(ctx context.Context, result models.Result) enrich.Analysis
}

// RunnerSpec registers a tool runner with its per-invocation timeout.
// Zero Timeout means tools.DefaultTimeout.
type RunnerSpec struct {
	Runner  tools.Runner
	Timeout time.Duration
}

// Options wires an Orchestrator. Store is required.
type Options struct {
	Store storage.Store

	// Runners in registration order. Findings of a job are aggregated in
	// this order regardless of which tool finishes first.
	Runners []RunnerSpec

	// Fallback supplies findings when every tool came back empty.
	// nil disables the fallback.
	Fallback findings.Fallback

	// Enricher runs after completion. nil disables enrichment.
	Enricher Enricher

	Notify *NotifyConfig
	Scope  ScopeConfig

	// ScanDir is the root for per-job artifact directories.
	// Empty means the system temp directory.
	ScanDir string

	DefaultPreset string
	Logger        *zap.Logger
}

// SubmitRequest describes a scan to start.
type SubmitRequest struct {
	Target    string
	Requester string
	Preset    string
}

// Orchestrator drives jobs from submission to a terminal state.
type Orchestrator struct {
	store         storage.Store
	runners       []RunnerSpec
	fallback      findings.Fallback
	enricher      Enricher
	notify        *NotifyConfig
	scope         ScopeConfig
	scanDir       string
	defaultPreset string
	logger        *zap.Logger
	now           func() time.Time
	pollInterval  time.Duration

	baseCtx context.Context
	stop    context.CancelFunc

	mu      sync.Mutex
	closed  bool
	cancels map[string]context.CancelFunc // running job contexts by id
	wg      sync.WaitGroup                // run and enrichment goroutines
}

// New creates an Orchestrator. Call Shutdown to stop background work.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("pipeline: store must not be nil")
	}
	seen := make(map[string]bool, len(opts.Runners))
	for _, spec := range opts.Runners {
		if spec.Runner == nil {
			return nil, fmt.Errorf("pipeline: nil runner")
		}
		if seen[spec.Runner.Name()] {
			return nil, fmt.Errorf("pipeline: runner %q registered twice", spec.Runner.Name())
		}
		seen[spec.Runner.Name()] = true
	}

	if opts.DefaultPreset == "" {
		opts.DefaultPreset = DefaultPreset
	}
	if _, err := GetPreset(opts.DefaultPreset); err != nil {
		return nil, fmt.Errorf("pipeline: default preset: %w", err)
	}
	if opts.ScanDir == "" {
		opts.ScanDir = os.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		store:         opts.Store,
		runners:       opts.Runners,
		fallback:      opts.Fallback,
		enricher:      opts.Enricher,
		notify:        opts.Notify,
		scope:         opts.Scope,
		scanDir:       opts.ScanDir,
		defaultPreset: opts.DefaultPreset,
		logger:        opts.Logger.Named("orchestrator"),
		now:           time.Now,
		pollInterval:  defaultPollInterval,
		baseCtx:       ctx,
		stop:          stop,
		cancels:       make(map[string]context.CancelFunc),
	}, nil
}

// Submit validates the request, stores a queued job and starts it in the
// background. It returns as soon as the job is stored.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (models.Job, error) {
	if err := targets.Validate(req.Target); err != nil {
		return models.Job{}, err
	}
	if err := o.scope.ValidateTarget(req.Target); err != nil {
		return models.Job{}, err
	}

	name := req.Preset
	if name == "" {
		name = o.defaultPreset
	}
	preset, err := GetPreset(name)
	if err != nil {
		return models.Job{}, err
	}

	job := models.NewJob(req.Target, req.Requester, preset.Name, o.now())
	jobCtx, cancel := context.WithCancel(o.baseCtx)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		cancel()
		return models.Job{}, ErrShuttingDown
	}
	o.cancels[job.ID] = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	if err := o.store.CreateJob(ctx, job); err != nil {
		o.release(job.ID)
		o.wg.Done()
		return models.Job{}, fmt.Errorf("storing job: %w", err)
	}

	o.logger.Info("job queued",
		zap.String("job_id", job.ID),
		zap.String("target", job.Target),
		zap.String("preset", job.Preset),
		zap.String("requester", job.Requester))

	go o.run(jobCtx, job.ID, o.selectRunners(preset))
	return job, nil
}

// selectRunners returns the registered runners named by preset, in
// registration order. Tools that are not registered are skipped.
func (o *Orchestrator) selectRunners(preset *Preset) []RunnerSpec {
	wanted := toSet(preset.Tools)
	var out []RunnerSpec
	for _, spec := range o.runners {
		if wanted[spec.Runner.Name()] {
			out = append(out, spec)
		}
	}
	return out
}

// run is the background task for one job.
func (o *Orchestrator) run(ctx context.Context, id string, runners []RunnerSpec) {
	defer o.wg.Done()
	defer o.release(id)

	log := o.logger.With(zap.String("job_id", id))
	// Store writes must land even after the job context is cancelled.
	storeCtx := context.WithoutCancel(ctx)

	job, err := o.store.SwapJob(storeCtx, id, []models.JobState{models.StateQueued}, func(j *models.Job) {
		j.MarkRunning(o.now())
	})
	if errors.Is(err, models.ErrStateConflict) {
		log.Info("job left queue before start", zap.String("state", string(job.State)))
		return
	}
	if err != nil {
		o.fail(storeCtx, id, fmt.Errorf("starting job: %w", err), log)
		return
	}
	log.Info("job running", zap.Int("tools", len(runners)))

	result, err := o.execute(ctx, job, runners, log)
	if err != nil {
		o.fail(storeCtx, id, err, log)
		return
	}
	if ctx.Err() != nil {
		// Cancelled jobs are already terminal and fail's swap is a no-op.
		o.fail(storeCtx, id, fmt.Errorf("scan interrupted: %w", context.Cause(ctx)), log)
		return
	}

	done, err := o.store.CompleteJob(storeCtx, id, result, o.now())
	if errors.Is(err, models.ErrStateConflict) {
		log.Info("job left running state, result discarded", zap.String("state", string(done.State)))
		return
	}
	if err != nil {
		o.fail(storeCtx, id, fmt.Errorf("storing result: %w", err), log)
		return
	}

	log.Info("job completed",
		zap.Int("score", result.Score),
		zap.Int("findings", len(result.Findings)),
		zap.Bool("synthetic", result.Synthetic))

	if o.enricher != nil {
		o.wg.Add(1)
		go o.enrich(result, log)
	}
	o.sendCompletion(storeCtx, done, &result, log)
}

// execute runs every tool concurrently and aggregates their output.
func (o *Orchestrator) execute(ctx context.Context, job models.Job, runners []RunnerSpec, log *zap.Logger) (models.Result, error) {
	workDir, err := storage.CreateScanDir(o.scanDir, job.Target, job.ID, *job.StartedAt)
	if err != nil {
		return models.Result{}, fmt.Errorf("creating scan directory: %w", err)
	}

	target := targets.URL(job.Target)
	outputs := make([]tools.Output, len(runners))

	var wg conc.WaitGroup
	for i, spec := range runners {
		wg.Go(func() {
			outputs[i], _ = tools.Invoke(ctx, spec.Runner, target, workDir, spec.Timeout, log)
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		log.Error("tool runner panicked", zap.Any("value", r.Value), zap.ByteString("stack", r.Stack))
		return models.Result{}, fmt.Errorf("tool runner panicked: %v", r.Value)
	}

	result := models.Result{
		JobID:      job.ID,
		Target:     job.Target,
		Findings:   []models.Finding{},
		ServerInfo: map[string]string{},
		Tools:      make([]models.ToolRun, 0, len(outputs)),
	}
	for _, out := range outputs {
		result.Findings = append(result.Findings, out.Findings...)
		// First tool to report a key wins.
		for k, v := range out.ServerInfo {
			if _, ok := result.ServerInfo[k]; !ok {
				result.ServerInfo[k] = v
			}
		}
		result.Tools = append(result.Tools, out.ToolRun())
	}

	if len(result.Findings) == 0 && o.fallback != nil && ctx.Err() == nil {
		result.Findings = o.fallback.Generate(o.now())
		result.Synthetic = true
		log.Warn("no tool produced findings, using synthetic fallback", zap.Int("findings", len(result.Findings)))
	}

	result.SeverityCounts = findings.CountSeverities(result.Findings)
	result.Score = findings.Score(result.SeverityCounts)
	result.CreatedAt = o.now()
	return result, nil
}

// fail moves a non-terminal job to failed. Jobs already terminal are left alone.
func (o *Orchestrator) fail(ctx context.Context, id string, cause error, log *zap.Logger) {
	job, err := o.store.SwapJob(ctx, id, []models.JobState{models.StateQueued, models.StateRunning}, func(j *models.Job) {
		j.MarkTerminal(models.StateFailed, o.now(), cause.Error())
	})
	if errors.Is(err, models.ErrStateConflict) {
		log.Info("job already terminal", zap.String("state", string(job.State)), zap.NamedError("cause", cause))
		return
	}
	if err != nil {
		log.Error("could not record job failure", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	log.Error("job failed", zap.Error(cause))
	o.sendCompletion(ctx, job, nil, log)
}

func (o *Orchestrator) enrich(result models.Result, log *zap.Logger) {
	defer o.wg.Done()

	analysis := o.enricher.Summarize(o.baseCtx, result)
	merged, err := o.store.MergeEnrichment(context.WithoutCancel(o.baseCtx), result.JobID, analysis.Enrichment(o.now()))
	if err != nil {
		log.Error("could not store enrichment", zap.Error(err))
		return
	}
	if analysis.Err != nil {
		log.Warn("enrichment fell back to default payload", zap.Error(analysis.Err))
		return
	}
	log.Info("enrichment stored", zap.Int("recommendations", len(merged.Recommendations)))
}

func (o *Orchestrator) sendCompletion(ctx context.Context, job models.Job, result *models.Result, log *zap.Logger) {
	if err := o.notify.SendCompletion(ctx, job, result); err != nil {
		log.Warn("completion webhook failed", zap.Error(err))
	}
}

// release cancels and forgets the job's context.
func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	cancel := o.cancels[id]
	delete(o.cancels, id)
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Cancel stops a queued or running job. In-flight tools are killed through
// the job's context. Cancelling a terminal job returns
// models.ErrInvalidTransition.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (models.Job, error) {
	job, err := o.store.SwapJob(ctx, id, []models.JobState{models.StateQueued, models.StateRunning}, func(j *models.Job) {
		j.MarkTerminal(models.StateCancelled, o.now(), "")
	})
	if errors.Is(err, models.ErrStateConflict) {
		return job, fmt.Errorf("cannot cancel %s job %s: %w", job.State, id, models.ErrInvalidTransition)
	}
	if err != nil {
		return models.Job{}, err
	}

	o.mu.Lock()
	cancel := o.cancels[id]
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	o.logger.Info("job cancelled", zap.String("job_id", id))
	return job, nil
}

// Get returns the current state of a job.
func (o *Orchestrator) Get(ctx context.Context, id string) (models.Job, error) {
	return o.store.GetJob(ctx, id)
}

// GetResult returns the result of a completed job, or models.ErrNotReady
// while the job has not completed.
func (o *Orchestrator) GetResult(ctx context.Context, id string) (models.Result, error) {
	job, err := o.store.GetJob(ctx, id)
	if err != nil {
		return models.Result{}, err
	}
	if job.State != models.StateCompleted {
		return models.Result{}, fmt.Errorf("job %s is %s: %w", id, job.State, models.ErrNotReady)
	}
	return o.store.GetResult(ctx, id)
}

// List returns the requester's jobs, newest first. Anonymous requesters
// have no history.
func (o *Orchestrator) List(ctx context.Context, requester string) ([]models.Job, error) {
	if requester == "" || requester == models.AnonymousRequester {
		return []models.Job{}, nil
	}
	return o.store.ListJobs(ctx, requester)
}

// AnonymousLatestLimit caps how many recent reports an anonymous caller sees.
const AnonymousLatestLimit = 3

// Latest returns the requester's completed results, newest first. An
// anonymous caller gets the AnonymousLatestLimit most recent results of
// any requester.
func (o *Orchestrator) Latest(ctx context.Context, requester string) ([]models.Result, error) {
	var (
		jobs []models.Job
		err  error
	)
	if requester == "" || requester == models.AnonymousRequester {
		jobs, err = o.store.ListRecent(ctx, models.StateCompleted, AnonymousLatestLimit)
	} else {
		jobs, err = o.store.ListJobs(ctx, requester)
	}
	if err != nil {
		return nil, err
	}

	results := []models.Result{}
	for _, job := range jobs {
		if job.State != models.StateCompleted {
			continue
		}
		result, err := o.store.GetResult(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("loading result %s: %w", job.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// Wait blocks until the job reaches a terminal state or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context, id string) (models.Job, error) {
	return poll(ctx, o.pollInterval, func() (models.Job, bool, error) {
		job, err := o.store.GetJob(ctx, id)
		return job, err == nil && job.State.IsTerminal(), err
	})
}

// WaitAnalyzed blocks until the job's result carries enrichment. It returns
// the plain result when enrichment is disabled and models.ErrNotReady if
// the job ended without completing.
func (o *Orchestrator) WaitAnalyzed(ctx context.Context, id string) (models.Result, error) {
	job, err := o.Wait(ctx, id)
	if err != nil {
		return models.Result{}, err
	}
	if job.State != models.StateCompleted {
		return models.Result{}, fmt.Errorf("job %s is %s: %w", id, job.State, models.ErrNotReady)
	}
	return poll(ctx, o.pollInterval, func() (models.Result, bool, error) {
		result, err := o.store.GetResult(ctx, id)
		return result, err == nil && (o.enricher == nil || result.AnalyzedAt != nil), err
	})
}

// Shutdown cancels every job and waits for background work to exit, or
// for ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func poll[T any](ctx context.Context, interval time.Duration, check func() (T, bool, error)) (T, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		v, ok, err := check()
		if err != nil || ok {
			return v, err
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}

// toSet converts a string slice into a boolean lookup map.
func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
