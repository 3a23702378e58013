package orchestrator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/imageforge/internal/archive"
	"github.com/aliskhannn/imageforge/internal/model"
	"github.com/aliskhannn/imageforge/internal/settings"
	"github.com/aliskhannn/imageforge/internal/stats"
)

// Progress allocation across the batch states: 20% for extraction, 10%
// for discovery and sampling, 70% spread evenly over the selected
// folders, reconciled to exactly 100 at completion.
const (
	progressExtracted = 20
	progressSampled   = 30
	transformShare    = 70
)

// gcGrace is how long a terminal job stays readable before it is dropped
// from the registry, so late subscribers can still fetch its snapshot.
const gcGrace = 2 * time.Minute

// ingestor extracts source archives and discovers image folders.
type ingestor interface {
	ExtractAll(archivePaths []string) ([]string, []error)
	DiscoverImageFolders(roots []string) []string
}

// imagePlanner builds one randomized modification plan per image.
type imagePlanner interface {
	Plan(cfg settings.TransformationConfig) model.ModificationPlan
}

// metadataSynthesizer builds one randomized capture-metadata record.
type metadataSynthesizer interface {
	Synthesize(cfg settings.MetadataConfig) model.MetadataSet
}

// imageExecutor transforms a single image according to its plan.
type imageExecutor interface {
	Execute(ctx context.Context, inputPath, outputPath string, plan model.ModificationPlan, set *model.MetadataSet) error
}

// configProvider returns the current transformation settings. The
// orchestrator reads one snapshot per job and never re-reads it mid-run.
type configProvider interface {
	Get(ctx context.Context) (settings.TransformationConfig, error)
}

// statsSink records processing statistics. Safe for concurrent jobs.
type statsSink interface {
	IncrementProcessed(ctx context.Context, n int) error
	IncrementFailed(ctx context.Context) error
	IncrementSent(ctx context.Context) error
	SetTotalSourceArchives(ctx context.Context, n int) error
	RecordActivity(ctx context.Context, rec stats.ActivityRecord) error
}

// publisher delivers progress events to subscribers.
type publisher interface {
	Publish(evt model.ProgressEvent)
}

// archiveStore uploads finished archives to object storage. Optional.
type archiveStore interface {
	SaveFile(ctx context.Context, subdir, path string) (string, error)
}

// readyNotifier announces finished archives to the delivery plumbing. Optional.
type readyNotifier interface {
	Announce(ctx context.Context, ready model.ArchiveReady) error
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Ingestor    ingestor
	Planner     imagePlanner
	Synthesizer metadataSynthesizer
	Executor    imageExecutor
	Provider    configProvider
	Sink        statsSink
	Broadcast   publisher
	Store       archiveStore  // may be nil
	Notifier    readyNotifier // may be nil
}

// Orchestrator drives batch jobs through extraction, discovery, folder
// sampling, transformation and packaging, publishing a single monotonic
// progress stream per job. Each job runs on its own goroutine; the
// orchestrator itself is safe for concurrent use.
type Orchestrator struct {
	workDir string
	deps    Deps
	rng     *rand.Rand

	mu   sync.Mutex
	jobs map[uuid.UUID]*model.ProcessingJob
}

// New creates an Orchestrator working under workDir. A nil rng falls
// back to an unseeded source.
func New(workDir string, deps Deps, rng *rand.Rand) *Orchestrator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Orchestrator{
		workDir: workDir,
		deps:    deps,
		rng:     rng,
		jobs:    make(map[uuid.UUID]*model.ProcessingJob),
	}
}

// CreateJob registers a new pending job and returns its snapshot.
func (o *Orchestrator) CreateJob() model.ProcessingJob {
	now := time.Now().UTC()
	job := &model.ProcessingJob{
		ID:        uuid.New(),
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	o.mu.Lock()
	o.jobs[job.ID] = job
	o.mu.Unlock()

	return *job
}

// Job returns a snapshot of the job with the given id.
func (o *Orchestrator) Job(id uuid.UUID) (model.ProcessingJob, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	job, ok := o.jobs[id]
	if !ok {
		return model.ProcessingJob{}, false
	}

	return *job, true
}

// Run executes one batch request to completion or failure. It emits
// exactly one terminal event and runs on the caller's goroutine; callers
// dispatch one goroutine per job.
func (o *Orchestrator) Run(ctx context.Context, req model.BatchRequest) {
	job := o.job(req.JobID)

	cfg, err := o.deps.Provider.Get(ctx)
	if err != nil {
		o.fail(ctx, job, fmt.Errorf("read configuration: %w", err))
		return
	}

	o.setStatus(job, model.StatusRunning)
	o.publish(job, 0, "starting batch")

	if err := o.deps.Sink.SetTotalSourceArchives(ctx, len(req.ArchivePaths)); err != nil {
		zlog.Logger.Err(err).Msg("failed to record source archive count")
	}

	// Extracting.
	extractDirs, extractErrs := o.deps.Ingestor.ExtractAll(req.ArchivePaths)
	defer o.cleanup(extractDirs)
	if len(extractDirs) == 0 {
		o.fail(ctx, job, fmt.Errorf("all %d archives failed to extract", len(extractErrs)))
		return
	}
	o.publish(job, progressExtracted, "archives extracted")

	// Discovering.
	folders := o.deps.Ingestor.DiscoverImageFolders(extractDirs)
	if len(folders) == 0 {
		o.fail(ctx, job, fmt.Errorf("no image folders found in %d archives", len(extractDirs)))
		return
	}

	// Sampling.
	limit := cfg.NumFolders
	if req.NumFolders > 0 {
		limit = req.NumFolders
	}
	selected := o.sampleFolders(folders, limit)

	o.mu.Lock()
	job.FolderCount = len(selected)
	o.mu.Unlock()
	o.publish(job, progressSampled, fmt.Sprintf("selected %d of %d folders", len(selected), len(folders)))

	// Transforming.
	outDir := filepath.Join(o.workDir, "result-"+job.ID.String())
	defer o.cleanup([]string{outDir})

	if err := o.transform(ctx, job, cfg, selected, outDir); err != nil {
		o.fail(ctx, job, err)
		return
	}

	if err := o.deps.Sink.IncrementProcessed(ctx, job.ProcessedImages); err != nil {
		zlog.Logger.Err(err).Msg("failed to record processed image count")
	}

	// Packaging.
	zipPath := filepath.Join(o.workDir, "batch-"+job.ID.String()+".zip")
	if err := archive.Pack(outDir, zipPath); err != nil {
		o.fail(ctx, job, fmt.Errorf("package results: %w", err))
		return
	}

	objectPath := o.upload(ctx, zipPath)

	o.complete(ctx, job, zipPath, objectPath)
}

// transform processes every selected folder into a mirrored output
// folder. Per-image failures are logged and never abort the batch.
func (o *Orchestrator) transform(ctx context.Context, job *model.ProcessingJob, cfg settings.TransformationConfig, selected []string, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}

	// Folder-to-metadata associations live for this job only.
	folderMeta := make(map[string]model.MetadataSet, len(selected))

	for i, folder := range selected {
		outFolder := filepath.Join(outDir, uniqueName(outDir, filepath.Base(folder)))
		if err := os.MkdirAll(outFolder, 0o755); err != nil {
			return fmt.Errorf("create output folder %s: %w", outFolder, err)
		}

		images, err := archive.ListImages(folder)
		if err != nil {
			zlog.Logger.Err(err).Str("folder", folder).Msg("failed to list folder images")
			continue
		}

		if cfg.Metadata.Enable && cfg.Metadata.ConsistentPerFolder {
			folderMeta[folder] = o.deps.Synthesizer.Synthesize(cfg.Metadata)
		}

		for _, img := range images {
			plan := o.deps.Planner.Plan(cfg)
			set := o.metadataFor(cfg, folder, folderMeta)
			out := filepath.Join(outFolder, filepath.Base(img))

			if err := o.deps.Executor.Execute(ctx, img, out, plan, set); err != nil {
				zlog.Logger.Err(err).Str("image", img).Msg("image processing failed")
				continue
			}

			o.mu.Lock()
			job.ProcessedImages++
			o.mu.Unlock()
		}

		progress := progressSampled + transformShare*(i+1)/len(selected)
		o.publish(job, progress, fmt.Sprintf("processed folder %d of %d", i+1, len(selected)))
	}

	return nil
}

// metadataFor resolves the metadata record for one image: the folder's
// shared record when consistency is on, a fresh one per image otherwise,
// nil when metadata stamping is disabled.
func (o *Orchestrator) metadataFor(cfg settings.TransformationConfig, folder string, folderMeta map[string]model.MetadataSet) *model.MetadataSet {
	if !cfg.Metadata.Enable {
		return nil
	}

	if cfg.Metadata.ConsistentPerFolder {
		set := folderMeta[folder]
		return &set
	}

	set := o.deps.Synthesizer.Synthesize(cfg.Metadata)
	return &set
}

// sampleFolders selects up to limit folders uniformly without
// replacement via a Fisher-Yates shuffle.
func (o *Orchestrator) sampleFolders(folders []string, limit int) []string {
	shuffled := make([]string, len(folders))
	copy(shuffled, folders)

	for i := len(shuffled) - 1; i > 0; i-- {
		j := o.rng.IntN(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	if limit <= 0 || limit > len(shuffled) {
		limit = len(shuffled)
	}

	return shuffled[:limit]
}

// upload pushes the finished archive to object storage when a store is
// configured. Upload failures are logged and non-fatal: the local
// archive path still serves delivery.
func (o *Orchestrator) upload(ctx context.Context, zipPath string) string {
	if o.deps.Store == nil {
		return ""
	}

	objectPath, err := o.deps.Store.SaveFile(ctx, "archives", zipPath)
	if err != nil {
		zlog.Logger.Err(err).Str("archive", zipPath).Msg("archive upload failed")
		return ""
	}

	return objectPath
}

func (o *Orchestrator) complete(ctx context.Context, job *model.ProcessingJob, zipPath, objectPath string) {
	o.mu.Lock()
	job.Status = model.StatusCompleted
	job.Progress = 100
	job.ArchivePath = zipPath
	job.ObjectPath = objectPath
	job.UpdatedAt = time.Now().UTC()
	processed := job.ProcessedImages
	o.mu.Unlock()

	o.deps.Broadcast.Publish(model.ProgressEvent{
		JobID:      job.ID,
		Progress:   100,
		Complete:   true,
		OutputPath: zipPath,
	})

	if err := o.deps.Sink.IncrementSent(ctx); err != nil {
		zlog.Logger.Err(err).Msg("failed to record sent archive")
	}
	if err := o.deps.Sink.RecordActivity(ctx, stats.ActivityRecord{
		Action:   "batch_processed",
		Details:  fmt.Sprintf("%d images", processed),
		Status:   "success",
		Filename: filepath.Base(zipPath),
	}); err != nil {
		zlog.Logger.Err(err).Msg("failed to record activity")
	}

	if o.deps.Notifier != nil {
		ready := model.ArchiveReady{
			JobID:       job.ID,
			ArchivePath: zipPath,
			ObjectPath:  objectPath,
			ImageCount:  processed,
		}
		if err := o.deps.Notifier.Announce(ctx, ready); err != nil {
			zlog.Logger.Err(err).Msg("failed to announce finished archive")
		}
	}

	o.scheduleGC(job.ID)
}

func (o *Orchestrator) fail(ctx context.Context, job *model.ProcessingJob, cause error) {
	zlog.Logger.Err(cause).Str("job", job.ID.String()).Msg("batch job failed")

	o.mu.Lock()
	job.Status = model.StatusFailed
	job.Error = cause.Error()
	job.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	o.deps.Broadcast.Publish(model.ProgressEvent{
		JobID: job.ID,
		Error: cause.Error(),
	})

	if err := o.deps.Sink.IncrementFailed(ctx); err != nil {
		zlog.Logger.Err(err).Msg("failed to record job failure")
	}
	if err := o.deps.Sink.RecordActivity(ctx, stats.ActivityRecord{
		Action:  "batch_processed",
		Details: cause.Error(),
		Status:  "failed",
	}); err != nil {
		zlog.Logger.Err(err).Msg("failed to record activity")
	}

	o.scheduleGC(job.ID)
}

// publish raises the job's progress, never lowering it, and emits an event.
func (o *Orchestrator) publish(job *model.ProcessingJob, progress int, message string) {
	o.mu.Lock()
	if progress < job.Progress {
		progress = job.Progress
	}
	job.Progress = progress
	job.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()

	o.deps.Broadcast.Publish(model.ProgressEvent{
		JobID:    job.ID,
		Progress: progress,
		Message:  message,
	})
}

func (o *Orchestrator) setStatus(job *model.ProcessingJob, status model.JobStatus) {
	o.mu.Lock()
	job.Status = status
	job.UpdatedAt = time.Now().UTC()
	o.mu.Unlock()
}

// job returns the registered job, or registers one under the given id
// when the request arrived without a prior CreateJob (queue-only path).
func (o *Orchestrator) job(id uuid.UUID) *model.ProcessingJob {
	o.mu.Lock()
	defer o.mu.Unlock()

	if job, ok := o.jobs[id]; ok {
		return job
	}

	now := time.Now().UTC()
	job := &model.ProcessingJob{ID: id, Status: model.StatusPending, CreatedAt: now, UpdatedAt: now}
	o.jobs[id] = job
	return job
}

func (o *Orchestrator) scheduleGC(id uuid.UUID) {
	time.AfterFunc(gcGrace, func() {
		o.mu.Lock()
		delete(o.jobs, id)
		o.mu.Unlock()
	})
}

// cleanup removes working directories. Failures are logged, never fatal.
func (o *Orchestrator) cleanup(dirs []string) {
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			zlog.Logger.Err(err).Str("dir", dir).Msg("failed to remove working directory")
		}
	}
}

// uniqueName returns base, or base-N when an entry with that name
// already exists under dir. Two selected folders may share a base name.
func uniqueName(dir, base string) string {
	name := base
	for n := 2; ; n++ {
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, n)
	}
}
