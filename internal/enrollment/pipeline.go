// Package enrollment builds the embedding store from the raw photo library in two
// phases: detecting faces into crop artifacts, then embedding the crops.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/detector"
	"github.com/kozaktomas/face-recognizer/internal/embedder"
	"github.com/kozaktomas/face-recognizer/internal/imaging"
	"github.com/kozaktomas/face-recognizer/internal/photos"
)

// ErrAlreadyRunning is returned when a job is started while another one runs.
var ErrAlreadyRunning = errors.New("enrollment is already running")

// MsgStopped is the status message of a job ended by Stop.
const MsgStopped = "processing stopped by user"

// Source lists the raw photos to enroll.
type Source interface {
	Subjects() ([]photos.Subject, error)
	Photos(subject string) ([]photos.Photo, error)
	Resolve(name string) (string, error)
}

// Store is the part of the embedding store the pipeline writes to.
type Store interface {
	Snapshot() *database.Snapshot
	ReplaceLabel(label string, entries []database.Entry) error
	ReplaceAll(entries []database.Entry) error
	Restore(snap *database.Snapshot)
	Save(ctx context.Context) error
}

// Pipeline runs enrollment jobs, at most one at a time.
type Pipeline struct {
	detector      detector.Detector
	embedder      embedder.Embedder
	source        Source
	artifacts     Artifacts
	store         Store
	minConfidence float64
	log           *zap.Logger

	loadPhoto func(path string) (image.Image, error)

	running  atomic.Bool
	stop     atomic.Bool
	progress atomic.Pointer[Progress]
	wg       sync.WaitGroup

	obsMu     sync.Mutex
	observers map[int]func(Progress)
	nextObs   int
}

// NewPipeline creates an idle enrollment pipeline.
func NewPipeline(det detector.Detector, emb embedder.Embedder, source Source, artifacts Artifacts, store Store, minConfidence float64, log *zap.Logger) *Pipeline {
	p := &Pipeline{
		detector:      det,
		embedder:      emb,
		source:        source,
		artifacts:     artifacts,
		store:         store,
		minConfidence: minConfidence,
		log:           log,
		loadPhoto:     imaging.Open,
		observers:     make(map[int]func(Progress)),
	}
	p.progress.Store(idleProgress())
	return p
}

// Progress returns the latest snapshot.
func (p *Pipeline) Progress() Progress {
	return *p.progress.Load()
}

// Running reports whether a job is in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Observe registers fn to be called with every published snapshot. fn runs on the
// job goroutine and must not block. The returned func unregisters it.
func (p *Pipeline) Observe(fn func(Progress)) func() {
	p.obsMu.Lock()
	id := p.nextObs
	p.nextObs++
	p.observers[id] = fn
	p.obsMu.Unlock()

	return func() {
		p.obsMu.Lock()
		delete(p.observers, id)
		p.obsMu.Unlock()
	}
}

// Start launches a job for scope (a subject name or "all") in the background and
// returns its first snapshot.
func (p *Pipeline) Start(ctx context.Context, scope string) (Progress, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Progress{}, ErrAlreadyRunning
	}
	first := p.begin(scope)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, first)
	}()
	return *first, nil
}

// Run executes a job synchronously and returns its terminal snapshot.
func (p *Pipeline) Run(ctx context.Context, scope string) (Progress, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Progress{}, ErrAlreadyRunning
	}
	first := p.begin(scope)

	p.wg.Add(1)
	defer p.wg.Done()
	p.run(ctx, first)
	return p.Progress(), nil
}

// Stop asks the running job to end after the current photo or crop. It reports
// whether a job was running.
func (p *Pipeline) Stop() bool {
	if !p.running.Load() {
		return false
	}
	p.stop.Store(true)
	return true
}

// Wait blocks until the running job, if any, has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// begin resets progress for a new job. Callers hold the running flag.
func (p *Pipeline) begin(scope string) *Progress {
	if scope == "" {
		scope = constants.AllSubjects
	}
	p.stop.Store(false)

	now := time.Now()
	first := &Progress{
		JobID:         uuid.NewString(),
		Scope:         scope,
		State:         StateDetecting,
		Running:       true,
		StatusMessage: "starting",
		Skipped:       []SkippedItem{},
		StartedAt:     &now,
	}
	p.publish(first)
	return first
}

type photoRef struct {
	subject string
	photo   photos.Photo
}

// run drives one job to a terminal state.
func (p *Pipeline) run(ctx context.Context, first *Progress) {
	defer p.running.Store(false)

	log := p.log.With(zap.String("job_id", first.JobID), zap.String("scope", first.Scope))
	all := first.Scope == constants.AllSubjects

	subjects, err := p.targetSubjects(first.Scope)
	if err != nil {
		p.fail(log, err.Error())
		return
	}

	var refs []photoRef
	for _, subject := range subjects {
		list, err := p.source.Photos(subject)
		if err != nil {
			p.fail(log, fmt.Sprintf("listing photos of %s: %v", subject, err))
			return
		}
		for _, ph := range list {
			refs = append(refs, photoRef{subject: subject, photo: ph})
		}
	}
	if len(refs) == 0 {
		p.fail(log, fmt.Sprintf("no photos found for %s", first.Scope))
		return
	}

	log.Info("enrollment started", zap.Int("subjects", len(subjects)), zap.Int("photos", len(refs)))
	p.update(func(pr *Progress) {
		pr.TotalImages = len(refs)
		pr.StatusMessage = fmt.Sprintf("detecting faces in %d photos", len(refs))
	})

	if msg, ok := p.detectPhase(ctx, log, subjects, refs); !ok {
		p.fail(log, msg)
		return
	}

	entries, msg, ok := p.embedPhase(ctx, log, subjects)
	if !ok {
		p.fail(log, msg)
		return
	}
	if len(entries) == 0 {
		p.fail(log, fmt.Sprintf("no embeddings generated for %s", first.Scope))
		return
	}

	prev := p.store.Snapshot()
	if all {
		err = p.store.ReplaceAll(entries)
	} else {
		err = p.store.ReplaceLabel(subjects[0], entries)
	}
	if err != nil {
		p.fail(log, fmt.Sprintf("updating embedding store: %v", err))
		return
	}
	if err := p.store.Save(ctx); err != nil {
		p.store.Restore(prev)
		p.fail(log, fmt.Sprintf("saving embedding store: %v", err))
		return
	}

	log.Info("enrollment complete", zap.Int("embeddings", len(entries)))
	p.finish(func(pr *Progress) {
		pr.State = StateComplete
		pr.TotalSaved = len(entries)
		pr.StatusMessage = fmt.Sprintf("processing complete: %d embeddings saved", len(entries))
	})
}

func (p *Pipeline) targetSubjects(scope string) ([]string, error) {
	if scope != constants.AllSubjects {
		name, err := p.source.Resolve(scope)
		if err != nil {
			return nil, err
		}
		return []string{name}, nil
	}

	subjects, err := p.source.Subjects()
	if err != nil {
		return nil, fmt.Errorf("listing subjects: %w", err)
	}
	names := make([]string, 0, len(subjects))
	for _, s := range subjects {
		names = append(names, s.Name)
	}
	return names, nil
}

// detectPhase writes one crop per photo with a qualifying face.
func (p *Pipeline) detectPhase(ctx context.Context, log *zap.Logger, subjects []string, refs []photoRef) (string, bool) {
	for _, subject := range subjects {
		if err := p.artifacts.Reset(subject); err != nil {
			return fmt.Sprintf("clearing crops of %s: %v", subject, err), false
		}
	}

	for i, ref := range refs {
		if msg, stopped := p.interrupted(ctx); stopped {
			return msg, false
		}

		if reason := p.detectOne(ref); reason != "" {
			log.Debug("photo skipped", zap.String("subject", ref.subject), zap.String("file", ref.photo.Name), zap.String("reason", reason))
			p.skip(ref.subject, ref.photo.Name, reason)
		}

		done := i + 1
		p.update(func(pr *Progress) {
			pr.ProcessedImages = done
			pr.Percent = float64(done) / float64(len(refs)) * constants.DetectingShare
			pr.StatusMessage = fmt.Sprintf("detecting faces: %d/%d", done, len(refs))
		})
	}
	return "", true
}

// detectOne returns a skip reason, or "" when a crop was written.
func (p *Pipeline) detectOne(ref photoRef) string {
	img, err := p.loadPhoto(ref.photo.Path)
	if err != nil {
		return fmt.Sprintf("cannot read photo: %v", err)
	}

	best, ok := detector.Best(p.detector.Detect(img), p.minConfidence)
	if !ok {
		return "no face detected"
	}

	crop := imaging.Crop(img, best.Box.Rect())
	if _, err := p.artifacts.Put(ref.subject, ref.photo.Name, crop); err != nil {
		return err.Error()
	}
	return ""
}

// embedPhase embeds every crop of the target subjects.
func (p *Pipeline) embedPhase(ctx context.Context, log *zap.Logger, subjects []string) ([]database.Entry, string, bool) {
	var crops []Artifact
	for _, subject := range subjects {
		list, err := p.artifacts.List(subject)
		if err != nil {
			return nil, fmt.Sprintf("listing crops of %s: %v", subject, err), false
		}
		crops = append(crops, list...)
	}

	log.Info("embedding faces", zap.Int("crops", len(crops)))
	p.update(func(pr *Progress) {
		pr.State = StateEmbedding
		pr.TotalCrops = len(crops)
		pr.Percent = constants.DetectingShare
		pr.StatusMessage = fmt.Sprintf("embedding %d faces", len(crops))
	})

	entries := make([]database.Entry, 0, len(crops))
	for i, a := range crops {
		if msg, stopped := p.interrupted(ctx); stopped {
			return nil, msg, false
		}

		var out embedder.Outcome
		face, err := p.artifacts.Load(a)
		if err != nil {
			out = embedder.Skip(fmt.Sprintf("cannot read crop: %v", err))
		} else {
			out = embedder.Attempt(ctx, p.embedder, face)
		}

		if out.Skipped() {
			log.Warn("crop skipped", zap.String("subject", a.Subject), zap.String("file", a.Source), zap.String("reason", out.SkipReason))
			p.skip(a.Subject, a.Source, out.SkipReason)
		} else {
			entries = append(entries, database.Entry{Embedding: out.Embedding, Label: a.Subject})
		}

		done := i + 1
		p.update(func(pr *Progress) {
			pr.EmbeddedCrops = done
			pr.Percent = constants.DetectingShare + float64(done)/float64(len(crops))*(100-constants.DetectingShare)
			pr.StatusMessage = fmt.Sprintf("embedding faces: %d/%d", done, len(crops))
		})
	}
	return entries, "", true
}

func (p *Pipeline) interrupted(ctx context.Context) (string, bool) {
	if p.stop.Load() {
		return MsgStopped, true
	}
	if err := ctx.Err(); err != nil {
		return fmt.Sprintf("processing cancelled: %v", err), true
	}
	return "", false
}

func (p *Pipeline) skip(subject, file, reason string) {
	p.update(func(pr *Progress) {
		pr.Skipped = append(slices.Clip(pr.Skipped), SkippedItem{Subject: subject, File: file, Reason: reason})
	})
}

func (p *Pipeline) fail(log *zap.Logger, reason string) {
	log.Warn("enrollment failed", zap.String("reason", reason))
	p.finish(func(pr *Progress) {
		pr.State = StateFailed
		pr.StatusMessage = reason
	})
}

// finish publishes a terminal snapshot frozen at 100%.
func (p *Pipeline) finish(fn func(*Progress)) {
	p.update(func(pr *Progress) {
		fn(pr)
		now := time.Now()
		pr.Running = false
		pr.Percent = 100
		pr.FinishedAt = &now
	})
}

// update publishes a modified copy of the current snapshot.
func (p *Pipeline) update(fn func(*Progress)) {
	next := *p.progress.Load()
	fn(&next)
	p.publish(&next)
}

func (p *Pipeline) publish(pr *Progress) {
	p.progress.Store(pr)

	p.obsMu.Lock()
	fns := make([]func(Progress), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.obsMu.Unlock()

	for _, fn := range fns {
		fn(*pr)
	}
}
