// Package service wires the face pipelines into one object with an explicit
// lifecycle. Nothing in the core keeps package-level state.
package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/detector"
	"github.com/kozaktomas/face-recognizer/internal/embedder"
	"github.com/kozaktomas/face-recognizer/internal/enrollment"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/photos"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

// ErrLabelNotFound is returned when no enrolled entry carries the requested label.
var ErrLabelNotFound = errors.New("label not enrolled")

// Components are the externally built parts of a Service. Closers are released by
// Service.Close in order.
type Components struct {
	Detector detector.Detector
	Embedder embedder.Embedder
	Backend  database.Backend
	Closers  []io.Closer
}

// Status is the enrollment progress plus the live store size.
type Status struct {
	enrollment.Progress
	TotalEmbeddings int `json:"total_embeddings"`
}

// Stats describes the enrolled store and the crop artifacts.
type Stats struct {
	TotalEmbeddings int                   `json:"total_embeddings"`
	Dim             int                   `json:"dim"`
	Labels          []database.LabelCount `json:"labels"`
	TotalFaces      int                   `json:"total_faces"`
	Location        string                `json:"location"`
}

// Service owns the embedding store, the models, the photo library and both
// pipelines.
type Service struct {
	cfg *config.Config
	log *zap.Logger

	store       *database.EmbeddingStore
	detector    *detector.Exclusive
	embedder    embedder.Embedder
	library     *photos.Library
	artifacts   *enrollment.DirArtifacts
	recognition *recognition.Pipeline
	enrollment  *enrollment.Pipeline
	closers     []io.Closer

	ctx    context.Context
	cancel context.CancelFunc
}

// New loads the store through c.Backend and assembles the pipelines. A corrupt
// store fails construction. On error, c.Closers are released.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, c Components) (*Service, error) {
	if c.Detector == nil || c.Embedder == nil || c.Backend == nil {
		closeAll(c.Closers)
		return nil, errors.New("detector, embedder and backend are required")
	}

	store := database.NewEmbeddingStore(c.Backend)
	if err := store.Load(ctx); err != nil {
		closeAll(c.Closers)
		return nil, err
	}
	log.Info("embedding store loaded",
		zap.String("location", store.Location()),
		zap.Int("entries", store.Snapshot().Len()),
		zap.Int("dim", store.Snapshot().Dim()))

	det := detector.NewExclusive(c.Detector)
	library := photos.NewLibrary(cfg.Data.Dir, cfg.Data.CropsDir)
	artifacts := enrollment.NewDirArtifacts(cfg.Data.CropsDir)
	matcher := facematch.NewMatcher(cfg.Matcher.Threshold)

	lifecycle, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:       cfg,
		log:       log,
		store:     store,
		detector:  det,
		embedder:  c.Embedder,
		library:   library,
		artifacts: artifacts,
		closers:   c.Closers,
		ctx:       lifecycle,
		cancel:    cancel,
	}
	s.recognition = recognition.NewPipeline(det, c.Embedder, store, matcher, cfg.Detector.MinConfidence, log.Named("recognition"))
	s.enrollment = enrollment.NewPipeline(det, c.Embedder, library, artifacts, store, cfg.Detector.MinConfidence, log.Named("enrollment"))
	return s, nil
}

// Close stops a running enrollment, waits for it and releases models and
// database handles.
func (s *Service) Close() error {
	if s.enrollment.Stop() {
		s.log.Info("stopping running enrollment")
	}
	s.cancel()
	s.enrollment.Wait()
	return closeAll(s.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Recognize labels every gated face on frame.
func (s *Service) Recognize(ctx context.Context, frame image.Image) []recognition.Result {
	return s.recognition.Recognize(ctx, frame)
}

// Candidates returns the k nearest enrolled entries per gated face. A
// non-positive k uses the configured default.
func (s *Service) Candidates(ctx context.Context, frame image.Image, k int) []recognition.CandidateResult {
	if k <= 0 {
		k = s.cfg.Matcher.Candidates
	}
	return s.recognition.Candidates(ctx, frame, s.store, k)
}

// StartEnrollment launches a background job bound to the service lifecycle.
func (s *Service) StartEnrollment(scope string) (Status, error) {
	pr, err := s.enrollment.Start(s.ctx, scope)
	if err != nil {
		return Status{}, err
	}
	return s.status(pr), nil
}

// RunEnrollment runs a job synchronously.
func (s *Service) RunEnrollment(ctx context.Context, scope string) (Status, error) {
	pr, err := s.enrollment.Run(ctx, scope)
	if err != nil {
		return Status{}, err
	}
	return s.status(pr), nil
}

// StopEnrollment sets the cooperative stop flag. It reports whether a job was running.
func (s *Service) StopEnrollment() bool {
	return s.enrollment.Stop()
}

// WaitEnrollment blocks until a running job has finished.
func (s *Service) WaitEnrollment() {
	s.enrollment.Wait()
}

// EnrollmentStatus returns the latest progress snapshot.
func (s *Service) EnrollmentStatus() Status {
	return s.status(s.enrollment.Progress())
}

// ObserveEnrollment registers fn for progress updates; call the result to unregister.
func (s *Service) ObserveEnrollment(fn func(Status)) func() {
	return s.enrollment.Observe(func(pr enrollment.Progress) {
		fn(s.status(pr))
	})
}

func (s *Service) status(pr enrollment.Progress) Status {
	return Status{Progress: pr, TotalEmbeddings: s.store.Snapshot().Len()}
}

// Subjects lists the photo library.
func (s *Service) Subjects() ([]photos.Subject, error) {
	return s.library.Subjects()
}

// Photos lists a subject's raw photos.
func (s *Service) Photos(subject string) (string, []photos.Photo, error) {
	name, err := s.library.Resolve(subject)
	if err != nil {
		return "", nil, err
	}
	list, err := s.library.Photos(name)
	if err != nil {
		return "", nil, err
	}
	return name, list, nil
}

// PhotoPath resolves one raw photo on disk.
func (s *Service) PhotoPath(subject, file string) (string, error) {
	return s.library.PhotoPath(subject, file)
}

// Stats reports the store content and the number of crop artifacts.
func (s *Service) Stats() (Stats, error) {
	return ReadStats(s.store, s.artifacts)
}

// ReadStats describes store and the crop artifacts in artifacts.
func ReadStats(store *database.EmbeddingStore, artifacts enrollment.Artifacts) (Stats, error) {
	snap := store.Snapshot()
	faces, err := artifacts.Count()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalEmbeddings: snap.Len(),
		Dim:             snap.Dim(),
		Labels:          snap.LabelCounts(),
		TotalFaces:      faces,
		Location:        store.Location(),
	}, nil
}

// RemoveSubject deletes every embedding of label and persists the store. The label
// is matched exactly first, then by normalized name. It is refused while an
// enrollment runs.
func (s *Service) RemoveSubject(ctx context.Context, label string) (string, int, error) {
	if s.enrollment.Running() {
		return "", 0, enrollment.ErrAlreadyRunning
	}

	resolved, removed, err := RemoveLabel(ctx, s.store, label)
	if err != nil {
		return "", 0, err
	}
	s.log.Info("subject removed", zap.String("subject", resolved), zap.Int("embeddings", removed))
	return resolved, removed, nil
}

// RemoveLabel removes the entries of label from store and saves it. A failed save
// restores the previous content.
func RemoveLabel(ctx context.Context, store *database.EmbeddingStore, label string) (string, int, error) {
	snap := store.Snapshot()
	resolved, ok := ResolveLabel(snap, label)
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrLabelNotFound, label)
	}

	removed := store.RemoveLabel(resolved)
	if err := store.Save(ctx); err != nil {
		store.Restore(snap)
		return "", 0, err
	}
	return resolved, removed, nil
}

// ResolveLabel finds the enrolled label equal to label, or else the first one with
// the same normalized name.
func ResolveLabel(snap *database.Snapshot, label string) (string, bool) {
	if snap.Count(label) > 0 {
		return label, true
	}
	want := facematch.NormalizePersonName(label)
	for _, lc := range snap.LabelCounts() {
		if facematch.NormalizePersonName(lc.Label) == want {
			return lc.Label, true
		}
	}
	return "", false
}
