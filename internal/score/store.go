// Package score implements the epoch annotation store: one rater's
// scoring of one recording, held in memory and persisted as a
// pretty-printed XML document.
//
// Nothing in this package creates a scoring from signal data. Scorings
// are produced by the visual scoring tool; once the document exists it
// can be read and corrected programmatically through a Store.
package score

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/hyperjump/nemuri/internal/models"
)

// Store owns the in-memory document for one annotation file and is the
// single writer for that path while open. An advisory lock next to the
// document keeps other Store instances out; callers coordinating with
// non-cooperating writers can additionally attach a watcher and Reload.
type Store struct {
	path string

	mu      sync.RWMutex
	doc     *models.Document
	names   wireNames
	index   map[string]int // epoch id -> position in rater 0, first match wins
	modTime time.Time

	lock   *flock.Flock
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a logger for load/save events. Without it the store is
// silent; it never touches process-global logging state.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open loads an existing annotation document from path. It returns a
// *ReadError when the file is missing or is not a well-formed document
// (no rater section, epochs with fewer than three value children,
// non-integer times).
func Open(path string, opts ...Option) (*Store, error) {
	s := newStore(path, opts...)
	if err := s.acquireLock(); err != nil {
		return nil, err
	}
	if err := s.load(); err != nil {
		s.releaseLock()
		return nil, err
	}
	return s, nil
}

// Create persists an already-built document to path and returns a store
// backed by it. From this point the file is the canonical copy. The
// document is not validated beyond what serialization requires; use
// models.Document.Validate for temporal-consistency checks.
func Create(path string, doc *models.Document, opts ...Option) (*Store, error) {
	if len(doc.Raters) == 0 {
		return nil, &WriteError{Path: path, Err: errors.New("document has no rater")}
	}
	s := newStore(path, opts...)
	if err := s.acquireLock(); err != nil {
		return nil, err
	}
	s.doc = doc
	s.names = defaultWireNames()
	s.reindex()
	if err := s.save(); err != nil {
		s.releaseLock()
		return nil, err
	}
	return s, nil
}

func newStore(path string, opts ...Option) *Store {
	s := &Store{
		path:   path,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) acquireLock() error {
	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("lock %s: held by another process", lock.Path())
	}
	s.lock = lock
	return nil
}

func (s *Store) releaseLock() {
	if s.lock != nil {
		_ = s.lock.Unlock()
		s.lock = nil
	}
}

// Path returns the annotation file backing this store.
func (s *Store) Path() string {
	return s.path
}

// Rater returns the name of the first rater. Every open store has at
// least one rater; the reader rejects documents without a rater section.
func (s *Store) Rater() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Raters[0].Name
}

// Raters returns all rater names in document order. Operations beyond
// index 0 are not supported yet, but the extra raters survive every save.
func (s *Store) Raters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.doc.Raters))
	for i, r := range s.doc.Raters {
		names[i] = r.Name
	}
	return names
}

// Epochs returns the first rater's epochs in document order. A nil stages
// filter returns all of them; a non-nil filter keeps only epochs whose
// stage is in the set, so an empty non-nil filter yields an empty result
// rather than an error.
func (s *Store) Epochs(stages []string) []models.EpochView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var want map[string]struct{}
	if stages != nil {
		want = make(map[string]struct{}, len(stages))
		for _, st := range stages {
			want[st] = struct{}{}
		}
	}

	epochs := s.doc.Raters[0].Epochs
	views := make([]models.EpochView, 0, len(epochs))
	for _, ep := range epochs {
		if want != nil {
			if _, ok := want[ep.Stage]; !ok {
				continue
			}
		}
		views = append(views, models.EpochView{
			StartTime: ep.StartTime,
			EndTime:   ep.EndTime,
			Stage:     ep.Stage,
		})
	}
	return views
}

// Stage returns the stage of the first epoch whose id matches. It returns
// an *EpochNotFoundError when no epoch carries the id.
func (s *Store) Stage(epochID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[epochID]
	if !ok {
		return "", &EpochNotFoundError{ID: epochID}
	}
	return s.doc.Raters[0].Epochs[i].Stage, nil
}

// SetStage replaces the stage of the first epoch whose id matches and
// immediately re-persists the whole document. On an unknown id it returns
// an *EpochNotFoundError without touching memory or disk. On a failed
// save the mutation stays in memory and a *WriteError is returned, so the
// caller can retry the persist.
func (s *Store) SetStage(epochID, stage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[epochID]
	if !ok {
		return &EpochNotFoundError{ID: epochID}
	}
	s.doc.Raters[0].Epochs[i].Stage = stage
	return s.save()
}

// Save re-persists the in-memory document. SetStage calls it implicitly;
// it is exported for retrying after a *WriteError.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// Reload discards the in-memory document and re-reads it from disk. Used
// by the file watcher when the document changes under us.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Close releases the advisory lock. The store must not be used after.
func (s *Store) Close() error {
	s.releaseLock()
	return nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return &ReadError{Path: s.path, Err: err}
	}
	doc, names, err := decodeDocument(data)
	if err != nil {
		return &ReadError{Path: s.path, Err: err}
	}
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	s.doc = doc
	s.names = names
	s.reindex()
	s.logger.Info("annotation document loaded",
		zap.String("path", s.path),
		zap.String("rater", doc.Raters[0].Name),
		zap.Int("epochs", len(doc.Raters[0].Epochs)))
	return nil
}

// save serializes and atomically replaces the file: the document is
// written to a temp file in the same directory and renamed into place, so
// a failure mid-write cannot truncate the previous copy. Callers hold mu.
func (s *Store) save() error {
	if info, err := os.Stat(s.path); err == nil && !s.modTime.IsZero() && info.ModTime().After(s.modTime) {
		return &WriteError{Path: s.path, Err: errors.New("document changed on disk since load; reload before saving")}
	}

	data, err := encodeDocument(s.doc, s.names)
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".score-*.xml")
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &WriteError{Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: s.path, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: s.path, Err: err}
	}
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	s.logger.Info("annotation document saved",
		zap.String("path", s.path),
		zap.Int("epochs", len(s.doc.Raters[0].Epochs)))
	return nil
}

func (s *Store) reindex() {
	epochs := s.doc.Raters[0].Epochs
	s.index = make(map[string]int, len(epochs))
	for i, ep := range epochs {
		if _, ok := s.index[ep.ID]; !ok {
			s.index[ep.ID] = i
		}
	}
}
