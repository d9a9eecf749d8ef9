package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type saveRequest struct {
	ctx  context.Context
	done chan error
}

// Save runs one save cycle on the save worker and waits for its result.
// Save cycles never overlap.
func (s *Store) Save(ctx context.Context) error {
	req := saveRequest{ctx: ctx, done: make(chan error, 1)}
	if err := s.enqueue(req, true); err != nil {
		return err
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SaveAsync queues a save cycle without waiting. It reports false when the
// queue is full or the store is closed; a queued save already covers the
// caller's changes in that case.
func (s *Store) SaveAsync() bool {
	return s.enqueue(saveRequest{ctx: context.Background()}, false) == nil
}

func (s *Store) enqueue(req saveRequest, wait bool) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	if wait {
		select {
		case s.saves <- req:
			return nil
		case <-req.ctx.Done():
			return req.ctx.Err()
		}
	}
	select {
	case s.saves <- req:
		return nil
	default:
		return errors.New("save queue full")
	}
}

func (s *Store) runSaveWorker() {
	for req := range s.saves {
		if req.ctx.Err() != nil {
			if req.done != nil {
				req.done <- req.ctx.Err()
			}
			continue
		}
		err := s.saveCycle(req.ctx)
		if req.done != nil {
			req.done <- err
			continue
		}
		if err != nil {
			s.logger.Error("background save failed", slog.String("error", err.Error()))
		}
	}
}

// artifact is one durable file of the store.
type artifact struct {
	path       string
	backup     string
	temp       string
	backupTemp string
}

func (s *Store) artifacts() []artifact {
	mk := func(ext string) artifact {
		backup := filepath.Join(s.dir, s.name+"_backup"+ext)
		return artifact{
			path:       filepath.Join(s.dir, s.name+ext),
			backup:     backup,
			temp:       filepath.Join(s.dir, s.name+ext+".tmp"),
			backupTemp: backup + ".tmp",
		}
	}
	return []artifact{mk(".index"), mk(".docs")}
}

// saveCycle backs up the durable files, rebuilds the index, and writes the
// new state through temp files renamed over the originals. On failure the
// backups are restored and the error returned.
func (s *Store) saveCycle(ctx context.Context) error {
	start := time.Now()
	arts := s.artifacts()

	backedUp, err := backup(arts)
	if err != nil {
		return fmt.Errorf("back up store files: %w", err)
	}

	snap, err := s.rebuild(ctx)
	if err == nil {
		err = s.write(snap, arts)
	}
	if err != nil {
		if rerr := restore(arts, backedUp); rerr != nil {
			err = errors.Join(err, fmt.Errorf("restore backup: %w", rerr))
		}
		s.logger.Error("save failed, previous files restored", slog.String("error", err.Error()))
		return fmt.Errorf("save vector store: %w", err)
	}

	for _, a := range arts {
		_ = os.Remove(a.backup)
	}

	now := time.Now()
	s.lastSave.Store(&now)
	s.logger.Info("vector store saved",
		slog.String("path", s.IndexPath()),
		slog.Int("count", snap.count()),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (s *Store) write(snap *snapshot, arts []artifact) error {
	indexArt, docsArt := arts[0], arts[1]

	if err := writeFile(indexArt.temp, func(w io.Writer) error {
		_, err := snap.index.WriteTo(w)
		return err
	}); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	data, err := encodeSnapshot(snap)
	if err != nil {
		_ = os.Remove(indexArt.temp)
		return err
	}
	if err := writeFile(docsArt.temp, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		_ = os.Remove(indexArt.temp)
		return fmt.Errorf("write documents: %w", err)
	}

	for _, a := range arts {
		if err := os.Rename(a.temp, a.path); err != nil {
			return fmt.Errorf("rename %s: %w", filepath.Base(a.temp), err)
		}
	}
	syncDir(s.dir)
	return nil
}

// writeFile writes through fn into path and fsyncs it.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// backup copies every existing artifact to its backup path through a temp
// file, so a backup path only ever holds a complete copy. It returns which
// artifacts existed.
func backup(arts []artifact) (map[string]bool, error) {
	existed := make(map[string]bool, len(arts))
	for _, a := range arts {
		err := copyFile(a.path, a.backupTemp)
		if errors.Is(err, fs.ErrNotExist) {
			existed[a.path] = false
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := os.Rename(a.backupTemp, a.backup); err != nil {
			_ = os.Remove(a.backupTemp)
			return nil, err
		}
		existed[a.path] = true
	}
	return existed, nil
}

// restore puts the pre-save state back: backed-up artifacts are renamed over
// the originals, artifacts that did not exist before are removed.
func restore(arts []artifact, existed map[string]bool) error {
	var errs []error
	for _, a := range arts {
		_ = os.Remove(a.temp)
		if existed[a.path] {
			if err := os.Rename(a.backup, a.path); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recoverBackups deals with files left behind by a save that did not finish.
// A backup pair that loads cleanly is the state before that save and is
// restored. Anything less is discarded: the canonical files are only
// replaced after both backups are complete, so they are still intact.
func (s *Store) recoverBackups() error {
	arts := s.artifacts()
	present := 0
	for _, a := range arts {
		_ = os.Remove(a.temp)
		_ = os.Remove(a.backupTemp)
		ok, err := exists(a.backup)
		if err != nil {
			return err
		}
		if ok {
			present++
		}
	}
	if present == 0 {
		return nil
	}

	if present == len(arts) {
		_, err := s.loadPair(arts[0].backup, arts[1].backup)
		if err == nil {
			s.logger.Warn("restoring backup from interrupted save", slog.String("path", s.dir))
			for _, a := range arts {
				if err := os.Rename(a.backup, a.path); err != nil {
					return err
				}
			}
			syncDir(s.dir)
			return nil
		}
		s.logger.Warn("backup from interrupted save is unreadable", slog.String("error", err.Error()))
	}

	s.logger.Warn("discarding incomplete backup", slog.String("path", s.dir))
	for _, a := range arts {
		if err := os.Remove(a.backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	return writeFile(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// syncDir flushes directory entries after renames. Not every platform
// supports it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
