package jobs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"kvsd/internal/backup"
	"kvsd/internal/logging"
	"kvsd/internal/store"
)

var log = logging.For("jobs")

// iterator hands out .job file paths one at a time, shared across the job
// runner pool under a single mutex (spec.md §4.6's "shares a directory
// iterator protected by a mutex").
type iterator struct {
	mu    sync.Mutex
	files []string
	next  int
}

func newIterator(dir string) (*iterator, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("jobs: read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".job") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return &iterator{files: files}, nil
}

func (it *iterator) take() (string, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.next >= len(it.files) {
		return "", false
	}
	f := it.files[it.next]
	it.next++
	return f, true
}

// Runner is the job-runner pool (component C6). A configurable-size set of
// workers race over the shared iterator until every .job file has been
// claimed.
type Runner struct {
	store   *store.Store
	backups *backup.Scheduler
	iter    *iterator
	workers int
}

// NewRunner builds a Runner over every .job file currently in jobsDir. It
// does not watch for files added later, matching the reference
// implementation's one-shot directory scan.
func NewRunner(s *store.Store, backups *backup.Scheduler, jobsDir string, workers int) (*Runner, error) {
	if workers < 1 {
		workers = 1
	}
	it, err := newIterator(jobsDir)
	if err != nil {
		return nil, err
	}
	return &Runner{store: s, backups: backups, iter: it, workers: workers}, nil
}

// Run drives every worker to completion and returns once every .job file
// has been processed or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (r *Runner) worker(ctx context.Context, id int) {
	wlog := log.With("worker", id)
	for {
		if ctx.Err() != nil {
			return
		}
		path, ok := r.iter.take()
		if !ok {
			return
		}
		if err := r.runFile(ctx, path); err != nil {
			wlog.Error("job file failed", "file", path, "error", err)
		}
	}
}

func (r *Runner) runFile(ctx context.Context, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("jobs: open %s: %w", path, err)
	}
	defer in.Close()

	outPath := strings.TrimSuffix(path, ".job") + ".out"
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("jobs: create %s: %w", outPath, err)
	}
	defer out.Close()

	jobBase := strings.TrimSuffix(filepath.Base(path), ".job")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.runLine(jobBase, scanner.Text(), out); err != nil {
			log.Warn("invalid command, skipping", "file", path, "line", scanner.Text(), "error", err)
		}
	}
	return scanner.Err()
}

func (r *Runner) runLine(jobBase, line string, out *os.File) error {
	cmd, err := ParseLine(line)
	if err != nil {
		return err
	}

	switch cmd.Kind {
	case Empty:
	case Write:
		pairs := make([]store.KV, len(cmd.Pairs))
		for i, p := range cmd.Pairs {
			pairs[i] = store.KV{Key: p.Key, Value: []byte(p.Value)}
		}
		r.store.BatchWrite(pairs)
	case Read:
		values := r.store.BatchRead(cmd.Keys)
		if _, err := out.WriteString(FormatRead(cmd.Keys, values)); err != nil {
			return fmt.Errorf("jobs: write READ output: %w", err)
		}
	case Delete:
		missing := r.store.BatchDelete(cmd.Keys)
		if line := FormatDelete(missing); line != "" {
			if _, err := out.WriteString(line); err != nil {
				return fmt.Errorf("jobs: write DELETE output: %w", err)
			}
		}
	case Show:
		if _, err := r.store.Snapshot(out); err != nil {
			return fmt.Errorf("jobs: write SHOW output: %w", err)
		}
	case Wait:
		time.Sleep(time.Duration(cmd.WaitMS) * time.Millisecond)
	case Backup:
		if err := r.backups.Backup(jobBase); err != nil {
			return fmt.Errorf("jobs: backup: %w", err)
		}
	case Help:
		if _, err := out.WriteString(HelpText); err != nil {
			return fmt.Errorf("jobs: write HELP output: %w", err)
		}
	}
	return nil
}
