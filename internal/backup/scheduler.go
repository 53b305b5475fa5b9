package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"kvsd/internal/logging"
	"kvsd/internal/store"
)

var log = logging.For("backup")

// Scheduler runs BACKUP commands with the number of outstanding snapshots
// bounded to maxBackups (spec.md invariant I4), mirroring the reference
// implementation's "acquire the backup counter lock, reap a child if at the
// ceiling, otherwise fork and let the parent continue immediately" shape,
// but with a worker-pool semaphore and a goroutine in place of fork+wait.
type Scheduler struct {
	store   *store.Store
	jobsDir string
	ledger  *Ledger
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler builds a Scheduler that writes .bck files under jobsDir,
// allowing at most maxBackups snapshots to run concurrently.
func NewScheduler(s *store.Store, jobsDir string, maxBackups int, ledger *Ledger) *Scheduler {
	return &Scheduler{
		store:   s,
		jobsDir: jobsDir,
		ledger:  ledger,
		sem:     make(chan struct{}, maxBackups),
	}
}

// Backup assigns the next sequence number for jobBase and dispatches a
// snapshot to the pool. It blocks only long enough to acquire a pool slot
// (equivalent to the source reaping one outstanding child when at the
// MAX_BACKUPS ceiling); the snapshot itself runs in the background so the
// job-runner worker that called Backup can move on to the file's next
// command, exactly as the forking parent does in the source.
func (s *Scheduler) Backup(jobBase string) error {
	n, err := s.ledger.Next(jobBase)
	if err != nil {
		return err
	}

	s.sem <- struct{}{}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		s.runSnapshot(jobBase, n)
	}()
	return nil
}

func (s *Scheduler) runSnapshot(jobBase string, n int) {
	path := filepath.Join(s.jobsDir, fmt.Sprintf("%s-%d.bck", jobBase, n))
	f, err := os.Create(path)
	if err != nil {
		log.Warn("backup snapshot could not create output file", "path", path, "error", err)
		return
	}
	defer f.Close()

	count, err := s.store.Snapshot(f)
	if err != nil {
		log.Warn("backup snapshot failed", "path", path, "error", err)
		return
	}
	log.Debug("backup snapshot complete", "path", path, "entries", count)
}

// Wait blocks until every dispatched snapshot has finished. The process's
// shutdown path calls this before exiting so a BACKUP triggered by the last
// line of a job file always finishes writing before the process ends.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
