// Package backup implements the backup scheduler (component C7, spec.md
// §4.7 and §9's "Fork-based backup" redesign note): an in-process snapshot
// dispatched to a worker pool bounded to MAX_BACKUPS outstanding snapshots,
// replacing the reference implementation's fork+COW dance, plus a durable
// ledger so per-job-file backup numbering survives a server restart.
package backup

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
)

var sequenceBucket = []byte("backup_sequences")

// Ledger durably tracks the next backup sequence number for each job file
// basename. The reference implementation keeps this counter (file_backups)
// only in job-runner stack memory, so a crash mid-job silently restarts
// numbering at 1 and overwrites earlier .bck files; persisting it in bbolt
// avoids that (spec.md §9's Non-goals exclude persisting KV state, not this
// bookkeeping).
type Ledger struct {
	db *bbolt.DB
}

// OpenLedger opens (creating if necessary) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0640, nil)
	if err != nil {
		return nil, fmt.Errorf("backup: open ledger %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sequenceBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("backup: init ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the underlying database file.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Next returns the next backup sequence number for jobBase, starting at 1,
// and durably records it before returning.
func (l *Ledger) Next(jobBase string) (int, error) {
	var n uint64
	err := l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sequenceBucket)
		raw := b.Get([]byte(jobBase))
		n = 1
		if raw != nil {
			n = binary.BigEndian.Uint64(raw) + 1
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, n)
		return b.Put([]byte(jobBase), buf)
	})
	if err != nil {
		return 0, fmt.Errorf("backup: ledger update for %s: %w", jobBase, err)
	}
	return int(n), nil
}
