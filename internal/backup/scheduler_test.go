package backup

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"kvsd/internal/store"
)

func newTestScheduler(t *testing.T, maxBackups int) (*Scheduler, string) {
	t.Helper()
	jobsDir := t.TempDir()
	ledger, err := OpenLedger(filepath.Join(jobsDir, "ledger.db"))
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	t.Cleanup(func() { ledger.Close() })

	s := store.New()
	sched := NewScheduler(s, jobsDir, maxBackups, ledger)
	return sched, jobsDir
}

func TestBackupProducesNumberedFiles(t *testing.T) {
	sched, jobsDir := newTestScheduler(t, 2)
	sched.store.Put("apple", []byte("red"))

	for i := 0; i < 4; i++ {
		if err := sched.Backup("job1"); err != nil {
			t.Fatalf("Backup: %v", err)
		}
	}
	sched.Wait()

	for n := 1; n <= 4; n++ {
		path := filepath.Join(jobsDir, "job1-"+strconv.Itoa(n)+".bck")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected backup file %s: %v", path, err)
		}
	}
}

func TestBackupContentMatchesShowFormat(t *testing.T) {
	sched, jobsDir := newTestScheduler(t, 1)
	sched.store.Put("apple", []byte("red"))

	if err := sched.Backup("job1"); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	sched.Wait()

	data, err := os.ReadFile(filepath.Join(jobsDir, "job1-1.bck"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "(apple, red)") {
		t.Fatalf("backup content = %q", data)
	}
}

func TestBackupReleasesCeilingSlots(t *testing.T) {
	sched, _ := newTestScheduler(t, 2)
	for i := 0; i < 6; i++ {
		if err := sched.Backup("job1"); err != nil {
			t.Fatalf("Backup: %v", err)
		}
	}
	sched.Wait()
	// If Backup never released its semaphore slot this would deadlock
	// before reaching Wait's return, since the channel has capacity 2.
}
