// Command kvsd runs the key-value store server: a session acceptor serving
// SUBSCRIBE/UNSUBSCRIBE/DISCONNECT over named pipes, and a job-runner pool
// that executes WRITE/READ/DELETE/SHOW/WAIT/BACKUP/HELP batch files
// (spec.md §6's CLI: `kvsd <jobs_dir> <max_threads> <max_backups>
// <fifo_register_name>`).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"kvsd/internal/acceptor"
	"kvsd/internal/backup"
	"kvsd/internal/config"
	"kvsd/internal/jobs"
	"kvsd/internal/logging"
	"kvsd/internal/session"
	"kvsd/internal/store"
	"kvsd/internal/subscription"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a TOML config overlay")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-config path] <jobs_dir> <max_threads> <max_backups> <fifo_register_name>\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 4 {
		flag.Usage()
		return 1
	}
	jobsDir := flag.Arg(0)
	maxThreads, err1 := strconv.Atoi(flag.Arg(1))
	maxBackups, err2 := strconv.Atoi(flag.Arg(2))
	registerPath := flag.Arg(3)
	if err1 != nil || err2 != nil || maxThreads < 1 || maxBackups < 1 {
		fmt.Fprintln(os.Stderr, "max_threads and max_backups must be positive integers")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	logging.Init(cfg.Server.LogLevel, cfg.Server.LogFormat)
	log := logging.For("main")

	if _, err := os.Stat(jobsDir); err != nil {
		log.Error("jobs directory unavailable", "path", jobsDir, "error", err)
		return 1
	}

	kv := store.New()
	sessionDir := session.NewDirectory()
	go sessionDir.Run()
	defer sessionDir.Stop()

	registry := subscription.New(kv, sessionDir)

	ledger, err := backup.OpenLedger(cfg.LedgerPath(jobsDir))
	if err != nil {
		log.Error("failed to open backup ledger", "error", err)
		return 1
	}
	defer ledger.Close()
	scheduler := backup.NewScheduler(kv, jobsDir, maxBackups, ledger)

	runner, err := jobs.NewRunner(kv, scheduler, jobsDir, cfg.Jobs.JobWorkers)
	if err != nil {
		log.Error("failed to start job runner", "error", err)
		return 1
	}

	queue := session.NewAdmissionQueue(maxThreads)
	dispatcher := acceptor.NewDispatcher(registry, sessionDir)
	pool := session.NewWorkerPool(maxThreads, queue, dispatcher)
	accept := acceptor.New(registerPath, cfg.FifoMode(), queue, sessionDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Run(ctx)

	acceptorErr := make(chan error, 1)
	go func() { acceptorErr <- accept.Run(ctx) }()

	jobsDone := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(jobsDone)
	}()

	log.Info("kvsd started", "jobs_dir", jobsDir, "max_threads", maxThreads, "max_backups", maxBackups, "register", registerPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	for {
		sig := <-sigCh
		if sig == syscall.SIGUSR1 {
			log.Info("reset signal received, dropping all sessions")
			accept.ResetAll()
			continue
		}
		break
	}

	log.Info("shutting down")
	cancel()
	queue.Close()
	pool.Wait()
	<-jobsDone
	scheduler.Wait()

	if err := <-acceptorErr; err != nil && err != context.Canceled {
		log.Warn("acceptor exited with error", "error", err)
	}

	return 0
}
