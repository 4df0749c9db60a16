// Package scheduler drives the periodic monitoring cycle: on each tick it
// checks every active website through a bounded worker pool, aggregates the
// batch into a report, and once a day prunes data past the retention window.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"sitewatch/internal/prune"
	"sitewatch/internal/report"
	"sitewatch/internal/storage"
)

const pruneInterval = 24 * time.Hour

// Scheduler runs monitoring batches on a fixed cadence.
type Scheduler struct {
	store         storage.Storer
	pool          *WorkerPool
	reports       *report.Service
	pruner        *prune.Pruner
	checkInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// New creates a Scheduler.
func New(store storage.Storer, pool *WorkerPool, reports *report.Service,
	pruner *prune.Pruner, checkInterval time.Duration) *Scheduler {
	return &Scheduler{
		store:         store,
		pool:          pool,
		reports:       reports,
		pruner:        pruner,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the periodic monitoring process.
func (s *Scheduler) Start() {
	log.Printf("starting scheduler with check interval: %s", s.checkInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		checkTicker := time.NewTicker(s.checkInterval)
		defer checkTicker.Stop()
		pruneTicker := time.NewTicker(pruneInterval)
		defer pruneTicker.Stop()

		// Perform an initial batch on startup.
		s.runBatch()

		for {
			select {
			case <-checkTicker.C:
				s.runBatch()
			case <-pruneTicker.C:
				if _, err := s.pruner.Run(context.Background()); err != nil {
					log.Printf("scheduled prune failed: %v", err)
				}
			case <-s.stopChan:
				log.Println("stopping scheduler...")
				return
			}
		}
	}()
}

// Stop gracefully shuts down the scheduler, letting an in-flight batch
// finish.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Println("scheduler stopped")
}

// runBatch checks all active websites and reports on the batch.
func (s *Scheduler) runBatch() {
	ctx := context.Background()

	websites, err := s.store.GetActiveWebsites(ctx)
	if err != nil {
		log.Printf("error fetching websites for monitoring: %v", err)
		return
	}
	if len(websites) == 0 {
		log.Println("no active websites to monitor")
		return
	}

	log.Printf("monitoring %d active websites", len(websites))
	items := s.pool.RunBatch(ctx, websites)
	log.Printf("monitoring batch finished: %d results", len(items))

	if len(items) == 0 {
		return
	}
	if _, err := s.reports.Generate(ctx, items, "schedule"); err != nil {
		log.Printf("report generation failed: %v", err)
	}
}
