package scheduler

import (
	"context"
	"log"
	"sync"

	"sitewatch/internal/models"
	"sitewatch/internal/monitor"
	"sitewatch/internal/report"
)

// WorkerPool fans a batch of websites out over a bounded set of goroutines,
// each running the full monitoring pipeline for one website.
type WorkerPool struct {
	monitor        *monitor.Monitor
	maxConcurrency int
	hostLimiter    *HostLimiter
}

// NewWorkerPool creates a pool running at most maxConcurrency checks at once.
func NewWorkerPool(mon *monitor.Monitor, maxConcurrency int) *WorkerPool {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &WorkerPool{
		monitor:        mon,
		maxConcurrency: maxConcurrency,
		hostLimiter:    NewHostLimiter(),
	}
}

// RunBatch monitors every website in the batch and returns the collected
// results, ready for report aggregation. Websites whose host is already
// being checked are skipped for this batch rather than queued.
func (p *WorkerPool) RunBatch(ctx context.Context, websites []models.Website) []report.Item {
	jobs := make(chan models.Website)
	var (
		mu    sync.Mutex
		items []report.Item
		wg    sync.WaitGroup
	)

	wg.Add(p.maxConcurrency)
	for i := 0; i < p.maxConcurrency; i++ {
		go func() {
			defer wg.Done()
			for website := range jobs {
				if item, ok := p.check(ctx, website); ok {
					mu.Lock()
					items = append(items, item)
					mu.Unlock()
				}
			}
		}()
	}

	for _, website := range websites {
		select {
		case jobs <- website:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return items
		}
	}
	close(jobs)
	wg.Wait()
	return items
}

// check runs one website's pipeline under the host limiter.
func (p *WorkerPool) check(ctx context.Context, website models.Website) (report.Item, bool) {
	if !p.hostLimiter.Acquire(website.Host) {
		log.Printf("skipping check for %s, host %s is already being checked", website.URL, website.Host)
		return report.Item{}, false
	}
	defer p.hostLimiter.Release(website.Host)

	result, err := p.monitor.Run(ctx, website)
	if err != nil {
		log.Printf("error monitoring website %s: %v", website.ID, err)
		return report.Item{}, false
	}
	return report.Item{Website: website, Result: *result}, true
}
