package jobqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/coursekit/coursekit/internal/pkg/env"
	metrics "github.com/coursekit/coursekit/internal/pkg/metrics/counter"
)

// TransferExpirer sweeps overdue ownership transfers. Implemented by the
// transfer service.
type TransferExpirer interface {
	ExpireOverdue(ctx context.Context) (int64, error)
}

// Manager manages the global job queue and background tasks
type Manager struct {
	queue              *Queue
	transfers          TransferExpirer
	transferTicker     *time.Ticker
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// InitManager wires the global manager with its collaborators. Must run
// once at startup before GetManager.
func InitManager(deps Deps, transfers TransferExpirer) *Manager {
	managerOnce.Do(func() {
		workerCount := 3
		if v, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKERS", "3")); err == nil && v > 0 {
			workerCount = v
		}

		globalManager = &Manager{
			queue:     NewQueue(workerCount, deps),
			transfers: transfers,
			stopCh:    make(chan struct{}),
		}
	})
	return globalManager
}

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Expire overdue transfers - configurable interval
	transferInterval := 10 * time.Minute
	if v, err := strconv.Atoi(env.GetEnv("TRANSFER_SWEEP_INTERVAL_MINUTES", "10")); err == nil && v > 0 {
		transferInterval = time.Duration(v) * time.Minute
	}
	m.transferTicker = time.NewTicker(transferInterval)
	m.wg.Add(1)
	go m.transferWorker()

	// Start counter flush worker (Redis -> DB) every 5 seconds
	m.counterFlushTicker = time.NewTicker(5 * time.Second)
	m.wg.Add(1)
	go m.counterFlushWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.transferTicker != nil {
		m.transferTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// transferWorker periodically expires open transfers past their window
func (m *Manager) transferWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Transfer worker stopping")
			return
		case <-m.transferTicker.C:
			if m.transfers == nil {
				continue
			}
			if _, err := m.transfers.ExpireOverdue(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Transfer expiry sweep error: %v", err)
			}
		}
	}
}

// counterFlushWorker periodically flushes in-memory counters from Redis to DB
func (m *Manager) counterFlushWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := metrics.FlushAll(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
