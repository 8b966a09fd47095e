package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/repositories"
	"go.uber.org/zap"
)

// AuditEvent represents a decision to be persisted
type AuditEvent struct {
	Log *models.DecisionAuditLog
}

// AuditService persists decision audit entries asynchronously
type AuditService struct {
	auditRepo    repositories.DecisionAuditRepository
	logger       *zap.Logger
	eventChan    chan *AuditEvent
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize   int           // Size of the event buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Per-insert deadline
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repositories.DecisionAuditRepository, logger *zap.Logger, config Config) *AuditService {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AuditService{
		auditRepo:    auditRepo,
		logger:       logger,
		eventChan:    make(chan *AuditEvent, config.BufferSize),
		workerCount:  config.WorkerCount,
		bufferSize:   config.BufferSize,
		writeTimeout: config.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("audit service already stopped")
	}
	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service.
// Queued events are drained until timeout elapses.
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	// No sender can hold the read lock here, so closing is safe
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_events", len(s.eventChan)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully",
			zap.Int64("processed", s.processed.Load()),
			zap.Int64("failed", s.failed.Load()),
			zap.Int64("dropped", s.dropped.Load()))
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record implements the decision service's Auditor hook
func (s *AuditService) Record(entry *models.DecisionAuditLog) error {
	return s.LogEvent(&AuditEvent{Log: entry})
}

// LogEvent queues an event without blocking.
// A full buffer drops the event and returns an error.
func (s *AuditService) LogEvent(event *AuditEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.eventChan <- event:
		return nil
	default:
		s.dropped.Add(1)
		s.logger.Warn("audit event channel full, dropping event",
			zap.String("action", event.Log.Action),
			zap.String("request_id", event.Log.RequestID))
		return fmt.Errorf("audit event buffer full")
	}
}

// worker processes events from the channel
func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		if err := s.processEvent(event); err != nil {
			s.failed.Add(1)
			s.logger.Error("failed to process audit event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("action", event.Log.Action),
				zap.String("request_id", event.Log.RequestID))
			continue
		}
		s.processed.Add(1)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

// processEvent processes a single audit event
func (s *AuditService) processEvent(event *AuditEvent) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
	defer cancel()

	if err := s.auditRepo.Insert(ctx, event.Log); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started && !s.stopped,
		Processed:     s.processed.Load(),
		Failed:        s.failed.Load(),
		Dropped:       s.dropped.Load(),
	}
}

// HealthCheck reports whether decisions can currently be queued.
// A stopped service or a saturated buffer is unhealthy.
func (s *AuditService) HealthCheck(_ context.Context) error {
	stats := s.GetStats()
	if !stats.Started {
		return fmt.Errorf("audit service not running")
	}
	if stats.PendingEvents >= stats.BufferSize {
		return fmt.Errorf("audit queue full: %d pending, %d dropped", stats.PendingEvents, stats.Dropped)
	}
	return nil
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
	Processed     int64
	Failed        int64
	Dropped       int64
}
