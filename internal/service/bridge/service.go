package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/recorder-launcher/internal/config"
	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
	"github.com/oshokin/recorder-launcher/internal/logger"
	repo "github.com/oshokin/recorder-launcher/internal/repository/record"
	"github.com/oshokin/recorder-launcher/internal/service/supervisor"
)

// Channel names a request/response operation.
type Channel string

// Channels understood by Dispatch.
const (
	ChannelLoadPreviousData     Channel = "load-previous-data"
	ChannelSaveDataAndRunServer Channel = "save-data-and-run-server"
)

// subscriberBuffer is how many notifications a slow subscriber may lag behind.
const subscriberBuffer = 8

// ErrUnknownChannel is returned by Dispatch for unsupported channels.
var ErrUnknownChannel = errors.New("unknown channel")

// Request is a typed message on one of the channels.
type Request struct {
	Channel Channel
	// Record is the payload of ChannelSaveDataAndRunServer.
	Record *domain.Record
}

// Response carries the reply of a channel.
type Response struct {
	// Record is the reply of ChannelLoadPreviousData, nil when nothing was saved.
	Record *domain.Record
	// Ack is the reply of ChannelSaveDataAndRunServer.
	Ack bool
}

// Startup is a pending backend start.
type Startup interface {
	Wait(ctx context.Context) error
}

// Backend starts and stops the backend process.
type Backend interface {
	Start(ctx context.Context, record *domain.Record) (Startup, error)
	Kill(ctx context.Context) error
}

// supervisorBackend adapts a Supervisor to Backend.
type supervisorBackend struct {
	supervisor *supervisor.Supervisor
}

// SupervisorBackend exposes a Supervisor as a Backend.
func SupervisorBackend(s *supervisor.Supervisor) Backend {
	return &supervisorBackend{supervisor: s}
}

func (b *supervisorBackend) Start(ctx context.Context, record *domain.Record) (Startup, error) {
	startup, err := b.supervisor.Start(ctx, record)
	if err != nil {
		return nil, err
	}

	return startup, nil
}

func (b *supervisorBackend) Kill(ctx context.Context) error {
	return b.supervisor.Kill(ctx)
}

// Option configures the Service.
type Option func(*Service)

// WithBackendURL sets the URL sent in navigate notifications.
func WithBackendURL(url string) Option {
	return func(s *Service) {
		if url != "" {
			s.backendURL = url
		}
	}
}

// WithReadinessTimeout kills the backend when it is not ready in time. Zero waits forever.
func WithReadinessTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout >= 0 {
			s.readinessTimeout = timeout
		}
	}
}

// Service wires the record store to the backend.
type Service struct {
	repo             repo.Repository
	backend          Backend
	backendURL       string
	readinessTimeout time.Duration

	// mu protects subscribers, nextID and closed.
	mu          sync.Mutex
	subscribers map[int]chan domain.Notification
	nextID      int
	closed      bool

	// pending tracks readiness waits started by SaveDataAndRunServer.
	pending sync.WaitGroup
}

// New creates a Service backed by the provided repository and backend.
func New(repository repo.Repository, backend Backend, opts ...Option) *Service {
	s := &Service{
		repo:        repository,
		backend:     backend,
		backendURL:  config.DefaultBackendURL,
		subscribers: make(map[int]chan domain.Notification),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Dispatch routes a request to its channel handler.
func (s *Service) Dispatch(ctx context.Context, req Request) (Response, error) {
	switch req.Channel {
	case ChannelLoadPreviousData:
		record, err := s.LoadPreviousData(ctx)

		return Response{Record: record}, err
	case ChannelSaveDataAndRunServer:
		ack, err := s.SaveDataAndRunServer(ctx, req.Record)

		return Response{Ack: ack}, err
	default:
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownChannel, req.Channel)
	}
}

// LoadPreviousData returns the saved record, or nil when none was saved yet.
func (s *Service) LoadPreviousData(ctx context.Context) (*domain.Record, error) {
	record, err := s.repo.Load(ctx)
	switch {
	case err == nil:
		logger.Info(ctx, "Previous data loaded")

		return record, nil
	case errors.Is(err, repo.ErrNotFound):
		logger.Info(ctx, "No previous data saved yet")

		return nil, nil
	default:
		return nil, fmt.Errorf("load previous data: %w", err)
	}
}

// SaveDataAndRunServer persists record and spawns the backend.
// The acknowledgement does not wait for readiness: the outcome is published to subscribers.
func (s *Service) SaveDataAndRunServer(ctx context.Context, record *domain.Record) (bool, error) {
	if err := record.Validate(); err != nil {
		return false, err
	}

	record = record.Clone()

	if err := s.repo.Save(ctx, record); err != nil {
		logger.Errorf(ctx, "Failed to persist record: %v", err)

		return false, fmt.Errorf("persist record: %w", err)
	}

	logger.InfoKV(ctx, "Record saved", "videos_folder", record.VideosFolder, "database_folder", record.DatabaseFolder)

	// The backend outlives the request that started it.
	backgroundCtx := context.WithoutCancel(ctx)

	startup, err := s.backend.Start(backgroundCtx, record)
	if err != nil {
		if errors.Is(err, supervisor.ErrAlreadyStarted) || errors.Is(err, supervisor.ErrNotProvisioned) {
			return false, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
		}

		return false, fmt.Errorf("start backend: %w", err)
	}

	s.pending.Add(1)

	go func() {
		defer s.pending.Done()

		s.awaitReadiness(backgroundCtx, startup)
	}()

	return true, nil
}

// Subscribe registers for notifications. The returned function unsubscribes and closes the channel.
// After Close the returned channel is already closed.
func (s *Service) Subscribe() (<-chan domain.Notification, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan domain.Notification, subscriberBuffer)
	if s.closed {
		close(ch)

		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
	}
}

// Close ends every subscription, letting streaming handlers return.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// Wait blocks until every pending readiness wait has settled.
func (s *Service) Wait() {
	s.pending.Wait()
}

// awaitReadiness publishes navigate once the backend is ready and failed otherwise.
func (s *Service) awaitReadiness(ctx context.Context, startup Startup) {
	waitCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.readinessTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, s.readinessTimeout)
	}

	defer cancel()

	err := startup.Wait(waitCtx)
	switch {
	case err == nil:
		logger.InfoKV(ctx, "Backend is ready, navigating", "url", s.backendURL)
		s.publish(ctx, domain.Notification{Type: domain.NotificationNavigate, URL: s.backendURL})
	case errors.Is(err, context.DeadlineExceeded):
		logger.WarnKV(ctx, "Backend did not become ready in time", "timeout", s.readinessTimeout.String())

		if killErr := s.backend.Kill(ctx); killErr != nil && !errors.Is(killErr, supervisor.ErrNotStarted) {
			logger.ErrorKV(ctx, "Unable to stop the backend", "error", killErr)
		}

		s.publish(ctx, domain.Notification{
			Type:  domain.NotificationFailed,
			Error: fmt.Sprintf("backend did not become ready within %s", s.readinessTimeout),
		})
	default:
		logger.ErrorKV(ctx, "Backend failed to start", "error", err)
		s.publish(ctx, domain.Notification{Type: domain.NotificationFailed, Error: err.Error()})
	}
}

// publish delivers n to every subscriber without blocking.
func (s *Service) publish(ctx context.Context, n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.subscribers) == 0 {
		logger.WarnKV(ctx, "Notification has no subscribers", "type", string(n.Type))

		return
	}

	for id, ch := range s.subscribers {
		select {
		case ch <- n:
		default:
			logger.WarnKV(ctx, "Dropping notification for a slow subscriber", "subscriber", id, "type", string(n.Type))
		}
	}
}
