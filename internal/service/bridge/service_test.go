package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
	repo "github.com/oshokin/recorder-launcher/internal/repository/record"
	"github.com/oshokin/recorder-launcher/internal/service/supervisor"
)

var (
	errTestLoad = errors.New("test load error")
	errTestSave = errors.New("test save error")
)

// memoryRepository is a minimal in-memory Repository implementation for tests.
type memoryRepository struct {
	// record is returned from Load when loadErr is nil.
	record *domain.Record
	// loadErr is the error to return from Load operations.
	loadErr error
	// saveErr is the error to return from Save operations.
	saveErr error
}

func (m *memoryRepository) Load(context.Context) (*domain.Record, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}

	if m.record == nil {
		return nil, repo.ErrNotFound
	}

	return m.record.Clone(), nil
}

func (m *memoryRepository) Save(_ context.Context, r *domain.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}

	m.record = r.Clone()

	return nil
}

// fakeStartup settles when result receives a value.
type fakeStartup struct {
	result chan error
}

func (f *fakeStartup) Wait(ctx context.Context) error {
	select {
	case err := <-f.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fakeBackend records calls and hands out fakeStartups.
type fakeBackend struct {
	mu       sync.Mutex
	startErr error
	started  []*domain.Record
	startup  *fakeStartup
	kills    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{startup: &fakeStartup{result: make(chan error, 1)}}
}

func (f *fakeBackend) Start(_ context.Context, r *domain.Record) (Startup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		return nil, f.startErr
	}

	f.started = append(f.started, r)

	return f.startup, nil
}

func (f *fakeBackend) Kill(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.kills++

	return nil
}

func validRecord() *domain.Record {
	return &domain.Record{VideosFolder: "/videos", DatabaseFolder: "/db"}
}

// TestLoadPreviousData covers saved, missing and failing stores.
func TestLoadPreviousData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s := New(&memoryRepository{record: validRecord()}, newFakeBackend())
	record, err := s.LoadPreviousData(ctx)
	require.NoError(t, err)
	require.Equal(t, validRecord(), record)

	s = New(new(memoryRepository), newFakeBackend())
	record, err = s.LoadPreviousData(ctx)
	require.NoError(t, err)
	require.Nil(t, record)

	s = New(&memoryRepository{loadErr: errTestLoad}, newFakeBackend())
	_, err = s.LoadPreviousData(ctx)
	require.ErrorIs(t, err, errTestLoad)
}

// TestSaveDataAndRunServer_AcksBeforeReadiness verifies the ack does not wait for the backend.
func TestSaveDataAndRunServer_AcksBeforeReadiness(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		repository := new(memoryRepository)
		backend := newFakeBackend()
		s := New(repository, backend, WithBackendURL("http://localhost:1234"))

		notifications, unsubscribe := s.Subscribe()
		defer unsubscribe()

		ack, err := s.SaveDataAndRunServer(context.Background(), validRecord())
		require.NoError(t, err)
		require.True(t, ack)
		require.Equal(t, validRecord(), repository.record)
		require.Len(t, backend.started, 1)

		synctest.Wait()

		select {
		case n := <-notifications:
			t.Fatalf("notification before readiness: %+v", n)
		default:
		}

		backend.startup.result <- nil

		synctest.Wait()

		n := <-notifications
		require.Equal(t, domain.NotificationNavigate, n.Type)
		require.Equal(t, "http://localhost:1234", n.URL)

		s.Wait()
	})
}

// TestSaveDataAndRunServer_FailedStartup verifies a rejected startup is published as failed.
func TestSaveDataAndRunServer_FailedStartup(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		s := New(new(memoryRepository), backend)

		notifications, unsubscribe := s.Subscribe()
		defer unsubscribe()

		_, err := s.SaveDataAndRunServer(context.Background(), validRecord())
		require.NoError(t, err)

		backend.startup.result <- &supervisor.ProcessExitedError{ExitCode: 1, Stderr: "port in use"}

		n := <-notifications
		require.Equal(t, domain.NotificationFailed, n.Type)
		require.Contains(t, n.Error, "port in use")
		require.Empty(t, n.URL)
	})
}

// TestSaveDataAndRunServer_ReadinessTimeout verifies a hung backend is killed after the timeout.
func TestSaveDataAndRunServer_ReadinessTimeout(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		backend := newFakeBackend()
		s := New(new(memoryRepository), backend, WithReadinessTimeout(time.Minute))

		notifications, unsubscribe := s.Subscribe()
		defer unsubscribe()

		_, err := s.SaveDataAndRunServer(context.Background(), validRecord())
		require.NoError(t, err)

		n := <-notifications
		require.Equal(t, domain.NotificationFailed, n.Type)
		require.Contains(t, n.Error, "1m0s")

		s.Wait()
		require.Equal(t, 1, backend.kills)
	})
}

// TestSaveDataAndRunServer_Errors covers validation, persistence and start failures.
func TestSaveDataAndRunServer_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	backend := newFakeBackend()
	ack, err := New(new(memoryRepository), backend).SaveDataAndRunServer(ctx, &domain.Record{VideosFolder: "/v"})
	require.ErrorIs(t, err, domain.ErrInvalidRecord)
	require.False(t, ack)
	require.Empty(t, backend.started)

	ack, err = New(&memoryRepository{saveErr: errTestSave}, backend).SaveDataAndRunServer(ctx, validRecord())
	require.ErrorIs(t, err, errTestSave)
	require.False(t, ack)
	require.Empty(t, backend.started)

	backend.startErr = supervisor.ErrAlreadyStarted
	repository := new(memoryRepository)
	ack, err = New(repository, backend).SaveDataAndRunServer(ctx, validRecord())
	require.ErrorIs(t, err, domain.ErrBackendUnavailable)
	require.ErrorIs(t, err, supervisor.ErrAlreadyStarted)
	require.False(t, ack)
	require.NotNil(t, repository.record, "the record is saved before the start is attempted")
}

// TestDispatch routes both channels and rejects unknown ones.
func TestDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := newFakeBackend()
	s := New(new(memoryRepository), backend)

	resp, err := s.Dispatch(ctx, Request{Channel: ChannelLoadPreviousData})
	require.NoError(t, err)
	require.Nil(t, resp.Record)

	resp, err = s.Dispatch(ctx, Request{Channel: ChannelSaveDataAndRunServer, Record: validRecord()})
	require.NoError(t, err)
	require.True(t, resp.Ack)

	resp, err = s.Dispatch(ctx, Request{Channel: ChannelLoadPreviousData})
	require.NoError(t, err)
	require.Equal(t, validRecord(), resp.Record)

	_, err = s.Dispatch(ctx, Request{Channel: "open-devtools"})
	require.ErrorIs(t, err, ErrUnknownChannel)

	backend.startup.result <- nil

	s.Wait()
}

// TestSubscribe_Unsubscribe verifies the channel is closed once and stops receiving.
func TestSubscribe_Unsubscribe(t *testing.T) {
	t.Parallel()

	s := New(new(memoryRepository), newFakeBackend())

	first, unsubscribeFirst := s.Subscribe()
	second, unsubscribeSecond := s.Subscribe()

	defer unsubscribeSecond()

	unsubscribeFirst()
	unsubscribeFirst()

	_, open := <-first
	require.False(t, open)

	s.publish(context.Background(), domain.Notification{Type: domain.NotificationNavigate})
	require.Equal(t, domain.NotificationNavigate, (<-second).Type)
}

// TestClose_EndsSubscriptions verifies Close ends current and future subscriptions.
func TestClose_EndsSubscriptions(t *testing.T) {
	t.Parallel()

	s := New(new(memoryRepository), newFakeBackend())

	current, unsubscribe := s.Subscribe()

	s.Close()
	unsubscribe()

	_, open := <-current
	require.False(t, open)

	late, unsubscribeLate := s.Subscribe()
	defer unsubscribeLate()

	_, open = <-late
	require.False(t, open)

	s.publish(context.Background(), domain.Notification{Type: domain.NotificationFailed})
}
