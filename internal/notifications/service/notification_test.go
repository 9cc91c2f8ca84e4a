package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"libris/internal/lifecycle/events"
	notificationerrors "libris/internal/notifications/errors"
	"libris/pkg/clock"
	"libris/pkg/config"
	apperrors "libris/pkg/errors"
	"libris/pkg/kafka"
	"libris/pkg/logger"
	"libris/pkg/middleware"
	"libris/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memNotifications enforces the unique event_id the way the index does.
type memNotifications struct {
	mu        sync.Mutex
	byEvent   map[string]*model.Notification
	createErr error
}

func newMemNotifications() *memNotifications {
	return &memNotifications{byEvent: map[string]*model.Notification{}}
}

func (m *memNotifications) Create(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byEvent[n.EventID]; ok {
		return fmt.Errorf("%w: %s", notificationerrors.ErrAlreadyRecorded, n.EventID)
	}
	n.ID = fmt.Sprintf("%024x", len(m.byEvent)+1)
	stored := *n
	m.byEvent[n.EventID] = &stored
	return nil
}

func (m *memNotifications) FindByUser(_ context.Context, userID string, limit int, offset int64) ([]*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Notification{}
	for _, n := range m.byEvent {
		if n.UserID == userID {
			c := *n
			out = append(out, &c)
		}
	}
	if offset >= int64(len(out)) {
		return []*model.Notification{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memNotifications) CountByUser(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, v := range m.byEvent {
		if v.UserID == userID {
			n++
		}
	}
	return n, nil
}

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(repo *memNotifications) NotificationService {
	return NewNotificationService(repo, clock.NewMockClock(now), &config.Config{
		Log:         logger.NewNop(),
		ReadTimeout: time.Second,
	})
}

func eventMessage(t *testing.T, e events.Event) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().
		WithKey(e.UserID).
		WithValue(e).
		WithEventID(e.ID).
		WithEventType(string(e.Type)).
		Build()
	require.NoError(t, err)
	return msg
}

func TestHandle_StoresNotification(t *testing.T) {
	repo := newMemNotifications()
	svc := newTestService(repo)
	e := events.New(events.FineIssued, "u1", "b1", "f1", now).WithAmount(30)

	require.NoError(t, svc.Handle(context.Background(), eventMessage(t, e)))

	stored := repo.byEvent[e.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "fine.issued", stored.EventType)
	assert.Equal(t, "f1", stored.ReferenceID)
	assert.Equal(t, "Book b1 is overdue. A fine of 30 was issued.", stored.Message)
	assert.Equal(t, now, stored.CreatedAt)
}

func TestHandle_RedeliveryIsIdempotent(t *testing.T) {
	repo := newMemNotifications()
	svc := newTestService(repo)
	msg := eventMessage(t, events.New(events.RentalCreated, "u1", "b1", "r1", now))

	require.NoError(t, svc.Handle(context.Background(), msg))
	require.NoError(t, svc.Handle(context.Background(), msg))

	assert.Len(t, repo.byEvent, 1)
}

func TestHandle_Failures(t *testing.T) {
	t.Run("malformed payload is permanent", func(t *testing.T) {
		svc := newTestService(newMemNotifications())
		err := svc.Handle(context.Background(), kafka.Message{Key: "u1", Value: []byte("{not json")})

		var kerr *kafka.KafkaError
		require.ErrorAs(t, err, &kerr)
		assert.True(t, kerr.IsPermanent())
	})

	t.Run("unknown event type is permanent", func(t *testing.T) {
		svc := newTestService(newMemNotifications())
		e := events.New(events.Type("book.burned"), "u1", "b1", "x", now)
		err := svc.Handle(context.Background(), eventMessage(t, e))

		var kerr *kafka.KafkaError
		require.ErrorAs(t, err, &kerr)
		assert.True(t, kerr.IsPermanent())
	})

	t.Run("storage failure is transient", func(t *testing.T) {
		repo := newMemNotifications()
		repo.createErr = errors.New("connection reset")
		svc := newTestService(repo)
		err := svc.Handle(context.Background(), eventMessage(t, events.New(events.RentalReturned, "u1", "b1", "r1", now)))

		var kerr *kafka.KafkaError
		require.ErrorAs(t, err, &kerr)
		assert.True(t, kerr.IsTransient())
	})
}

func TestList(t *testing.T) {
	repo := newMemNotifications()
	svc := newTestService(repo)
	for _, user := range []string{"u1", "u1", "u2"} {
		require.NoError(t, svc.Handle(context.Background(),
			eventMessage(t, events.New(events.ReservationCreated, user, "b1", "r1", now))))
	}

	list, total, err := svc.List(context.Background(), middleware.Principal{UserID: "u1", Role: model.RoleUser}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	_, _, err = svc.List(context.Background(), middleware.Principal{}, 10, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}
