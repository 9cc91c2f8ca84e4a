package service

import (
	"context"
	"errors"
	"sync"

	"libris/internal/lifecycle/events"
	notificationerrors "libris/internal/notifications/errors"
	"libris/internal/notifications/repository"
	"libris/pkg/clock"
	"libris/pkg/config"
	apperrors "libris/pkg/errors"
	"libris/pkg/kafka"
	"libris/pkg/middleware"
	"libris/pkg/model"
)

type NotificationService interface {
	// Handle consumes one lifecycle event and stores its notification. It is
	// safe to call again with the same message.
	Handle(ctx context.Context, msg kafka.Message) error
	List(ctx context.Context, p middleware.Principal, limit int, offset int64) ([]*model.Notification, int64, error)
}

type notificationService struct {
	repo  repository.NotificationRepository
	clock clock.Clock
	cfg   *config.Config
}

func NewNotificationService(repo repository.NotificationRepository, clk clock.Clock, cfg *config.Config) NotificationService {
	return &notificationService{
		repo:  repo,
		clock: clk,
		cfg:   cfg,
	}
}

func (s *notificationService) Handle(ctx context.Context, msg kafka.Message) error {
	e, err := events.Decode(msg)
	if err != nil {
		s.cfg.Log.Warn("Dropping undecodable lifecycle event",
			"event_id", msg.GetEventID(),
			"offset", msg.Offset,
			"error", err,
		)
		return err
	}

	n := &model.Notification{
		UserID:      e.UserID,
		EventID:     e.ID,
		EventType:   string(e.Type),
		ReferenceID: e.ReferenceID,
		Message:     e.Describe(),
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		if errors.Is(err, notificationerrors.ErrAlreadyRecorded) {
			s.cfg.Log.Debug("Notification already recorded", "event_id", e.ID)
			return nil
		}
		return kafka.NewTransientError("failed to store notification", err).
			WithDetail("event_id", e.ID)
	}

	s.cfg.Log.Info("Notification stored",
		"id", n.ID,
		"user_id", n.UserID,
		"event_type", n.EventType,
		"event_id", n.EventID,
	)
	return nil
}

func (s *notificationService) List(ctx context.Context, p middleware.Principal, limit int, offset int64) ([]*model.Notification, int64, error) {
	if p.UserID == "" {
		return nil, 0, apperrors.Unauthorized("Access token required")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var total int64
	var notifications []*model.Notification
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = s.repo.CountByUser(sharedCtx, p.UserID)
	}()

	go func() {
		defer wg.Done()
		notifications, errFind = s.repo.FindByUser(sharedCtx, p.UserID, limit, offset)
	}()

	wg.Wait()

	if err := errors.Join(errCount, errFind); err != nil {
		s.cfg.Log.Error("Failed to list notifications",
			"user_id", p.UserID,
			"limit", limit,
			"offset", offset,
			"error", err,
		)
		return nil, 0, apperrors.Internal("Failed to retrieve notifications", err)
	}
	return notifications, total, nil
}
