package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"libris/pkg/clock"
	"libris/pkg/jwt"
	"libris/pkg/kafka"
	"libris/pkg/logger"
	"libris/pkg/middleware"
	"libris/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockNotificationService struct {
	listFunc func(ctx context.Context, p middleware.Principal, limit int, offset int64) ([]*model.Notification, int64, error)
}

func (m *mockNotificationService) Handle(context.Context, kafka.Message) error {
	return nil
}

func (m *mockNotificationService) List(ctx context.Context, p middleware.Principal, limit int, offset int64) ([]*model.Notification, int64, error) {
	return m.listFunc(ctx, p, limit, offset)
}

func TestList(t *testing.T) {
	tokens := jwt.NewService("0123456789abcdef0123456789abcdef", time.Hour, "libris",
		clock.NewMockClock(time.Now().UTC()))
	var got middleware.Principal
	svc := &mockNotificationService{
		listFunc: func(_ context.Context, p middleware.Principal, limit int, offset int64) ([]*model.Notification, int64, error) {
			got = p
			return []*model.Notification{{ID: "n1", UserID: p.UserID}}, 1, nil
		},
	}
	router := httprouter.New()
	NewNotificationHandler(svc, middleware.NewAuthenticator(tokens, logger.NewNop()), logger.NewNop()).RegisterRoutes(router)

	t.Run("requires token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("lists for the caller", func(t *testing.T) {
		token, err := tokens.GenerateToken("65f000000000000000000001", model.RoleUser)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=10", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "65f000000000000000000001", got.UserID)
		assert.Contains(t, rec.Body.String(), `"total_count":1`)
	})

	t.Run("bad limit", func(t *testing.T) {
		token, err := tokens.GenerateToken("65f000000000000000000001", model.RoleUser)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=abc", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
