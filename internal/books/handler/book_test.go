package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"libris/pkg/clock"
	apperrors "libris/pkg/errors"
	"libris/pkg/jwt"
	"libris/pkg/logger"
	"libris/pkg/middleware"
	"libris/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	memberID = "65f000000000000000000001"
	adminID  = "65f0000000000000000000a1"
	bookID   = "65f0000000000000000000b1"
)

type mockBookService struct {
	createFunc  func(ctx context.Context, b *model.Book) error
	getByIDFunc func(ctx context.Context, id string) (*model.Book, error)
	getAllFunc  func(ctx context.Context, limit int, offset int64) ([]*model.Book, int64, error)
	updateFunc  func(ctx context.Context, id string, updates *model.BookUpdate) (*model.Book, error)
	deleteFunc  func(ctx context.Context, id string) error
}

func (m *mockBookService) Create(ctx context.Context, b *model.Book) error {
	return m.createFunc(ctx, b)
}

func (m *mockBookService) GetByID(ctx context.Context, id string) (*model.Book, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBookService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Book, int64, error) {
	return m.getAllFunc(ctx, limit, offset)
}

func (m *mockBookService) Update(ctx context.Context, id string, updates *model.BookUpdate) (*model.Book, error) {
	return m.updateFunc(ctx, id, updates)
}

func (m *mockBookService) Delete(ctx context.Context, id string) error {
	return m.deleteFunc(ctx, id)
}

type testServer struct {
	router *httprouter.Router
	tokens *jwt.Service
}

func newTestServer(svc *mockBookService) *testServer {
	tokens := jwt.NewService("0123456789abcdef0123456789abcdef", time.Hour, "libris",
		clock.NewMockClock(time.Now().UTC()))
	router := httprouter.New()
	NewBookHandler(svc, middleware.NewAuthenticator(tokens, logger.NewNop()), logger.NewNop()).RegisterRoutes(router)
	return &testServer{router: router, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, body, id string, role model.Role) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if id != "" {
		token, err := s.tokens.GenerateToken(id, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestCreate_AdminOnly(t *testing.T) {
	called := false
	srv := newTestServer(&mockBookService{
		createFunc: func(_ context.Context, b *model.Book) error {
			called = true
			b.ID = bookID
			b.CopiesAvailable = b.CopiesTotal
			return nil
		},
	})
	body := `{"title":"Kindred","author":"Octavia E. Butler","price":9.5,"copies_total":2}`

	tests := []struct {
		name       string
		id         string
		role       model.Role
		wantStatus int
		wantCalled bool
	}{
		{name: "anonymous", wantStatus: http.StatusUnauthorized},
		{name: "member", id: memberID, role: model.RoleUser, wantStatus: http.StatusForbidden},
		{name: "admin", id: adminID, role: model.RoleAdmin, wantStatus: http.StatusCreated, wantCalled: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			rec := srv.do(t, http.MethodPost, "/api/v1/books", body, tt.id, tt.role)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
		})
	}
}

func TestCreate_ReturnsStoredBook(t *testing.T) {
	srv := newTestServer(&mockBookService{
		createFunc: func(_ context.Context, b *model.Book) error {
			b.ID = bookID
			b.CopiesAvailable = b.CopiesTotal
			return nil
		},
	})

	rec := srv.do(t, http.MethodPost, "/api/v1/books",
		`{"title":"Kindred","author":"Octavia E. Butler","price":9.5,"copies_total":2}`, adminID, model.RoleAdmin)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data model.Book `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, bookID, resp.Data.ID)
	assert.Equal(t, 2, resp.Data.CopiesAvailable)
}

func TestGetByID_Public(t *testing.T) {
	srv := newTestServer(&mockBookService{
		getByIDFunc: func(_ context.Context, id string) (*model.Book, error) {
			if id != bookID {
				return nil, apperrors.NotFoundWithID("Book", id)
			}
			return &model.Book{ID: id, Title: "Kindred"}, nil
		},
	})

	rec := srv.do(t, http.MethodGet, "/api/v1/books/id/"+bookID, "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Kindred")

	rec = srv.do(t, http.MethodGet, "/api/v1/books/id/65f0000000000000000000b2", "", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAll_Paginated(t *testing.T) {
	srv := newTestServer(&mockBookService{
		getAllFunc: func(_ context.Context, limit int, offset int64) ([]*model.Book, int64, error) {
			assert.Equal(t, 2, limit)
			assert.Equal(t, int64(4), offset)
			return []*model.Book{{ID: "b5"}}, 5, nil
		},
	})

	rec := srv.do(t, http.MethodGet, "/api/v1/books?limit=2&offset=4", "", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_count":5`)
}

func TestUpdate_StaleCountsConflict(t *testing.T) {
	srv := newTestServer(&mockBookService{
		updateFunc: func(_ context.Context, _ string, updates *model.BookUpdate) (*model.Book, error) {
			require.NotNil(t, updates.CopiesTotal)
			assert.Equal(t, 1, *updates.CopiesTotal)
			return nil, apperrors.Conflict("Book counts changed concurrently, retry the update")
		},
	})

	rec := srv.do(t, http.MethodPut, "/api/v1/books/id/"+bookID, `{"copies_total":1}`, adminID, model.RoleAdmin)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDelete_NoContent(t *testing.T) {
	var deleted string
	srv := newTestServer(&mockBookService{
		deleteFunc: func(_ context.Context, id string) error {
			deleted = id
			return nil
		},
	})

	rec := srv.do(t, http.MethodDelete, "/api/v1/books/id/"+bookID, "", adminID, model.RoleAdmin)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, bookID, deleted)
}
