//go:build integration

package library_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"libris/internal/library"
	"libris/internal/lifecycle/events"
	notificationsrepo "libris/internal/notifications/repository"
	notificationsservice "libris/internal/notifications/service"
	"libris/internal/testutil/apiclient"
	"libris/internal/testutil/mongotest"
	"libris/pkg/app"
	"libris/pkg/clock"
	apperrors "libris/pkg/errors"
	"libris/pkg/kafka"
	"libris/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackProducer hands published messages straight to a consumer handler.
type loopbackProducer struct {
	handle kafka.MessageHandler
}

func (p loopbackProducer) Publish(ctx context.Context, msg kafka.Message) error {
	return p.handle(ctx, msg)
}

type env struct {
	api   *apiclient.Client
	clock *clock.MockClock
}

func setup(t *testing.T) *env {
	t.Helper()

	cfg := mongotest.NewConfig(t)
	clk := clock.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	notifier := notificationsservice.NewNotificationService(notificationsrepo.NewMongoNotificationRepository(cfg), clk, cfg)
	publisher := events.NewKafkaPublisher(loopbackProducer{handle: notifier.Handle}, "library")

	serverApp := app.NewApplication(cfg, "library")
	serverApp.SetApp(library.Handlers(cfg, publisher, clk)...)
	srv := httptest.NewServer(serverApp.Handler())
	t.Cleanup(srv.Close)

	return &env{api: apiclient.New(srv.URL), clock: clk}
}

// register creates an account and returns its id and a token.
func (e *env) register(t *testing.T, email string, role model.Role) (string, string) {
	t.Helper()
	resp := e.api.POST(t, "/api/v1/auth/register", map[string]string{
		"name":     "Test Reader",
		"email":    email,
		"password": "correct-horse-42",
		"role":     string(role),
	})
	apiclient.RequireStatus(t, resp, http.StatusCreated)

	var auth model.AuthResponse
	resp.Data(t, &auth)
	require.NotEmpty(t, auth.Token)
	return auth.User.ID, auth.Token
}

func (e *env) login(t *testing.T, email string) string {
	t.Helper()
	resp := e.api.POST(t, "/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": "correct-horse-42",
	})
	apiclient.RequireStatus(t, resp, http.StatusOK)

	var auth model.AuthResponse
	resp.Data(t, &auth)
	return auth.Token
}

func (e *env) createBook(t *testing.T, admin *apiclient.Client, copies int) string {
	t.Helper()
	resp := admin.POST(t, "/api/v1/books", map[string]any{
		"title":        "A Wizard of Earthsea",
		"author":       "Ursula K. Le Guin",
		"price":        9.99,
		"copies_total": copies,
	})
	apiclient.RequireStatus(t, resp, http.StatusCreated)

	var b model.Book
	resp.Data(t, &b)
	require.Equal(t, copies, b.CopiesAvailable)
	return b.ID
}

func (e *env) book(t *testing.T, id string) model.Book {
	t.Helper()
	resp := e.api.GET(t, "/api/v1/books/id/"+id)
	apiclient.RequireStatus(t, resp, http.StatusOK)
	var b model.Book
	resp.Data(t, &b)
	return b
}

func (e *env) profile(t *testing.T, c *apiclient.Client) model.User {
	t.Helper()
	resp := c.GET(t, "/api/v1/auth/profile")
	apiclient.RequireStatus(t, resp, http.StatusOK)
	var u model.User
	resp.Data(t, &u)
	return u
}

func TestRentalLifecycle_OverdueReturn(t *testing.T) {
	e := setup(t)

	_, adminToken := e.register(t, "admin@example.com", model.RoleAdmin)
	_, memberToken := e.register(t, "member@example.com", model.RoleUser)
	admin := e.api.As(adminToken)
	member := e.api.As(memberToken)

	bookID := e.createBook(t, admin, 1)

	resp := member.POST(t, "/api/v1/rentals", map[string]string{"book_id": bookID})
	apiclient.RequireStatus(t, resp, http.StatusCreated)
	assert.Zero(t, e.book(t, bookID).CopiesAvailable)
	assert.Equal(t, 1, e.profile(t, member).BorrowedBooksCount)

	// The only copy is out.
	_, otherToken := e.register(t, "other@example.com", model.RoleUser)
	resp = e.api.As(otherToken).POST(t, "/api/v1/rentals", map[string]string{"book_id": bookID})
	apiclient.RequireStatus(t, resp, http.StatusConflict)
	assert.Equal(t, apperrors.CodePrecondition, resp.ErrorCode(t))

	// Two and a half days past the due date.
	e.clock.Add(14*24*time.Hour + 60*time.Hour)
	member = e.api.As(e.login(t, "member@example.com"))

	resp = member.POST(t, "/api/v1/rentals/return", map[string]string{"book_id": bookID})
	apiclient.RequireStatus(t, resp, http.StatusConflict)

	var blocked struct {
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &blocked))
	fineID, _ := blocked.Details["fine_id"].(string)
	require.NotEmpty(t, fineID)
	assert.Equal(t, int64(30), e.profile(t, member).OutstandingFine)

	resp = member.POST(t, "/api/v1/fines/id/"+fineID+"/pay", nil)
	apiclient.RequireStatus(t, resp, http.StatusOK)
	resp = member.POST(t, "/api/v1/fines/id/"+fineID+"/pay", nil)
	apiclient.RequireStatus(t, resp, http.StatusConflict)

	resp = member.POST(t, "/api/v1/rentals/return", map[string]string{"book_id": bookID})
	apiclient.RequireStatus(t, resp, http.StatusOK)

	var result model.ReturnResult
	resp.Data(t, &result)
	assert.True(t, result.Record.Returned)
	assert.True(t, result.Record.Late)
	require.NotNil(t, result.Fine)
	assert.Equal(t, model.FinePaid, result.Fine.Status)

	assert.Equal(t, 1, e.book(t, bookID).CopiesAvailable)
	u := e.profile(t, member)
	assert.Zero(t, u.BorrowedBooksCount)
	assert.Zero(t, u.OutstandingFine)

	resp = member.GET(t, "/api/v1/rentals/history")
	apiclient.RequireStatus(t, resp, http.StatusOK)
	assert.Contains(t, string(resp.Body), `"total_count":1`)

	resp = member.GET(t, "/api/v1/notifications")
	apiclient.RequireStatus(t, resp, http.StatusOK)
	var notifications []model.Notification
	resp.Data(t, &notifications)
	types := make([]string, 0, len(notifications))
	for _, n := range notifications {
		types = append(types, n.EventType)
	}
	assert.ElementsMatch(t, []string{
		string(events.RentalCreated),
		string(events.FineIssued),
		string(events.FinePaid),
		string(events.RentalReturned),
	}, types)
}

func TestReservationLifecycle(t *testing.T) {
	e := setup(t)

	_, adminToken := e.register(t, "admin@example.com", model.RoleAdmin)
	_, memberToken := e.register(t, "member@example.com", model.RoleUser)
	admin := e.api.As(adminToken)
	member := e.api.As(memberToken)

	bookID := e.createBook(t, admin, 2)

	reserve := func(c *apiclient.Client) model.Reservation {
		t.Helper()
		resp := c.POST(t, "/api/v1/reservations", map[string]string{"book_id": bookID})
		apiclient.RequireStatus(t, resp, http.StatusCreated)
		var r model.Reservation
		resp.Data(t, &r)
		return r
	}

	accepted := reserve(member)
	rejected := reserve(member)
	assert.Zero(t, e.book(t, bookID).CopiesAvailable)

	// The hold becomes the loan, so availability does not move.
	resp := member.POST(t, "/api/v1/reservations/id/"+accepted.ID+"/accept", nil)
	apiclient.RequireStatus(t, resp, http.StatusOK)
	assert.Zero(t, e.book(t, bookID).CopiesAvailable)
	assert.Equal(t, 1, e.profile(t, member).BorrowedBooksCount)

	resp = member.POST(t, "/api/v1/reservations/id/"+rejected.ID+"/reject", nil)
	apiclient.RequireStatus(t, resp, http.StatusForbidden)

	resp = admin.POST(t, "/api/v1/reservations/id/"+rejected.ID+"/reject", nil)
	apiclient.RequireStatus(t, resp, http.StatusOK)
	assert.Equal(t, 1, e.book(t, bookID).CopiesAvailable)

	resp = admin.POST(t, "/api/v1/reservations/id/"+rejected.ID+"/reject", nil)
	apiclient.RequireStatus(t, resp, http.StatusConflict)

	resp = admin.GET(t, "/api/v1/reservations")
	apiclient.RequireStatus(t, resp, http.StatusOK)
	assert.Contains(t, string(resp.Body), `"total_count":2`)
}

func TestBookCatalog_AdminOnlyWrites(t *testing.T) {
	e := setup(t)

	_, memberToken := e.register(t, "member@example.com", model.RoleUser)
	resp := e.api.As(memberToken).POST(t, "/api/v1/books", map[string]any{
		"title":        "Dune",
		"author":       "Frank Herbert",
		"price":        15,
		"copies_total": 1,
	})
	apiclient.RequireStatus(t, resp, http.StatusForbidden)

	resp = e.api.POST(t, "/api/v1/rentals", map[string]string{"book_id": "65f0000000000000000000b1"})
	apiclient.RequireStatus(t, resp, http.StatusUnauthorized)
}
