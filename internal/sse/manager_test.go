package sse

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

func newTestManager(t *testing.T) (*Manager, context.CancelFunc) {
	t.Helper()
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)
	t.Cleanup(cancel)
	return m, cancel
}

func receive(t *testing.T, c *Client) (Event, bool) {
	t.Helper()
	select {
	case e := <-c.Events:
		return e, true
	case <-time.After(200 * time.Millisecond):
		return Event{}, false
	}
}

func TestManager_LoanEventsReachBorrowerAndLibrarians(t *testing.T) {
	m, _ := newTestManager(t)

	borrower := m.Connect("user-1", false)
	other := m.Connect("user-2", false)
	librarian := m.Connect("user-3", true)

	loan := &domain.Loan{ID: "loan-1", BookID: "book-1", BorrowerID: "user-1", LoanTime: time.Now()}
	m.Emit(NewLoanCreatedEvent(loan, loan.LoanTime.Add(48*time.Hour)))

	e, ok := receive(t, borrower)
	require.True(t, ok)
	assert.Equal(t, EventLoanCreated, e.Type)

	_, ok = receive(t, librarian)
	assert.True(t, ok)

	_, ok = receive(t, other)
	assert.False(t, ok, "other members must not see someone else's loan")
}

func TestManager_BookEventsBroadcast(t *testing.T) {
	m, _ := newTestManager(t)
	a := m.Connect("user-1", false)
	b := m.Connect("user-2", false)

	m.Emit(NewBookDeletedEvent("book-1", time.Now()))

	for _, c := range []*Client{a, b} {
		e, ok := receive(t, c)
		require.True(t, ok)
		assert.Equal(t, EventBookDeleted, e.Type)
	}
}

func TestManager_EmitIgnoresForeignTypes(t *testing.T) {
	m, _ := newTestManager(t)
	c := m.Connect("user-1", false)

	m.Emit("not an event")

	_, ok := receive(t, c)
	assert.False(t, ok)
}

func TestManager_Disconnect(t *testing.T) {
	m, _ := newTestManager(t)
	c := m.Connect("user-1", false)
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(c.ID)
	m.Disconnect(c.ID)
	assert.Equal(t, 0, m.ClientCount())

	_, open := <-c.Done
	assert.False(t, open)
}

func TestManager_ShutdownStopsEmits(t *testing.T) {
	m, _ := newTestManager(t)
	c := m.Connect("user-1", true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	require.NoError(t, m.Shutdown(ctx), "second shutdown is a no-op")

	assert.NotPanics(t, func() { m.Emit(NewHeartbeatEvent()) })
	_, open := <-c.Done
	assert.False(t, open)
}

func TestHandler_StreamsEvents(t *testing.T) {
	m, _ := newTestManager(t)
	identify := func(r *http.Request) (string, bool, bool) {
		return r.Header.Get("X-User"), false, r.Header.Get("X-User") != ""
	}
	srv := httptest.NewServer(NewHandler(m, identify, slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("X-User", "user-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	m.Emit(NewBookCreatedEvent(&domain.Book{Syncable: domain.Syncable{ID: "book-9"}, Title: "Dune"}))

	var got []string
	for len(got) < 4 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Contains(t, strings.Join(got, ""), "event: book.created")
	assert.Contains(t, strings.Join(got, ""), `"book-9"`)
}

func TestHandler_RequiresIdentity(t *testing.T) {
	m, _ := newTestManager(t)
	h := NewHandler(m, func(*http.Request) (string, bool, bool) { return "", false, false }, slog.Default())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
