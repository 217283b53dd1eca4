package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roommate-match-workers/internal/common/logger"
	"roommate-match-workers/internal/models"
)

// ==========================
// Test Helpers
// ==========================

type recordingSink struct {
	events []models.Event
	err    error
}

func (r *recordingSink) Emit(_ context.Context, e models.Event) error {
	r.events = append(r.events, e)
	return r.err
}

type mockPublisher struct {
	PublishFunc func(ctx context.Context, name, key, id string, vars interface{}) error
}

func (m *mockPublisher) PublishMessage(ctx context.Context, name, key, id string, vars interface{}) error {
	return m.PublishFunc(ctx, name, key, id, vars)
}

// ==========================
// Fanout
// ==========================

func TestFanout_DeliversToAllSinksAndJoinsErrors(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("es down")}

	f := NewFanout(logger.NewTestLogger(t)).
		Add("postgres", ok).
		Add("elasticsearch", failing).
		Add("disabled", nil)

	event := New(models.EventMatchRejected, "u1", map[string]interface{}{"pairKey": "u1::u2"})
	err := f.Emit(context.Background(), event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "es down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)
	assert.Equal(t, event.ID, ok.events[0].ID)
}

func TestFanout_NoSinks(t *testing.T) {
	assert.NoError(t, NewFanout(logger.NewNoOpLogger()).Emit(context.Background(), New("x", "", nil)))
}

// ==========================
// Elasticsearch
// ==========================

func newTestES(t *testing.T, status int, captured *map[string]interface{}, path *string) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*path = r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, captured)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearchSink_IndexesByEventID(t *testing.T) {
	var doc map[string]interface{}
	var path string
	client := newTestES(t, http.StatusCreated, &doc, &path)

	event := New(models.EventMatchBlocked, "u1", map[string]interface{}{"pairKey": "u1::u2", "blockedUserId": "u2"})
	require.NoError(t, NewElasticsearchSink(client, "match-events").Emit(context.Background(), event))

	assert.Equal(t, "PUT /match-events/_doc/"+event.ID, path)
	assert.Equal(t, models.EventMatchBlocked, doc["name"])
	assert.Equal(t, "u1::u2", doc["pairKey"])
}

func TestElasticsearchSink_ErrorStatus(t *testing.T) {
	var doc map[string]interface{}
	var path string
	client := newTestES(t, http.StatusServiceUnavailable, &doc, &path)

	err := NewElasticsearchSink(client, "match-events").Emit(context.Background(), New("x", "u1", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

// ==========================
// Postgres
// ==========================

func TestPostgresSink_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	event := New(models.EventMatchConfirmed, "", map[string]interface{}{"matchId": "m1"})
	mock.ExpectExec("INSERT INTO app_events").
		WithArgs(event.ID, event.Name, nil, sqlmock.AnyArg(), event.OccurredAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewPostgresSink(db).Emit(context.Background(), event))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO app_events").WillReturnError(errors.New("relation does not exist"))

	err = NewPostgresSink(db).Emit(context.Background(), New("x", "u1", nil))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "insert app_event"))
}

// ==========================
// Workflow
// ==========================

func TestWorkflowSink_PublishesOnlyConfiguredNames(t *testing.T) {
	var calls []string
	pub := &mockPublisher{PublishFunc: func(_ context.Context, name, key, id string, vars interface{}) error {
		calls = append(calls, name+"|"+key)
		assert.Equal(t, "m1", vars.(map[string]interface{})["matchId"])
		return nil
	}}
	sink := NewWorkflowSink(pub, []string{models.EventMatchConfirmed})

	require.NoError(t, sink.Emit(context.Background(), New(models.EventMatchBlocked, "u1", nil)))
	require.NoError(t, sink.Emit(context.Background(), New(models.EventMatchConfirmed, "u1",
		map[string]interface{}{"pairKey": "u1::u2", "matchId": "m1"})))

	assert.Equal(t, []string{"match_confirmed|u1::u2"}, calls)
}
