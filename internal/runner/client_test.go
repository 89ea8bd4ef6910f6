package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pastejet/pastejet/internal/domain"
	"github.com/pastejet/pastejet/internal/infrastructure/logging"
	"github.com/pastejet/pastejet/internal/store"
	"github.com/pastejet/pastejet/internal/store/memstore"
)

func pistonStub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestExecuteFillsVersionFromLanguageTable(t *testing.T) {
	var got pistonRequest
	srv := pistonStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/execute", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "42\n", "stderr": "", "output": "42\n"},
		})
	})

	c := NewClient(srv.URL, time.Second, logging.NewNop(), nil)
	result, err := c.Execute(context.Background(), Request{
		Language: "python",
		Code:     "print(42)",
		Input:    "stdin data",
	})
	require.NoError(t, err)

	assert.Equal(t, "42\n", result.Stdout)
	assert.Equal(t, "3.10.0", got.Version)
	require.Len(t, got.Files, 1)
	assert.Equal(t, "print(42)", got.Files[0].Content)
	assert.Equal(t, "stdin data", got.Stdin)
}

func TestExecuteRejectsUnsupportedLanguages(t *testing.T) {
	c := NewClient("http://unused.invalid", time.Second, logging.NewNop(), nil)

	for _, lang := range []string{"cobol", "html", "css"} {
		_, err := c.Execute(context.Background(), Request{Language: lang, Code: "x"})
		assert.ErrorIs(t, err, domain.ErrExecutionUnsupported)
	}
}

func TestExecuteBackendError(t *testing.T) {
	srv := pistonStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "runtime unknown"})
	})

	c := NewClient(srv.URL, time.Second, logging.NewNop(), nil)
	_, err := c.Execute(context.Background(), Request{Language: "python", Code: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime unknown")
}

func TestExecuteForRoomRecordsResult(t *testing.T) {
	srv := pistonStub(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"run": map[string]any{"stdout": "ok\n", "stderr": "", "output": "ok\n"},
		})
	})

	st := memstore.New()
	c := NewClient(srv.URL, time.Second, logging.NewNop(), nil)

	result, err := c.ExecuteForRoom(context.Background(), st, "ROOM42", "alice", Request{
		Language: "javascript",
		Code:     "console.log('ok')",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok\n", result.Stdout)

	docs, err := st.Find(context.Background(), store.RoomExecutions, store.Query{
		Filters: []store.Filter{store.Where("room_id", store.OpEq, "ROOM42")},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	var record domain.ExecutionResult
	require.NoError(t, docs[0].Decode(&record))
	assert.Equal(t, "ok\n", record.Output)
	assert.Equal(t, "alice", record.ExecutedBy)
}
