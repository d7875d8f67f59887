package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/httpapi"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/txn"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*httptest.Server, *document.Database) {
	t.Helper()
	dir := t.TempDir()
	cat := document.NewCatalog(dir)
	db, err := cat.CreateDatabase("app")
	require.NoError(t, err)
	_, err = db.CreateCollection("users", document.TypeDocument)
	require.NoError(t, err)

	mgr, err := txn.Open(cat, dir, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	srv := httpapi.New(cat, mgr, exec.NewViewRegistry(), nil)
	ts := httptest.NewServer(srv.Echo())
	t.Cleanup(ts.Close)
	return ts, db
}

func postCursor(t *testing.T, ts *httptest.Server, db, query string, txID string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{"query": query})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/_api/database/"+db+"/cursor", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if txID != "" {
		req.Header.Set("X-Transaction-Id", txID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateCursorRunsQuery(t *testing.T) {
	ts, _ := setup(t)
	out := postCursor(t, ts, "app", `INSERT {_key: "a", name: "alice"} INTO users RETURN NEW`, "")
	require.EqualValues(t, 1, out["inserted"])

	out = postCursor(t, ts, "app", `FOR u IN users RETURN u.name`, "")
	result := out["result"].([]interface{})
	require.Equal(t, []interface{}{"alice"}, result)
}

func TestCreateCursorUnknownDatabase(t *testing.T) {
	ts, _ := setup(t)
	body, _ := json.Marshal(map[string]interface{}{"query": "RETURN 1"})
	resp, err := http.Post(ts.URL+"/_api/database/missing/cursor", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransactionLifecycle(t *testing.T) {
	ts, _ := setup(t)

	resp, err := http.Post(ts.URL+"/_api/database/app/transaction", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	var begun map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&begun))
	resp.Body.Close()
	txID := begun["id"]
	require.NotEmpty(t, txID)

	out := postCursor(t, ts, "app", `INSERT {_key: "b"} INTO users RETURN NEW`, txID)
	require.EqualValues(t, 1, out["inserted"])

	req, err := http.NewRequest(http.MethodPut, ts.URL+"/_api/database/app/transaction/"+txID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	out = postCursor(t, ts, "app", `FOR u IN users FILTER u._key == "b" RETURN u`, "")
	require.EqualValues(t, 1, out["count"])
}
