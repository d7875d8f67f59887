package httpapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChangeFeedStreamsInsertEvent(t *testing.T) {
	ts, _ := setup(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/_api/database/app/collection/users/changes", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	postCursor(t, ts, "app", `INSERT {_key: "stream1", name: "bob"} INTO users RETURN NEW`, "")

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())

	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
	require.Equal(t, "Insert", ev["Type"])
	require.Equal(t, "stream1", ev["Key"])
}
