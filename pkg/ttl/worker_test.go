package ttl_test

import (
	"testing"
	"time"

	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/index"
	"github.com/solidb/solidb/pkg/ttl"
	"github.com/solidb/solidb/pkg/value"
	"github.com/stretchr/testify/require"
)

func TestWorkerExpiresDocumentsThroughCollection(t *testing.T) {
	cat := document.NewCatalog(t.TempDir())
	db, err := cat.CreateDatabase("app")
	require.NoError(t, err)
	coll, err := db.CreateCollection("sessions", document.TypeDocument)
	require.NoError(t, err)

	mgr := index.NewManager(db.Engine())
	_, err = mgr.CreateTTLIndex(coll, "sessions_ttl", "expires_at", 0)
	require.NoError(t, err)

	b := value.NewObject()
	b.Set("expires_at", value.String(time.Now().Add(-time.Hour).Format(time.RFC3339)))
	_, err = coll.Insert("app", b.Build())
	require.NoError(t, err)

	w := ttl.NewWorker(cat, 10*time.Millisecond)
	w.Start()
	defer w.Stop()

	require.Eventually(t, func() bool {
		return coll.Count() == 0
	}, time.Second, 10*time.Millisecond)
}
