package admin_test

import (
	"testing"

	"github.com/solidb/solidb/pkg/admin"
	"github.com/solidb/solidb/pkg/document"
	"github.com/stretchr/testify/require"
)

func TestBootstrapCreatesSystemCollections(t *testing.T) {
	cat := document.NewCatalog(t.TempDir())
	db, err := admin.Bootstrap(cat, "hunter2")
	require.NoError(t, err)

	names := map[string]bool{}
	for _, n := range db.Collections() {
		names[n] = true
	}
	require.True(t, names[admin.CollectionAdmins])
	require.True(t, names[admin.CollectionRoles])
	require.True(t, names[admin.CollectionUserRoles])
	require.True(t, names[admin.CollectionAPIKeys])

	ok, err := admin.VerifyPassword(db, "root", "hunter2")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = admin.VerifyPassword(db, "root", "wrong")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	cat := document.NewCatalog(t.TempDir())
	_, err := admin.Bootstrap(cat, "first")
	require.NoError(t, err)
	db, err := admin.Bootstrap(cat, "second")
	require.NoError(t, err)

	ok, err := admin.VerifyPassword(db, "root", "first")
	require.NoError(t, err)
	require.True(t, ok, "re-bootstrapping must not overwrite the existing root admin")
}
