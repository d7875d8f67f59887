/*
Package admin bootstraps SoliDB's `_system` database (spec §6.3):
the `_admins`, `_roles`, `_user_roles`, and `_api_keys` collections
that back cluster administration. This package only creates the
tables and the initial admin row — enforcing auth against them on
every request is an external collaborator (spec §1 Non-goals).
*/
package admin

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/value"
)

// SystemDatabase is the name of the bootstrap-managed database.
const SystemDatabase = "_system"

// System collection names (spec §6.3).
const (
	CollectionAdmins    = "_admins"
	CollectionRoles     = "_roles"
	CollectionUserRoles = "_user_roles"
	CollectionAPIKeys   = "_api_keys"
)

var systemCollections = []string{CollectionAdmins, CollectionRoles, CollectionUserRoles, CollectionAPIKeys}

// Bootstrap opens (creating if absent) the _system database, its four
// administration collections, and — if no admin row exists yet — the
// initial root admin with adminPassword hashed via bcrypt. Passing an
// empty adminPassword skips seeding the root admin (useful for
// restarts where it already exists).
func Bootstrap(catalog *document.Catalog, adminPassword string) (*document.Database, error) {
	db, err := catalog.CreateDatabase(SystemDatabase)
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "open system database")
	}

	existing := map[string]bool{}
	for _, name := range db.Collections() {
		existing[name] = true
	}
	for _, name := range systemCollections {
		if existing[name] {
			continue
		}
		if _, err := db.CreateCollection(name, document.TypeDocument); err != nil {
			return nil, dberr.Wrap(dberr.CodeInternalError, err, "create system collection %s", name)
		}
	}

	if adminPassword == "" {
		return db, nil
	}

	admins, err := db.Collection(CollectionAdmins)
	if err != nil {
		return nil, err
	}
	hasRoot := false
	_ = admins.Scan(0, func(_ string, doc value.Value) bool {
		if u, ok := doc.Field("username"); ok && u.AsString() == "root" {
			hasRoot = true
			return false
		}
		return true
	})
	if hasRoot {
		return db, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "hash admin password")
	}
	root := value.NewObject().
		Set("username", value.String("root")).
		Set("password_hash", value.String(string(hash))).
		Build()
	if _, err := admins.Insert(SystemDatabase, root); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "seed root admin")
	}
	return db, nil
}

// VerifyPassword reports whether password matches the bcrypt hash
// stored for username in the _admins collection.
func VerifyPassword(db *document.Database, username, password string) (bool, error) {
	admins, err := db.Collection(CollectionAdmins)
	if err != nil {
		return false, err
	}
	var hash string
	found := false
	_ = admins.Scan(0, func(_ string, doc value.Value) bool {
		if u, ok := doc.Field("username"); ok && u.AsString() == username {
			if h, ok := doc.Field("password_hash"); ok {
				hash = h.AsString()
			}
			found = true
			return false
		}
		return true
	})
	if !found {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}
