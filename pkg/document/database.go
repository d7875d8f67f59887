package document

import (
	"sync"

	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/kv"
)

// Database owns one kv.Engine file and every Collection living in it
// (spec §3: "a Database is a named collection of Collections backed
// by one storage file").
type Database struct {
	Name    string
	dataDir string

	mu          sync.RWMutex
	engine      *kv.Engine
	collections map[string]*Collection
}

// OpenDatabase opens (or creates) the database file under dataDir.
func OpenDatabase(dataDir, name string) (*Database, error) {
	engine, err := kv.Open(dataDir, name)
	if err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "open database %s", name)
	}
	return &Database{
		Name:        name,
		dataDir:     dataDir,
		engine:      engine,
		collections: make(map[string]*Collection),
	}, nil
}

// Close closes the underlying storage engine.
func (d *Database) Close() error { return d.engine.Close() }

// Engine exposes the underlying kv.Engine so packages that maintain
// their own column families against it (index.Manager, txn.Manager)
// can share the same storage file without document needing to know
// about them.
func (d *Database) Engine() *kv.Engine { return d.engine }

// CreateCollection creates a new collection of the given type. It is
// an error to recreate an existing collection.
func (d *Database) CreateCollection(name string, ctype CollectionType) (*Collection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.collections[name]; exists {
		return nil, dberr.New(dberr.CodeCollectionExists, "collection %s already exists in %s", name, d.Name)
	}
	if err := d.engine.EnsureFamily(kv.Family(name)); err != nil {
		return nil, dberr.Wrap(dberr.CodeInternalError, err, "create column family for %s", name)
	}
	coll := newCollection(name, ctype, d.engine)
	d.collections[name] = coll
	return coll, nil
}

// Collection returns a bound collection, or a CollectionNotFound error.
func (d *Database) Collection(name string) (*Collection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	coll, ok := d.collections[name]
	if !ok {
		return nil, dberr.New(dberr.CodeCollectionNotFound, "collection %s not found in %s", name, d.Name)
	}
	return coll, nil
}

// DropCollection removes a collection and its underlying column family.
func (d *Database) DropCollection(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.collections[name]; !ok {
		return dberr.New(dberr.CodeCollectionNotFound, "collection %s not found in %s", name, d.Name)
	}
	if err := d.engine.DropFamily(kv.Family(name)); err != nil {
		return dberr.Wrap(dberr.CodeInternalError, err, "drop column family for %s", name)
	}
	delete(d.collections, name)
	return nil
}

// Collections lists every collection name in this database.
func (d *Database) Collections() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.collections))
	for name := range d.collections {
		names = append(names, name)
	}
	return names
}

// Catalog owns every open Database, keyed by name (spec §3: "the server
// process multiplexes several independent Databases").
type Catalog struct {
	dataDir string

	mu  sync.RWMutex
	dbs map[string]*Database
}

// NewCatalog creates an empty catalog rooted at dataDir.
func NewCatalog(dataDir string) *Catalog {
	return &Catalog{dataDir: dataDir, dbs: make(map[string]*Database)}
}

// CreateDatabase opens (creating on first use) a database by name.
func (c *Catalog) CreateDatabase(name string) (*Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if db, ok := c.dbs[name]; ok {
		return db, nil
	}
	db, err := OpenDatabase(c.dataDir, name)
	if err != nil {
		return nil, err
	}
	c.dbs[name] = db
	return db, nil
}

// Database returns an already-open database, or a DatabaseNotFound error.
func (c *Catalog) Database(name string) (*Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	db, ok := c.dbs[name]
	if !ok {
		return nil, dberr.New(dberr.CodeDatabaseNotFound, "database %s not found", name)
	}
	return db, nil
}

// DropDatabase closes and removes a database from the catalog. The
// underlying file is left on disk; callers needing full deletion
// should remove it explicitly after Close succeeds.
func (c *Catalog) DropDatabase(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	db, ok := c.dbs[name]
	if !ok {
		return dberr.New(dberr.CodeDatabaseNotFound, "database %s not found", name)
	}
	if err := db.Close(); err != nil {
		return dberr.Wrap(dberr.CodeInternalError, err, "close database %s", name)
	}
	delete(c.dbs, name)
	return nil
}

// Databases lists every open database name.
func (c *Catalog) Databases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.dbs))
	for name := range c.dbs {
		names = append(names, name)
	}
	return names
}
