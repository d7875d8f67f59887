package driver

import (
	"github.com/solidb/solidb/pkg/admin"
	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/index"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/query/parser"
	"github.com/solidb/solidb/pkg/txn"
	"github.com/solidb/solidb/pkg/value"
)

// Dispatcher turns decoded Commands into Responses against a live
// catalog/transaction manager, the same pair pkg/httpapi.Server wires
// (spec §6: "those surfaces are thin adapters over a single embedded
// engine").
type Dispatcher struct {
	catalog *document.Catalog
	txMgr   *txn.Manager
	views   *exec.ViewRegistry
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(catalog *document.Catalog, txMgr *txn.Manager, views *exec.ViewRegistry) *Dispatcher {
	return &Dispatcher{catalog: catalog, txMgr: txMgr, views: views}
}

// Dispatch executes one command. It never panics: every failure path
// is surfaced as an Error-kind Response so the connection loop can
// keep going.
func (d *Dispatcher) Dispatch(cmd *Command) *Response {
	switch cmd.Kind {
	case KindPing:
		return &Response{Ok: true}
	case KindAuth:
		return d.handleAuth(cmd)
	case KindDatabaseCreate:
		return d.handleDatabaseCreate(cmd)
	case KindDatabaseDrop:
		return d.handleDatabaseDrop(cmd)
	case KindCollectionCreate:
		return d.handleCollectionCreate(cmd)
	case KindCollectionDrop:
		return d.handleCollectionDrop(cmd)
	case KindCollectionStats:
		return d.handleCollectionStats(cmd)
	case KindDocGet:
		return d.handleDocGet(cmd)
	case KindDocInsert:
		return d.handleDocInsert(cmd, nil)
	case KindDocUpdate:
		return d.handleDocUpdate(cmd, nil)
	case KindDocDelete:
		return d.handleDocDelete(cmd, nil)
	case KindDocList:
		return d.handleDocList(cmd)
	case KindQuery:
		return d.handleQuery(cmd, nil)
	case KindExplain:
		return d.handleExplain(cmd)
	case KindIndexCreate:
		return d.handleIndexCreate(cmd)
	case KindIndexDrop:
		return d.handleIndexDrop(cmd)
	case KindTransactionBegin:
		return d.handleTransactionBegin(cmd)
	case KindTransactionCommit:
		return d.handleTransactionCommit(cmd)
	case KindTransactionRollback:
		return d.handleTransactionRollback(cmd)
	case KindTransactionCommand:
		return d.handleTransactionCommand(cmd)
	case KindBatch:
		return d.handleBatch(cmd)
	case KindBulkInsert:
		return d.handleBulkInsert(cmd)
	default:
		// Scheduler/admin/cluster/columnar commands: accepted by the
		// dispatcher, delegated to an external collaborator this core
		// does not implement (spec §1 Non-goals).
		return errResponse(ErrInvalidCommand, "command kind %d is not handled by this core", cmd.Kind)
	}
}

func errResponse(kind DriverErrorKind, format string, args ...any) *Response {
	return &Response{Ok: false, ErrorKind: kind, ErrorMessage: dberr.New(dberr.CodeBadRequest, format, args...).Message}
}

func fromDBErr(err error) *Response {
	code := dberr.CodeOf(err)
	kind := ErrDatabaseError
	switch code {
	case dberr.CodeParseError, dberr.CodeExecutionError:
		kind = ErrInvalidCommand
	case dberr.CodeTransactionNotFound, dberr.CodeTransactionConflict:
		kind = ErrTransactionError
	case dberr.CodeBadRequest:
		kind = ErrProtocolError
	}
	return &Response{Ok: false, ErrorKind: kind, ErrorMessage: err.Error()}
}

func (d *Dispatcher) handleAuth(cmd *Command) *Response {
	db, err := d.catalog.Database(admin.SystemDatabase)
	if err != nil {
		return errResponse(ErrAuthError, "authentication is not configured on this server")
	}
	ok, err := admin.VerifyPassword(db, cmd.Username, cmd.Password)
	if err != nil {
		return fromDBErr(err)
	}
	if !ok {
		return errResponse(ErrAuthError, "invalid credentials")
	}
	return &Response{Ok: true}
}

func (d *Dispatcher) handleDatabaseCreate(cmd *Command) *Response {
	if _, err := d.catalog.CreateDatabase(cmd.Database); err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true}
}

func (d *Dispatcher) handleDatabaseDrop(cmd *Command) *Response {
	if err := d.catalog.DropDatabase(cmd.Database); err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true}
}

func (d *Dispatcher) handleCollectionCreate(cmd *Command) *Response {
	db, err := d.catalog.Database(cmd.Database)
	if err != nil {
		return fromDBErr(err)
	}
	ctype := document.TypeDocument
	if cmd.CollType != "" {
		ctype = document.CollectionType(cmd.CollType)
	}
	if _, err := db.CreateCollection(cmd.Collection, ctype); err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true}
}

func (d *Dispatcher) handleCollectionDrop(cmd *Command) *Response {
	db, err := d.catalog.Database(cmd.Database)
	if err != nil {
		return fromDBErr(err)
	}
	if err := db.DropCollection(cmd.Collection); err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true}
}

func (d *Dispatcher) handleCollectionStats(cmd *Command) *Response {
	db, err := d.catalog.Database(cmd.Database)
	if err != nil {
		return fromDBErr(err)
	}
	coll, err := db.Collection(cmd.Collection)
	if err != nil {
		return fromDBErr(err)
	}
	stats := value.NewObject().
		Set("name", value.String(coll.Name)).
		Set("count", value.Int(coll.Count())).
		Build()
	return &Response{Ok: true, Data: stats, HasData: true}
}

func (d *Dispatcher) collectionFor(cmd *Command) (*document.Collection, error) {
	db, err := d.catalog.Database(cmd.Database)
	if err != nil {
		return nil, err
	}
	return db.Collection(cmd.Collection)
}

func (d *Dispatcher) handleDocGet(cmd *Command) *Response {
	coll, err := d.collectionFor(cmd)
	if err != nil {
		return fromDBErr(err)
	}
	doc, found, err := coll.Get(cmd.Key)
	if err != nil {
		return fromDBErr(err)
	}
	if !found {
		return fromDBErr(dberr.New(dberr.CodeDocumentNotFound, "document %s/%s", cmd.Collection, cmd.Key))
	}
	return &Response{Ok: true, Data: doc, HasData: true}
}

// handleDocInsert applies an insert, routing through tx's staged sink
// when tx is non-nil (used by TransactionCommand, spec §9: a correct
// implementation threads the tx into the collection call rather than
// bypassing it).
func (d *Dispatcher) handleDocInsert(cmd *Command, tx *txn.Transaction) *Response {
	var (
		doc value.Value
		err error
	)
	if tx != nil {
		doc, err = d.txMgr.StageInsert(tx, cmd.Database, cmd.Collection, cmd.Doc)
	} else {
		var coll *document.Collection
		coll, err = d.collectionFor(cmd)
		if err == nil {
			doc, err = coll.Insert(cmd.Database, cmd.Doc)
		}
	}
	if err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true, Data: doc, HasData: true}
}

func (d *Dispatcher) handleDocUpdate(cmd *Command, tx *txn.Transaction) *Response {
	var (
		doc value.Value
		err error
	)
	if tx != nil {
		doc, err = d.txMgr.StageUpdate(tx, cmd.Database, cmd.Collection, cmd.Key, cmd.Doc, cmd.Replace)
	} else {
		var coll *document.Collection
		coll, err = d.collectionFor(cmd)
		if err == nil {
			doc, err = coll.Update(cmd.Database, cmd.Key, cmd.Doc, cmd.Replace)
		}
	}
	if err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true, Data: doc, HasData: true}
}

func (d *Dispatcher) handleDocDelete(cmd *Command, tx *txn.Transaction) *Response {
	var err error
	if tx != nil {
		err = d.txMgr.StageDelete(tx, cmd.Database, cmd.Collection, cmd.Key)
	} else {
		var coll *document.Collection
		coll, err = d.collectionFor(cmd)
		if err == nil {
			err = coll.Delete(cmd.Database, cmd.Key)
		}
	}
	if err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true}
}

func (d *Dispatcher) handleDocList(cmd *Command) *Response {
	coll, err := d.collectionFor(cmd)
	if err != nil {
		return fromDBErr(err)
	}
	var out []value.Value
	skipped := 0
	scanErr := coll.Scan(0, func(key string, doc value.Value) bool {
		if skipped < cmd.Offset {
			skipped++
			return true
		}
		out = append(out, doc)
		return cmd.Limit <= 0 || len(out) < cmd.Limit
	})
	if scanErr != nil {
		return fromDBErr(scanErr)
	}
	return &Response{Ok: true, Data: value.Array(out), HasData: true, Count: len(out)}
}

func (d *Dispatcher) sinkFor(database string, tx *txn.Transaction) exec.Sink {
	if tx == nil {
		return nil
	}
	return txn.NewSink(d.txMgr, tx)
}

func (d *Dispatcher) handleQuery(cmd *Command, tx *txn.Transaction) *Response {
	db, err := d.catalog.Database(cmd.Database)
	if err != nil {
		return fromDBErr(err)
	}
	q, err := parser.Parse(cmd.SDBQL)
	if err != nil {
		return fromDBErr(dberr.Wrap(dberr.CodeParseError, err, "parse query"))
	}
	var executor *exec.Executor
	if sink := d.sinkFor(cmd.Database, tx); sink != nil {
		executor = exec.NewWithSink(db, sink, cmd.BindVars, d.views)
	} else {
		executor = exec.New(db, cmd.BindVars, d.views)
	}
	res, err := executor.Run(q)
	if err != nil {
		return fromDBErr(dberr.Wrap(dberr.CodeExecutionError, err, "execute query"))
	}
	return &Response{Ok: true, Data: value.Array(res.Values), HasData: true, Count: len(res.Values)}
}

func (d *Dispatcher) handleExplain(cmd *Command) *Response {
	db, err := d.catalog.Database(cmd.Database)
	if err != nil {
		return fromDBErr(err)
	}
	q, err := parser.Parse(cmd.SDBQL)
	if err != nil {
		return fromDBErr(dberr.Wrap(dberr.CodeParseError, err, "parse query"))
	}
	executor := exec.New(db, cmd.BindVars, d.views)
	plan, err := executor.Explain(q)
	if err != nil {
		return fromDBErr(dberr.Wrap(dberr.CodeExecutionError, err, "explain query"))
	}
	steps := make([]value.Value, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		steps = append(steps, value.NewObject().
			Set("clause", value.String(s.Clause)).
			Set("description", value.String(s.Description)).
			Set("rows_out", value.Int(int64(s.RowsOut))).
			Set("duration_us", value.Int(s.Duration.Microseconds())).
			Build())
	}
	data := value.NewObject().
		Set("steps", value.Array(steps)).
		Set("total_us", value.Int(plan.Total.Microseconds())).
		Build()
	return &Response{Ok: true, Data: data, HasData: true}
}

func (d *Dispatcher) handleIndexCreate(cmd *Command) *Response {
	db, err := d.catalog.Database(cmd.Database)
	if err != nil {
		return fromDBErr(err)
	}
	coll, err := db.Collection(cmd.Collection)
	if err != nil {
		return fromDBErr(err)
	}
	idx := index.NewManager(db.Engine())
	switch cmd.IndexKind {
	case "", "persistent":
		_, err = idx.CreateIndex(coll, cmd.IndexName, cmd.Fields, cmd.Unique, cmd.Sparse)
	case "geo":
		_, err = idx.CreateGeoIndex(coll, cmd.IndexName, cmd.LatField, cmd.LngField)
	case "fulltext":
		field := ""
		if len(cmd.Fields) > 0 {
			field = cmd.Fields[0]
		}
		_, err = idx.CreateFulltextIndex(coll, cmd.IndexName, field)
	case "ttl":
		field := ""
		if len(cmd.Fields) > 0 {
			field = cmd.Fields[0]
		}
		_, err = idx.CreateTTLIndex(coll, cmd.IndexName, field, cmd.ExpireAfterSeconds)
	case "vector":
		_, err = idx.CreateVectorIndex(coll, cmd.IndexName, firstOr(cmd.Fields, ""), index.VectorParams{
			Dim:            cmd.VectorDim,
			Metric:         index.VectorMetric(cmd.VectorMetric),
			M:              cmd.VectorM,
			EfConstruction: cmd.VectorEfConstruction,
			EfSearch:       cmd.VectorEfSearch,
		})
	default:
		return errResponse(ErrInvalidCommand, "unknown index kind %q", cmd.IndexKind)
	}
	if err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true}
}

func firstOr(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return items[0]
}

func (d *Dispatcher) handleIndexDrop(cmd *Command) *Response {
	coll, err := d.collectionFor(cmd)
	if err != nil {
		return fromDBErr(err)
	}
	if err := index.DropIndex(coll, cmd.IndexName); err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true}
}

func (d *Dispatcher) handleTransactionBegin(cmd *Command) *Response {
	isolation := txn.ReadCommitted
	if cmd.Isolation == string(txn.Snapshot) {
		isolation = txn.Snapshot
	}
	tx, err := d.txMgr.Begin(isolation)
	if err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true, TxID: tx.ID}
}

func (d *Dispatcher) txFor(id uint64) (*txn.Transaction, error) {
	tx, ok := d.txMgr.Lookup(id)
	if !ok {
		return nil, dberr.New(dberr.CodeTransactionNotFound, "transaction %d not found", id)
	}
	return tx, nil
}

func (d *Dispatcher) handleTransactionCommit(cmd *Command) *Response {
	tx, err := d.txFor(cmd.TxID)
	if err != nil {
		return fromDBErr(err)
	}
	if err := d.txMgr.Commit(tx); err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true, TxID: tx.ID}
}

func (d *Dispatcher) handleTransactionRollback(cmd *Command) *Response {
	tx, err := d.txFor(cmd.TxID)
	if err != nil {
		return fromDBErr(err)
	}
	if err := d.txMgr.Abort(tx); err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true, TxID: tx.ID}
}

// handleTransactionCommand threads tx into the inner command's
// collection call rather than running it standalone (spec §9 open
// question, resolved: without this, the wrapper would apply the inner
// mutation outside the transaction it was meant to join).
func (d *Dispatcher) handleTransactionCommand(cmd *Command) *Response {
	if cmd.Inner == nil {
		return errResponse(ErrProtocolError, "TransactionCommand missing inner command")
	}
	tx, err := d.txFor(cmd.TxID)
	if err != nil {
		return fromDBErr(err)
	}
	inner := cmd.Inner
	switch inner.Kind {
	case KindDocInsert:
		return d.handleDocInsert(inner, tx)
	case KindDocUpdate:
		return d.handleDocUpdate(inner, tx)
	case KindDocDelete:
		return d.handleDocDelete(inner, tx)
	case KindQuery:
		return d.handleQuery(inner, tx)
	default:
		return d.Dispatch(inner)
	}
}

func (d *Dispatcher) handleBatch(cmd *Command) *Response {
	responses := make([]*Response, 0, len(cmd.Batch))
	for _, sub := range cmd.Batch {
		responses = append(responses, d.Dispatch(sub))
	}
	return &Response{Ok: true, Responses: responses}
}

func (d *Dispatcher) handleBulkInsert(cmd *Command) *Response {
	coll, err := d.collectionFor(cmd)
	if err != nil {
		return fromDBErr(err)
	}
	finals, err := coll.InsertBatch(cmd.Database, cmd.Docs)
	if err != nil {
		return fromDBErr(err)
	}
	return &Response{Ok: true, Data: value.Array(finals), HasData: true, Count: len(finals)}
}
