/*
Package httpapi implements SoliDB's core-facing HTTP/JSON surface
(spec §6.2): cursor-based query execution and explicit transaction
lifecycle, served over an echo.Echo the way the pack's eve service
wires its REST API.
*/
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/solidb/solidb/pkg/admin"
	"github.com/solidb/solidb/pkg/config"
	"github.com/solidb/solidb/pkg/dberr"
	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/log"
	"github.com/solidb/solidb/pkg/metrics"
	"github.com/solidb/solidb/pkg/query/exec"
	"github.com/solidb/solidb/pkg/query/parser"
	"github.com/solidb/solidb/pkg/txn"
	"github.com/solidb/solidb/pkg/value"
)

// transactionIDHeader is the header dependent requests use to carry a
// transaction's identity (spec §6.2).
const transactionIDHeader = "X-Transaction-Id"

// slowQueriesCollection is the per-system-database collection slow
// queries are recorded into (spec §6.3).
const slowQueriesCollection = "_slow_queries"

// Server is SoliDB's HTTP/JSON core API.
type Server struct {
	echo    *echo.Echo
	catalog *document.Catalog
	txMgr   *txn.Manager
	views   *exec.ViewRegistry
	cursors *cursorStore
	cfg     *config.Config
}

// New builds a Server wired to catalog and txMgr. views may be nil if
// stream/materialized-view clauses are not supported in this deployment.
func New(catalog *document.Catalog, txMgr *txn.Manager, views *exec.ViewRegistry, cfg *config.Config) *Server {
	s := &Server{
		catalog: catalog,
		txMgr:   txMgr,
		views:   views,
		cursors: newCursorStore(),
		cfg:     cfg,
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(apiMetricsMiddleware())
	e.Use(middleware.Logger())

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/_api/database/:db")
	api.POST("/cursor", s.handleCreateCursor)
	api.PUT("/cursor/:id", s.handleNextBatch)
	api.DELETE("/cursor/:id", s.handleDeleteCursor)
	api.POST("/transaction", s.handleBeginTransaction)
	api.PUT("/transaction/:tx", s.handleCommitTransaction)
	api.DELETE("/transaction/:tx", s.handleRollbackTransaction)
	api.GET("/collection/:coll/changes", s.handleChangeFeed)

	s.echo = e
	return s
}

// Start serves the API on addr until the process is stopped.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server and its cursor reaper.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cursors.close()
	return s.echo.Shutdown(ctx)
}

func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func apiMetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			timer := metrics.NewTimer()
			err := next(c)
			metrics.APIRequestsTotal.WithLabelValues(c.Request().Method, strconv.Itoa(c.Response().Status)).Inc()
			timer.ObserveDurationVec(metrics.APIRequestDuration, c.Request().Method)
			return err
		}
	}
}

// cursorRequest is the body of POST /_api/database/{db}/cursor.
type cursorRequest struct {
	Query     string                 `json:"query"`
	BindVars  map[string]value.Value `json:"bindVars"`
	BatchSize int                    `json:"batchSize"`
}

// cursorResponse is the common envelope for cursor create/next.
type cursorResponse struct {
	Result   []value.Value `json:"result"`
	Count    int           `json:"count"`
	HasMore  bool          `json:"has_more"`
	ID       string        `json:"id,omitempty"`
	Extra    extraInfo     `json:"extra"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Deleted  int           `json:"deleted"`
}

type extraInfo struct {
	Timing timingInfo `json:"timing"`
}

type timingInfo struct {
	ExecutionTimeMS float64 `json:"execution_time_ms"`
	RowsScanned     int     `json:"rows_scanned"`
}

func errorResponse(c echo.Context, err error) error {
	code := dberr.CodeOf(err)
	status := dberr.HTTPStatus(code)
	log.WithComponent("httpapi").Warn().Err(err).Str("code", string(code)).Msg("request failed")
	return c.JSON(status, map[string]string{
		"error": err.Error(),
		"code":  string(code),
	})
}

func (s *Server) resolveSink(database *document.Database, txIDHeader string) (exec.Sink, *txn.Transaction, error) {
	if txIDHeader == "" {
		return nil, nil, nil
	}
	id, err := strconv.ParseUint(txIDHeader, 10, 64)
	if err != nil {
		return nil, nil, dberr.New(dberr.CodeBadRequest, "invalid %s header", transactionIDHeader)
	}
	tx, ok := s.txMgr.Lookup(id)
	if !ok {
		return nil, nil, dberr.New(dberr.CodeTransactionNotFound, "transaction %d not found", id)
	}
	return txn.NewSink(s.txMgr, tx), tx, nil
}

func (s *Server) handleCreateCursor(c echo.Context) error {
	dbName := c.Param("db")
	database, err := s.catalog.Database(dbName)
	if err != nil {
		return errorResponse(c, err)
	}

	var req cursorRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, dberr.Wrap(dberr.CodeBadRequest, err, "decode cursor request"))
	}

	q, err := parser.Parse(req.Query)
	if err != nil {
		return errorResponse(c, dberr.Wrap(dberr.CodeParseError, err, "parse query"))
	}

	sink, _, err := s.resolveSink(database, c.Request().Header.Get(transactionIDHeader))
	if err != nil {
		return errorResponse(c, err)
	}

	var executor *exec.Executor
	if sink != nil {
		executor = exec.NewWithSink(database, sink, req.BindVars, s.views)
	} else {
		executor = exec.New(database, req.BindVars, s.views)
	}

	start := time.Now()
	res, err := executor.Run(q)
	elapsed := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	metrics.QueryDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if s.cfg != nil && elapsed >= s.cfg.SlowQueryThreshold() {
		metrics.SlowQueriesTotal.Inc()
		log.WithComponent("httpapi").Warn().Str("database", dbName).Dur("elapsed", elapsed).Str("query", req.Query).Msg("slow query")
		s.recordSlowQuery(dbName, req.Query, elapsed)
	}
	if err != nil {
		return errorResponse(c, err)
	}

	return s.respondWithResult(c, res, req.BatchSize)
}

// recordSlowQuery appends an entry to the _system database's
// _slow_queries collection (spec §6.3), creating that collection on
// first use, if that database has been bootstrapped
// (pkg/admin.Bootstrap). Best-effort: failures are logged,
// never surfaced to the caller whose query already succeeded.
func (s *Server) recordSlowQuery(database, query string, elapsed time.Duration) {
	sysDB, err := s.catalog.Database(admin.SystemDatabase)
	if err != nil {
		return
	}
	coll, err := sysDB.Collection(slowQueriesCollection)
	if err != nil {
		if coll, err = sysDB.CreateCollection(slowQueriesCollection, document.TypeDocument); err != nil {
			return
		}
	}
	entry := value.NewObject().
		Set("database", value.String(database)).
		Set("query", value.String(query)).
		Set("duration_ms", value.Float(float64(elapsed.Microseconds())/1000.0)).
		Set("recorded_at", value.String(time.Now().UTC().Format(time.RFC3339))).
		Build()
	if _, err := coll.Insert(admin.SystemDatabase, entry); err != nil {
		log.WithComponent("httpapi").Warn().Err(err).Msg("failed to record slow query")
	}
}

func (s *Server) respondWithResult(c echo.Context, res *exec.Result, batchSize int) error {
	resp := cursorResponse{
		Extra:    extraInfo{Timing: timingInfo{ExecutionTimeMS: float64(res.Stats.Duration.Microseconds()) / 1000.0, RowsScanned: res.Stats.RowsScanned}},
		Inserted: res.Stats.Inserted,
		Updated:  res.Stats.Updated,
		Deleted:  res.Stats.Deleted,
	}

	if batchSize <= 0 || batchSize >= len(res.Values) {
		resp.Result = res.Values
		resp.Count = len(res.Values)
		resp.HasMore = false
		return c.JSON(http.StatusCreated, resp)
	}

	cur := s.cursors.create(res.Values, batchSize, res.Stats)
	batch, hasMore := cur.nextBatch()
	resp.Result = batch
	resp.Count = len(batch)
	resp.HasMore = hasMore
	if hasMore {
		resp.ID = cur.id
	} else {
		s.cursors.remove(cur.id)
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleNextBatch(c echo.Context) error {
	id := c.Param("id")
	cur, ok := s.cursors.get(id)
	if !ok {
		return errorResponse(c, dberr.New(dberr.CodeBadRequest, "unknown cursor %s", id))
	}
	batch, hasMore := cur.nextBatch()
	resp := cursorResponse{
		Result:  batch,
		Count:   len(batch),
		HasMore: hasMore,
		Extra:   extraInfo{Timing: timingInfo{RowsScanned: cur.stats.RowsScanned}},
	}
	if hasMore {
		resp.ID = cur.id
	} else {
		s.cursors.remove(cur.id)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteCursor(c echo.Context) error {
	id := c.Param("id")
	if !s.cursors.remove(id) {
		return errorResponse(c, dberr.New(dberr.CodeBadRequest, "unknown cursor %s", id))
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleBeginTransaction(c echo.Context) error {
	var req struct {
		Isolation string `json:"isolation"`
	}
	_ = c.Bind(&req)

	isolation := txn.ReadCommitted
	if req.Isolation == string(txn.Snapshot) {
		isolation = txn.Snapshot
	}

	tx, err := s.txMgr.Begin(isolation)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": strconv.FormatUint(tx.ID, 10)})
}

func (s *Server) txFromParam(c echo.Context) (*txn.Transaction, error) {
	id, err := strconv.ParseUint(c.Param("tx"), 10, 64)
	if err != nil {
		return nil, dberr.New(dberr.CodeBadRequest, "invalid transaction id")
	}
	tx, ok := s.txMgr.Lookup(id)
	if !ok {
		return nil, dberr.New(dberr.CodeTransactionNotFound, "transaction %d not found", id)
	}
	return tx, nil
}

func (s *Server) handleCommitTransaction(c echo.Context) error {
	tx, err := s.txFromParam(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := s.txMgr.Commit(tx); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"id": strconv.FormatUint(tx.ID, 10), "status": "committed"})
}

func (s *Server) handleRollbackTransaction(c echo.Context) error {
	tx, err := s.txFromParam(c)
	if err != nil {
		return errorResponse(c, err)
	}
	if err := s.txMgr.Abort(tx); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"id": strconv.FormatUint(tx.ID, 10), "status": "aborted"})
}
