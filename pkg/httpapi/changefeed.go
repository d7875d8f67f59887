package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/solidb/solidb/pkg/dberr"
)

// handleChangeFeed streams a collection's change events as
// newline-delimited JSON until the client disconnects (spec §4.7:
// "consumers subscribe lazily", §5 Backpressure: "bounded broadcast
// channel"). One line per event; a subscriber that falls behind the
// bounded channel silently drops its oldest buffered events rather
// than blocking the mutation path.
func (s *Server) handleChangeFeed(c echo.Context) error {
	db, err := s.catalog.Database(c.Param("db"))
	if err != nil {
		return errorResponse(c, err)
	}
	coll, err := db.Collection(c.Param("coll"))
	if err != nil {
		return errorResponse(c, err)
	}

	sub := coll.Topic().Subscribe()
	defer sub.Close()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	enc := json.NewEncoder(w)
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := enc.Encode(ev); err != nil {
				return dberr.Wrap(dberr.CodeInternalError, err, "encode change event")
			}
			w.Flush()
		}
	}
}
