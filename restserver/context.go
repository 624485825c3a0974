// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/datalode/conveyor/queue"
	"github.com/datalode/conveyor/restdata"
	"github.com/gorilla/mux"
)

// errUnmarshal is returned if the post contract is violated and a
// handler function is passed the wrong type.
var errUnmarshal = restdata.ErrBadRequest{
	Err: errors.New("invalid input format"),
}

// context holds all of the information and objects that can be
// extracted from URL parameters.
type context struct {
	Item        *queue.WorkItem
	RunID       string
	Action      string
	QueryParams url.Values
}

func (api *restAPI) Context(req *http.Request) (ctx *context, err error) {
	ctx = &context{}
	ctx.QueryParams = req.URL.Query()
	vars := mux.Vars(req)

	if itemID, present := vars["item"]; present {
		ctx.Item, err = api.Backend.Get(itemID)
		// An item key in the URL naming an absent item is a
		// missing URL and should return 404.
		if err == nil && ctx.Item == nil {
			err = restdata.ErrNotFound{Err: queue.ErrNoSuchItem{ID: itemID}}
		}
		if err != nil {
			return nil, err
		}
	}

	// Runs are not resolved here; the ledger queries take the ID
	// directly.
	ctx.RunID = vars["run"]
	ctx.Action = vars["action"]
	return ctx, nil
}

// ItemFilter builds a work item query from query parameters.  This can
// fail (if invalid statuses are named, if a non-integer limit is
// provided) so it should only be called if a specific route wants it.
func (ctx *context) ItemFilter() (f queue.ItemFilter, err error) {
	f.SourceSystem = ctx.QueryParams.Get("source_system")
	f.SourceName = ctx.QueryParams.Get("source_name")
	f.RunID = ctx.QueryParams.Get("run_id")
	if len(ctx.QueryParams["status"]) > 0 {
		f.Statuses = make([]queue.Status, len(ctx.QueryParams["status"]))
		for i, status := range ctx.QueryParams["status"] {
			err = f.Statuses[i].UnmarshalText([]byte(status))
			if err != nil {
				return f, restdata.ErrBadRequest{Err: err}
			}
		}
	}
	f.AfterID = ctx.QueryParams.Get("previous")
	limit := ctx.QueryParams.Get("limit")
	if limit != "" {
		f.Limit, err = strconv.Atoi(limit)
		if err != nil {
			err = restdata.ErrBadRequest{Err: err}
		}
	}
	return
}
