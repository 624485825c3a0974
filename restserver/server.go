// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	"github.com/datalode/conveyor/queue"
	"github.com/datalode/conveyor/restdata"
	"github.com/datalode/conveyor/runner"
	"github.com/gorilla/mux"
)

// NewRouter creates a new HTTP handler that processes all Conveyor
// requests at the URL path root.  control may be nil if the serving
// process runs no workers; the control endpoints then return 404.
// For more control over the setup, create a mux.Router and call
// PopulateRouter instead.
func NewRouter(backend queue.Backend, control *runner.Control) http.Handler {
	r := mux.NewRouter()
	PopulateRouter(r, backend, control)
	return r
}

// PopulateRouter adds Conveyor routes to an existing
// github.com/gorilla/mux router object.  This can be used, for
// instance, to place the queue interface under a subpath:
//
//	r := mux.NewRouter()
//	s := r.PathPrefix("/conveyor").Subrouter()
//	PopulateRouter(s, memqueue.New(), nil)
func PopulateRouter(r *mux.Router, backend queue.Backend, control *runner.Control) {
	api := &restAPI{Backend: backend, Control: control, Router: r}
	api.PopulateRouter(r)
}

// restAPI holds the persistent state for the Conveyor REST API.
type restAPI struct {
	Backend queue.Backend
	Control *runner.Control
	Router  *mux.Router
}

// PopulateRouter adds all Conveyor URL paths to a router.
func (api *restAPI) PopulateRouter(r *mux.Router) {
	api.PopulateItems(r)
	api.PopulateAdmin(r)
	r.Path("/").Name("root").Handler(&resourceHandler{
		Representation: restdata.RootData{},
		Context:        api.Context,
		Get:            api.RootDocument,
	})
}

func (api *restAPI) RootDocument(ctx *context) (interface{}, error) {
	resp := restdata.RootData{}
	err := buildURLs(api.Router).
		URL(&resp.ItemsURL, "items").
		URL(&resp.StatsURL, "stats").
		URL(&resp.WorkersURL, "workers").
		URL(&resp.ControlURL, "control").
		Error
	return resp, err
}
