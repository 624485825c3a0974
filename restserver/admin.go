// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"fmt"

	"github.com/datalode/conveyor/queue"
	"github.com/datalode/conveyor/restdata"
	"github.com/gorilla/mux"
)

func (api *restAPI) StatsGet(ctx *context) (interface{}, error) {
	filter, err := ctx.ItemFilter()
	if err != nil {
		return nil, err
	}
	stats, err := api.Backend.Summarize(filter)
	if err != nil {
		return nil, err
	}
	return restdata.Stats{Stats: stats, Total: stats.Total()}, nil
}

func (api *restAPI) WorkersGet(ctx *context) (interface{}, error) {
	// Zero timeout means the registry's default liveness horizon.
	workers, err := api.Backend.ListActive(0)
	if err != nil {
		return nil, err
	}
	resp := restdata.WorkerList{Workers: []restdata.Worker{}}
	for _, hb := range workers {
		var repr restdata.Worker
		repr.FromHeartbeat(hb)
		resp.Workers = append(resp.Workers, repr)
	}
	return resp, nil
}

func (api *restAPI) ControlGet(ctx *context) (interface{}, error) {
	if api.Control == nil {
		return nil, restdata.ErrNotFound{Err: errors.New("this process runs no workers")}
	}
	return restdata.ControlState{State: api.Control.State()}, nil
}

func (api *restAPI) ControlPost(ctx *context, in interface{}) (interface{}, error) {
	if api.Control == nil {
		return nil, restdata.ErrNotFound{Err: errors.New("this process runs no workers")}
	}
	switch ctx.Action {
	case "pause":
		api.Control.Pause()
	case "resume":
		api.Control.Resume()
	case "drain":
		api.Control.Drain()
	default:
		return nil, restdata.ErrNotFound{Err: fmt.Errorf("no such control action %q", ctx.Action)}
	}
	return restdata.ControlState{State: api.Control.State()}, nil
}

func (api *restAPI) RecrawlPost(ctx *context, in interface{}) (interface{}, error) {
	repr, valid := in.(restdata.RecrawlRequest)
	if !valid {
		return nil, errUnmarshal
	}
	reset, err := api.Backend.ResetForRecrawl(queue.ItemFilter{
		SourceSystem: repr.SourceSystem,
		SourceName:   repr.SourceName,
		RunID:        repr.RunID,
	})
	if err != nil {
		return nil, err
	}
	return restdata.RecrawlResponse{Reset: reset}, nil
}

func (api *restAPI) RecoverPost(ctx *context, in interface{}) (interface{}, error) {
	recovered, err := api.Backend.RecoverExpiredLeases()
	if err != nil {
		return nil, err
	}
	return restdata.RecoverResponse{Recovered: recovered}, nil
}

// PopulateAdmin adds the stats, worker, and operator control routes to
// a router.
func (api *restAPI) PopulateAdmin(r *mux.Router) {
	r.Path("/stats").Name("stats").Handler(&resourceHandler{
		Representation: restdata.Stats{},
		Context:        api.Context,
		Get:            api.StatsGet,
	})
	r.Path("/workers").Name("workers").Handler(&resourceHandler{
		Representation: restdata.WorkerList{},
		Context:        api.Context,
		Get:            api.WorkersGet,
	})
	r.Path("/control").Name("control").Handler(&resourceHandler{
		Representation: restdata.ControlState{},
		Context:        api.Context,
		Get:            api.ControlGet,
	})
	r.Path("/control/{action}").Name("controlAction").Handler(&resourceHandler{
		Representation: restdata.ControlState{},
		Context:        api.Context,
		Post:           api.ControlPost,
	})
	r.Path("/recrawl").Name("recrawl").Handler(&resourceHandler{
		Representation: restdata.RecrawlRequest{},
		Context:        api.Context,
		Post:           api.RecrawlPost,
	})
	r.Path("/recover").Name("recover").Handler(&resourceHandler{
		Representation: restdata.RecoverResponse{},
		Context:        api.Context,
		Post:           api.RecoverPost,
	})
}
