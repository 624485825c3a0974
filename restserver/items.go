// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/datalode/conveyor/queue"
	"github.com/datalode/conveyor/restdata"
	"github.com/gorilla/mux"
)

func (api *restAPI) fillItemShort(item *queue.WorkItem, short *restdata.ItemShort) error {
	short.FromItem(item)
	return buildURLs(api.Router, "item", item.ID).
		URL(&short.URL, "item").
		Error
}

func (api *restAPI) fillItem(item *queue.WorkItem, repr *restdata.Item) error {
	repr.FromItem(item)
	return buildURLs(api.Router, "item", item.ID).
		URL(&repr.URL, "item").
		Error
}

func (api *restAPI) ItemsGet(ctx *context) (interface{}, error) {
	filter, err := ctx.ItemFilter()
	if err != nil {
		return nil, err
	}
	items, err := api.Backend.List(filter)
	if err != nil {
		return nil, err
	}
	resp := restdata.ItemList{Items: []restdata.ItemShort{}}
	for _, item := range items {
		var short restdata.ItemShort
		if err = api.fillItemShort(item, &short); err != nil {
			return nil, err
		}
		resp.Items = append(resp.Items, short)
	}
	return resp, nil
}

func (api *restAPI) ItemsPost(ctx *context, in interface{}) (interface{}, error) {
	repr, valid := in.(restdata.Item)
	if !valid {
		return nil, errUnmarshal
	}
	item, err := repr.ToItem()
	if err != nil {
		return nil, restdata.ErrBadRequest{Err: err}
	}
	created, err := api.Backend.Enqueue(item)
	if err != nil {
		return nil, restdata.ErrBadRequest{Err: err}
	}
	resp := restdata.ItemCreated{Created: created}
	if created {
		if err = api.fillItemShort(item, &resp.ItemShort); err != nil {
			return nil, err
		}
		return responseCreated{Location: resp.URL, Body: resp}, nil
	}
	// A duplicate is not an error; report it as a plain 200 with
	// created false so idempotent seeding scripts can tell.
	resp.ItemShort.SourceSystem = item.SourceSystem
	resp.ItemShort.ResourceType = item.ResourceType
	resp.ItemShort.ResourceID = item.ResourceID
	return resp, nil
}

func (api *restAPI) ItemGet(ctx *context) (interface{}, error) {
	repr := restdata.Item{}
	err := api.fillItem(ctx.Item, &repr)
	if err != nil {
		return nil, err
	}
	return repr, nil
}

func (api *restAPI) ItemRunsGet(ctx *context) (interface{}, error) {
	runs, err := api.Backend.Runs(ctx.Item.ID)
	if err != nil {
		return nil, err
	}
	resp := restdata.RunList{Runs: []restdata.Run{}}
	for _, run := range runs {
		var repr restdata.Run
		repr.FromRun(run)
		resp.Runs = append(resp.Runs, repr)
	}
	return resp, nil
}

func (api *restAPI) RunArtifactsGet(ctx *context) (interface{}, error) {
	artifacts, err := api.Backend.RunArtifacts(ctx.RunID)
	if err != nil {
		return nil, err
	}
	resp := restdata.ArtifactList{Artifacts: []restdata.Artifact{}}
	for _, artifact := range artifacts {
		var repr restdata.Artifact
		repr.FromArtifact(artifact)
		resp.Artifacts = append(resp.Artifacts, repr)
	}
	return resp, nil
}

// PopulateItems adds the work item routes to a router.
func (api *restAPI) PopulateItems(r *mux.Router) {
	r.Path("/items").Name("items").Handler(&resourceHandler{
		Representation: restdata.Item{},
		Context:        api.Context,
		Get:            api.ItemsGet,
		Post:           api.ItemsPost,
	})
	r.Path("/items/{item}").Name("item").Handler(&resourceHandler{
		Representation: restdata.Item{},
		Context:        api.Context,
		Get:            api.ItemGet,
	})
	r.Path("/items/{item}/runs").Name("itemRuns").Handler(&resourceHandler{
		Representation: restdata.RunList{},
		Context:        api.Context,
		Get:            api.ItemRunsGet,
	})
	r.Path("/runs/{run}/artifacts").Name("runArtifacts").Handler(&resourceHandler{
		Representation: restdata.ArtifactList{},
		Context:        api.Context,
		Get:            api.RunArtifactsGet,
	})
}
