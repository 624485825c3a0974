// Copyright 2025-2026 Datalode, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"fmt"
	"net/url"

	"github.com/gorilla/mux"
)

// urlBuilder renders URLs for named routes, collecting the first error
// across a chain of calls.
type urlBuilder struct {
	Router *mux.Router
	Params []string
	Error  error
}

func buildURLs(router *mux.Router, params ...string) *urlBuilder {
	return &urlBuilder{Router: router, Params: params}
}

func (u *urlBuilder) URL(out *string, route string) *urlBuilder {
	var (
		r   *mux.Route
		url *url.URL
	)
	if u.Error == nil {
		r = u.Router.Get(route)
		if r == nil {
			u.Error = fmt.Errorf("no such route %q", route)
		}
	}
	if u.Error == nil {
		url, u.Error = r.URL(u.Params...)
	}
	if u.Error == nil {
		*out = url.String()
	}
	return u
}
