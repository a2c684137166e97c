// Package handler exposes the trip planner over HTTP.
package handler

import (
	"github.com/jmisilo/hackyeah-2025-sub000/internal/network"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/planner"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	net     *network.Index
	planner *planner.Planner
}

// New creates a Handler.
func New(net *network.Index, pl *planner.Planner) *Handler {
	return &Handler{net: net, planner: pl}
}
