// Package storage provides the PostgreSQL-backed loader for the static
// transit network dataset.
package storage

import (
	"context"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/network"
)

// NetworkRepository loads the static transit dataset. The dataset is read
// once at startup and indexed in memory; the planner never goes back to the
// database during a request.
type NetworkRepository interface {
	// LoadDataset reads all stops, lines, line memberships and active
	// disruptions.
	LoadDataset(ctx context.Context) (network.Dataset, error)
}
