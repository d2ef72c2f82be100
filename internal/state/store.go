// Package state persists the gate offset and pipeline stage across restarts.
package state

import "MarketReel/internal/model"

// Store loads and saves PersistedState.
type Store interface {
	Load() (model.PersistedState, error)
	Save(st model.PersistedState) error
	Close() error
}
