// Package positions owns the durable position/spend state. Every mutation
// funnels through the Store under one mutex and is written to disk before
// the call returns, so a restart reproduces the exact tier flags and spend
// total that were live at shutdown.
package positions

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mint_sniper/internal/models"
	"mint_sniper/internal/storage"

	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned by Create when the mint is already tracked.
var ErrDuplicate = errors.New("position already exists")

// Store is the single writer of the state file.
type Store struct {
	mu    sync.Mutex
	path  string
	state models.BotState
}

// Open loads the state file (or creates a default one) and returns the
// store. A corrupt file is a hard error: the caller must not trade on an
// unknown budget.
func Open(path string) (*Store, error) {
	s, err := storage.LoadState(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, state: s}, nil
}

// TotalSpent returns the persisted cumulative spend, used to seed the
// budget ledger at startup.
func (s *Store) TotalSpent() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TotalSpent
}

// SetTotalSpent records the ledger's new spend total and persists it.
// Called right after a buy commits, before the position is created, so a
// crash in between can only over-count spend, never under-count it.
func (s *Store) SetTotalSpent(total decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TotalSpent = total
	return s.persistLocked()
}

// Create adds a new position for mint with the given SOL investment.
func (s *Store) Create(mint string, investment decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.state.Positions[mint]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, mint)
	}

	s.state.Positions[mint] = &models.Position{
		Mint:              mint,
		InitialInvestment: investment,
		TiersFired:        map[models.Tier]bool{},
		OpenedAt:          time.Now().UTC(),
	}
	return s.persistLocked()
}

// Get returns a copy of the position for mint, if tracked.
func (s *Store) Get(mint string) (models.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.state.Positions[mint]
	if !ok {
		return models.Position{}, false
	}
	return pos.Clone(), true
}

// MarkTier records that a tier's sell confirmed. It is idempotent: the
// bool is false (and nothing is written) when the tier was already set.
// A tier flag, once set, is never cleared.
func (s *Store) MarkTier(mint string, tier models.Tier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.state.Positions[mint]
	if !ok {
		return false, fmt.Errorf("no position for %s", mint)
	}
	if pos.TiersFired[tier] {
		return false, nil
	}
	pos.TiersFired[tier] = true
	return true, s.persistLocked()
}

// All returns a copy of every tracked position, ordered by mint so a poll
// pass over the book is deterministic.
func (s *Store) All() []models.Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Position, 0, len(s.state.Positions))
	for _, pos := range s.state.Positions {
		out = append(out, pos.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out
}

// Flush rewrites the snapshot. Used on shutdown; mutating calls persist on
// their own.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	return storage.SaveState(s.path, s.state)
}
