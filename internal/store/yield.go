package store

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/model"
)

// SetPools replaces the pool list.
func (s *Store) SetPools(list []model.YieldPool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools = make([]model.YieldPool, len(list))
	for i, p := range list {
		s.pools[i] = clonePool(p)
	}
}

// UpsertPool replaces the pool with the same id or appends it.
func (s *Store) UpsertPool(p model.YieldPool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pools {
		if s.pools[i].ID == p.ID {
			s.pools[i] = clonePool(p)
			return
		}
	}
	s.pools = append(s.pools, clonePool(p))
}

// Pools returns every pool.
func (s *Store) Pools() []model.YieldPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.YieldPool, len(s.pools))
	for i, p := range s.pools {
		out[i] = clonePool(p)
	}
	return out
}

// Pool returns one pool.
func (s *Store) Pool(id string) (model.YieldPool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pools {
		if p.ID == id {
			return clonePool(p), true
		}
	}
	return model.YieldPool{}, false
}

// SetPositions replaces a user's positions.
func (s *Store) SetPositions(user string, list []model.YieldPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[user] = append([]model.YieldPosition(nil), list...)
}

// Positions returns a user's positions.
func (s *Store) Positions(user string) []model.YieldPosition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.YieldPosition(nil), s.positions[user]...)
}

// ApplyDeposit adds an optimistic position and raises the pool total. The
// Undo restores the pool, the user's positions and the TVL exactly.
func (s *Store) ApplyDeposit(pos model.YieldPosition) Undo {
	s.mu.Lock()
	defer s.mu.Unlock()

	priorPositions := append([]model.YieldPosition(nil), s.positions[pos.User]...)
	priorTVL := s.tvl
	var priorPool *model.YieldPool

	s.positions[pos.User] = append(s.positions[pos.User], pos)
	s.tvl = s.tvl.Add(pos.Principal)
	for i := range s.pools {
		if s.pools[i].ID != pos.PoolID {
			continue
		}
		before := clonePool(s.pools[i])
		priorPool = &before
		p := &s.pools[i]
		p.TotalDeposited = p.TotalDeposited.Add(pos.Principal)
		if !slices.Contains(p.Participants, pos.User) {
			p.Participants = append(p.Participants, pos.User)
		}
		break
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.positions[pos.User] = priorPositions
		s.tvl = priorTVL
		if priorPool == nil {
			return
		}
		for i := range s.pools {
			if s.pools[i].ID == priorPool.ID {
				s.pools[i] = *priorPool
				return
			}
		}
	}
}

// SetTransfers replaces a user's remittances.
func (s *Store) SetTransfers(user string, list []model.CrossBorderTransfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[user] = append([]model.CrossBorderTransfer(nil), list...)
}

// AddTransfer appends a remittance to its sender's list.
func (s *Store) AddTransfer(t model.CrossBorderTransfer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[t.From] = append(s.transfers[t.From], t)
}

// Transfers returns a user's remittances, oldest first.
func (s *Store) Transfers(user string) []model.CrossBorderTransfer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.CrossBorderTransfer(nil), s.transfers[user]...)
}

// SetRate stores an exchange rate by currency pair.
func (s *Store) SetRate(pair string, rate decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[pair] = rate
}

// Rate returns a stored exchange rate.
func (s *Store) Rate(pair string) (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[pair]
	return r, ok
}

// ClearRate forgets a stored exchange rate.
func (s *Store) ClearRate(pair string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rates, pair)
}

// SetCorridors stores the supported corridors.
func (s *Store) SetCorridors(list []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corridors = append([]string(nil), list...)
}

// Corridors returns the supported corridors.
func (s *Store) Corridors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.corridors...)
}

// SetTotalValueLocked stores the TVL across pools.
func (s *Store) SetTotalValueLocked(v decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tvl = v
}

// TotalValueLocked returns the stored TVL.
func (s *Store) TotalValueLocked() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tvl
}

func clonePool(p model.YieldPool) model.YieldPool {
	out := p
	out.Participants = append([]string(nil), p.Participants...)
	return out
}
