package store

import (
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/clock"
	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/progress"
)

// DefaultNotificationCap is the number of notifications retained.
const DefaultNotificationCap = 50

// Undo reverses an optimistic write.
type Undo func()

// Store holds client-side state. Create with New.
type Store struct {
	mu    sync.RWMutex
	clock clock.Clock

	challenges    []model.Challenge
	selectedID    string
	contributions []model.Contribution
	progress      map[string]model.ChallengeProgress
	stats         map[string]model.SavingsStats
	balances      map[string]decimal.Decimal
	rewards       map[string][]model.RewardRecord
	lastRefresh   time.Time

	notifications   []model.Notification
	notificationCap int

	modals  map[string]bool
	loading map[string]bool

	pools     []model.YieldPool
	positions map[string][]model.YieldPosition
	transfers map[string][]model.CrossBorderTransfer
	rates     map[string]decimal.Decimal
	corridors []string
	tvl       decimal.Decimal
}

// Option configures a Store.
type Option func(*Store)

// WithNotificationCap overrides the notification retention limit.
func WithNotificationCap(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.notificationCap = n
		}
	}
}

// New creates an empty store reading time from clk.
func New(clk clock.Clock, opts ...Option) *Store {
	s := &Store{
		clock:           clk,
		progress:        make(map[string]model.ChallengeProgress),
		stats:           make(map[string]model.SavingsStats),
		balances:        make(map[string]decimal.Decimal),
		rewards:         make(map[string][]model.RewardRecord),
		notificationCap: DefaultNotificationCap,
		modals:          make(map[string]bool),
		loading:         make(map[string]bool),
		positions:       make(map[string][]model.YieldPosition),
		transfers:       make(map[string][]model.CrossBorderTransfer),
		rates:           make(map[string]decimal.Decimal),
		tvl:             decimal.Zero,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- challenges ---

// SetChallenges replaces the challenge collection and stamps the refresh time.
func (s *Store) SetChallenges(list []model.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges = make([]model.Challenge, 0, len(list))
	for _, c := range list {
		s.challenges = append(s.challenges, c.Clone())
	}
	s.lastRefresh = s.clock.Now()
}

// MergeChallenges upserts each challenge without dropping unrelated ones.
// Used when a single user's list is refreshed while other users' challenges
// are also held.
func (s *Store) MergeChallenges(list []model.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(list) - 1; i >= 0; i-- {
		s.upsertLocked(list[i])
	}
	s.lastRefresh = s.clock.Now()
}

// AddOrUpdateChallenge merges c into the challenge with the same id, or
// inserts it at the head when absent. The selected challenge reads through
// the collection, so it reflects the update immediately.
func (s *Store) AddOrUpdateChallenge(c model.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(c)
}

func (s *Store) upsertLocked(c model.Challenge) {
	if i := s.indexLocked(c.ID); i >= 0 {
		s.challenges[i] = mergeChallenge(s.challenges[i], c)
		return
	}
	s.challenges = append([]model.Challenge{c.Clone()}, s.challenges...)
}

// mergeChallenge overlays the fields set in c onto old. The amount raised
// and the status flags always come from c since zero and false are real
// states for them.
func mergeChallenge(old, c model.Challenge) model.Challenge {
	out := old.Clone()
	if c.Name != "" {
		out.Name = c.Name
	}
	if c.Description != "" {
		out.Description = c.Description
	}
	if !c.GoalAmount.IsZero() {
		out.GoalAmount = c.GoalAmount
	}
	if !c.WeeklyAmount.IsZero() {
		out.WeeklyAmount = c.WeeklyAmount
	}
	if c.Participants != nil {
		out.Participants = append([]string(nil), c.Participants...)
	}
	if c.Creator != "" {
		out.Creator = c.Creator
	}
	if !c.CreatedAt.IsZero() {
		out.CreatedAt = c.CreatedAt
	}
	if !c.Deadline.IsZero() {
		out.Deadline = c.Deadline
	}
	if c.ContractAddress != "" {
		out.ContractAddress = c.ContractAddress
	}
	out.CurrentAmount = c.CurrentAmount
	out.IsActive, out.IsCompleted = c.IsActive, c.IsCompleted
	out.MinWeeklyRequired, out.AllowEarlyWithdrawal = c.MinWeeklyRequired, c.AllowEarlyWithdrawal
	return out
}

func (s *Store) indexLocked(id string) int {
	for i := range s.challenges {
		if s.challenges[i].ID == id {
			return i
		}
	}
	return -1
}

// PatchChallenge applies fn to the stored challenge and returns an Undo that
// restores the exact prior value. It reports false when id is unknown.
func (s *Store) PatchChallenge(id string, fn func(*model.Challenge)) (Undo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return func() {}, false
	}
	before := s.challenges[i].Clone()
	fn(&s.challenges[i])
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if j := s.indexLocked(id); j >= 0 {
			s.challenges[j] = before
		}
	}, true
}

// RemoveChallenge evicts a challenge and everything derived from it.
func (s *Store) RemoveChallenge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.challenges = append(s.challenges[:i:i], s.challenges[i+1:]...)
	delete(s.progress, id)
	kept := s.contributions[:0:0]
	for _, c := range s.contributions {
		if c.ChallengeID != id {
			kept = append(kept, c)
		}
	}
	s.contributions = kept
	if s.selectedID == id {
		s.selectedID = ""
	}
	return true
}

// Challenge returns a copy of the challenge with id.
func (s *Store) Challenge(id string) (model.Challenge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.challenges[i].Clone(), true
	}
	return model.Challenge{}, false
}

// Challenges returns copies of all challenges in store order.
func (s *Store) Challenges() []model.Challenge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneChallenges(s.challenges)
}

// Select marks id as the currently viewed challenge. An empty id clears it.
func (s *Store) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = id
}

// Selected returns the currently viewed challenge.
func (s *Store) Selected() (model.Challenge, bool) {
	s.mu.RLock()
	id := s.selectedID
	s.mu.RUnlock()
	if id == "" {
		return model.Challenge{}, false
	}
	return s.Challenge(id)
}

// LastRefresh is when the challenge collection was last replaced.
func (s *Store) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// --- contributions ---

// ApplyContribution prepends c to the contribution history and adds its
// amount to the matching challenge. The Undo restores the challenge's prior
// amount and removes exactly this record.
func (s *Store) ApplyContribution(c model.Contribution) Undo {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contributions = append([]model.Contribution{c}, s.contributions...)

	var prior *model.Challenge
	if i := s.indexLocked(c.ChallengeID); i >= 0 {
		before := s.challenges[i].Clone()
		prior = &before
		ch := &s.challenges[i]
		ch.CurrentAmount = ch.CurrentAmount.Add(c.Amount)
		ch.IsCompleted = progress.IsCompleted(*ch)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.contributions {
			if sameContribution(s.contributions[i], c) {
				s.contributions = append(s.contributions[:i:i], s.contributions[i+1:]...)
				break
			}
		}
		if prior == nil {
			return
		}
		if i := s.indexLocked(c.ChallengeID); i >= 0 {
			s.challenges[i].CurrentAmount = prior.CurrentAmount
			s.challenges[i].IsCompleted = prior.IsCompleted
		}
	}
}

func sameContribution(a, b model.Contribution) bool {
	return a.TransactionHash == b.TransactionHash &&
		a.ChallengeID == b.ChallengeID &&
		a.Contributor == b.Contributor &&
		a.Amount.Equal(b.Amount) &&
		a.Timestamp.Equal(b.Timestamp)
}

// ConfirmContribution swaps a placeholder's pending hash for the confirmed
// one. It reports false when no placeholder carries pendingHash.
func (s *Store) ConfirmContribution(pendingHash, txHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.contributions {
		if s.contributions[i].TransactionHash == pendingHash {
			s.contributions[i].TransactionHash = txHash
			return true
		}
	}
	return false
}

// ReplaceContributions installs the authoritative history for a challenge,
// superseding pending placeholders. History is kept most-recent-first.
func (s *Store) ReplaceContributions(challengeID string, list []model.Contribution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]model.Contribution, 0, len(s.contributions)+len(list))
	for _, c := range s.contributions {
		if c.ChallengeID != challengeID {
			kept = append(kept, c)
		}
	}
	for i := len(list) - 1; i >= 0; i-- {
		kept = append(kept, list[i])
	}
	sortContributions(kept)
	s.contributions = kept
}

// Contributions returns the history of one challenge, most recent first.
func (s *Store) Contributions(challengeID string) []model.Contribution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Contribution
	for _, c := range s.contributions {
		if c.ChallengeID == challengeID {
			out = append(out, c)
		}
	}
	return out
}

// UserContributions returns every contribution by user, most recent first.
func (s *Store) UserContributions(user string) []model.Contribution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Contribution
	for _, c := range s.contributions {
		if c.Contributor == user {
			out = append(out, c)
		}
	}
	return out
}

// PendingContributions returns placeholders not yet superseded.
func (s *Store) PendingContributions() []model.Contribution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Contribution
	for _, c := range s.contributions {
		if c.IsPending() {
			out = append(out, c)
		}
	}
	return out
}

// --- derived values cached per entity ---

// SetProgress stores the last computed progress for a challenge.
func (s *Store) SetProgress(p model.ChallengeProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[p.ChallengeID] = p
}

// Progress returns the stored progress for a challenge.
func (s *Store) Progress(challengeID string) (model.ChallengeProgress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[challengeID]
	return p, ok
}

// SetStats stores a user's recomputed stats.
func (s *Store) SetStats(st model.SavingsStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[st.User] = st
}

// Stats returns a user's stored stats.
func (s *Store) Stats(user string) (model.SavingsStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[user]
	return st, ok
}

// SetBalance stores a user's SaveCoin balance.
func (s *Store) SetBalance(user string, bal decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[user] = bal
}

// Balance returns a user's SaveCoin balance (zero when unknown).
func (s *Store) Balance(user string) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.balances[user]; ok {
		return b
	}
	return decimal.Zero
}

// SetRewards stores a user's reward history.
func (s *Store) SetRewards(user string, list []model.RewardRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewards[user] = append([]model.RewardRecord(nil), list...)
}

// Rewards returns a user's reward history.
func (s *Store) Rewards(user string) []model.RewardRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.RewardRecord(nil), s.rewards[user]...)
}

// --- UI flags ---

// SetModal opens or closes a named modal.
func (s *Store) SetModal(name string, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modals[name] = open
}

// ModalOpen reports whether a named modal is open.
func (s *Store) ModalOpen(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modals[name]
}

// SetLoading flags an operation as in progress.
func (s *Store) SetLoading(op string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loading {
		s.loading[op] = true
		return
	}
	delete(s.loading, op)
}

// Loading reports whether op is in progress.
func (s *Store) Loading(op string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[op]
}

func cloneChallenges(list []model.Challenge) []model.Challenge {
	out := make([]model.Challenge, len(list))
	for i, c := range list {
		out[i] = c.Clone()
	}
	return out
}

// --- derived projections ---

// FilteredChallenges applies f to the current challenges. Repeated calls on
// unchanged state return identical results.
func (s *Store) FilteredChallenges(f Filter) []model.Challenge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f.Apply(s.challenges, s.clock.Now())
}

// ActiveChallenges returns challenges that are active and not completed.
func (s *Store) ActiveChallenges() []model.Challenge {
	return s.FilteredChallenges(Filter{Status: FilterActive})
}

// CompletedChallenges returns challenges that reached their goal.
func (s *Store) CompletedChallenges() []model.Challenge {
	return s.FilteredChallenges(Filter{Status: FilterCompleted})
}

// StatusOf classifies a challenge at the current time.
func (s *Store) StatusOf(id string) (progress.Status, bool) {
	c, ok := s.Challenge(id)
	if !ok {
		return "", false
	}
	return progress.StatusOf(c, s.clock.Now()), true
}

// SortContributions returns a copy of list, most recent first.
func SortContributions(list []model.Contribution) []model.Contribution {
	out := slices.Clone(list)
	sortContributions(out)
	return out
}

func sortContributions(list []model.Contribution) {
	slices.SortStableFunc(list, func(a, b model.Contribution) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
