package store

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stellarsave/stellarsave/internal/model"
	"github.com/stellarsave/stellarsave/internal/progress"
)

// StatusFilter selects challenges by status.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterActive    StatusFilter = "active"
	FilterCompleted StatusFilter = "completed"
	FilterExpired   StatusFilter = "expired"
	FilterCancelled StatusFilter = "cancelled"
)

// SortField orders filtered challenges.
type SortField string

const (
	SortCreatedAt        SortField = "createdAt"
	SortDeadline         SortField = "deadline"
	SortProgress         SortField = "progress"
	SortParticipantCount SortField = "participantCount"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Filter selects and orders challenges. Zero values mean "no constraint";
// an empty SortBy keeps store order.
type Filter struct {
	Status      StatusFilter     `json:"status,omitempty" yaml:"status,omitempty"`
	Participant string           `json:"participant,omitempty" yaml:"participant,omitempty"`
	Creator     string           `json:"creator,omitempty" yaml:"creator,omitempty"`
	MinGoal     *decimal.Decimal `json:"min_goal,omitempty" yaml:"min_goal,omitempty"`
	MaxGoal     *decimal.Decimal `json:"max_goal,omitempty" yaml:"max_goal,omitempty"`
	SortBy      SortField        `json:"sort_by,omitempty" yaml:"sort_by,omitempty"`
	Order       Order            `json:"order,omitempty" yaml:"order,omitempty"`
}

// Validate rejects unknown enum values.
func (f Filter) Validate() error {
	switch f.Status {
	case "", FilterAll, FilterActive, FilterCompleted, FilterExpired, FilterCancelled:
	default:
		return model.Validationf("status", "unknown status filter %q", f.Status)
	}
	switch f.SortBy {
	case "", SortCreatedAt, SortDeadline, SortProgress, SortParticipantCount:
	default:
		return model.Validationf("sort_by", "unknown sort field %q", f.SortBy)
	}
	switch f.Order {
	case "", Asc, Desc:
	default:
		return model.Validationf("order", "unknown sort order %q", f.Order)
	}
	if f.MinGoal != nil && f.MaxGoal != nil && f.MinGoal.GreaterThan(*f.MaxGoal) {
		return model.Validationf("goal_range", "min goal exceeds max goal")
	}
	return nil
}

// Key is a canonical string form, stable across equal filters. It is used
// as the filter segment of cache keys.
func (f Filter) Key() string {
	var b strings.Builder
	status := f.Status
	if status == "" {
		status = FilterAll
	}
	fmt.Fprintf(&b, "status=%s", status)
	if f.Participant != "" {
		fmt.Fprintf(&b, ";participant=%s", f.Participant)
	}
	if f.Creator != "" {
		fmt.Fprintf(&b, ";creator=%s", f.Creator)
	}
	if f.MinGoal != nil {
		fmt.Fprintf(&b, ";min=%s", f.MinGoal.String())
	}
	if f.MaxGoal != nil {
		fmt.Fprintf(&b, ";max=%s", f.MaxGoal.String())
	}
	if f.SortBy != "" {
		order := f.Order
		if order == "" {
			order = Asc
		}
		fmt.Fprintf(&b, ";sort=%s:%s", f.SortBy, order)
	}
	return b.String()
}

// Apply filters and stably sorts list. It does not modify list.
func (f Filter) Apply(list []model.Challenge, now time.Time) []model.Challenge {
	out := make([]model.Challenge, 0, len(list))
	for _, c := range list {
		if f.matches(c, now) {
			out = append(out, c.Clone())
		}
	}
	if f.SortBy == "" {
		return out
	}

	cmp := comparator(f.SortBy)
	desc := f.Order == Desc
	slices.SortStableFunc(out, func(a, b model.Challenge) int {
		if desc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})
	return out
}

func (f Filter) matches(c model.Challenge, now time.Time) bool {
	switch f.Status {
	case FilterActive:
		if !c.IsActive || progress.IsCompleted(c) {
			return false
		}
	case FilterCompleted:
		if !progress.IsCompleted(c) {
			return false
		}
	case FilterExpired:
		if progress.StatusOf(c, now) != progress.StatusExpired {
			return false
		}
	case FilterCancelled:
		if progress.StatusOf(c, now) != progress.StatusCancelled {
			return false
		}
	}
	if f.Participant != "" && !c.HasParticipant(f.Participant) {
		return false
	}
	if f.Creator != "" && c.Creator != f.Creator {
		return false
	}
	if f.MinGoal != nil && c.GoalAmount.LessThan(*f.MinGoal) {
		return false
	}
	if f.MaxGoal != nil && c.GoalAmount.GreaterThan(*f.MaxGoal) {
		return false
	}
	return true
}

func comparator(field SortField) func(a, b model.Challenge) int {
	switch field {
	case SortDeadline:
		return func(a, b model.Challenge) int { return a.Deadline.Compare(b.Deadline) }
	case SortProgress:
		return func(a, b model.Challenge) int { return progress.Percentage(a).Cmp(progress.Percentage(b)) }
	case SortParticipantCount:
		return func(a, b model.Challenge) int { return len(a.Participants) - len(b.Participants) }
	default:
		return func(a, b model.Challenge) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}
