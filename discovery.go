package channel_archiver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/channel-archiver/generic"
)

var (
	ErrDuplicateStrategy = errors.New("duplicate strategy name")
	ErrInvalidStrategy   = errors.New("invalid strategy")
	ErrNoMatch           = errors.New("no strategy accepted the reference")
	ErrUnknownStrategy   = errors.New("unknown strategy")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

// A Discoverer enumerates the item URLs reachable from a collection reference (a channel page, a playlist).
//
// The returned URLs are normalized and deduplicated. On failure, whatever was collected before the failure is
// returned along with the error; callers report the error and carry on with the partial result.
type Discoverer interface {
	Discover(ctx context.Context, ref string) ([]string, error)
}

// DiscovererFunc adapts a function to the Discoverer interface.
type DiscovererFunc func(ctx context.Context, ref string) ([]string, error)

func (f DiscovererFunc) Discover(ctx context.Context, ref string) ([]string, error) {
	return f(ctx, ref)
}

// AcceptFunc returns nil if a strategy can handle the reference, otherwise the reason it can't.
type AcceptFunc = func(ref string) error

// A Strategy is a named way of discovering items for the references it accepts.
type Strategy struct {
	Name       string
	Accept     AcceptFunc
	Discoverer Discoverer
	// Priority of the strategy, lower (including negative) means matching earlier.
	Priority int16
}

func (s Strategy) WithPriority(priority int16) Strategy {
	s.Priority = priority
	return s
}

// A DiscoveryMatch is the result of a Strategy accepting a reference.
type DiscoveryMatch struct {
	StrategyName string
	Discoverer   Discoverer
}

// Discover is shorthand for m.Discoverer.Discover(ctx, ref).
func (m *DiscoveryMatch) Discover(ctx context.Context, ref string) ([]string, error) {
	return m.Discoverer.Discover(ctx, ref)
}

// A DiscoveryRegistry is a collection of Strategy instances which can be matched against references.
type DiscoveryRegistry struct {
	strategies  []*Strategy
	strategyMap map[string]*Strategy
}

// Add registers a Strategy. Strategy.Name, Strategy.Accept and Strategy.Discoverer must be set, and Strategy.Name must
// be unique within the DiscoveryRegistry.
func (r *DiscoveryRegistry) Add(s Strategy) error {
	if r.strategyMap == nil {
		r.strategyMap = make(map[string]*Strategy)
	}
	if s.Name == "" || s.Accept == nil || s.Discoverer == nil {
		return ErrInvalidStrategy
	}
	if _, ok := r.strategyMap[s.Name]; ok {
		return ErrDuplicateStrategy
	}
	r.strategyMap[s.Name] = &s
	r.strategies = append(r.strategies, r.strategyMap[s.Name])
	r.sortByPriority()
	return nil
}

// MustAdd wraps Add but panics if there is an error.
func (r *DiscoveryRegistry) MustAdd(s Strategy) {
	generic.Unwrap_(r.Add(s))
}

// List returns the names of registered strategies in priority order.
func (r *DiscoveryRegistry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for _, s := range r.strategies {
		names = append(names, s.Name)
	}
	return names
}

// Match finds the first strategy, in priority order, that accepts ref. If none does, the error wraps ErrNoMatch and
// carries each strategy's reason for rejecting it.
func (r *DiscoveryRegistry) Match(ref string) (*DiscoveryMatch, error) {
	var result error
	for _, s := range r.strategies {
		if err := s.Accept(ref); err == nil {
			return &DiscoveryMatch{StrategyName: s.Name, Discoverer: s.Discoverer}, nil
		} else {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", s.Name)))
		}
	}
	if result == nil {
		return nil, ErrNoMatch
	}
	return nil, fmt.Errorf("%w: %v", ErrNoMatch, result)
}

// MatchWith checks ref against one specific strategy.
func (r *DiscoveryRegistry) MatchWith(name string, ref string) (*DiscoveryMatch, error) {
	s, ok := r.strategyMap[name]
	if !ok {
		return nil, ErrUnknownStrategy
	}
	if err := s.Accept(ref); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMatch, err)
	}
	return &DiscoveryMatch{StrategyName: s.Name, Discoverer: s.Discoverer}, nil
}

func (r *DiscoveryRegistry) sortByPriority() {
	sort.SliceStable(r.strategies, func(i, j int) bool {
		return r.strategies[i].Priority < r.strategies[j].Priority
	})
}
