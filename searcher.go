package symex

import (
	"math/rand"
)

// Searcher represents a strategy for finding the next state to execute.
type Searcher interface {
	// Returns the next state to explore.
	SelectState() *State

	// Adds states to the current searcher.
	AddState(state *State)
}

var _ Searcher = (*MultiSearcher)(nil)

// MultiSearcher represents a Searcher that chooses a searcher round-robin.
// Every state is added to each searcher so states already selected by one
// searcher are skipped by the others.
type MultiSearcher struct {
	searchers []Searcher
	index     int
	selected  map[*State]struct{}
}

// NewMultiSearcher returns a new instance of MultiSearcher.
func NewMultiSearcher(searchers ...Searcher) *MultiSearcher {
	return &MultiSearcher{
		searchers: searchers,
		selected:  make(map[*State]struct{}),
	}
}

// SelectState returns the next state to explore from the next searcher.
func (s *MultiSearcher) SelectState() *State {
	for range s.searchers {
		searcher := s.searchers[s.index]
		if s.index++; s.index >= len(s.searchers) {
			s.index = 0
		}

		for {
			state := searcher.SelectState()
			if state == nil {
				break
			} else if _, ok := s.selected[state]; ok {
				continue
			}
			s.selected[state] = struct{}{}
			return state
		}
	}
	return nil
}

// AddState adds a new state to the searcher.
func (s *MultiSearcher) AddState(state *State) {
	for _, searcher := range s.searchers {
		searcher.AddState(state)
	}
}

// DFSSearcher represents a searcher with a depth-first search strategy.
type DFSSearcher struct {
	states []*State
}

// NewDFSSearcher returns a new instance of DFSSearcher.
func NewDFSSearcher() *DFSSearcher {
	return &DFSSearcher{}
}

// SelectState returns the next state to explore.
func (s *DFSSearcher) SelectState() *State {
	if len(s.states) == 0 {
		return nil
	}
	state := s.states[len(s.states)-1]
	s.states = s.states[:len(s.states)-1]
	return state
}

// AddState adds a new state to the searcher.
func (s *DFSSearcher) AddState(state *State) {
	s.states = append(s.states, state)
}

// BFSSearcher represents a searcher with a breadth-first search strategy.
type BFSSearcher struct {
	states []*State
}

// NewBFSSearcher returns a new instance of BFSSearcher.
func NewBFSSearcher() *BFSSearcher {
	return &BFSSearcher{}
}

// SelectState returns the next state to explore.
func (s *BFSSearcher) SelectState() *State {
	if len(s.states) == 0 {
		return nil
	}
	state := s.states[0]
	s.states = s.states[1:]
	return state
}

// AddState adds a new state to the searcher.
func (s *BFSSearcher) AddState(state *State) {
	s.states = append(s.states, state)
}

// RandomSearcher selects states uniformly at random. Selection order is
// reproducible for a given seed.
type RandomSearcher struct {
	states []*State
	rand   *rand.Rand
}

// NewRandomSearcher returns a new instance of RandomSearcher.
func NewRandomSearcher(rand *rand.Rand) *RandomSearcher {
	return &RandomSearcher{
		rand: rand,
	}
}

// SelectState returns a random state to explore.
func (s *RandomSearcher) SelectState() *State {
	if len(s.states) == 0 {
		return nil
	}
	i := s.rand.Intn(len(s.states))
	state := s.states[i]
	s.states = append(s.states[:i], s.states[i+1:]...)
	return state
}

// AddState adds a new state to the searcher.
func (s *RandomSearcher) AddState(state *State) {
	s.states = append(s.states, state)
}
