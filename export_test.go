package symex

import "github.com/benbjohnson/symex/ir"

// PushBody starts executing stmts as the top-level body of the state.
func (s *State) PushBody(stmts []ir.Stmt) { s.push(stmts, "") }

// EnterRange starts the next iteration of the range loop at site. The
// iterator is created from next, stop & step on the first iteration only.
func (s *State) EnterRange(site string, next, stop Expr, step int64, body []ir.Stmt) {
	it, ok := s.ranges[site]
	if !ok {
		it = rangeIter{next: next, stop: stop, step: step}
	}
	s.ranges[site] = it.advance()
	s.enterIteration(site, body)
}

// ExitLoop leaves the loop at site.
func (s *State) ExitLoop(site string) { s.exitLoop(site) }
