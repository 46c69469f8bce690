/*
   meshsort - Parallel two-dimensional sorting networks
	Based on the shear sort and two-dimensional odd-even transposition
		sort algorithms, as described by H. W. Lang.

   Copyright (C) 2012  Casey Marshall <casey.marshall@gmail.com>

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package sortnet

import (
	"sync"

	"github.com/pkg/errors"
)

type State string

var (
	StateInitializing     = State("")
	StateRowPhase         = State("row phase")
	StateColumnPhase      = State("column phase")
	StateConvergenceCheck = State("convergence check")
	StateTerminated       = State("terminated")
	StateFailed           = State("failed")
)

func (s State) String() string {
	if s == StateInitializing {
		return "initializing"
	}
	return string(s)
}

var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	StateInitializing:     {StateRowPhase},
	StateRowPhase:         {StateColumnPhase, StateConvergenceCheck},
	StateColumnPhase:      {StateRowPhase, StateConvergenceCheck},
	StateConvergenceCheck: {StateRowPhase, StateTerminated},
}

// Tracker follows a coordinator through its states. The zero value is
// ready to use and starts out initializing.
type Tracker struct {
	mu      sync.Mutex
	state   State
	history []State
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Enter moves to next if the move is legal. Any state other than
// Terminated may move to Failed.
func (t *Tracker) Enter(next State) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if next == StateFailed && t.state != StateTerminated && t.state != StateFailed {
		t.enter(next)
		return nil
	}
	for _, legal := range transitions[t.state] {
		if legal == next {
			t.enter(next)
			return nil
		}
	}
	return errors.Wrapf(ErrIllegalTransition, "%v to %v", t.state, next)
}

func (t *Tracker) enter(next State) {
	if len(t.history) == 0 {
		t.history = append(t.history, t.state)
	}
	t.state = next
	t.history = append(t.history, next)
}

// History returns every state visited, in order, including the current
// one.
func (t *Tracker) History() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.history) == 0 {
		return []State{t.state}
	}
	return append([]State(nil), t.history...)
}
