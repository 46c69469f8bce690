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
	gc "gopkg.in/check.v1"
)

type StateSuite struct{}

var _ = gc.Suite(&StateSuite{})

func (s *StateSuite) TestShearSortPath(c *gc.C) {
	var t Tracker
	c.Assert(t.State(), gc.Equals, StateInitializing)
	c.Assert(t.State().String(), gc.Equals, "initializing")

	for _, next := range []State{
		StateRowPhase, StateColumnPhase,
		StateRowPhase, StateColumnPhase,
		StateRowPhase, StateConvergenceCheck,
		StateTerminated,
	} {
		c.Assert(t.Enter(next), gc.IsNil)
		c.Assert(t.State(), gc.Equals, next)
	}
	c.Check(t.History(), gc.DeepEquals, []State{
		StateInitializing,
		StateRowPhase, StateColumnPhase,
		StateRowPhase, StateColumnPhase,
		StateRowPhase, StateConvergenceCheck,
		StateTerminated,
	})
}

func (s *StateSuite) TestTranspositionSortPath(c *gc.C) {
	var t Tracker
	for i := 0; i < 3; i++ {
		c.Assert(t.Enter(StateRowPhase), gc.IsNil)
		c.Assert(t.Enter(StateColumnPhase), gc.IsNil)
		c.Assert(t.Enter(StateConvergenceCheck), gc.IsNil)
	}
	c.Assert(t.Enter(StateTerminated), gc.IsNil)
	c.Check(len(t.History()), gc.Equals, 11)
}

func (s *StateSuite) TestIllegal(c *gc.C) {
	var t Tracker
	c.Check(t.Enter(StateColumnPhase), gc.ErrorMatches,
		"initializing to column phase: illegal state transition")
	c.Check(t.Enter(StateTerminated), gc.ErrorMatches,
		"initializing to terminated: illegal state transition")
	c.Assert(t.State(), gc.Equals, StateInitializing)
	c.Check(t.History(), gc.DeepEquals, []State{StateInitializing})

	c.Assert(t.Enter(StateRowPhase), gc.IsNil)
	c.Check(t.Enter(StateRowPhase), gc.ErrorMatches,
		"row phase to row phase: illegal state transition")
}

func (s *StateSuite) TestFailFromAnywhere(c *gc.C) {
	var t Tracker
	c.Assert(t.Enter(StateFailed), gc.IsNil)
	c.Check(t.Enter(StateFailed), gc.ErrorMatches, ".*illegal state transition")
	c.Check(t.Enter(StateRowPhase), gc.ErrorMatches, ".*illegal state transition")

	var u Tracker
	c.Assert(u.Enter(StateRowPhase), gc.IsNil)
	c.Assert(u.Enter(StateConvergenceCheck), gc.IsNil)
	c.Assert(u.Enter(StateFailed), gc.IsNil)

	var v Tracker
	c.Assert(v.Enter(StateRowPhase), gc.IsNil)
	c.Assert(v.Enter(StateConvergenceCheck), gc.IsNil)
	c.Assert(v.Enter(StateTerminated), gc.IsNil)
	c.Check(v.Enter(StateFailed), gc.ErrorMatches, "terminated to failed: illegal state transition")
}
