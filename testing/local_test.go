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

package testing

import (
	"testing"

	"github.com/cmars/meshsort/group"
)

type localGroupManager struct{}

func (lgm *localGroupManager) CreateGroup(t *testing.T, size int) []group.Comm {
	g := group.NewLocal(size)
	comms := make([]group.Comm, size)
	for rank := range comms {
		comms[rank] = g.Comm(rank)
	}
	return comms
}

func (lgm *localGroupManager) DestroyGroup(comms []group.Comm) {
	for _, comm := range comms {
		comm.Close()
	}
}

var localGroupMgr *localGroupManager = &localGroupManager{}

// Shear sort on a known matrix, one row per rank.
func TestLocalShearSortFixed(t *testing.T) {
	RunShearSortFixed(t, localGroupMgr)
}

// Transposition sort on a known matrix, two rows per rank.
func TestLocalTranspositionSortFixed(t *testing.T) {
	RunTranspositionSortFixed(t, localGroupMgr)
}

func TestLocalShearSortRandom(t *testing.T) {
	RunShearSortRandom(t, localGroupMgr)
}

func TestLocalTranspositionSortRandom(t *testing.T) {
	RunTranspositionSortRandom(t, localGroupMgr)
}

func TestLocalValidation(t *testing.T) {
	RunValidation(t, localGroupMgr)
}

func TestLocalAbort(t *testing.T) {
	RunAbort(t, localGroupMgr)
}
