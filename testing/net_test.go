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
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bmizerany/assert"

	"github.com/cmars/meshsort/group"
)

type netGroupManager struct{}

func (ngm *netGroupManager) CreateGroup(t *testing.T, size int) []group.Comm {
	lns := make([]net.Listener, size)
	addrs := make([]string, size)
	for rank := range lns {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		assert.Equal(t, nil, err)
		lns[rank] = ln
		addrs[rank] = ln.Addr().String()
	}
	comms := make([]group.Comm, size)
	errs := make([]error, size)
	var wg sync.WaitGroup
	for rank := range comms {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			nc, err := group.Dial(context.Background(), group.NetConfig{
				Rank:        rank,
				Addrs:       addrs,
				Listener:    lns[rank],
				DialTimeout: 5 * time.Second,
			})
			comms[rank], errs[rank] = nc, err
		}(rank)
	}
	wg.Wait()
	for rank, err := range errs {
		assert.Equal(t, nil, err, rank)
	}
	return comms
}

func (ngm *netGroupManager) DestroyGroup(comms []group.Comm) {
	var wg sync.WaitGroup
	for _, comm := range comms {
		wg.Add(1)
		go func(comm group.Comm) {
			defer wg.Done()
			comm.Close()
		}(comm)
	}
	wg.Wait()
}

var netGroupMgr *netGroupManager = &netGroupManager{}

func TestNetShearSortFixed(t *testing.T) {
	RunShearSortFixed(t, netGroupMgr)
}

func TestNetTranspositionSortFixed(t *testing.T) {
	RunTranspositionSortFixed(t, netGroupMgr)
}

func TestNetShearSortRandom(t *testing.T) {
	RunShearSortRandom(t, netGroupMgr)
}

func TestNetTranspositionSortRandom(t *testing.T) {
	RunTranspositionSortRandom(t, netGroupMgr)
}

func TestNetValidation(t *testing.T) {
	RunValidation(t, netGroupMgr)
}

func TestNetAbort(t *testing.T) {
	RunAbort(t, netGroupMgr)
}
