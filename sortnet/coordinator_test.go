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
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"

	"github.com/cmars/meshsort"
	"github.com/cmars/meshsort/group"
)

func TestShearSuperSteps(t *testing.T) {
	for n, steps := range map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 1024: 10} {
		assert.Equal(t, steps, ShearSuperSteps(n), n)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		alg        Algorithm
		dim, procs int
		ok         bool
	}{
		{ShearSort, 4, 4, true},
		{ShearSort, 5, 4, false},
		{ShearSort, 1, 1, true},
		{OETSort, 24, 8, true},
		{OETSort, 25, 8, false},
		{OETSort, 4, 1, true},
		{OETSort, 0, 1, false},
		{OETSort, 4, 0, false},
		{Algorithm("bogosort"), 4, 4, false},
	} {
		err := Validate(tc.alg, tc.dim, tc.procs)
		if tc.ok {
			assert.Equal(t, nil, err, tc)
		} else {
			assert.T(t, errors.Is(err, ErrValidation), tc, err)
		}
	}
}

func TestNewCoordinatorValidates(t *testing.T) {
	g := group.NewLocal(4)
	_, err := NewCoordinator(g.Comm(0), Config{Algorithm: ShearSort, Dimension: 5})
	assert.T(t, errors.Is(err, ErrValidation), err)

	coord, err := NewCoordinator(g.Comm(0), Config{Algorithm: ShearSort, Dimension: 4})
	assert.Equal(t, nil, err)
	assert.Equal(t, DefaultTags, coord.config.Tags)
	assert.Equal(t, StateInitializing, coord.State())
}

func TestAllocate(t *testing.T) {
	m, err := Allocate(0, 3)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, m.Dimension())

	_, err = Allocate(0, 1<<15)
	assert.T(t, errors.Is(err, ErrResource), err)
	assert.T(t, errors.Is(err, meshsort.ErrTooLarge), err)
}

// runGroup runs one coordinator per rank of a local group, handing m to
// the controller.
func runGroup(t *testing.T, procs int, config Config, m *meshsort.Matrix) (*Report, []*Coordinator, error) {
	return runWrapped(t, procs, config, m, nil)
}

// runWrapped is runGroup with each rank's comm passed through wrap.
func runWrapped(t *testing.T, procs int, config Config, m *meshsort.Matrix,
	wrap func(group.Comm) group.Comm) (*Report, []*Coordinator, error) {
	coords := make([]*Coordinator, procs)
	var mu sync.Mutex
	var report *Report
	err := group.RunLocal(context.Background(), procs, func(ctx context.Context, comm group.Comm) error {
		if wrap != nil {
			comm = wrap(comm)
		}
		coord, err := NewCoordinator(comm, config)
		if err != nil {
			return err
		}
		mu.Lock()
		coords[comm.Rank()] = coord
		mu.Unlock()
		var input *meshsort.Matrix
		if comm.Rank() == group.Controller {
			input = m
		}
		r, err := coord.Run(ctx, input)
		if r != nil {
			mu.Lock()
			report = r
			mu.Unlock()
		}
		return err
	})
	return report, coords, err
}

func TestRunVerifyAndDebug(t *testing.T) {
	m, err := Allocate(0, 6)
	assert.Equal(t, nil, err)
	m.Fill(rand.New(rand.NewSource(5)), 10)
	orig := m.Clone()
	report, coords, err := runGroup(t, 3, Config{Algorithm: OETSort, Dimension: 6, Verify: true, Debug: true}, m)
	assert.Equal(t, nil, err)
	assert.T(t, report != nil)
	assert.T(t, report.Sorted)
	assert.T(t, report.Initial.Equal(orig))
	assert.T(t, meshsort.IsSnakeOrdered(report.Matrix))
	assert.T(t, meshsort.TallyMatrix(orig).Equal(meshsort.TallyMatrix(report.Matrix)))
	assert.Equal(t, StateInitializing, report.History[0])
	assert.Equal(t, StateTerminated, report.History[len(report.History)-1])
	for _, coord := range coords {
		assert.Equal(t, StateTerminated, coord.State())
	}
}

func TestRunStepLimit(t *testing.T) {
	// reverse snake order needs more than one super-step
	m, err := meshsort.NewMatrixFromRows([][]int{
		{9, 8, 7, 6},
		{2, 3, 4, 5},
		{1, 0, 0, 0},
		{0, 0, 0, 0}})
	assert.Equal(t, nil, err)
	_, coords, err := runGroup(t, 2, Config{Algorithm: OETSort, Dimension: 4, MaxSuperSteps: 1}, m)
	assert.T(t, errors.Is(err, ErrNotSorted), err)
	for _, coord := range coords {
		assert.Equal(t, StateFailed, coord.State())
	}
}

func TestRunControllerNeedsMatrix(t *testing.T) {
	_, _, err := runGroup(t, 2, Config{Algorithm: OETSort, Dimension: 4}, nil)
	assert.T(t, errors.Is(err, ErrValidation), err)
}

func TestRowDirectionFollowsRank(t *testing.T) {
	const n, procs = 6, 3
	rows := make([][]int, n)
	for r := range rows {
		rows[r] = []int{3, 0, 5, 1, 4, 2}
	}
	m, err := meshsort.NewMatrixFromRows(rows)
	assert.Equal(t, nil, err)
	err = group.RunLocal(context.Background(), procs, func(ctx context.Context, comm group.Comm) error {
		coord, err := NewCoordinator(comm, Config{Algorithm: OETSort, Dimension: n})
		if err != nil {
			return err
		}
		coord.band = meshsort.NewBand(n)
		var input *meshsort.Matrix
		if comm.Rank() == group.Controller {
			input = m
		}
		return coord.rowPhase(ctx, input, meshsort.Sort)
	})
	assert.Equal(t, nil, err)
	got := m.Rows()
	for r, row := range got {
		// row r is dealt to rank r%procs
		dir := meshsort.DirectionFor(r % procs)
		assert.T(t, meshsort.IsOrdered(row, dir), r, dir, row)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got[5])
	assert.Equal(t, []int{5, 4, 3, 2, 1, 0}, got[4])
}

// corruptComm replaces the first value of the first row it sends.
type corruptComm struct {
	group.Comm
	once sync.Once
}

func (c *corruptComm) Send(ctx context.Context, dst int, tag group.Tag, band []int) error {
	if tag == DefaultTags.Row {
		c.once.Do(func() {
			band = append([]int(nil), band...)
			band[0] = -1
		})
	}
	return c.Comm.Send(ctx, dst, tag, band)
}

func TestRunVerifyDetectsLostValues(t *testing.T) {
	m, err := Allocate(0, 4)
	assert.Equal(t, nil, err)
	m.Fill(rand.New(rand.NewSource(11)), 10)
	_, coords, err := runWrapped(t, 2, Config{Algorithm: OETSort, Dimension: 4, Verify: true}, m,
		func(comm group.Comm) group.Comm {
			if comm.Rank() == 1 {
				return &corruptComm{Comm: comm}
			}
			return comm
		})
	assert.T(t, errors.Is(err, ErrIntegrity), err)
	assert.Equal(t, StateFailed, coords[group.Controller].State())
}
