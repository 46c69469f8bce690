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

// Package testing provides scenario runners shared by the process group
// backends. Each backend's tests supply a GroupManager and call the Run*
// functions.
package testing

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/cmars/meshsort"
	"github.com/cmars/meshsort/group"
	"github.com/cmars/meshsort/sortnet"
)

type GroupManager interface {
	CreateGroup(t *testing.T, size int) []group.Comm
	DestroyGroup(comms []group.Comm)
}

// runRanks runs fn on every rank of a new group. The first rank to fail
// cancels the others and its error is returned; errs holds every rank's
// result.
func runRanks(t *testing.T, mgr GroupManager, size int,
	fn func(ctx context.Context, comm group.Comm) error) (errs []error, err error) {
	comms := mgr.CreateGroup(t, size)
	defer mgr.DestroyGroup(comms)
	errs = make([]error, size)
	eg, ctx := errgroup.WithContext(context.Background())
	for _, comm := range comms {
		comm := comm
		eg.Go(func() error {
			errs[comm.Rank()] = fn(ctx, comm)
			return errs[comm.Rank()]
		})
	}
	err = eg.Wait()
	return errs, err
}

// runSort sorts m with one coordinator per rank and returns the
// controller's report.
func runSort(t *testing.T, mgr GroupManager, procs int, config sortnet.Config, m *meshsort.Matrix) (*sortnet.Report, error) {
	var mu sync.Mutex
	var report *sortnet.Report
	_, err := runRanks(t, mgr, procs, func(ctx context.Context, comm group.Comm) error {
		coord, err := sortnet.NewCoordinator(comm, config)
		if err != nil {
			return err
		}
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
	return report, err
}

func fixedMatrix(t *testing.T) *meshsort.Matrix {
	m, err := meshsort.NewMatrixFromRows([][]int{
		{9, 1, 5, 2},
		{3, 8, 4, 6},
		{7, 0, 2, 9},
		{1, 5, 3, 0}})
	assert.Equal(t, nil, err)
	return m
}

func randomMatrix(t *testing.T, n int, seed int64, limit int) *meshsort.Matrix {
	m, err := sortnet.Allocate(group.Controller, n)
	assert.Equal(t, nil, err)
	m.Fill(rand.New(rand.NewSource(seed)), limit)
	return m
}

// assertSorted checks the report of a successful run against a copy of
// its input taken before sorting.
func assertSorted(t *testing.T, report *sortnet.Report, input *meshsort.Matrix) {
	assert.T(t, report != nil)
	assert.T(t, report.Sorted)
	assert.T(t, meshsort.IsSnakeOrdered(report.Matrix), report.Matrix)
	assert.T(t, meshsort.TallyMatrix(input).Equal(meshsort.TallyMatrix(report.Matrix)))
}

// RunShearSortFixed sorts a known 4x4 matrix on four ranks.
func RunShearSortFixed(t *testing.T, mgr GroupManager) {
	m := fixedMatrix(t)
	input := m.Clone()
	report, err := runSort(t, mgr, 4, sortnet.Config{
		Algorithm: sortnet.ShearSort, Dimension: 4, Verify: true}, m)
	assert.Equal(t, nil, err)
	assertSorted(t, report, input)
	assert.Equal(t, [][]int{
		{0, 0, 1, 1},
		{3, 3, 2, 2},
		{4, 5, 5, 6},
		{9, 9, 8, 7}}, report.Matrix.Rows())
	assert.Equal(t, 2, report.SuperSteps)
	// the controller sorts in place
	assert.T(t, m == report.Matrix)
}

// RunTranspositionSortFixed sorts the same 4x4 matrix on two ranks, within
// four super-steps.
func RunTranspositionSortFixed(t *testing.T, mgr GroupManager) {
	report, err := runSort(t, mgr, 2, sortnet.Config{
		Algorithm: sortnet.OETSort, Dimension: 4, MaxSuperSteps: 4}, fixedMatrix(t))
	assert.Equal(t, nil, err)
	assertSorted(t, report, fixedMatrix(t))
	assert.T(t, report.SuperSteps <= 4, report.SuperSteps)
	assert.Equal(t, [][]int{
		{0, 0, 1, 1},
		{3, 3, 2, 2},
		{4, 5, 5, 6},
		{9, 9, 7, 8}}, report.Matrix.Rows())
}

// RunShearSortRandom covers dimensions that are not powers of two.
func RunShearSortRandom(t *testing.T, mgr GroupManager) {
	for _, n := range []int{1, 3, 5, 6} {
		m := randomMatrix(t, n, int64(n), 0)
		report, err := runSort(t, mgr, n, sortnet.Config{
			Algorithm: sortnet.ShearSort, Dimension: n, Verify: true}, m.Clone())
		assert.Equal(t, nil, err, n)
		assertSorted(t, report, m)
		assert.Equal(t, sortnet.ShearSuperSteps(n), report.SuperSteps)
	}
}

// RunTranspositionSortRandom deals several rows to each rank.
func RunTranspositionSortRandom(t *testing.T, mgr GroupManager) {
	for _, tc := range []struct{ n, procs int }{{6, 3}, {8, 4}, {9, 3}, {5, 1}} {
		m := randomMatrix(t, tc.n, int64(tc.n*tc.procs), 10)
		report, err := runSort(t, mgr, tc.procs, sortnet.Config{
			Algorithm: sortnet.OETSort, Dimension: tc.n, Verify: true}, m.Clone())
		assert.Equal(t, nil, err, tc)
		assertSorted(t, report, m)
	}
}

// RunValidation checks that a dimension not matching the group is rejected
// on every rank before anything is exchanged.
func RunValidation(t *testing.T, mgr GroupManager) {
	errs, err := runRanks(t, mgr, 4, func(ctx context.Context, comm group.Comm) error {
		_, err := sortnet.NewCoordinator(comm, sortnet.Config{
			Algorithm: sortnet.ShearSort, Dimension: 5})
		return err
	})
	assert.T(t, errors.Is(err, sortnet.ErrValidation), err)
	for rank, err := range errs {
		assert.T(t, errors.Is(err, sortnet.ErrValidation), rank, err)
	}
}

// RunAbort checks that a rank aborting the group fails the ranks waiting
// on it, and that they in turn fail the ranks waiting on them.
func RunAbort(t *testing.T, mgr GroupManager) {
	errs, _ := runRanks(t, mgr, 3, func(ctx context.Context, comm group.Comm) error {
		switch comm.Rank() {
		case 0:
			_, err := comm.RecvFlag(ctx, 1, 0)
			if err != nil {
				comm.Abort(err)
			}
			return err
		case 1:
			comm.Abort(errors.New("disk full"))
			return nil
		default:
			_, err := comm.RecvFlag(ctx, 0, 0)
			return err
		}
	})
	assert.T(t, errors.Is(errs[0], group.ErrAborted), errs[0])
	assert.Equal(t, nil, errs[1])
	assert.T(t, errs[2] != nil)
}
