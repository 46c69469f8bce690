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

// Package sortnet drives the two-dimensional sorting networks over a
// process group. The controller (rank 0) owns the matrix and deals rows
// and columns out to the other ranks, one band per rank per round, until
// the matrix is in snake order.
package sortnet

import (
	"context"
	"math/bits"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cmars/meshsort"
	"github.com/cmars/meshsort/group"
)

const CTRL = "ctrl:"

// Tags are the message tags used for each kind of exchange.
type Tags struct {
	Row    group.Tag
	Column group.Tag
	Flag   group.Tag
}

var DefaultTags = Tags{Row: 1, Column: 0, Flag: 2}

type Config struct {
	Algorithm Algorithm
	Dimension int
	Tags      Tags
	// MaxSuperSteps bounds transposition sort. Zero means unbounded.
	MaxSuperSteps int
	// Verify checks that sorting preserved the multiset of values.
	Verify bool
	// Debug keeps a copy of the initial matrix in the report.
	Debug bool
}

// ShearSuperSteps is the number of row and column phase pairs shear sort
// runs before its final row phase: the ceiling of log2(n).
func ShearSuperSteps(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Allocate creates the controller's matrix, reporting failure as a
// resource error on rank.
func Allocate(rank, dimension int) (*meshsort.Matrix, error) {
	m, err := meshsort.NewMatrix(dimension)
	if err != nil {
		return nil, resourceError(rank, err)
	}
	return m, nil
}

type Coordinator struct {
	comm    group.Comm
	config  Config
	tracker Tracker
	band    meshsort.Band
	steps   int
}

// NewCoordinator validates config against the size of the group.
func NewCoordinator(comm group.Comm, config Config) (*Coordinator, error) {
	if err := Validate(config.Algorithm, config.Dimension, comm.Size()); err != nil {
		return nil, err
	}
	if config.Tags == (Tags{}) {
		config.Tags = DefaultTags
	}
	return &Coordinator{comm: comm, config: config}, nil
}

func (c *Coordinator) State() State {
	return c.tracker.State()
}

func (c *Coordinator) isController() bool {
	return c.comm.Rank() == group.Controller
}

func (c *Coordinator) enter(state State) error {
	log.Debugln(CTRL, "rank", c.comm.Rank(), "entering", state)
	return c.tracker.Enter(state)
}

// Run sorts m. Only the controller passes a matrix; other ranks pass nil
// and receive a nil report. On failure the coordinator is left Failed and
// the caller is expected to abort the group.
func (c *Coordinator) Run(ctx context.Context, m *meshsort.Matrix) (*Report, error) {
	report, err := c.run(ctx, m)
	if err != nil {
		c.tracker.Enter(StateFailed)
		return nil, err
	}
	return report, nil
}

func (c *Coordinator) run(ctx context.Context, m *meshsort.Matrix) (*Report, error) {
	n := c.config.Dimension
	var (
		initial *meshsort.Matrix
		before  *meshsort.Tally
	)
	if c.isController() {
		if m == nil || m.Dimension() != n {
			return nil, errors.Wrapf(ErrValidation, "controller needs a %d x %d matrix", n, n)
		}
		if c.config.Debug {
			initial = m.Clone()
		}
		if c.config.Verify {
			before = meshsort.TallyMatrix(m)
		}
	} else {
		m = nil
	}
	c.band = meshsort.NewBand(n)

	if err := c.comm.Barrier(ctx); err != nil {
		return nil, transportError(err)
	}
	start := time.Now()

	var err error
	switch c.config.Algorithm {
	case ShearSort:
		err = c.shearSort(ctx, m)
	case OETSort:
		err = c.transpositionSort(ctx, m)
	}
	if err != nil {
		return nil, err
	}

	if err := c.comm.Barrier(ctx); err != nil {
		return nil, transportError(err)
	}
	elapsed := time.Since(start)
	if err := c.enter(StateTerminated); err != nil {
		return nil, err
	}
	if !c.isController() {
		return nil, nil
	}
	if before != nil && !before.Equal(meshsort.TallyMatrix(m)) {
		return nil, errors.Wrapf(ErrIntegrity, "%d values before, %d after", before.Len(), m.Dimension()*m.Dimension())
	}
	log.Infoln(CTRL, c.config.Algorithm, "sorted", n, "x", n, "matrix in", c.steps, "passes,", elapsed)
	return &Report{
		Algorithm:  c.config.Algorithm,
		Processes:  c.comm.Size(),
		Dimension:  n,
		SuperSteps: c.steps,
		Sorted:     true,
		Elapsed:    elapsed,
		Initial:    initial,
		Matrix:     m,
		History:    c.tracker.History(),
	}, nil
}

func (c *Coordinator) shearSort(ctx context.Context, m *meshsort.Matrix) error {
	steps := ShearSuperSteps(c.config.Dimension)
	for c.steps = 0; c.steps < steps; c.steps++ {
		if c.isController() {
			log.Infoln(CTRL, "Pass", c.steps+1, "of", steps)
		}
		if err := c.rowPhase(ctx, m, meshsort.Sort); err != nil {
			return err
		}
		if err := c.columnPhase(ctx, m, meshsort.Sort); err != nil {
			return err
		}
	}
	if err := c.rowPhase(ctx, m, meshsort.Sort); err != nil {
		return err
	}
	if err := c.enter(StateConvergenceCheck); err != nil {
		return err
	}
	return c.verdict(ctx, m)
}

func (c *Coordinator) transpositionSort(ctx context.Context, m *meshsort.Matrix) error {
	limit := c.config.MaxSuperSteps
	for c.steps = 1; ; c.steps++ {
		if c.isController() {
			log.Infoln(CTRL, "Begin pass", c.steps)
		}
		if err := c.rowPhase(ctx, m, meshsort.TranspositionPass); err != nil {
			return err
		}
		if err := c.columnPhase(ctx, m, meshsort.TranspositionPass); err != nil {
			return err
		}
		if err := c.enter(StateConvergenceCheck); err != nil {
			return err
		}
		var stop bool
		if c.isController() {
			stop = meshsort.IsSnakeOrdered(m) || (limit > 0 && c.steps >= limit)
		}
		stop, err := group.BroadcastFlag(ctx, c.comm, c.config.Tags.Flag, stop)
		if err != nil {
			return transportError(err)
		}
		if stop {
			return c.verdict(ctx, m)
		}
	}
}

// verdict shares the controller's final snake order check with every rank,
// so that all of them fail together when the matrix is not sorted.
func (c *Coordinator) verdict(ctx context.Context, m *meshsort.Matrix) error {
	var sorted bool
	if c.isController() {
		var row, col int
		row, col, sorted = meshsort.FirstViolation(m)
		if !sorted {
			log.Warnln(CTRL, "diagonal out of order at row", row, "column", col)
		}
	}
	sorted, err := group.BroadcastFlag(ctx, c.comm, c.config.Tags.Flag, sorted)
	if err != nil {
		return transportError(err)
	}
	if !sorted {
		return errors.Wrapf(ErrNotSorted, "%v after %d passes", c.config.Algorithm, c.steps)
	}
	return nil
}

func (c *Coordinator) rowPhase(ctx context.Context, m *meshsort.Matrix, sortBand func([]int, meshsort.Direction)) error {
	if err := c.enter(StateRowPhase); err != nil {
		return err
	}
	var extract, deposit func(int, meshsort.Band) error
	if m != nil {
		extract, deposit = m.ExtractRow, m.DepositRow
	}
	// every band is sorted in the direction of the rank holding it
	dir := meshsort.DirectionFor(c.comm.Rank())
	return c.phase(ctx, c.config.Tags.Row, extract, deposit, func(band []int) {
		sortBand(band, dir)
	})
}

func (c *Coordinator) columnPhase(ctx context.Context, m *meshsort.Matrix, sortBand func([]int, meshsort.Direction)) error {
	if err := c.enter(StateColumnPhase); err != nil {
		return err
	}
	var extract, deposit func(int, meshsort.Band) error
	if m != nil {
		extract, deposit = m.ExtractColumn, m.DepositColumn
	}
	return c.phase(ctx, c.config.Tags.Column, extract, deposit, func(band []int) {
		sortBand(band, meshsort.Ascending)
	})
}

// phase deals every band of one axis out in rounds. In round i rank w
// sorts band i*P+w; the controller keeps band i*P for itself.
func (c *Coordinator) phase(ctx context.Context, tag group.Tag,
	extract, deposit func(int, meshsort.Band) error, sortBand func([]int)) error {
	n, p, rank := c.config.Dimension, c.comm.Size(), c.comm.Rank()
	band := c.band
	for round := 0; round < n/p; round++ {
		base := round * p
		if rank != group.Controller {
			if err := c.comm.Recv(ctx, group.Controller, tag, band); err != nil {
				return transportError(err)
			}
			sortBand(band)
			if err := c.comm.Send(ctx, group.Controller, tag, band); err != nil {
				return transportError(err)
			}
			continue
		}
		for w := 1; w < p; w++ {
			if err := extract(base+w, band); err != nil {
				return err
			}
			if err := c.comm.Send(ctx, w, tag, band); err != nil {
				return transportError(err)
			}
		}
		if err := extract(base, band); err != nil {
			return err
		}
		sortBand(band)
		if err := deposit(base, band); err != nil {
			return err
		}
		for w := 1; w < p; w++ {
			if err := c.comm.Recv(ctx, w, tag, band); err != nil {
				return transportError(err)
			}
			if err := deposit(base+w, band); err != nil {
				return err
			}
		}
	}
	return nil
}
