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

package group

import (
	"context"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

func TestLocalSendRecv(t *testing.T) {
	g := NewLocal(2)
	a, b := g.Comm(0), g.Comm(1)
	ctx := context.Background()
	band := []int{3, 1, 2}
	assert.Equal(t, nil, a.Send(ctx, 1, 0, band))
	// sends copy the caller's buffer
	band[0] = 100
	assert.Equal(t, nil, a.Send(ctx, 1, 0, band))

	got := make([]int, 3)
	assert.Equal(t, nil, b.Recv(ctx, 0, 0, got))
	assert.Equal(t, []int{3, 1, 2}, got)
	assert.Equal(t, nil, b.Recv(ctx, 0, 0, got))
	assert.Equal(t, []int{100, 1, 2}, got)
}

func TestLocalTagsAreIndependent(t *testing.T) {
	g := NewLocal(2)
	a, b := g.Comm(0), g.Comm(1)
	ctx := context.Background()
	assert.Equal(t, nil, a.Send(ctx, 1, 1, []int{1}))
	assert.Equal(t, nil, a.SendFlag(ctx, 1, 2, true))
	flag, err := b.RecvFlag(ctx, 0, 2)
	assert.Equal(t, nil, err)
	assert.T(t, flag)
	got := make([]int, 1)
	assert.Equal(t, nil, b.Recv(ctx, 0, 1, got))
	assert.Equal(t, []int{1}, got)
}

func TestLocalErrors(t *testing.T) {
	g := NewLocal(2)
	a, b := g.Comm(0), g.Comm(1)
	ctx := context.Background()
	err := a.Send(ctx, 0, 0, []int{1})
	assert.T(t, errors.Is(err, ErrSelfSend), err)
	err = a.Send(ctx, 2, 0, []int{1})
	assert.T(t, errors.Is(err, ErrInvalidRank), err)

	assert.Equal(t, nil, a.Send(ctx, 1, 0, []int{1, 2}))
	err = b.Recv(ctx, 0, 0, make([]int, 3))
	assert.T(t, errors.Is(err, ErrBandLength), err)

	assert.Equal(t, nil, a.SendFlag(ctx, 1, 0, true))
	err = b.Recv(ctx, 0, 0, make([]int, 1))
	assert.T(t, errors.Is(err, ErrUnexpectedMessage), err)

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = b.RecvFlag(tctx, 0, 5)
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestLocalAbort(t *testing.T) {
	g := NewLocal(3)
	errc := make(chan error)
	go func() {
		_, err := g.Comm(2).RecvFlag(context.Background(), 0, 0)
		errc <- err
	}()
	g.Comm(1).Abort(errors.New("rank 1 failed"))
	err := <-errc
	assert.T(t, errors.Is(err, ErrAborted), err)
	err = g.Comm(0).SendFlag(context.Background(), 1, 0, true)
	assert.T(t, errors.Is(err, ErrAborted), err)
}

func TestLocalAbortBeforeCancel(t *testing.T) {
	g := NewLocal(2)
	ctx, cancel := context.WithCancel(context.Background())
	g.Abort(errors.New("rank 1 failed"))
	cancel()
	for i := 0; i < 100; i++ {
		_, err := g.Comm(0).RecvFlag(ctx, 1, 0)
		assert.T(t, errors.Is(err, ErrAborted), err)
		err = g.Comm(1).Send(ctx, 0, 0, []int{1, 2})
		assert.T(t, errors.Is(err, ErrAborted), err)
	}
}

func TestLocalCancelWithoutAbort(t *testing.T) {
	g := NewLocal(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Comm(0).RecvFlag(ctx, 1, 0)
	assert.Equal(t, context.Canceled, err)
}

func TestRunLocalBarrierAndBroadcast(t *testing.T) {
	arrived := make(chan int, 5)
	err := RunLocal(context.Background(), 5, func(ctx context.Context, comm Comm) error {
		arrived <- comm.Rank()
		if err := comm.Barrier(ctx); err != nil {
			return err
		}
		// every rank has arrived before any rank leaves the barrier
		if len(arrived) != 5 {
			return errors.Errorf("rank %d left barrier early", comm.Rank())
		}
		stop, err := BroadcastFlag(ctx, comm, 3, comm.Rank() == Controller)
		if err != nil {
			return err
		}
		if !stop {
			return errors.Errorf("rank %d did not receive flag", comm.Rank())
		}
		return comm.Barrier(ctx)
	})
	assert.Equal(t, nil, err)
}

func TestRunLocalFirstErrorWins(t *testing.T) {
	boom := errors.New("boom")
	err := RunLocal(context.Background(), 3, func(ctx context.Context, comm Comm) error {
		if comm.Rank() == 2 {
			return boom
		}
		return comm.Barrier(ctx)
	})
	assert.Equal(t, boom, err)
}
