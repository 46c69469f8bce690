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

// Package group provides the process group the sorting networks run on: a
// fixed set of ranks exchanging fixed-length integer bands and scalar
// flags by blocking point-to-point messages.
//
// Two implementations are provided. LocalGroup runs every rank as a
// goroutine in the current process. NetComm connects ranks running in
// separate processes over a TCP mesh, using the frame format in
// messages.go.
package group

import (
	"context"

	"github.com/pkg/errors"
)

// Tag distinguishes logical channels between the same pair of ranks.
type Tag uint16

// TagBarrier is reserved for Barrier.
const TagBarrier = Tag(0xffff)

// Controller is the rank that coordinates the group.
const Controller = 0

var ErrInvalidRank = errors.New("invalid rank")

var ErrSelfSend = errors.New("rank cannot send to itself")

var ErrBandLength = errors.New("received band length does not match buffer")

var ErrUnexpectedMessage = errors.New("unexpected message")

var ErrAborted = errors.New("process group aborted")

var ErrClosed = errors.New("process group closed")

var ErrPeerLost = errors.New("lost connection to peer")

var ErrIncompatiblePeer = errors.New("incompatible peer")

var ErrRemoteReject = errors.New("remote rejected configuration")

// Comm is one rank's view of the process group. Send and Recv block until
// the transfer completes or ctx is done. Messages between a pair of ranks
// on the same tag are delivered exactly once and in order.
type Comm interface {
	Rank() int
	Size() int
	Send(ctx context.Context, dst int, tag Tag, band []int) error
	// Recv fills band, whose length must equal the length sent.
	Recv(ctx context.Context, src int, tag Tag, band []int) error
	SendFlag(ctx context.Context, dst int, tag Tag, flag bool) error
	RecvFlag(ctx context.Context, src int, tag Tag) (bool, error)
	// Barrier blocks until every rank has called it.
	Barrier(ctx context.Context) error
	// Abort fails every pending and future operation of the group, on
	// this rank and, where the transport allows it, on its peers.
	Abort(err error)
	Close() error
}

func checkPeer(c Comm, rank int) error {
	if rank < 0 || rank >= c.Size() {
		return errors.Wrapf(ErrInvalidRank, "rank %d, group size %d", rank, c.Size())
	}
	if rank == c.Rank() {
		return errors.Wrapf(ErrSelfSend, "rank %d", rank)
	}
	return nil
}

// BroadcastFlag fans flag out from the controller to every other rank and
// returns the controller's value on every rank.
func BroadcastFlag(ctx context.Context, c Comm, tag Tag, flag bool) (bool, error) {
	if c.Rank() != Controller {
		return c.RecvFlag(ctx, Controller, tag)
	}
	for dst := 1; dst < c.Size(); dst++ {
		if err := c.SendFlag(ctx, dst, tag, flag); err != nil {
			return false, err
		}
	}
	return flag, nil
}

// barrier gathers an arrival flag from every rank at the controller and
// then releases them all.
func barrier(ctx context.Context, c Comm) error {
	if c.Size() == 1 {
		return nil
	}
	if c.Rank() != Controller {
		if err := c.SendFlag(ctx, Controller, TagBarrier, true); err != nil {
			return err
		}
		_, err := c.RecvFlag(ctx, Controller, TagBarrier)
		return err
	}
	for src := 1; src < c.Size(); src++ {
		if _, err := c.RecvFlag(ctx, src, TagBarrier); err != nil {
			return err
		}
	}
	_, err := BroadcastFlag(ctx, c, TagBarrier, true)
	return err
}
