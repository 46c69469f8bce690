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
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const localMailboxDepth = 16

type route struct {
	src, dst int
	tag      Tag
}

// LocalGroup is a process group whose ranks are goroutines sharing
// in-memory mailboxes.
type LocalGroup struct {
	size int

	mu    sync.Mutex
	boxes map[route]chan Msg

	aborted   chan struct{}
	abortOnce sync.Once
	cause     error
}

func NewLocal(size int) *LocalGroup {
	return &LocalGroup{
		size:    size,
		boxes:   make(map[route]chan Msg),
		aborted: make(chan struct{}),
	}
}

func (g *LocalGroup) Size() int { return g.size }

// Comm returns the view of the group held by rank.
func (g *LocalGroup) Comm(rank int) Comm {
	return &localComm{group: g, rank: rank}
}

func (g *LocalGroup) Abort(err error) {
	g.abortOnce.Do(func() {
		if err == nil {
			err = ErrAborted
		}
		g.cause = err
		close(g.aborted)
	})
}

func (g *LocalGroup) abortErr() error {
	return errors.WithMessage(ErrAborted, g.cause.Error())
}

// ctxErr reports the abort cause in preference to ctx's error, since
// aborting a group under RunLocal also cancels the shared context.
func (g *LocalGroup) ctxErr(ctx context.Context) error {
	select {
	case <-g.aborted:
		return g.abortErr()
	default:
		return ctx.Err()
	}
}

func (g *LocalGroup) mailbox(src, dst int, tag Tag) chan Msg {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := route{src: src, dst: dst, tag: tag}
	box, ok := g.boxes[key]
	if !ok {
		box = make(chan Msg, localMailboxDepth)
		g.boxes[key] = box
	}
	return box
}

// RunLocal runs fn on every rank of a new LocalGroup and waits for all of
// them. The first rank to fail cancels the context seen by the others, and
// its error is the one returned.
func RunLocal(ctx context.Context, size int, fn func(ctx context.Context, comm Comm) error) error {
	g := NewLocal(size)
	eg, ctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		comm := g.Comm(rank)
		eg.Go(func() error {
			defer comm.Close()
			return fn(ctx, comm)
		})
	}
	return eg.Wait()
}

type localComm struct {
	group *LocalGroup
	rank  int
}

func (c *localComm) Rank() int { return c.rank }

func (c *localComm) Size() int { return c.group.size }

func (c *localComm) put(ctx context.Context, dst int, msg Msg) error {
	select {
	case <-c.group.aborted:
		return c.group.abortErr()
	default:
	}
	box := c.group.mailbox(c.rank, dst, tagOf(msg))
	select {
	case box <- msg:
		return nil
	case <-c.group.aborted:
		return c.group.abortErr()
	case <-ctx.Done():
		return c.group.ctxErr(ctx)
	}
}

func (c *localComm) take(ctx context.Context, src int, tag Tag) (Msg, error) {
	box := c.group.mailbox(src, c.rank, tag)
	select {
	case msg := <-box:
		return msg, nil
	case <-c.group.aborted:
		return nil, c.group.abortErr()
	case <-ctx.Done():
		return nil, c.group.ctxErr(ctx)
	}
}

func (c *localComm) Send(ctx context.Context, dst int, tag Tag, band []int) error {
	if err := checkPeer(c, dst); err != nil {
		return err
	}
	values := make([]int, len(band))
	copy(values, band)
	return c.put(ctx, dst, &Band{Tag: tag, Values: values})
}

func (c *localComm) Recv(ctx context.Context, src int, tag Tag, band []int) error {
	if err := checkPeer(c, src); err != nil {
		return err
	}
	msg, err := c.take(ctx, src, tag)
	if err != nil {
		return err
	}
	return fillBand(msg, src, band)
}

func (c *localComm) SendFlag(ctx context.Context, dst int, tag Tag, flag bool) error {
	if err := checkPeer(c, dst); err != nil {
		return err
	}
	return c.put(ctx, dst, &Flag{Tag: tag, Value: flag})
}

func (c *localComm) RecvFlag(ctx context.Context, src int, tag Tag) (bool, error) {
	if err := checkPeer(c, src); err != nil {
		return false, err
	}
	msg, err := c.take(ctx, src, tag)
	if err != nil {
		return false, err
	}
	return flagValue(msg, src)
}

func (c *localComm) Barrier(ctx context.Context) error {
	return barrier(ctx, c)
}

func (c *localComm) Abort(err error) {
	c.group.Abort(err)
}

func (c *localComm) Close() error {
	return nil
}

func tagOf(msg Msg) Tag {
	switch m := msg.(type) {
	case *Band:
		return m.Tag
	case *Flag:
		return m.Tag
	}
	return TagBarrier
}

func fillBand(msg Msg, src int, band []int) error {
	m, ok := msg.(*Band)
	if !ok {
		return errors.Wrapf(ErrUnexpectedMessage, "expected band from rank %d, got %v", src, msg.MsgType())
	}
	if len(m.Values) != len(band) {
		return errors.Wrapf(ErrBandLength, "rank %d sent %d values, expected %d", src, len(m.Values), len(band))
	}
	copy(band, m.Values)
	return nil
}

func flagValue(msg Msg, src int) (bool, error) {
	m, ok := msg.(*Flag)
	if !ok {
		return false, errors.Wrapf(ErrUnexpectedMessage, "expected flag from rank %d, got %v", src, msg.MsgType())
	}
	return m.Value, nil
}
