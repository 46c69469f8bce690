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
	"io"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const NET = "net:"

const DefaultVersion = "meshsort/1"

const DefaultDialTimeout = 30 * time.Second

const dialRetryInterval = 100 * time.Millisecond

const netInboxDepth = 16

type NetConfig struct {
	// Rank of this process, indexing Addrs.
	Rank int
	// Addrs holds the listen address of every rank.
	Addrs       []string
	Version     string
	DialTimeout time.Duration
	// Listener, if set, is used instead of listening on Addrs[Rank].
	Listener net.Listener
	// Trace, if set, receives a copy of every frame this rank sends.
	Trace io.Writer
	// Custom settings every rank must agree on, such as the algorithm
	// and matrix dimension. They travel in the hello message.
	Custom map[string]string
}

// NetComm is a process group member connected to every other rank by a
// dedicated TCP connection. Lower ranks are dialed, higher ranks are
// accepted.
type NetComm struct {
	config NetConfig
	peers  []*netPeer

	mu      sync.Mutex
	inboxes map[inboxKey]chan Msg

	traceMu sync.Mutex

	closeOnce sync.Once
	closing   chan struct{}
	readers   sync.WaitGroup
}

type inboxKey struct {
	src int
	tag Tag
}

type netPeer struct {
	rank int
	conn net.Conn
	wmu  sync.Mutex

	dead     chan struct{}
	deadOnce sync.Once
	err      error
}

func (p *netPeer) fail(err error) {
	p.deadOnce.Do(func() {
		p.err = err
		close(p.dead)
	})
}

// Dial joins the process group described by config, returning once a
// connection to every other rank has been established and checked.
func Dial(ctx context.Context, config NetConfig) (*NetComm, error) {
	size := len(config.Addrs)
	if config.Rank < 0 || config.Rank >= size {
		return nil, errors.Wrapf(ErrInvalidRank, "rank %d, %d addresses", config.Rank, size)
	}
	if config.Version == "" {
		config.Version = DefaultVersion
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	nc := &NetComm{
		config:  config,
		peers:   make([]*netPeer, size),
		inboxes: make(map[inboxKey]chan Msg),
		closing: make(chan struct{}),
	}
	ln := config.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", config.Addrs[config.Rank])
		if err != nil {
			return nil, errors.Wrapf(err, "listen on %q", config.Addrs[config.Rank])
		}
	}
	ctx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()
	eg, ectx := errgroup.WithContext(ctx)
	go func() {
		<-ectx.Done()
		ln.Close()
	}()
	eg.Go(func() error {
		return nc.acceptHigher(ectx, ln)
	})
	for rank := 0; rank < config.Rank; rank++ {
		rank := rank
		eg.Go(func() error {
			return nc.dialLower(ectx, rank)
		})
	}
	err := eg.Wait()
	cancel()
	if err != nil {
		for _, p := range nc.peers {
			if p != nil {
				p.conn.Close()
			}
		}
		return nil, err
	}
	for _, p := range nc.peers {
		if p != nil {
			nc.readers.Add(1)
			go nc.readAll(p)
		}
	}
	log.Infoln(NET, "rank", config.Rank, "joined group of", size)
	return nc, nil
}

func (nc *NetComm) acceptHigher(ctx context.Context, ln net.Listener) error {
	for pending := len(nc.peers) - 1 - nc.config.Rank; pending > 0; pending-- {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "accept")
		}
		log.Debugln(NET, "connection from:", conn.RemoteAddr())
		remote, err := nc.handshake(ctx, conn, "accept:")
		if err == nil && (remote.Rank <= nc.config.Rank || nc.peer(remote.Rank) != nil) {
			err = errors.Wrapf(ErrIncompatiblePeer, "unexpected connection from rank %d", remote.Rank)
		}
		if err != nil {
			conn.Close()
			return err
		}
		nc.setPeer(remote.Rank, conn)
	}
	return nil
}

func (nc *NetComm) dialLower(ctx context.Context, rank int) error {
	addr := nc.config.Addrs[rank]
	var d net.Dialer
	for {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			remote, err := nc.handshake(ctx, conn, "dial:")
			if err == nil && remote.Rank != rank {
				err = errors.Wrapf(ErrIncompatiblePeer, "dialed rank %d at %q, reached rank %d", rank, addr, remote.Rank)
			}
			if err != nil {
				conn.Close()
				return err
			}
			nc.setPeer(rank, conn)
			return nil
		}
		log.Debugln(NET, "dial", addr, "failed:", err)
		select {
		case <-ctx.Done():
			return errors.Wrapf(err, "dial rank %d at %q", rank, addr)
		case <-time.After(dialRetryInterval):
		}
	}
}

func (nc *NetComm) hello() *Hello {
	return &Hello{
		Version: nc.config.Version,
		Rank:    nc.config.Rank,
		Size:    len(nc.peers),
		Custom:  nc.config.Custom,
	}
}

// mismatchedCustom returns the first key, in sorted order, whose value
// differs between local and remote.
func mismatchedCustom(local, remote map[string]string) (string, bool) {
	var keys []string
	for k := range local {
		keys = append(keys, k)
	}
	for k := range remote {
		if _, ok := local[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		lv, lok := local[k]
		rv, rok := remote[k]
		if lok != rok || lv != rv {
			return k, true
		}
	}
	return "", false
}

func (nc *NetComm) handshake(ctx context.Context, conn net.Conn, role string) (remote *Hello, err error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	local := nc.hello()
	log.Debugln(NET, role, "writing hello:", local)
	if err = WriteMsg(conn, local); err != nil {
		return
	}
	var msg Msg
	if msg, err = ReadMsg(conn); err != nil {
		return
	}
	var is bool
	remote, is = msg.(*Hello)
	if !is {
		return nil, errors.Wrapf(ErrUnexpectedMessage, "expected hello, got %v", msg.MsgType())
	}
	log.Debugln(NET, role, "remote hello:", remote)
	var reason string
	key, customMismatch := mismatchedCustom(local.Custom, remote.Custom)
	switch {
	case remote.Version != local.Version:
		reason = "mismatched version"
	case remote.Size != local.Size:
		reason = "mismatched group size"
	case remote.Rank < 0 || remote.Rank >= local.Size || remote.Rank == local.Rank:
		reason = "invalid rank"
	case customMismatch:
		reason = "mismatched " + key
	}
	if reason != "" {
		WriteString(conn, RemoteConfigFailed)
		WriteString(conn, reason)
		return nil, errors.Wrapf(ErrIncompatiblePeer, "%s: remote %v, local %v", reason, remote, local)
	}
	if err = WriteString(conn, RemoteConfigPassed); err != nil {
		return
	}
	status, err := ReadString(conn)
	if err != nil {
		return nil, err
	}
	if status != RemoteConfigPassed {
		reason, err = ReadString(conn)
		if err == nil {
			err = errors.Wrap(ErrRemoteReject, reason)
		}
		return nil, err
	}
	return remote, nil
}

func (nc *NetComm) setPeer(rank int, conn net.Conn) {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.peers[rank] = &netPeer{rank: rank, conn: conn, dead: make(chan struct{})}
}

func (nc *NetComm) peer(rank int) *netPeer {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	return nc.peers[rank]
}

func (nc *NetComm) inbox(src int, tag Tag) chan Msg {
	nc.mu.Lock()
	defer nc.mu.Unlock()
	key := inboxKey{src: src, tag: tag}
	box, ok := nc.inboxes[key]
	if !ok {
		box = make(chan Msg, netInboxDepth)
		nc.inboxes[key] = box
	}
	return box
}

// readAll demultiplexes frames from one peer into per-tag inboxes until
// the connection ends.
func (nc *NetComm) readAll(p *netPeer) {
	defer nc.readers.Done()
	for {
		msg, err := ReadMsg(p.conn)
		if err != nil {
			p.fail(errors.Wrapf(ErrPeerLost, "rank %d: %v", p.rank, err))
			return
		}
		switch m := msg.(type) {
		case *Band, *Flag:
			select {
			case nc.inbox(p.rank, tagOf(m)) <- m:
			case <-nc.closing:
				p.fail(ErrClosed)
				return
			}
		case *Done:
			p.fail(errors.Wrapf(ErrClosed, "rank %d closed", p.rank))
			return
		case *Error:
			log.Warnln(NET, "rank", p.rank, "aborted:", m.Text)
			p.fail(errors.Wrapf(ErrAborted, "rank %d: %s", p.rank, m.Text))
			return
		default:
			p.fail(errors.Wrapf(ErrUnexpectedMessage, "rank %d sent %v", p.rank, msg.MsgType()))
			return
		}
	}
}

func (nc *NetComm) Rank() int { return nc.config.Rank }

func (nc *NetComm) Size() int { return len(nc.peers) }

func (nc *NetComm) write(ctx context.Context, p *netPeer, msg Msg) error {
	select {
	case <-p.dead:
		return p.err
	default:
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		p.conn.SetWriteDeadline(deadline)
		defer p.conn.SetWriteDeadline(time.Time{})
	}
	if err := WriteMsg(p.conn, msg); err != nil {
		return errors.Wrapf(ErrPeerLost, "rank %d: %v", p.rank, err)
	}
	nc.trace(msg)
	return nil
}

func (nc *NetComm) trace(msg Msg) {
	if nc.config.Trace == nil {
		return
	}
	nc.traceMu.Lock()
	defer nc.traceMu.Unlock()
	if err := WriteMsg(nc.config.Trace, msg); err != nil {
		log.Warnln(NET, "trace:", err)
	}
}

// next waits for the next message from src on tag. Messages already
// delivered are returned even after the peer has gone away.
func (nc *NetComm) next(ctx context.Context, src int, tag Tag) (Msg, error) {
	if err := checkPeer(nc, src); err != nil {
		return nil, err
	}
	p := nc.peer(src)
	box := nc.inbox(src, tag)
	select {
	case msg := <-box:
		return msg, nil
	default:
	}
	select {
	case msg := <-box:
		return msg, nil
	case <-p.dead:
		select {
		case msg := <-box:
			return msg, nil
		default:
		}
		return nil, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (nc *NetComm) Send(ctx context.Context, dst int, tag Tag, band []int) error {
	if err := checkPeer(nc, dst); err != nil {
		return err
	}
	return nc.write(ctx, nc.peer(dst), &Band{Tag: tag, Values: band})
}

func (nc *NetComm) Recv(ctx context.Context, src int, tag Tag, band []int) error {
	msg, err := nc.next(ctx, src, tag)
	if err != nil {
		return err
	}
	return fillBand(msg, src, band)
}

func (nc *NetComm) SendFlag(ctx context.Context, dst int, tag Tag, flag bool) error {
	if err := checkPeer(nc, dst); err != nil {
		return err
	}
	return nc.write(ctx, nc.peer(dst), &Flag{Tag: tag, Value: flag})
}

func (nc *NetComm) RecvFlag(ctx context.Context, src int, tag Tag) (bool, error) {
	msg, err := nc.next(ctx, src, tag)
	if err != nil {
		return false, err
	}
	return flagValue(msg, src)
}

func (nc *NetComm) Barrier(ctx context.Context) error {
	return barrier(ctx, nc)
}

// Abort tells every peer this rank has failed and disconnects.
func (nc *NetComm) Abort(err error) {
	if err == nil {
		err = ErrAborted
	}
	log.Warnln(NET, "rank", nc.config.Rank, "aborting:", err)
	nc.shutdown(&Error{textMsg{Text: err.Error()}})
}

// Close says goodbye to every peer and disconnects.
func (nc *NetComm) Close() error {
	nc.shutdown(&Done{})
	return nil
}

func (nc *NetComm) shutdown(farewell Msg) {
	nc.closeOnce.Do(func() {
		close(nc.closing)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for _, p := range nc.peers {
			if p == nil {
				continue
			}
			nc.write(ctx, p, farewell)
			p.conn.Close()
		}
		nc.readers.Wait()
	})
}
