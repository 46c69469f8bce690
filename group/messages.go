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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// MaxFrameSize bounds a single frame on the wire.
const MaxFrameSize = 1 << 26

var ErrFrameTooLarge = errors.New("frame too large")

type MsgType uint8

const (
	MsgTypeHello = MsgType(0)
	MsgTypeBand  = MsgType(1)
	MsgTypeFlag  = MsgType(2)
	MsgTypeDone  = MsgType(3)
	MsgTypeError = MsgType(4)
)

func (mt MsgType) String() string {
	switch mt {
	case MsgTypeHello:
		return "Hello"
	case MsgTypeBand:
		return "Band"
	case MsgTypeFlag:
		return "Flag"
	case MsgTypeDone:
		return "Done"
	case MsgTypeError:
		return "Error"
	}
	return "Unknown"
}

type Msg interface {
	MsgType() MsgType
	unmarshal(r io.Reader) error
	marshal(w io.Writer) error
}

type emptyMsg struct{}

func (msg *emptyMsg) unmarshal(r io.Reader) error { return nil }

func (msg *emptyMsg) marshal(w io.Writer) error { return nil }

type textMsg struct{ Text string }

func (msg *textMsg) unmarshal(r io.Reader) (err error) {
	msg.Text, err = ReadString(r)
	return
}

func (msg *textMsg) marshal(w io.Writer) error {
	return WriteString(w, msg.Text)
}

func ReadInt(r io.Reader) (n int, err error) {
	buf := make([]byte, 4)
	_, err = io.ReadFull(r, buf)
	n = int(binary.BigEndian.Uint32(buf))
	return
}

func WriteInt(w io.Writer, n int) (err error) {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(n))
	_, err = w.Write(buf)
	return
}

func ReadString(r io.Reader) (string, error) {
	n, err := ReadInt(r)
	if err != nil || n == 0 {
		return "", err
	}
	if n > MaxFrameSize {
		return "", errors.Wrapf(ErrFrameTooLarge, "string of %d bytes", n)
	}
	buf := make([]byte, n)
	_, err = io.ReadFull(r, buf)
	return string(buf), err
}

func WriteString(w io.Writer, text string) (err error) {
	err = WriteInt(w, len(text))
	if err != nil {
		return
	}
	_, err = w.Write([]byte(text))
	return
}

func ReadBool(r io.Reader) (bool, error) {
	buf := make([]byte, 1)
	_, err := io.ReadFull(r, buf)
	return buf[0] != 0, err
}

func WriteBool(w io.Writer, v bool) error {
	buf := []byte{0}
	if v {
		buf[0] = 1
	}
	_, err := w.Write(buf)
	return err
}

// ReadValues reads a count followed by that many 8-byte two's complement
// integers.
func ReadValues(r io.Reader) ([]int, error) {
	n, err := ReadInt(r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameSize/8 {
		return nil, errors.Wrapf(ErrFrameTooLarge, "band of %d values", n)
	}
	buf := make([]byte, 8*n)
	if _, err = io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	values := make([]int, n)
	for i := range values {
		values[i] = int(int64(binary.BigEndian.Uint64(buf[8*i:])))
	}
	return values, nil
}

func WriteValues(w io.Writer, values []int) error {
	if err := WriteInt(w, len(values)); err != nil {
		return err
	}
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[8*i:], uint64(int64(v)))
	}
	_, err := w.Write(buf)
	return err
}

// Hello is exchanged by both ends of a new connection.
type Hello struct {
	Version string
	Rank    int
	Size    int
	Custom  map[string]string
}

func (msg *Hello) String() string {
	return fmt.Sprintf("%v: Version=%v Rank=%v Size=%v Custom=%v", msg.MsgType(),
		msg.Version, msg.Rank, msg.Size, msg.Custom)
}

func (msg *Hello) MsgType() MsgType {
	return MsgTypeHello
}

func (msg *Hello) marshal(w io.Writer) (err error) {
	if err = WriteString(w, msg.Version); err != nil {
		return
	}
	if err = WriteInt(w, msg.Rank); err != nil {
		return
	}
	if err = WriteInt(w, msg.Size); err != nil {
		return
	}
	if err = WriteInt(w, len(msg.Custom)); err != nil {
		return
	}
	for k, v := range msg.Custom {
		if err = WriteString(w, k); err != nil {
			return
		}
		if err = WriteString(w, v); err != nil {
			return
		}
	}
	return
}

func (msg *Hello) unmarshal(r io.Reader) (err error) {
	if msg.Version, err = ReadString(r); err != nil {
		return
	}
	if msg.Rank, err = ReadInt(r); err != nil {
		return
	}
	if msg.Size, err = ReadInt(r); err != nil {
		return
	}
	var n int
	if n, err = ReadInt(r); err != nil {
		return
	}
	msg.Custom = make(map[string]string)
	var k, v string
	for i := 0; i < n; i++ {
		if k, err = ReadString(r); err != nil {
			return
		}
		if v, err = ReadString(r); err != nil {
			return
		}
		msg.Custom[k] = v
	}
	return
}

// Band carries one matrix row or column.
type Band struct {
	Tag    Tag
	Values []int
}

func (msg *Band) String() string {
	return fmt.Sprintf("%v: tag=%v values=%v", msg.MsgType(), msg.Tag, msg.Values)
}

func (msg *Band) MsgType() MsgType {
	return MsgTypeBand
}

func (msg *Band) marshal(w io.Writer) (err error) {
	if err = WriteInt(w, int(msg.Tag)); err != nil {
		return
	}
	return WriteValues(w, msg.Values)
}

func (msg *Band) unmarshal(r io.Reader) (err error) {
	var tag int
	if tag, err = ReadInt(r); err != nil {
		return
	}
	msg.Tag = Tag(tag)
	msg.Values, err = ReadValues(r)
	return
}

// Flag carries a scalar decision, such as the convergence flag.
type Flag struct {
	Tag   Tag
	Value bool
}

func (msg *Flag) String() string {
	return fmt.Sprintf("%v: tag=%v value=%v", msg.MsgType(), msg.Tag, msg.Value)
}

func (msg *Flag) MsgType() MsgType {
	return MsgTypeFlag
}

func (msg *Flag) marshal(w io.Writer) (err error) {
	if err = WriteInt(w, int(msg.Tag)); err != nil {
		return
	}
	return WriteBool(w, msg.Value)
}

func (msg *Flag) unmarshal(r io.Reader) (err error) {
	var tag int
	if tag, err = ReadInt(r); err != nil {
		return
	}
	msg.Tag = Tag(tag)
	msg.Value, err = ReadBool(r)
	return
}

type Done struct {
	emptyMsg
}

func (msg *Done) String() string {
	return fmt.Sprintf("%v", msg.MsgType())
}

func (msg *Done) MsgType() MsgType {
	return MsgTypeDone
}

// Error tells peers that the sending rank has failed.
type Error struct {
	textMsg
}

func (msg *Error) String() string {
	return fmt.Sprintf("%v: %v", msg.MsgType(), msg.Text)
}

func (msg *Error) MsgType() MsgType {
	return MsgTypeError
}

var RemoteConfigPassed string = "passed"
var RemoteConfigFailed string = "failed"

func ReadMsg(r io.Reader) (msg Msg, err error) {
	var msgSize int
	msgSize, err = ReadInt(r)
	if err != nil {
		return nil, err
	}
	if msgSize < 1 || msgSize > MaxFrameSize {
		return nil, errors.Wrapf(ErrFrameTooLarge, "frame of %d bytes", msgSize)
	}
	msgBuf := make([]byte, msgSize)
	_, err = io.ReadFull(r, msgBuf)
	if err != nil {
		return nil, err
	}
	br := bytes.NewBuffer(msgBuf)
	msgType := MsgType(msgBuf[0])
	br.Next(1)
	switch msgType {
	case MsgTypeHello:
		msg = &Hello{}
	case MsgTypeBand:
		msg = &Band{}
	case MsgTypeFlag:
		msg = &Flag{}
	case MsgTypeDone:
		msg = &Done{}
	case MsgTypeError:
		msg = &Error{}
	default:
		return nil, errors.Wrapf(ErrUnexpectedMessage, "message code %d", msgType)
	}
	err = msg.unmarshal(br)
	return
}

func WriteMsg(w io.Writer, msg Msg) (err error) {
	bw := bytes.NewBuffer(nil)
	bw.WriteByte(byte(msg.MsgType()))
	if err = msg.marshal(bw); err != nil {
		return
	}
	if err = WriteInt(w, bw.Len()); err != nil {
		return
	}
	_, err = w.Write(bw.Bytes())
	return err
}
