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

// meshsort-decode prints the frames of a trace written by meshsort --trace
// as a JSON array.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/cmars/meshsort/group"
)

func die(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func decode(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	fmt.Fprintln(w, "[")
	for i := 0; ; i++ {
		msg, err := group.ReadMsg(br)
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
		if i > 0 {
			fmt.Fprintln(w, ",")
		}
		if err = visit(w, i, msg); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, "]")
	return nil
}

func visit(w io.Writer, index int, msg group.Msg) error {
	render := struct {
		Frame int
		Type  string
		Msg   group.Msg
	}{
		index,
		msg.MsgType().String(),
		msg,
	}
	out, err := json.MarshalIndent(render, "", "\t")
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func main() {
	var r io.Reader = os.Stdin
	if len(os.Args) > 2 {
		fmt.Println("Usage: meshsort-decode [trace file]")
		os.Exit(1)
	}
	if len(os.Args) == 2 {
		f, err := os.Open(os.Args[1])
		if err != nil {
			die(err)
		}
		defer f.Close()
		r = f
	}
	if err := decode(r, os.Stdout); err != nil {
		die(err)
	}
}
