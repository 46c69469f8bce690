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
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cmars/meshsort"
)

// Report is produced by the controller when a run terminates.
type Report struct {
	Algorithm  Algorithm
	Processes  int
	Dimension  int
	SuperSteps int
	Sorted     bool
	Elapsed    time.Duration
	// Initial is a copy of the unsorted matrix, kept only in debug mode.
	Initial *meshsort.Matrix
	Matrix  *meshsort.Matrix
	History []State
}

var rule = strings.Repeat("=", 70)

func banner(buf *bytes.Buffer, title string) {
	fmt.Fprintf(buf, "%s\n== %-64s ==\n%s\n\n", rule, title, rule)
}

func writeRows(buf *bytes.Buffer, rows [][]int) {
	for _, row := range rows {
		for _, v := range row {
			fmt.Fprintf(buf, "%10d\t", v)
		}
		buf.WriteString("\n")
	}
}

func (r *Report) WriteSummary(w io.Writer) error {
	buf := bytes.NewBuffer(nil)
	banner(buf, "Summary")
	fmt.Fprintf(buf, "Total number of processes:         %10d\n\n", r.Processes)
	fmt.Fprintf(buf, "Length and width of square matrix: %10d\n", r.Dimension)
	fmt.Fprintf(buf, "Number of elements in matrix:      %10d\n\n", r.Dimension*r.Dimension)
	fmt.Fprintf(buf, "Total runtime:                        %10.2f seconds\n\n", r.Elapsed.Seconds())
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteDebug writes the initial matrix, the diagonals of the sorted
// matrix, the sorted matrix and the pass counter.
func (r *Report) WriteDebug(w io.Writer) error {
	buf := bytes.NewBuffer(nil)
	if r.Initial != nil {
		buf.WriteString("\n")
		banner(buf, "Initial matrix")
		buf.WriteString(r.Initial.String())
		buf.WriteString("\n")
	}
	if r.Matrix != nil {
		below, above := r.Matrix.Diagonals()
		banner(buf, "Diagonals")
		buf.WriteString("Below main diagonal in sorted matrix:\n\n")
		writeRows(buf, below)
		buf.WriteString("\nAbove main diagonal in sorted matrix:\n\n")
		writeRows(buf, above)
		buf.WriteString("\n")
		banner(buf, "Sorted matrix")
		buf.WriteString(r.Matrix.String())
		buf.WriteString("\n")
	}
	banner(buf, "Variables")
	sorted := 0
	if r.Sorted {
		sorted = 1
	}
	fmt.Fprintf(buf, "is_sorted:\t%d\t  counter: %10d\n\n", sorted, r.SuperSteps)
	_, err := w.Write(buf.Bytes())
	return err
}
