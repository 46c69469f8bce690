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

package meshsort

// IsSnakeOrdered reports whether every diagonal of m, below and above the
// main diagonal, is non-decreasing.
func IsSnakeOrdered(m *Matrix) bool {
	_, _, ok := FirstViolation(m)
	return ok
}

// FirstViolation walks the diagonals starting in column 0 and then those
// starting in row 0, and returns the first cell (row, col) whose value is
// greater than that of (row+1, col+1). ok is true if there is none.
func FirstViolation(m *Matrix) (row, col int, ok bool) {
	n := m.Dimension()
	for i := 0; i < n-1; i++ {
		for r, c := i, 0; r < n-1; r, c = r+1, c+1 {
			if m.Get(r, c) > m.Get(r+1, c+1) {
				return r, c, false
			}
		}
	}
	for j := 1; j < n-1; j++ {
		for r, c := 0, j; c < n-1; r, c = r+1, c+1 {
			if m.Get(r, c) > m.Get(r+1, c+1) {
				return r, c, false
			}
		}
	}
	return -1, -1, true
}
