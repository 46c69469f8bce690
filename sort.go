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

// Direction selects the order a band is sorted into.
type Direction uint8

const (
	Ascending  = Direction(0)
	Descending = Direction(1)
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	}
	return "unknown"
}

// DirectionFor returns the direction for index: even ascends, odd
// descends. Row phases pass the rank sorting the row.
func DirectionFor(index int) Direction {
	if index%2 == 0 {
		return Ascending
	}
	return Descending
}

func (d Direction) outOfOrder(a, b int) bool {
	if d == Descending {
		return a < b
	}
	return a > b
}

// SortAscending sorts seq in place with an exchange sort.
func SortAscending(seq []int) {
	Sort(seq, Ascending)
}

// SortDescending sorts seq in place with an exchange sort.
func SortDescending(seq []int) {
	Sort(seq, Descending)
}

func Sort(seq []int, dir Direction) {
	for i := 0; i < len(seq); i++ {
		for j := len(seq) - 1; j > i; j-- {
			if dir.outOfOrder(seq[j-1], seq[j]) {
				seq[j-1], seq[j] = seq[j], seq[j-1]
			}
		}
	}
}

// SortEvenPairs compare-exchanges the pairs (0,1), (2,3), ...
func SortEvenPairs(seq []int, dir Direction) {
	pairPass(seq, 0, dir)
}

// SortOddPairs compare-exchanges the pairs (1,2), (3,4), ...
func SortOddPairs(seq []int, dir Direction) {
	pairPass(seq, 1, dir)
}

func pairPass(seq []int, start int, dir Direction) {
	for i := start; i < len(seq)-1; i += 2 {
		if dir.outOfOrder(seq[i], seq[i+1]) {
			seq[i], seq[i+1] = seq[i+1], seq[i]
		}
	}
}

// TranspositionPass applies one step of the odd-even transposition
// network: the odd pairs first, then the even pairs. A single pass does
// not leave seq sorted in general.
func TranspositionPass(seq []int, dir Direction) {
	SortOddPairs(seq, dir)
	SortEvenPairs(seq, dir)
}

func IsOrdered(seq []int, dir Direction) bool {
	for i := 1; i < len(seq); i++ {
		if dir.outOfOrder(seq[i-1], seq[i]) {
			return false
		}
	}
	return true
}
