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

import (
	"github.com/petar/GoLLRB/llrb"
)

type tallyItem struct {
	value int
	count int
}

func (ti *tallyItem) Less(than llrb.Item) bool {
	return ti.value < than.(*tallyItem).value
}

// Tally is an ordered multiset of matrix values. Comparing the tally of a
// matrix before and after sorting detects values lost or duplicated while
// bands were in transit.
type Tally struct {
	tree *llrb.LLRB
	size int
}

func NewTally(values ...int) *Tally {
	t := &Tally{tree: llrb.New()}
	t.AddSlice(values)
	return t
}

// TallyMatrix returns the tally of every cell of m.
func TallyMatrix(m *Matrix) *Tally {
	return NewTally(m.cells...)
}

func (t *Tally) Add(v int) {
	if item := t.tree.Get(&tallyItem{value: v}); item != nil {
		item.(*tallyItem).count++
	} else {
		t.tree.ReplaceOrInsert(&tallyItem{value: v, count: 1})
	}
	t.size++
}

func (t *Tally) AddSlice(values []int) {
	for _, v := range values {
		t.Add(v)
	}
}

// Len returns the number of values, counting repeats.
func (t *Tally) Len() int {
	return t.size
}

// Count returns how many times v was added.
func (t *Tally) Count(v int) int {
	if item := t.tree.Get(&tallyItem{value: v}); item != nil {
		return item.(*tallyItem).count
	}
	return 0
}

func (t *Tally) each(f func(*tallyItem) bool) {
	min := t.tree.Min()
	if min == nil {
		return
	}
	t.tree.AscendGreaterOrEqual(min, func(i llrb.Item) bool {
		return f(i.(*tallyItem))
	})
}

// Sorted returns every value in ascending order, repeats included.
func (t *Tally) Sorted() []int {
	result := make([]int, 0, t.size)
	t.each(func(ti *tallyItem) bool {
		for i := 0; i < ti.count; i++ {
			result = append(result, ti.value)
		}
		return true
	})
	return result
}

func (t *Tally) Equal(other *Tally) bool {
	if other == nil || t.size != other.size || t.tree.Len() != other.tree.Len() {
		return false
	}
	equal := true
	t.each(func(ti *tallyItem) bool {
		equal = other.Count(ti.value) == ti.count
		return equal
	})
	return equal
}
