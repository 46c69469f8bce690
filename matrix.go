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

// Package meshsort provides the matrix arena and the sequential building
// blocks of the two-dimensional sorting networks: band transfer, row
// sorting and the snake-order convergence test.
package meshsort

import (
	"bytes"
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
)

// MaxElements bounds the arena of a single matrix.
const MaxElements = 1 << 28

var ErrInvalidDimension = errors.New("dimension of square matrix must be a positive integer")

var ErrTooLarge = errors.New("matrix too large to allocate")

var ErrNotSquare = errors.New("matrix is not square")

var ErrOutOfRange = errors.New("index out of range")

var ErrBandLength = errors.New("band length does not match matrix dimension")

// Band is one row or one column of a matrix in transit between ranks.
type Band []int

// NewBand returns a zeroed band for a matrix of dimension n.
func NewBand(n int) Band {
	return make(Band, n)
}

// Matrix is a square integer matrix stored row-major in a single arena,
// indexed by row*dimension + col.
type Matrix struct {
	dimension int
	cells     []int
}

func NewMatrix(dimension int) (*Matrix, error) {
	if dimension <= 0 {
		return nil, ErrInvalidDimension
	}
	if dimension > MaxElements/dimension {
		return nil, errors.Wrapf(ErrTooLarge, "%d x %d", dimension, dimension)
	}
	return &Matrix{
		dimension: dimension,
		cells:     make([]int, dimension*dimension)}, nil
}

func NewMatrixFromRows(rows [][]int) (*Matrix, error) {
	m, err := NewMatrix(len(rows))
	if err != nil {
		return nil, err
	}
	for r, row := range rows {
		if len(row) != m.dimension {
			return nil, errors.Wrapf(ErrNotSquare, "row %d has %d columns, want %d",
				r, len(row), m.dimension)
		}
		copy(m.cells[r*m.dimension:], row)
	}
	return m, nil
}

func (m *Matrix) Dimension() int {
	return m.dimension
}

func (m *Matrix) Get(row, col int) int {
	return m.cells[col+(row*m.dimension)]
}

func (m *Matrix) Set(row, col int, v int) {
	m.cells[col+(row*m.dimension)] = v
}

// Fill assigns random values to every cell. With a positive limit the
// values are drawn from 1..limit, otherwise from the non-negative int32 range.
func (m *Matrix) Fill(rng *rand.Rand, limit int) {
	for i := range m.cells {
		if limit > 0 {
			m.cells[i] = rng.Intn(limit) + 1
		} else {
			m.cells[i] = int(rng.Int31())
		}
	}
}

func (m *Matrix) checkBand(index int, band Band) error {
	if index < 0 || index >= m.dimension {
		return errors.Wrapf(ErrOutOfRange, "index %d, dimension %d", index, m.dimension)
	}
	if len(band) != m.dimension {
		return errors.Wrapf(ErrBandLength, "band length %d, dimension %d", len(band), m.dimension)
	}
	return nil
}

// ExtractRow copies row r into band.
func (m *Matrix) ExtractRow(r int, band Band) error {
	if err := m.checkBand(r, band); err != nil {
		return err
	}
	copy(band, m.cells[r*m.dimension:(r+1)*m.dimension])
	return nil
}

// DepositRow copies band over row r.
func (m *Matrix) DepositRow(r int, band Band) error {
	if err := m.checkBand(r, band); err != nil {
		return err
	}
	copy(m.cells[r*m.dimension:(r+1)*m.dimension], band)
	return nil
}

// ExtractColumn copies column c into band, reading the arena with a
// stride of one matrix dimension.
func (m *Matrix) ExtractColumn(c int, band Band) error {
	if err := m.checkBand(c, band); err != nil {
		return err
	}
	for row, i := 0, c; row < m.dimension; row, i = row+1, i+m.dimension {
		band[row] = m.cells[i]
	}
	return nil
}

// DepositColumn copies band over column c.
func (m *Matrix) DepositColumn(c int, band Band) error {
	if err := m.checkBand(c, band); err != nil {
		return err
	}
	for row, i := 0, c; row < m.dimension; row, i = row+1, i+m.dimension {
		m.cells[i] = band[row]
	}
	return nil
}

func (m *Matrix) Clone() *Matrix {
	cells := make([]int, len(m.cells))
	copy(cells, m.cells)
	return &Matrix{dimension: m.dimension, cells: cells}
}

func (m *Matrix) Equal(other *Matrix) bool {
	if other == nil || m.dimension != other.dimension {
		return false
	}
	for i := range m.cells {
		if m.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// Rows returns a copy of the matrix as a slice of rows.
func (m *Matrix) Rows() [][]int {
	rows := make([][]int, m.dimension)
	for r := range rows {
		rows[r] = make([]int, m.dimension)
		copy(rows[r], m.cells[r*m.dimension:])
	}
	return rows
}

// Values returns a copy of the arena in row-major order.
func (m *Matrix) Values() []int {
	values := make([]int, len(m.cells))
	copy(values, m.cells)
	return values
}

// Diagonals lists the diagonals starting in column 0 (below and including
// the main diagonal) and those starting in row 0 (above and including it).
func (m *Matrix) Diagonals() (below, above [][]int) {
	n := m.dimension
	for i := 0; i < n; i++ {
		var diag []int
		for row, col := i, 0; row < n; row, col = row+1, col+1 {
			diag = append(diag, m.Get(row, col))
		}
		below = append(below, diag)
	}
	for j := 0; j < n; j++ {
		var diag []int
		for row, col := 0, j; col < n; row, col = row+1, col+1 {
			diag = append(diag, m.Get(row, col))
		}
		above = append(above, diag)
	}
	return
}

func (m *Matrix) String() string {
	buf := bytes.NewBuffer(nil)
	for r := 0; r < m.dimension; r++ {
		for c := 0; c < m.dimension; c++ {
			fmt.Fprintf(buf, "%10d\t", m.Get(r, c))
		}
		fmt.Fprintln(buf)
	}
	return buf.String()
}
