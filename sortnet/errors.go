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
	"fmt"

	"github.com/pkg/errors"
)

var ErrValidation = errors.New("invalid arguments")

var ErrResource = errors.New("unable to allocate resources")

var ErrTransport = errors.New("process group failure")

var ErrNotSorted = errors.New("matrix is not sorted")

var ErrIntegrity = errors.New("matrix values changed while sorting")

type Algorithm string

const (
	ShearSort = Algorithm("shearsort")
	OETSort   = Algorithm("oetsort")
)

func ParseAlgorithm(s string) (Algorithm, error) {
	switch alg := Algorithm(s); alg {
	case ShearSort, OETSort:
		return alg, nil
	}
	return "", errors.Wrapf(ErrValidation, "unknown algorithm %q", s)
}

// Validate checks that dimension and processes fit alg. It is called
// before anything is allocated.
func Validate(alg Algorithm, dimension, processes int) error {
	if processes < 1 {
		return errors.Wrapf(ErrValidation, "number of processes must be positive, got %d", processes)
	}
	if dimension < 1 {
		return errors.Wrapf(ErrValidation, "dimension of square matrix must be positive, got %d", dimension)
	}
	switch alg {
	case ShearSort:
		if dimension != processes {
			return errors.Wrapf(ErrValidation,
				"dimension of square matrix = %d, number of processes = %d: "+
					"number of processes does not equal dimension of square matrix",
				dimension, processes)
		}
	case OETSort:
		if dimension%processes != 0 {
			return errors.Wrapf(ErrValidation,
				"dimension of square matrix = %d, number of processes = %d: "+
					"number of processes does not divide dimension of square matrix",
				dimension, processes)
		}
	default:
		_, err := ParseAlgorithm(string(alg))
		return err
	}
	return nil
}

// resourceError reports an allocation failure on rank. The result matches
// both ErrResource and err.
func resourceError(rank int, err error) error {
	return fmt.Errorf("%w on rank %d: %w", ErrResource, rank, err)
}

func transportError(err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
