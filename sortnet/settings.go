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
	"net"
	"strconv"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/cmars/meshsort/group"
)

const (
	TransportLocal = "local"
	TransportTCP   = "tcp"
)

const (
	DefaultProcesses       = 4
	DefaultTransport       = TransportLocal
	DefaultLogLevel        = "info"
	DefaultDialTimeoutSecs = 30
	// DebugValueLimit bounds random values in debug mode, so printed
	// matrices stay readable.
	DebugValueLimit = 10
)

type Settings struct {
	Algorithm       string   `toml:"algorithm"`
	Dimension       int      `toml:"dimension"`
	Processes       int      `toml:"processes"`
	Transport       string   `toml:"transport"`
	Rank            int      `toml:"rank"`
	Addrs           []string `toml:"addrs"`
	Seed            int64    `toml:"seed"`
	Debug           bool     `toml:"debug"`
	ValueLimit      int      `toml:"valueLimit"`
	Verify          bool     `toml:"verify"`
	MaxSuperSteps   int      `toml:"maxSuperSteps"`
	LogLevel        string   `toml:"logLevel"`
	DialTimeoutSecs int      `toml:"dialTimeoutSecs"`
	Trace           string   `toml:"trace"`
	Version         string   `toml:"version"`
}

type tomlConfig struct {
	Meshsort Settings `toml:"meshsort"`
}

var defaultSettings = Settings{
	Processes:       DefaultProcesses,
	Transport:       DefaultTransport,
	LogLevel:        DefaultLogLevel,
	DialTimeoutSecs: DefaultDialTimeoutSecs,
	Version:         group.DefaultVersion,
}

func DefaultSettings() *Settings {
	settings := defaultSettings
	return &settings
}

// ParseSettings reads settings from the [meshsort] table of a toml
// document. Unset values take their defaults.
func ParseSettings(data string) (*Settings, error) {
	tree, err := toml.Load(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse settings")
	}
	return fromTree(tree)
}

func LoadSettings(path string) (*Settings, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load settings from %q", path)
	}
	return fromTree(tree)
}

func fromTree(tree *toml.Tree) (*Settings, error) {
	var doc tomlConfig
	if err := tree.Unmarshal(&doc); err != nil {
		return nil, errors.Wrap(err, "parse settings")
	}
	settings := &doc.Meshsort
	settings.setDefaults()
	if err := settings.Check(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Settings) setDefaults() {
	if s.Processes == 0 {
		s.Processes = DefaultProcesses
	}
	if s.Transport == "" {
		s.Transport = DefaultTransport
	}
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	if s.DialTimeoutSecs == 0 {
		s.DialTimeoutSecs = DefaultDialTimeoutSecs
	}
	if s.Version == "" {
		s.Version = group.DefaultVersion
	}
}

// Check validates settings that do not depend on the algorithm chosen.
// Addresses of a tcp group are resolved here so that typos are reported
// before any rank starts dialing.
func (s *Settings) Check() error {
	if s.Algorithm != "" {
		if _, err := ParseAlgorithm(s.Algorithm); err != nil {
			return err
		}
	}
	if _, err := log.ParseLevel(s.LogLevel); err != nil {
		return errors.Wrap(ErrValidation, err.Error())
	}
	if s.MaxSuperSteps < 0 {
		return errors.Wrapf(ErrValidation, "maxSuperSteps must not be negative, got %d", s.MaxSuperSteps)
	}
	switch s.Transport {
	case TransportLocal:
		if s.Processes < 1 {
			return errors.Wrapf(ErrValidation, "number of processes must be positive, got %d", s.Processes)
		}
		if s.Trace != "" {
			return errors.Wrap(ErrValidation, "trace requires tcp transport")
		}
	case TransportTCP:
		if len(s.Addrs) == 0 {
			return errors.Wrap(ErrValidation, "tcp transport requires addrs")
		}
		if s.Rank < 0 || s.Rank >= len(s.Addrs) {
			return errors.Wrapf(ErrValidation, "rank %d outside group of %d", s.Rank, len(s.Addrs))
		}
		for _, addr := range s.Addrs {
			if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
				return errors.Wrap(ErrValidation, err.Error())
			}
		}
	default:
		return errors.Wrapf(ErrValidation, "don't know how to use transport %q", s.Transport)
	}
	return nil
}

// GroupSize is the number of ranks in the process group.
func (s *Settings) GroupSize() int {
	if s.Transport == TransportTCP {
		return len(s.Addrs)
	}
	return s.Processes
}

// Limit is the upper bound for random matrix values, or zero for the full
// non-negative int32 range.
func (s *Settings) Limit() int {
	if s.ValueLimit == 0 && s.Debug {
		return DebugValueLimit
	}
	return s.ValueLimit
}

func (s *Settings) DialTimeout() time.Duration {
	return time.Duration(s.DialTimeoutSecs) * time.Second
}

func (s *Settings) Level() log.Level {
	level, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Config builds the coordinator configuration for these settings.
func (s *Settings) Config() Config {
	return Config{
		Algorithm:     Algorithm(s.Algorithm),
		Dimension:     s.Dimension,
		Tags:          DefaultTags,
		MaxSuperSteps: s.MaxSuperSteps,
		Verify:        s.Verify,
		Debug:         s.Debug,
	}
}

// NetConfig builds the tcp group configuration for these settings. The
// algorithm and dimension are checked against every peer when joining.
func (s *Settings) NetConfig() group.NetConfig {
	return group.NetConfig{
		Rank:        s.Rank,
		Addrs:       s.Addrs,
		Version:     s.Version,
		DialTimeout: s.DialTimeout(),
		Custom: map[string]string{
			"algorithm": s.Algorithm,
			"dimension": strconv.Itoa(s.Dimension),
		},
	}
}
