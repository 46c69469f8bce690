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

// meshsort sorts a random square matrix into snake order with a parallel
// two-dimensional sorting network.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cmars/meshsort"
	"github.com/cmars/meshsort/group"
	"github.com/cmars/meshsort/sortnet"
)

type options struct {
	config     string
	procs      int
	transport  string
	rank       int
	addrs      string
	seed       int64
	debug      bool
	verify     bool
	maxSteps   int
	logLevel   string
	trace      string
	cpuprofile string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	cmd := rootCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stdout, "Error:", err)
		return 1
	}
	return 0
}

func rootCommand(stdout io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "meshsort",
		Short:         "Parallel two-dimensional sorting networks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.config, "config", "", "toml settings file")
	flags.IntVar(&opts.procs, "procs", sortnet.DefaultProcesses, "number of processes in a local group")
	flags.StringVar(&opts.transport, "transport", sortnet.DefaultTransport, "process group transport: local or tcp")
	flags.IntVar(&opts.rank, "rank", 0, "rank of this process in a tcp group")
	flags.StringVar(&opts.addrs, "addrs", "", "comma-separated listen addresses of every rank in a tcp group")
	flags.Int64Var(&opts.seed, "seed", 0, "random seed for the matrix (0 picks one from the clock)")
	flags.BoolVar(&opts.debug, "debug", false, "small values, and print the initial and sorted matrices")
	flags.BoolVar(&opts.verify, "verify", false, "check that sorting preserved every value")
	flags.IntVar(&opts.maxSteps, "max-steps", 0, "give up transposition sort after this many passes (0 for no limit)")
	flags.StringVar(&opts.logLevel, "log-level", sortnet.DefaultLogLevel, "log level")
	flags.StringVar(&opts.trace, "trace", "", "write every frame sent by this rank to a file (tcp)")
	flags.StringVar(&opts.cpuprofile, "cpuprofile", "", "write a cpu profile to this directory")
	root.AddCommand(
		sortCommand(sortnet.ShearSort, "dimension must equal the number of processes", opts, stdout),
		sortCommand(sortnet.OETSort, "dimension must be divisible by the number of processes", opts, stdout),
	)
	return root
}

func sortCommand(alg sortnet.Algorithm, rule string, opts *options, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   string(alg) + " <dimension>",
		Short: fmt.Sprintf("Sort a square matrix with %s; %s", alg, rule),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := opts.settings(cmd, alg, args[0])
			if err != nil {
				return err
			}
			if opts.cpuprofile != "" {
				defer profile.Start(profile.CPUProfile, profile.ProfilePath(opts.cpuprofile), profile.NoShutdownHook).Stop()
			}
			return sortMatrix(cmd.Context(), settings, stdout)
		},
	}
}

// settings loads the config file, if any, and applies the flags given on
// the command line over it.
func (opts *options) settings(cmd *cobra.Command, alg sortnet.Algorithm, dimension string) (*sortnet.Settings, error) {
	settings := sortnet.DefaultSettings()
	if opts.config != "" {
		var err error
		if settings, err = sortnet.LoadSettings(opts.config); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("procs") {
		settings.Processes = opts.procs
	}
	if flags.Changed("transport") {
		settings.Transport = opts.transport
	}
	if flags.Changed("rank") {
		settings.Rank = opts.rank
	}
	if flags.Changed("addrs") {
		settings.Addrs = strings.Split(opts.addrs, ",")
	}
	if flags.Changed("seed") {
		settings.Seed = opts.seed
	}
	if flags.Changed("debug") {
		settings.Debug = opts.debug
	}
	if flags.Changed("verify") {
		settings.Verify = opts.verify
	}
	if flags.Changed("max-steps") {
		settings.MaxSuperSteps = opts.maxSteps
	}
	if flags.Changed("log-level") {
		settings.LogLevel = opts.logLevel
	}
	if flags.Changed("trace") {
		settings.Trace = opts.trace
	}
	n, err := strconv.Atoi(dimension)
	if err != nil {
		return nil, errors.Wrapf(sortnet.ErrValidation, "invalid argument %q for dimension of square matrix", dimension)
	}
	settings.Algorithm = string(alg)
	settings.Dimension = n
	if err := settings.Check(); err != nil {
		return nil, err
	}
	if err := sortnet.Validate(alg, n, settings.GroupSize()); err != nil {
		return nil, err
	}
	return settings, nil
}

func sortMatrix(ctx context.Context, settings *sortnet.Settings, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log.SetLevel(settings.Level())
	var report *sortnet.Report
	switch settings.Transport {
	case sortnet.TransportTCP:
		var err error
		if report, err = joinGroup(ctx, settings); err != nil {
			return err
		}
	default:
		var mu sync.Mutex
		err := group.RunLocal(ctx, settings.Processes, func(ctx context.Context, comm group.Comm) error {
			r, err := runRank(ctx, comm, settings)
			if r != nil {
				mu.Lock()
				report = r
				mu.Unlock()
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	if report == nil {
		return nil
	}
	if settings.Debug {
		if err := report.WriteDebug(stdout); err != nil {
			return err
		}
	}
	return report.WriteSummary(stdout)
}

func joinGroup(ctx context.Context, settings *sortnet.Settings) (*sortnet.Report, error) {
	config := settings.NetConfig()
	if settings.Trace != "" {
		f, err := os.Create(settings.Trace)
		if err != nil {
			return nil, errors.Wrap(err, "create trace file")
		}
		defer f.Close()
		config.Trace = f
	}
	comm, err := group.Dial(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sortnet.ErrTransport, err)
	}
	report, err := runRank(ctx, comm, settings)
	if err != nil {
		comm.Abort(err)
		return nil, err
	}
	return report, comm.Close()
}

func runRank(ctx context.Context, comm group.Comm, settings *sortnet.Settings) (*sortnet.Report, error) {
	coord, err := sortnet.NewCoordinator(comm, settings.Config())
	if err != nil {
		return nil, err
	}
	var m *meshsort.Matrix
	if comm.Rank() == group.Controller {
		log.Infoln("Initializing matrix...")
		if m, err = sortnet.Allocate(comm.Rank(), settings.Dimension); err != nil {
			return nil, err
		}
		seed := settings.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		log.Debugln("seed:", seed)
		m.Fill(rand.New(rand.NewSource(seed)), settings.Limit())
	}
	return coord.Run(ctx, m)
}
