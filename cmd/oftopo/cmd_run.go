package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/oftopo/pkg/core"
	"github.com/newtron-network/oftopo/pkg/event"
	"github.com/newtron-network/oftopo/pkg/feed"
	"github.com/newtron-network/oftopo/pkg/oftopo"
	"github.com/newtron-network/oftopo/pkg/statedb"
	"github.com/newtron-network/oftopo/pkg/util"
)

var (
	runEvents   string
	runRegister []string
	runHold     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the adaptor on a JSON-lines event stream",
	Long: `Run the adaptor on the wall clock, reading one step per line.

Each line is a JSON object with an "action" (connect, disconnect,
port-status, link-up, link-down, packet-in, barrier-reply, register,
advance, expect) and its fields. DPIDs are strings. "advance" pauses the
stream for its duration. Malformed lines are skipped with a warning.

Examples:
  oftopo run --events session.jsonl
  oftopo run --register openflow,openflow_discovery < session.jsonl
  tail -f events.jsonl | oftopo run --hold`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if runEvents != "" && runEvents != "-" {
			f, err := os.Open(runEvents)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		k, err := openSinks(ctx, cfg, true)
		if err != nil {
			return err
		}
		res, err := runStream(ctx, in, cfg.AdaptorConfig(), runRegister, runHold, k.attach)
		k.close()
		if err != nil {
			return err
		}

		util.Infof("Applied %d steps (%d failed, %d lines skipped)", res.steps.Load(), res.failed.Load(), res.skipped.Load())
		if err := printSnapshot(cmd.OutOrStdout(), statedb.Capture(res.adaptor), jsonOutput); err != nil {
			return err
		}
		if n := res.failed.Load(); n > 0 {
			return fmt.Errorf("%d steps failed", n)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runEvents, "events", "e", "-", "Event stream file ('-' for stdin)")
	runCmd.Flags().StringSliceVar(&runRegister, "register", oftopo.DefaultRequiredComponents, "Components to register at startup")
	runCmd.Flags().BoolVar(&runHold, "hold", false, "Keep running after the stream ends, until interrupted")
}

// runResult summarizes a live run. The counters are updated from both the
// reader and the loop.
type runResult struct {
	adaptor *oftopo.Adaptor
	steps   atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
}

// runStream runs an adaptor on the wall clock, applying the steps read
// from in until the stream ends (or, with hold, until ctx is done). The
// returned adaptor's loop has stopped, so its state can be read freely.
func runStream(ctx context.Context, in io.Reader, acfg oftopo.Config, register []string, hold bool, attach func(*oftopo.Adaptor)) (*runResult, error) {
	loop := event.NewLoop(event.SystemClock)
	registry := core.NewRegistry()
	a := oftopo.New(loop, registry, acfg)
	if attach != nil {
		attach(a)
	}
	r := feed.NewRunner(loop, nil, registry, a)
	res := &runResult{adaptor: a}

	loop.Post(func() {
		a.Start()
		for _, name := range register {
			if err := r.Register(name); err != nil {
				util.Warnf("Registering %s: %v", name, err)
			}
		}
	})

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	go func() {
		readSteps(ctx, feed.NewStreamReader(in), loop, r, res)
		if !hold {
			loop.Post(loop.Close)
		}
	}()

	err := <-done
	loop.Close()
	a.Close()
	if errors.Is(err, context.Canceled) {
		util.Info("Interrupted")
		return res, nil
	}
	return res, err
}

// readSteps posts each step onto the loop. Advance steps are not posted:
// they pause the reader for their duration.
func readSteps(ctx context.Context, sr *feed.StreamReader, loop *event.Loop, r *feed.Runner, res *runResult) {
	for {
		step, err := sr.Next()
		if err == io.EOF {
			return
		}
		var le *feed.LineError
		if errors.As(err, &le) {
			util.Warnf("Skipping %v", err)
			res.skipped.Add(1)
			continue
		}
		if err != nil {
			util.Errorf("Reading events: %v", err)
			return
		}

		if step.Action == feed.ActionAdvance {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(step.Duration)):
			}
			continue
		}

		line := sr.Line()
		res.steps.Add(1)
		loop.Post(func() {
			if err := r.Apply(step); err != nil {
				res.failed.Add(1)
				util.WithField("line", line).Errorf("%s: %v", step, err)
			}
		})
	}
}
