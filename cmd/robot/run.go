package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/deepnoodle-ai/robot/debug"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/deepnoodle-ai/robot/program"
	"github.com/deepnoodle-ai/robot/vm"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a robot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions{
			breakpoints: viper.GetStringSlice("break"),
			debug:       viper.GetBool("debug"),
			argument:    viper.GetString("arg"),
			baseDir:     viper.GetString("base-dir"),
		}
		if opts.debug && !isTerminalIO() {
			return errors.New("--debug needs an interactive terminal")
		}
		result, err := runRobot(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}
		output, err := getOutput(result, viper.GetString("output"), !color.NoColor)
		if err != nil {
			return err
		}
		if output != "" {
			fmt.Println(output)
		}
		return nil
	},
}

func init() {
	flags := runCmd.Flags()
	flags.StringArrayP("break", "b", nil, "pause at a line, as robot:line or line (repeatable)")
	flags.Bool("debug", false, "start paused in the interactive debugger")
	flags.String("arg", "", "argument passed to the robot, as JSON")
	_ = viper.BindPFlags(flags)
}

type runOptions struct {
	breakpoints []string
	debug       bool
	argument    string
	baseDir     string
}

// runRobot loads and runs the robot at path, returning the value it returned.
func runRobot(ctx context.Context, path string, opts runOptions) (object.Object, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	output := debug.NewLogOutput(log.Logger)
	dbg := debug.New(debug.WithOutputHandler(output))
	loader := program.NewLoader(program.WithBaseDir(opts.baseDir), program.WithDebugger(dbg))

	robot, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	for _, spec := range opts.breakpoints {
		bp, err := parseBreakpoint(loader, path, spec)
		if err != nil {
			return nil, err
		}
		dbg.AddBreakpoint(bp)
	}

	runOpts := []vm.Option{vm.WithOutputHandler(output)}
	if opts.argument != "" {
		arg, err := object.FromJSON([]byte(opts.argument))
		if err != nil {
			return nil, fmt.Errorf("invalid --arg: %w", err)
		}
		runOpts = append(runOpts, vm.WithArgument(arg))
	}

	stop := stopOnInterrupt(dbg)
	defer stop()

	if opts.debug {
		console := newConsole(dbg, robot.ID(), os.Stdout)
		dbg.StepIn()
		return console.Run(ctx, robot, runOpts...)
	}
	return vm.Run(ctx, robot, dbg, runOpts...)
}

// parseBreakpoint reads "line" as a line of the robot at path and
// "robot:line" as a line of another robot, resolved like path.
func parseBreakpoint(loader *program.Loader, path, spec string) (vm.Breakpoint, error) {
	target, lineText := path, spec
	if i := strings.LastIndex(spec, ":"); i >= 0 {
		target, lineText = spec[:i], spec[i+1:]
	}
	line, err := strconv.Atoi(lineText)
	if err != nil || line < 1 {
		return vm.Breakpoint{}, fmt.Errorf("invalid breakpoint %q: expected robot:line", spec)
	}
	id, err := loader.ID(target)
	if err != nil {
		return vm.Breakpoint{}, fmt.Errorf("invalid breakpoint %q: %w", spec, err)
	}
	return vm.Breakpoint{Robot: id, Line: line}, nil
}

// stopOnInterrupt stops the run on SIGINT or SIGTERM. The returned function
// releases the signal handler.
func stopOnInterrupt(dbg vm.Debugger) func() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-c; ok {
			log.Warn().Msg("interrupted, stopping robot")
			dbg.Stop()
		}
	}()
	return func() {
		signal.Stop(c)
		close(c)
	}
}
