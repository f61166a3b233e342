package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/robot/debug"
	"github.com/deepnoodle-ai/robot/errz"
	"github.com/deepnoodle-ai/robot/object"
	"github.com/deepnoodle-ai/robot/vm"
	"github.com/peterh/liner"
)

const consoleHelp = `Commands:
  c, continue     resume until the next breakpoint
  s, step         step into the next instruction
  n, next         step over nested instructions
  b, break LINE   add a breakpoint in the current robot
  bt              print the instruction stack
  vars            print the visible variables
  p, print NAME   print one variable
  q, quit         stop the robot
  h, help         print this help`

var consoleCommands = []string{"continue", "step", "next", "break", "bt", "vars", "print", "quit", "help"}

// console is the interactive debugger front end. The robot runs on its own
// goroutine; whenever it pauses, the console prompts for commands until one
// of them lets the robot go on.
type console struct {
	dbg    *debug.RobotDebugger
	robot  vm.RobotID
	out    io.Writer
	paused chan debug.PauseEvent
	ln     *liner.State
}

func newConsole(dbg *debug.RobotDebugger, robot vm.RobotID, out io.Writer) *console {
	c := &console{dbg: dbg, robot: robot, out: out, paused: make(chan debug.PauseEvent, 1)}
	dbg.AddListener(debug.ListenerFuncs{
		Paused: func(event debug.PauseEvent) { c.paused <- event },
	})
	return c
}

// Run runs the robot and serves the prompt until it finishes.
func (c *console) Run(ctx context.Context, robot *vm.Robot, options ...vm.Option) (object.Object, error) {
	c.ln = liner.NewLiner()
	defer c.ln.Close()
	c.ln.SetCtrlCAborts(true)
	c.ln.SetCompleter(func(line string) []string {
		var out []string
		for _, cmd := range consoleCommands {
			if strings.HasPrefix(cmd, line) {
				out = append(out, cmd)
			}
		}
		return out
	})

	type result struct {
		value object.Object
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := vm.Run(ctx, robot, c.dbg, options...)
		done <- result{value: value, err: err}
	}()

	for {
		select {
		case res := <-done:
			return res.value, res.err
		case event := <-c.paused:
			c.prompt(event)
		}
	}
}

func (c *console) prompt(event debug.PauseEvent) {
	fmt.Fprintf(c.out, "%s %s\n", bold("paused at"), event.Position)
	for {
		line, err := c.ln.Prompt("(robot) ")
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(c.out, red(err.Error()))
			}
			c.dbg.Stop()
			return
		}
		if strings.TrimSpace(line) != "" {
			c.ln.AppendHistory(line)
		}
		if c.execute(line) {
			return
		}
	}
}

// execute runs one console command and reports whether the robot was let
// go.
func (c *console) execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "c", "continue":
		c.dbg.Resume()
		return true
	case "s", "step":
		c.dbg.StepIn()
		return true
	case "n", "next":
		c.dbg.StepOver()
		return true
	case "q", "quit":
		c.dbg.Stop()
		return true
	case "b", "break":
		line, err := strconv.Atoi(arg)
		if err != nil || line < 1 {
			fmt.Fprintln(c.out, red("usage: break LINE"))
			return false
		}
		c.dbg.AddBreakpoint(vm.Breakpoint{Robot: c.robot, Line: line})
		fmt.Fprintf(c.out, "breakpoint at %s:%d\n", c.robot, line)
	case "bt", "backtrace":
		fmt.Fprint(c.out, errz.FormatStackTrace(c.dbg.Frames()))
	case "vars":
		c.printVariables("")
	case "p", "print":
		if arg == "" {
			fmt.Fprintln(c.out, red("usage: print NAME"))
			return false
		}
		c.printVariables(arg)
	case "h", "help":
		fmt.Fprintln(c.out, consoleHelp)
	default:
		fmt.Fprintf(c.out, "unknown command %q, type help for a list\n", fields[0])
	}
	return false
}

// printVariables prints the variables visible where the robot is paused,
// or only the one with the given name.
func (c *console) printVariables(name string) {
	decls, err := c.dbg.Variables(c.dbg.PausedOn())
	if err != nil {
		fmt.Fprintln(c.out, red(err.Error()))
		return
	}
	found := false
	for _, decl := range decls {
		if name != "" && decl.Name() != name {
			continue
		}
		found = true
		fmt.Fprintf(c.out, "%s = %s\n", decl.Name(), c.dbg.VariableValue(decl, 1).Inspect())
	}
	if name != "" && !found {
		fmt.Fprintf(c.out, "no variable %q here\n", name)
	}
}
