package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/deepnoodle-ai/robot/errz"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	red   = color.New(color.FgRed).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

func fatal(msg any) {
	fmt.Fprintln(os.Stderr, red(errorText(msg)))
	os.Exit(1)
}

// errorText renders script errors with their instruction stack.
func errorText(msg any) string {
	switch msg := msg.(type) {
	case string:
		return msg
	case error:
		var se *errz.StructuredError
		if errors.As(msg, &se) {
			return strings.TrimRight(se.FriendlyErrorMessage(), "\n")
		}
		return msg.Error()
	default:
		return fmt.Sprintf("%v", msg)
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func isTerminalIO() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// Reads global flags from Viper and adjusts the environment accordingly.
func processGlobalFlags() error {
	if viper.GetBool("no-color") || !isTerminal(os.Stdout) {
		color.NoColor = true
	}
	return setupLogging(viper.GetString("log-level"), viper.GetBool("no-color"))
}

// setupLogging sets the global log level and writes human readable logs to
// terminals and JSON lines otherwise.
func setupLogging(level string, noColor bool) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil || parsed == zerolog.NoLevel {
			return fmt.Errorf("invalid log level %q", level)
		}
		lvl = parsed
	}
	zerolog.SetGlobalLevel(lvl)
	if isTerminal(os.Stderr) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}
