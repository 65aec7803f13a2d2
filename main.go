package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const progName = "bt-autoconnect"

const usageText = `Usage: ` + progName + ` [OPTIONS]...

Connect trusted bluetooth devices on every powered adapter.

  -d, --daemon      Monitor adapters; auto-connect trusted devices on power-on
  -h, --help        Print help and exit
  -v, --verbose     Verbose diagnostics
`

func parseArgs(args []string) (options, bool, error) {
	fs := pflag.NewFlagSet(progName, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var opts options
	var help bool
	fs.BoolVarP(&opts.daemon, "daemon", "d", false, "monitor adapters and auto-connect on power-on")
	fs.BoolVarP(&help, "help", "h", false, "print help and exit")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose diagnostics")
	if err := fs.Parse(args); err != nil {
		return opts, false, err
	}
	if fs.NArg() > 0 {
		return opts, false, fmt.Errorf("%q: command not recognized", fs.Arg(0))
	}
	return opts, help, nil
}

func main() {
	opts, help, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", progName, err)
		fmt.Fprintf(os.Stderr, "Try '%s --help' for more information.\n", progName)
		os.Exit(1)
	}
	if help {
		fmt.Print(usageText)
		return
	}

	setProcessName(progName)

	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	bz, err := newBluez()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", progName, err)
		os.Exit(1)
	}

	// SIGUSR1/SIGUSR2/SIGPIPE would otherwise terminate the process.
	signal.Ignore(syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGPIPE)
	osSig := make(chan os.Signal, 1)
	signal.Notify(osSig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	code := newAutoconnector(bz, opts, log).run(osSig)
	bz.close()
	os.Exit(code)
}
