package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rexliu/n2kd/pkg/config"
	"github.com/rexliu/n2kd/pkg/diagnostics"
	"github.com/rexliu/n2kd/pkg/logging"
	"github.com/rexliu/n2kd/pkg/n2k"
	"github.com/rexliu/n2kd/pkg/netloop"
)

const defaultPort = 2597

// usage is printed (to stderr, followed by exit code 1) on any argument
// error, matching the original n2kd's fprintf(stderr, usage); exit(1).
const usage = "usage: n2kd [-d] [-q] [-o] [-r] [-p <port>]"

func main() {
	fs := flag.NewFlagSet("n2kd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	debug := fs.Bool("d", false, "debug log level")
	quiet := fs.Bool("q", false, "error log level")
	copyOut := fs.Bool("o", false, "stdout mode: tee client input into the ingester")
	sinkOut := fs.Bool("r", false, "stdout mode: discard client input")
	port := fs.Int("p", defaultPort, "JSON port; NMEA 0183 listens on port+1")
	if err := fs.Parse(os.Args[1:]); err != nil {
		// fs.Parse already printed the flag package's own message; add the
		// spec-mandated usage line and exit 1 rather than flag's default 2.
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	if *copyOut && *sinkOut {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	logger := logging.New("n2kd")

	cfg, err := config.Resolve(0)
	if err != nil {
		logger.Printf("fatal: load config: %v", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Logging.Level = "debug"
	} else if *quiet {
		cfg.Logging.Level = "error"
	}

	var trace *diagnostics.Trace
	if cfg.Diagnostics.Enabled {
		trace, err = diagnostics.Open(cfg.Diagnostics.TracePath)
		if err != nil {
			logger.Printf("fatal: open diagnostic trace: %v", err)
			os.Exit(1)
		}
		defer trace.Close()
	}

	onRotate := func(detail string) {
		logger.Printf("logrotate: %s", detail)
		if trace != nil {
			trace.RecordConnection(time.Now().Unix(), "logrotate "+detail)
		}
	}
	if err := logger.Configure(cfg.Logging, onRotate); err != nil {
		logger.Printf("fatal: configure logging: %v", err)
		os.Exit(1)
	}

	stdoutMode := netloop.KindDataOutputStream
	switch {
	case *copyOut:
		stdoutMode = netloop.KindDataOutputCopy
	case *sinkOut:
		stdoutMode = netloop.KindDataOutputSink
	}

	// Ignore SIGPIPE: writes to a closed peer must fail by return value,
	// never by signal (spec §4.1).
	signal.Ignore(syscall.SIGPIPE)

	store := n2k.NewStore()
	srv, err := netloop.New(netloop.Options{
		Store:         store,
		Port:          *port,
		StdoutMode:    stdoutMode,
		DescriptorCap: cfg.Server.DescriptorCap,
		OnReject: func(at int64, line, reason string) {
			logger.Printf("reject: %s (%s)", reason, truncate(line, 120))
			if trace != nil {
				trace.RecordReject(at, reason, line)
			}
		},
		OnConnection: func(at int64, detail string) {
			logger.Printf("conn: %s", detail)
			if trace != nil {
				trace.RecordConnection(at, detail)
			}
		},
	})
	if err != nil {
		logger.Printf("fatal: %v", err)
		os.Exit(1)
	}

	logger.Printf("listening: json=%d nmea0183=%d", *port, *port+1)
	if err := srv.Run(); err != nil {
		logger.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
