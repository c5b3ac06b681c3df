// n2kctl is a companion CLI for operating and exercising a running n2kd:
// pulling a one-shot snapshot, following the live stream, or inspecting the
// daemon's diagnostic trace journal.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/rexliu/n2kd/pkg/diagnostics"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	var err error
	switch os.Args[1] {
	case "snapshot":
		err = snapshotCommand(os.Args[2:])
	case "stream":
		err = streamCommand(os.Args[2:])
	case "diag":
		err = diagCommand(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s error: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: n2kctl <command> [flags]

commands:
  snapshot -addr host:port   fetch the current state snapshot and print it
  stream   -addr host:port   follow every ingested record as it arrives
  diag     -trace path       print recent events from a diagnostic trace`)
}

// snapshotCommand connects to the JSON port, reads until the server closes
// the connection (the one-shot snapshot protocol of spec §6), and prints
// the received JSON verbatim.
func snapshotCommand(args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	addr := fs.String("addr", "localhost:2597", "JSON port address")
	_ = fs.Parse(args)

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	defer conn.Close()

	body, err := io.ReadAll(conn)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	fmt.Println(string(body))
	return nil
}

// streamCommand connects, sends the "-\n" upgrade line, then prints every
// subsequent record until disconnect.
func streamCommand(args []string) error {
	fs := flag.NewFlagSet("stream", flag.ExitOnError)
	addr := fs.String("addr", "localhost:2597", "JSON port address")
	_ = fs.Parse(args)

	conn, err := net.DialTimeout("tcp", *addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("-\n")); err != nil {
		return fmt.Errorf("send stream request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}

// diagCommand opens the diagnostic trace database and prints recent events.
// It only issues reads, though the database is not opened in a read-only
// mode. This is the only reader of the trace journal; it never
// feeds back into a running daemon's store.
func diagCommand(args []string) error {
	fs := flag.NewFlagSet("diag", flag.ExitOnError)
	tracePath := fs.String("trace", "n2kd-trace.db", "diagnostic trace database path")
	limit := fs.Int("n", 50, "max events to print")
	_ = fs.Parse(args)

	events, err := diagnostics.Recent(*tracePath, *limit)
	if err != nil {
		return fmt.Errorf("read trace %s: %w", *tracePath, err)
	}
	for _, e := range events {
		if e.Line != "" {
			fmt.Printf("%d %s %s %s\n", e.At, e.Kind, e.Detail, e.Line)
		} else {
			fmt.Printf("%d %s %s\n", e.At, e.Kind, e.Detail)
		}
	}
	return nil
}
