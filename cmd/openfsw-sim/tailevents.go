package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TheusHen/OpenFSW/eventlog"
	"github.com/TheusHen/OpenFSW/types"
)

var (
	tailSeverity string
	tailMax      int
	tailPage     bool
)

var tailEventsCmd = &cobra.Command{
	Use:   "tail-events",
	Short: "Print the event log, optionally paged a screen at a time",
	RunE:  runTailEvents,
}

func init() {
	rootCmd.AddCommand(tailEventsCmd)
	tailEventsCmd.Flags().StringVar(&tailSeverity, "severity", "DEBUG", "minimum severity to show (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	tailEventsCmd.Flags().IntVar(&tailMax, "max", eventlog.Size, "maximum number of entries to print")
	tailEventsCmd.Flags().BoolVar(&tailPage, "page", false, "pause every screenful for a keypress (raw terminal mode)")
}

func severityByName(name string) (types.Severity, bool) {
	name = strings.ToUpper(name)
	for i := 0; i < 6; i++ {
		s := types.Severity(i)
		if s.String() == name {
			return s, true
		}
	}
	return types.SeverityDebug, false
}

func runTailEvents(cmd *cobra.Command, args []string) error {
	minSev, ok := severityByName(tailSeverity)
	if !ok {
		return fmt.Errorf("openfsw-sim: unknown severity %q", tailSeverity)
	}

	st, err := newStack(globalState, configPath())
	if err != nil {
		return err
	}
	defer st.Close()

	entries := st.Events.Export(tailMax, minSev)
	if len(entries) == 0 {
		fmt.Println("(event log empty)")
		return nil
	}

	height := 24
	if _, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && h > 0 {
		height = h
	}

	for i, e := range entries {
		fmt.Printf("%8dms [%-8s] %-12s #%-5d %s\n", e.TimestampMs, e.Severity, e.Subsystem, e.EventID, e.Message)
		if tailPage && (i+1)%(height-1) == 0 && i+1 < len(entries) {
			if err := waitForKeypress(); err != nil {
				return nil
			}
		}
	}
	return nil
}

// waitForKeypress puts the terminal into raw mode just long enough to
// read one byte, the same pager-friendly pattern exec.go uses for
// interactive sessions.
func waitForKeypress() error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil
	}
	defer term.Restore(fd, old)

	fmt.Fprint(os.Stderr, "-- more --")
	r := bufio.NewReader(os.Stdin)
	_, err = r.ReadByte()
	fmt.Fprint(os.Stderr, "\r           \r")
	return err
}
