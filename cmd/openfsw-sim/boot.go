package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheusHen/OpenFSW/logging"
	"github.com/TheusHen/OpenFSW/types"
)

var (
	bootCause string
	bootLoop  bool
	bootTick  time.Duration
)

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run the boot sequencer once and optionally drive the scheduler",
	RunE:  runBoot,
}

func init() {
	rootCmd.AddCommand(bootCmd)
	bootCmd.Flags().StringVar(&bootCause, "cause", "", "simulate this reset cause (power_on, pin, watchdog, software, brown_out, low_power, unknown)")
	bootCmd.Flags().BoolVar(&bootLoop, "loop", false, "keep driving the scheduler until interrupted (Ctrl-C)")
	bootCmd.Flags().DurationVar(&bootTick, "tick", 100*time.Millisecond, "scheduler tick period when --loop is set")
}

func causeByName(name string) (types.ResetCause, bool) {
	name = strings.ToUpper(name)
	for i := 0; i < 8; i++ {
		c := types.ResetCause(i)
		if c.String() == name {
			return c, true
		}
	}
	return types.ResetUnknown, false
}

func runBoot(cmd *cobra.Command, args []string) error {
	var causePtr *types.ResetCause
	if bootCause != "" {
		c, ok := causeByName(bootCause)
		if !ok {
			return fmt.Errorf("openfsw-sim: unknown reset cause %q", bootCause)
		}
		causePtr = &c
	}

	st, err := newStackWithCause(globalState, configPath(), causePtr)
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Printf("mode:       %s\n", st.Boot.Mode)
	fmt.Printf("cause:      %s\n", st.Boot.Cause)
	fmt.Printf("boot count: %d\n", st.Boot.BootCount)
	fmt.Printf("safe forced: %v\n", st.Boot.SafeForced)
	fmt.Printf("record:     %+v\n", st.Boot.Record)

	if !bootLoop {
		return nil
	}

	logging.Info("openfsw-sim: entering scheduler drive loop", "tick", bootTick.String())
	ctx, cancel := runContext()
	defer cancel()

	ticker := time.NewTicker(bootTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("openfsw-sim: interrupted, shutting down")
			return nil
		case <-ticker.C:
			st.Mode.Process()
			st.Scheduler.Step(uint32(bootTick.Milliseconds()))
		}
	}
}
