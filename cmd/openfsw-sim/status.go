package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheusHen/OpenFSW/fdir"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Dump mode, FDIR, telemetry and telecommand state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := newStack(globalState, configPath())
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Printf("mode:            %s (previous %s, %s in mode)\n", st.Mode.Current(), st.Mode.Previous(), st.Mode.TimeInMode())
	fmt.Printf("battery SOC:     %d%%\n", st.EPS.SOC())
	fmt.Printf("solar power:     %d mW\n", st.EPS.SolarPower())
	fmt.Printf("low power mode:  %v\n", st.EPS.IsLowPower())
	fmt.Printf("health status:   %s (errors=%d warnings=%d)\n", st.Health.GetStatus(), st.Health.GetData().ErrorCount, st.Health.GetData().WarningCount)

	fmt.Println("\nFDIR fault occurrences:")
	for i := 0; i < fdir.FaultCount; i++ {
		f := fdir.FaultType(i)
		if n := st.FDIR.FaultCountOf(f); n > 0 {
			fmt.Printf("  %-16s %d\n", f, n)
		}
	}

	generated, queued, sent, overflows := st.Telemetry.Stats()
	fmt.Printf("\ntelemetry: queue_depth=%d generated=%d queued=%d sent=%d overflows=%d\n",
		st.Telemetry.QueueCount(), generated, queued, sent, overflows)

	fmt.Printf("telecommand: accepted=%d rejected=%d executed=%d\n",
		st.Telecommand.AcceptedCount(), st.Telecommand.RejectedCount(), st.Telecommand.ExecutedCount())

	fmt.Printf("event log: %d entries\n", st.Events.Count())

	return nil
}
