package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TheusHen/OpenFSW/beacon"
	"github.com/TheusHen/OpenFSW/logging"
)

var beaconLoop bool

var beaconCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Emit one beacon frame as hex, or start periodic emission",
	RunE:  runBeacon,
}

func init() {
	rootCmd.AddCommand(beaconCmd)
	beaconCmd.Flags().BoolVar(&beaconLoop, "loop", false, "keep emitting at the mode-appropriate interval until interrupted")
}

func runBeacon(cmd *cobra.Command, args []string) error {
	st, err := newStack(globalState, configPath())
	if err != nil {
		return err
	}
	defer st.Close()

	if !beaconLoop {
		frame := st.Beacon.BuildFrame(st.Time.UptimeMs())
		fmt.Println(hex.EncodeToString(beacon.Serialize(frame)))
		return nil
	}

	logging.Info("openfsw-sim: entering beacon emission loop")
	ctx, cancel := runContext()
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			before := st.Beacon.TxCount()
			st.Beacon.Periodic(st.Time.UptimeMs())
			if st.Beacon.TxCount() != before {
				frame := st.Beacon.BuildFrame(st.Time.UptimeMs())
				fmt.Println(hex.EncodeToString(beacon.Serialize(frame)))
			}
		}
	}
}
