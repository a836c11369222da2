package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheusHen/OpenFSW/ccsds"
)

var (
	tcAPID    uint16
	tcService uint8
	tcSubtype uint8
	tcDataHex string
)

var sendTCCmd = &cobra.Command{
	Use:   "send-tc",
	Short: "Build a CCSDS telecommand and feed it to the dispatcher",
	RunE:  runSendTC,
}

func init() {
	rootCmd.AddCommand(sendTCCmd)
	sendTCCmd.Flags().Uint16Var(&tcAPID, "apid", uint16(ccsds.APIDSystem), "destination APID")
	sendTCCmd.Flags().Uint8Var(&tcService, "service", 17, "PUS service type (17 = test/ping)")
	sendTCCmd.Flags().Uint8Var(&tcSubtype, "subtype", 1, "PUS service subtype")
	sendTCCmd.Flags().StringVar(&tcDataHex, "data", "", "command payload, as a hex string")
}

func runSendTC(cmd *cobra.Command, args []string) error {
	data, err := hex.DecodeString(tcDataHex)
	if err != nil {
		return fmt.Errorf("openfsw-sim: --data is not valid hex: %w", err)
	}

	st, err := newStack(globalState, configPath())
	if err != nil {
		return err
	}
	defer st.Close()

	pkt := ccsds.BuildTCHeader(ccsds.APID(tcAPID), tcService, tcSubtype)
	if err := pkt.SetData(data); err != nil {
		return fmt.Errorf("openfsw-sim: attach payload: %w", err)
	}
	pkt.Finalize()

	result := st.Telecommand.Process(&pkt)
	fmt.Printf("status: %s\n", result)

	for {
		tm, err := st.Telemetry.DequeuePacket()
		if err != nil {
			break
		}
		if tm.Secondary.ServiceSubtype == ccsds.PUSSubtypeCommandResponse {
			fmt.Printf("response packet: apid=%v service=%d data=%q\n",
				ccsds.GetAPID(tm.Primary), tm.Secondary.ServiceType, tm.Data)
			continue
		}
		fmt.Printf("ack packet: apid=%v service=%d.%d len=%d\n",
			ccsds.GetAPID(tm.Primary), tm.Secondary.ServiceType, tm.Secondary.ServiceSubtype, len(tm.Data))
	}

	return nil
}
