package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wrobell/btzen"
	"github.com/wrobell/btzen/device"
)

func newWriteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write <manifest.yaml> <mac> <hex-bytes>",
		Short: "Connect a manifest's devices and write hex-encoded bytes to the serial device at <mac>",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, mac, hexData := args[0], args[1], args[2]
			data, err := hex.DecodeString(hexData)
			if err != nil {
				return fmt.Errorf("btzen: invalid hex payload: %w", err)
			}
			return withDevice(cmd.Context(), manifestPath, mac, func(ctx context.Context, s *btzen.Session, d device.Descriptor) error {
				if err := s.Write(ctx, d, data); err != nil {
					return err
				}
				fmt.Printf("%s: wrote %d byte(s)\n", d, len(data))
				return nil
			})
		},
	}
	return cmd
}
