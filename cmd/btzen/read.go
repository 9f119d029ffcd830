package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wrobell/btzen"
	"github.com/wrobell/btzen/device"
	"github.com/wrobell/btzen/internal/config"
)

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <manifest.yaml> <mac>",
		Short: "Connect a manifest's devices and print one reading from the device at <mac>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifestPath, mac := args[0], args[1]
			return withDevice(cmd.Context(), manifestPath, mac, func(ctx context.Context, s *btzen.Session, d device.Descriptor) error {
				value, err := s.Read(ctx, d)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %v\n", d, value)
				return nil
			})
		},
	}
	return cmd
}

// withDevice loads manifestPath, opens a session for every device it
// names, waits for mac to become reachable, and invokes fn with the
// first descriptor belonging to mac — the pattern every single-shot
// subcommand (read, write) shares.
func withDevice(ctx context.Context, manifestPath, mac string, fn func(context.Context, *btzen.Session, device.Descriptor) error) error {
	manifest, err := config.Load(manifestPath)
	if err != nil {
		return err
	}
	devices, err := manifest.Descriptors()
	if err != nil {
		return err
	}

	var target *device.Descriptor
	for i := range devices {
		if devices[i].MAC == mac {
			target = &devices[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("btzen: no device for mac %s in %s", mac, manifestPath)
	}

	session, err := btzen.Connect(ctx, devices, manifest.Adapter, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.WaitConnected(ctx, mac); err != nil {
		return err
	}
	return fn(ctx, session, *target)
}
