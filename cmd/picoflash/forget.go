package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Forget the remembered device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}

		id, err := a.store.DeviceID()
		if err != nil {
			return err
		}
		if err := a.store.Clear(); err != nil {
			return err
		}

		if id == "" {
			fmt.Fprintln(a.out, "No device remembered")
			return nil
		}
		fmt.Fprintf(a.out, "Forgot %s\n", id)
		return nil
	},
}
