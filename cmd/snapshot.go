package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seaquell/outpost/internal/platform"
)

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the environment snapshot this host would announce",
		RunE: func(cmd *cobra.Command, args []string) error {
			collector := &platform.HostCollector{}
			snap := collector.Collect(context.Background())
			out, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
