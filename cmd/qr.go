package cmd

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/seaquell/outpost/internal/config"
)

func qrCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "qr [url]",
		Short: "Render the controller URL as a terminal QR code",
		Long: "Renders a scannable QR code for the controller dashboard so an\n" +
			"operator can open it on a phone. With no argument, uses the\n" +
			"configured http_base (falling back to the WebSocket endpoint).",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			} else {
				cfg, err := config.Load(resolveConfigPath())
				if err != nil {
					return err
				}
				target = cfg.HTTPBase
				if target == "" {
					target = cfg.Endpoint
				}
			}

			q, err := qrcode.New(target, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("render qr: %w", err)
			}
			fmt.Println(target)
			fmt.Print(q.ToSmallString(false))
			return nil
		},
	}
}
