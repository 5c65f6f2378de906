// MediaClaw - Telegram media to Telegraph relay bot

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/mediaclaw/cmd/mediaclaw/internal"
	"github.com/tinyland-inc/mediaclaw/cmd/mediaclaw/internal/relay"
	"github.com/tinyland-inc/mediaclaw/cmd/mediaclaw/internal/version"
)

func NewMediaclawCommand() *cobra.Command {
	short := fmt.Sprintf("%s mediaclaw - Media to Telegraph relay v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "mediaclaw",
		Short:   short,
		Example: "mediaclaw relay",
	}

	cmd.AddCommand(
		relay.NewRelayCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewMediaclawCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
