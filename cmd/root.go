package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the agentcal application
var rootCmd = &cobra.Command{
	Use:   "agentcal",
	Short: "A scheduling assistant that negotiates meeting times",
	Long: `agentcal turns chat messages such as "schedule a review tomorrow at 3pm"
into calendar events. When the requested time is busy it proposes free
alternatives and books the one the user picks.

It can run as:
  - An MCP server for AI assistants (serve --transport stdio)
  - An HTTP service with a JSON API and MCP endpoint (serve --transport streamable-http)
  - A Matrix bot, alongside either transport
  - An interactive terminal chat (chat)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "agentcal version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
