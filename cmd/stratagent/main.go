package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var opts rootOptions

	root := &cobra.Command{
		Use:   "stratagent",
		Short: "Business strategy agent",
		Long: `stratagent - define your business idea and let the agent help you refine
it and develop a comprehensive strategy.

The workflow has four steps, each seeded with the output of the previous one:
  1. Refine the idea
  2. Identify key elements and processes
  3. Define marketing strategies
  4. Prepare the business strategy and plan`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.json", "config file (.json or .yaml)")
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "dotenv file with OPENAI_API_KEY")

	root.AddCommand(consoleCmd(&opts))
	root.AddCommand(telegramCmd(&opts))
	root.AddCommand(discordCmd(&opts))
	root.AddCommand(historyCmd(&opts))
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
