package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voltfed/voltfed-server/cmd/cli"
	"github.com/voltfed/voltfed-server/pkg/logger"
)

var logMode string

var rootCmd = &cobra.Command{
	Use:   "voltfed-server",
	Short: "VoltFed Federated Learning Coordinator",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch logMode {
		case "debug", "pretty", "info", "prod", "test":
			logger.InitWithMode(logger.LogMode(logMode))
		default:
			logger.InitWithMode(logger.LogModePretty)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cli.RunServer()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "pretty", "Log mode: debug, pretty, info, prod, test")

	agentCmd.Flags().String("client-id", "", "Unique client identifier for this site")
	agentCmd.Flags().String("name", "", "Display name of the site")
	agentCmd.Flags().String("model", "", "Model name to participate in")
	agentCmd.Flags().String("server-url", "http://localhost:8080", "Coordinator base URL")
	agentCmd.Flags().StringSlice("capabilities", []string{"image"}, "Data modalities available at this site")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(agentCmd)
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the federation coordinator server",
	Run: func(cmd *cobra.Command, args []string) {
		cli.RunServer()
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run a client agent for one round",
	Run: func(cmd *cobra.Command, args []string) {
		clientID, _ := cmd.Flags().GetString("client-id")
		name, _ := cmd.Flags().GetString("name")
		model, _ := cmd.Flags().GetString("model")
		serverURL, _ := cmd.Flags().GetString("server-url")
		capabilities, _ := cmd.Flags().GetStringSlice("capabilities")

		if clientID == "" || model == "" {
			fmt.Fprintln(os.Stderr, "both --client-id and --model are required")
			os.Exit(1)
		}

		cli.RunAgent(cli.AgentOptions{
			ClientID:     clientID,
			DisplayName:  name,
			ModelName:    model,
			ServerURL:    serverURL,
			Capabilities: capabilities,
		})
	},
}
