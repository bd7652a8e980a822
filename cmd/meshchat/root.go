package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/1ureka/1ureka.net.chat/internal/util"
)

var version = "dev"

var debugMode bool

var rootCmd = &cobra.Command{
	Use:     "meshchat",
	Short:   "Room-based chat with direct WebRTC delivery and server relay fallback",
	Long:    `Meshchat is a room-based chat tool. A lightweight relay server handles room membership and WebRTC signaling; once participants have negotiated direct data channels, messages flow peer to peer and the server only relays for members that are not linked yet.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debugMode {
			util.EnableDebug()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(joinCmd)
}

// Execute runs the root command. Called once from main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}
