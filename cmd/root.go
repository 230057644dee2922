package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/mcbs/cmd/ping"
	"github.com/ValentinKolb/mcbs/cmd/serve"
	"github.com/ValentinKolb/mcbs/cmd/stats"
	"github.com/ValentinKolb/mcbs/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:     "mcbs",
		Short:   "memcached binary protocol server",
		Version: Version,
		Long: fmt.Sprintf(`mcbs (v%s)

A server for the memcached binary protocol. It decodes request frames,
dispatches them by opcode and honours the quiet opcodes that let clients
pipeline requests. Data commands are answered as cache misses.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mcbs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mcbs v%s\n", Version)
		},
	}
)

func init() {
	// load .env files and environment variables
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(stats.StatsCmd)
	RootCmd.AddCommand(ping.PingCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
