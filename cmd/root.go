package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dList/cmd/list"
	"github.com/ValentinKolb/dList/cmd/serve"
	"github.com/ValentinKolb/dList/cmd/util"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dlist",
		Short: "in-memory list store with blocking commands",
		Long: fmt.Sprintf(`dList (v%s)

An in-memory list store written in Go. Lists are stored under string keys
and support push, pop, range and positional commands as well as blocking
pops and moves that wait until an element becomes available.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dList",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dList v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(list.ListCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
