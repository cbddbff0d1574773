package list

import (
	"github.com/ValentinKolb/dList/cmd/util"
	"github.com/ValentinKolb/dList/lib/store"
	"github.com/ValentinKolb/dList/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcStore store.IListStore

	// ListCommands represents the list command group
	ListCommands = &cobra.Command{
		Use:                "list",
		Short:              "Perform list operations",
		PersistentPreRunE:  setupListClient,
		PersistentPostRunE: closeListClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the list command
	util.SetupRPCClientFlags(ListCommands)

	ListCommands.PersistentFlags().Int("shard", 100, util.WrapString("ID of the shard to connect to"))

	// Add subcommands
	ListCommands.AddCommand(lpushCmd)
	ListCommands.AddCommand(rpushCmd)
	ListCommands.AddCommand(lpushxCmd)
	ListCommands.AddCommand(rpushxCmd)
	ListCommands.AddCommand(lpopCmd)
	ListCommands.AddCommand(rpopCmd)
	ListCommands.AddCommand(llenCmd)
	ListCommands.AddCommand(lrangeCmd)
	ListCommands.AddCommand(lindexCmd)
	ListCommands.AddCommand(lsetCmd)
	ListCommands.AddCommand(linsertCmd)
	ListCommands.AddCommand(lremCmd)
	ListCommands.AddCommand(rpoplpushCmd)
	ListCommands.AddCommand(blpopCmd)
	ListCommands.AddCommand(brpopCmd)
	ListCommands.AddCommand(brpoplpushCmd)
	ListCommands.AddCommand(flushCmd)
	ListCommands.AddCommand(infoCmd)
	ListCommands.AddCommand(perfTestCmd)
}

// setupListClient initializes the RPC list store client
func setupListClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	shardId := util.GetShardID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the list store client
	rpcStore, err = client.NewRPCListStore(
		shardId,
		*config,
		t,
		s,
	)

	return err
}

func closeListClient(_ *cobra.Command, _ []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}
