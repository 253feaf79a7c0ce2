package obs

import (
	"os"

	"github.com/ValentinKolb/fieldlog/cmd/util"
	"github.com/ValentinKolb/fieldlog/lib/common"
	"github.com/ValentinKolb/fieldlog/lib/observation"
	"github.com/ValentinKolb/fieldlog/lib/species"
	"github.com/ValentinKolb/fieldlog/lib/store"
	"github.com/spf13/cobra"
)

var (
	config       *common.Config
	catalog      *species.Catalog
	observations *observation.Store
	medium       store.IStore

	// ObsCommands represents the observation command group
	ObsCommands = &cobra.Command{
		Use:                "obs",
		Short:              "Record and query field observations",
		PersistentPreRunE:  setupStore,
		PersistentPostRunE: printMetrics,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)
	// cobra skips post run hooks if a command fails, finalizers always run
	cobra.OnFinalize(closeStore)

	// Add subcommands
	ObsCommands.AddCommand(addCmd)
	ObsCommands.AddCommand(listCmd)
	ObsCommands.AddCommand(deleteCmd)
	ObsCommands.AddCommand(statsCmd)
	ObsCommands.AddCommand(clearCmd)
}

// setupStore opens the medium and the observation store
func setupStore(cmd *cobra.Command, _ []string) error {
	var err error
	if config, err = util.Setup(cmd); err != nil {
		return err
	}
	if catalog, err = util.LoadCatalog(config); err != nil {
		return err
	}
	observations, medium, err = util.OpenObservationStore(config, catalog)
	return err
}

// printMetrics prints the store metrics after a successful command (if enabled)
func printMetrics(_ *cobra.Command, _ []string) error {
	if config.Metrics {
		observations.WritePrometheus(os.Stdout)
	}
	return nil
}

// closeStore closes the medium if this command group opened it
func closeStore() {
	util.CloseMedium(medium)
	medium, observations = nil, nil
}
