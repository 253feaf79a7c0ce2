package db

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/fieldlog/cmd/util"
	"github.com/ValentinKolb/fieldlog/lib/common"
	"github.com/ValentinKolb/fieldlog/lib/store"
	"github.com/spf13/cobra"
)

var (
	config *common.Config
	medium store.IStore

	// DBCommands represents the storage command group
	DBCommands = &cobra.Command{
		Use:                "db",
		Short:              "Inspect and maintain the storage medium",
		PersistentPreRunE: setupMedium,
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the storage engine (size, capacity, counters)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := medium.GetDBInfo()
			if err != nil {
				return err
			}
			return util.PrintJSON(os.Stdout, info)
		},
	}

	unlockCmd = &cobra.Command{
		Use:   "unlock",
		Short: "Removes the writer lock of the observation store",
		Long:  "Removes the writer lock of the observation store, e.g. after a writer crashed while holding it. Only use this if no other writer is running.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := config.StorageKey + ".lock"
			held, err := medium.Has(key)
			if err != nil {
				return err
			}
			if !held {
				fmt.Println("no lock held")
				return nil
			}
			if err := medium.Delete(key); err != nil {
				return err
			}
			fmt.Println("unlock successfully")
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)
	cobra.OnFinalize(closeMedium)

	DBCommands.AddCommand(infoCmd)
	DBCommands.AddCommand(unlockCmd)
}

func setupMedium(cmd *cobra.Command, _ []string) error {
	var err error
	if config, err = util.Setup(cmd); err != nil {
		return err
	}
	medium, err = util.OpenMedium(config)
	return err
}

func closeMedium() {
	util.CloseMedium(medium)
	medium = nil
}
