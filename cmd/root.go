package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/fieldlog/cmd/db"
	"github.com/ValentinKolb/fieldlog/cmd/obs"
	"github.com/ValentinKolb/fieldlog/cmd/species"
	"github.com/ValentinKolb/fieldlog/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "fieldlog",
		Short: "log of fish and bird observations",
		Long: fmt.Sprintf(`fieldlog (v%s)

Record field observations of fish and birds, browse the species
catalog and look at statistics of what you have seen.

All flags can also be set as environment variables FIELDLOG_<FLAG>
(e.g. FIELDLOG_DATA_DIR=/var/lib/fieldlog) or in a .env file.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of fieldlog",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fieldlog v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(obs.ObsCommands)
	RootCmd.AddCommand(species.SpeciesCommands)
	RootCmd.AddCommand(db.DBCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupGlobalFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	err := RootCmd.Execute()
	if closeErr := util.TakeCloseError(); err != nil || closeErr != nil {
		os.Exit(1)
	}
}
