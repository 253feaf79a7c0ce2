package species

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ValentinKolb/fieldlog/cmd/util"
	"github.com/ValentinKolb/fieldlog/lib/species"
	"github.com/spf13/cobra"
)

var (
	catalog *species.Catalog

	// SpeciesCommands represents the species command group
	SpeciesCommands = &cobra.Command{
		Use:               "species",
		Short:             "Browse the species catalog",
		PersistentPreRunE: setupCatalog,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists species, optionally filtered by type or category",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	showCmd = &cobra.Command{
		Use:   "show [id]",
		Short: "Shows the details of a species",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	SpeciesCommands.AddCommand(listCmd)
	SpeciesCommands.AddCommand(showCmd)

	listCmd.Flags().String("type", "", util.WrapString("Only list species of this type (fish, bird)"))
	listCmd.Flags().String("category", "", util.WrapString("Only list species of this category (river, mediterranean, tropical, european, tropical_bird)"))
	util.AddOutputFlag(listCmd)
	util.AddOutputFlag(showCmd)
}

func setupCatalog(cmd *cobra.Command, _ []string) error {
	conf, err := util.Setup(cmd)
	if err != nil {
		return err
	}
	catalog, err = util.LoadCatalog(conf)
	return err
}

func runList(cmd *cobra.Command, _ []string) error {
	asJSON, err := util.WantJSON(cmd)
	if err != nil {
		return err
	}
	typ, _ := cmd.Flags().GetString("type")
	category, _ := cmd.Flags().GetString("category")

	result := catalog.All()
	if typ != "" {
		result = catalog.ByType(species.Type(typ))
	}
	if category != "" {
		filtered := []species.Species{}
		for _, s := range result {
			if s.Category == species.Category(category) {
				filtered = append(filtered, s)
			}
		}
		result = filtered
	}

	if asJSON {
		return util.PrintJSON(os.Stdout, result)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSCIENTIFIC NAME\tTYPE\tCATEGORY")
	for _, s := range result {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.ScientificName, s.Type, s.Category)
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, args []string) error {
	asJSON, err := util.WantJSON(cmd)
	if err != nil {
		return err
	}

	s, ok := catalog.Lookup(args[0])
	if !ok {
		return fmt.Errorf("species %q not found", args[0])
	}
	if asJSON {
		return util.PrintJSON(os.Stdout, s)
	}

	fmt.Printf("%s (%s)\n\n", s.Name, s.ScientificName)
	fmt.Printf("%s\n\n", s.Description)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Type:\t%s\n", s.Type)
	fmt.Fprintf(w, "Category:\t%s\n", s.Category)
	fmt.Fprintf(w, "Habitat:\t%s\n", s.Habitat)
	fmt.Fprintf(w, "Size:\t%s\n", s.Size)
	fmt.Fprintf(w, "Diet:\t%s\n", s.Diet)
	fmt.Fprintf(w, "Image:\t%s\n", s.ImageURL)
	return w.Flush()
}
