package obs

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/ValentinKolb/fieldlog/cmd/util"
	"github.com/ValentinKolb/fieldlog/lib/observation"
	"github.com/spf13/cobra"
)

const (
	// DefaultListLimit is the number of observations shown by list (the most recent ones)
	DefaultListLimit = 10

	minDate = "0001-01-01"
	maxDate = "9999-12-31"
)

var (
	addCmd = &cobra.Command{
		Use:   "add [speciesId] [date]",
		Short: "Records a new observation",
		Long:  "Records a new observation. The date is YYYY-MM-DD or an RFC 3339 timestamp and defaults to today.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runAdd,
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists observations, most recent first",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	deleteCmd = &cobra.Command{
		Use:   "delete [id...]",
		Short: "Deletes observations by id (unknown ids are ignored)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range args {
				if err := observations.Delete(id); err != nil {
					return err
				}
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints statistics over all observations",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes all observations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to delete all observations without --yes")
			}
			if err := observations.Clear(); err != nil {
				return err
			}
			fmt.Println("clear successfully")
			return nil
		},
	}
)

func init() {
	addCmd.Flags().String("location", "", util.WrapString("Where the observation was made"))
	addCmd.Flags().String("notes", "", util.WrapString("Free text notes"))

	listCmd.Flags().String("species", "", util.WrapString("Only list observations of this species id"))
	listCmd.Flags().String("from", "", util.WrapString("Only list observations on or after this date"))
	listCmd.Flags().String("to", "", util.WrapString("Only list observations on or before this date (a date includes the whole day)"))
	listCmd.Flags().Int("limit", DefaultListLimit, util.WrapString("Maximum number of observations to list (0 = all)"))
	util.AddOutputFlag(listCmd)

	util.AddOutputFlag(statsCmd)

	clearCmd.Flags().Bool("yes", false, util.WrapString("Confirm that all observations should be deleted"))
}

// --------------------------------------------------------------------------
// Command implementations
// --------------------------------------------------------------------------

func runAdd(cmd *cobra.Command, args []string) error {
	speciesID := args[0]
	date := time.Now().Format("2006-01-02")
	if len(args) == 2 {
		date = args[1]
	}
	location, _ := cmd.Flags().GetString("location")
	notes, _ := cmd.Flags().GetString("notes")

	// the store accepts any species id, unknown ones are only pointed out
	if _, ok := catalog.Lookup(speciesID); !ok {
		fmt.Fprintf(os.Stderr, "note: species %q is not in the catalog\n", speciesID)
	}

	o, err := observations.Add(speciesID, date, location, notes)
	if err != nil {
		return err
	}
	fmt.Printf("added observation %s\n", o.ID)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	asJSON, err := util.WantJSON(cmd)
	if err != nil {
		return err
	}
	speciesID, _ := cmd.Flags().GetString("species")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	limit, _ := cmd.Flags().GetInt("limit")

	var result []observation.Observation
	switch {
	case from != "" || to != "":
		if from == "" {
			from = minDate
		}
		if to == "" {
			to = maxDate
		}
		result, err = observations.ByDateRange(from, to)
		if err == nil && speciesID != "" {
			result = filterSpecies(result, speciesID)
		}
	case speciesID != "":
		result, err = observations.BySpecies(speciesID)
	default:
		result, err = observations.List()
	}
	if err != nil {
		return err
	}

	total := len(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	if asJSON {
		return util.PrintJSON(os.Stdout, result)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSPECIES\tLOCATION\tNOTES\tID")
	for _, o := range result {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Date, speciesName(o.SpeciesID), dash(o.Location), dash(o.Notes), o.ID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if total > len(result) {
		fmt.Printf("(%d of %d observations, use --limit 0 to list all)\n", len(result), total)
	}
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	asJSON, err := util.WantJSON(cmd)
	if err != nil {
		return err
	}

	stats, err := observations.Statistics()
	if err != nil {
		return err
	}
	if asJSON {
		return util.PrintJSON(os.Stdout, stats)
	}

	fmt.Printf("total: %d\n", stats.Total)
	if stats.CountByType != nil {
		fmt.Printf("fish: %d, birds: %d, unknown species: %d\n",
			stats.CountByType.Fish, stats.CountByType.Bird, stats.CountByType.Unresolved)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nSPECIES\tCOUNT")
	for _, id := range sortedByCount(stats.CountBySpecies) {
		fmt.Fprintf(w, "%s\t%d\n", speciesName(id), stats.CountBySpecies[id])
	}

	months := make([]string, 0, len(stats.CountByMonth))
	for month := range stats.CountByMonth {
		months = append(months, month)
	}
	sort.Strings(months)
	fmt.Fprintln(w, "\nMONTH\tCOUNT")
	for _, month := range months {
		fmt.Fprintf(w, "%s\t%d\n", month, stats.CountByMonth[month])
	}
	return w.Flush()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func filterSpecies(in []observation.Observation, speciesID string) []observation.Observation {
	out := []observation.Observation{}
	for _, o := range in {
		if o.SpeciesID == speciesID {
			out = append(out, o)
		}
	}
	return out
}

// speciesName returns "Name (id)" for known species and the id otherwise
func speciesName(id string) string {
	if s, ok := catalog.Lookup(id); ok {
		return fmt.Sprintf("%s (%s)", s.Name, id)
	}
	return id
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// sortedByCount returns the keys ordered by count descending, then alphabetically
func sortedByCount(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
