package cmd

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ValentinKolb/fieldlog/cmd/util"
	"github.com/ValentinKolb/fieldlog/lib/common"
	"github.com/ValentinKolb/fieldlog/lib/observation"
)

// resetFlags restores the defaults of all flags, cobra keeps parsed values between executions
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(RootCmd)
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

func TestObservationCommands(t *testing.T) {
	for _, engine := range []string{"memory", "sqlite"} {
		t.Run(engine, func(t *testing.T) {
			dir := t.TempDir()
			global := []string{"--engine", engine, "--data-dir", dir, "--origin", "test", "--log-level", "error"}
			with := func(args ...string) []string { return append(args, global...) }

			if err := run(t, with("obs", "add", "salmon", "2024-03-01", "--location", "Tana")...); err != nil {
				t.Fatalf("obs add failed: %v", err)
			}
			if err := run(t, with("obs", "add", "eagle", "2024-01-15")...); err != nil {
				t.Fatalf("obs add failed: %v", err)
			}
			if err := run(t, with("obs", "add", "salmon", "not-a-date")...); err == nil {
				t.Errorf("Expected obs add with an invalid date to fail")
			}
			if err := run(t, with("obs", "list", "--from", "2024-01-01", "--to", "2024-01-31", "-o", "json")...); err != nil {
				t.Errorf("obs list failed: %v", err)
			}
			if err := run(t, with("obs", "stats")...); err != nil {
				t.Errorf("obs stats failed: %v", err)
			}
			if err := run(t, with("db", "info")...); err != nil {
				t.Errorf("db info failed: %v", err)
			}

			// the data is visible to a fresh store on the same medium
			conf := &common.Config{
				Engine:     common.Engine(engine),
				DataDir:    dir,
				Origin:     "test",
				CapacityKB: 5120,
				StorageKey: observation.DefaultKey,
				LogLevel:   "error",
			}
			s, medium, err := util.OpenObservationStore(conf, nil)
			if err != nil {
				t.Fatalf("Failed to open store: %v", err)
			}
			observations, err := s.List()
			_ = medium.Close()
			if err != nil {
				t.Fatalf("Unexpected error during List: %v", err)
			}
			if len(observations) != 2 || observations[0].SpeciesID != "salmon" || observations[0].Location != "Tana" {
				t.Fatalf("Unexpected observations %+v", observations)
			}

			if err := run(t, with("obs", "clear")...); err == nil {
				t.Errorf("Expected obs clear without --yes to fail")
			}
			if err := run(t, with("obs", "clear", "--yes")...); err != nil {
				t.Errorf("obs clear failed: %v", err)
			}
		})
	}
}

func TestSpeciesCommands(t *testing.T) {
	if err := run(t, "species", "list", "--type", "bird", "--log-level", "error"); err != nil {
		t.Errorf("species list failed: %v", err)
	}
	if err := run(t, "species", "show", "flamingo", "-o", "json", "--log-level", "error"); err != nil {
		t.Errorf("species show failed: %v", err)
	}
	if err := run(t, "species", "show", "unicorn", "-o", "text", "--log-level", "error"); err == nil {
		t.Errorf("Expected species show of an unknown id to fail")
	}
}

func TestInvalidConfig(t *testing.T) {
	err := run(t, "obs", "list", "--engine", "redis", "--data-dir", filepath.Join(t.TempDir(), "x"))
	if err == nil {
		t.Errorf("Expected an invalid engine to be rejected")
	}
	err = run(t, "obs", "list", "--engine", "memory", "--lock-writes", "--data-dir", t.TempDir())
	if err == nil {
		t.Errorf("Expected --lock-writes with the memory engine to be rejected")
	}
	if err := run(t, "obs", "list", "--engine", "sqlite", "--lock-writes", "--data-dir", t.TempDir(), "--log-level", "error"); err != nil {
		t.Errorf("Expected --lock-writes with the sqlite engine to work, got %v", err)
	}
}
