package obs

import (
	"testing"

	"github.com/ValentinKolb/fieldlog/cmd/util"
)

func init() {
	// the global flags normally come from the root command
	util.SetupGlobalFlags(ObsCommands)
}

func TestMediumClosedAfterFailedCommand(t *testing.T) {
	dir := t.TempDir()
	ObsCommands.SetArgs([]string{"add", "salmon", "not-a-date", "--data-dir", dir, "--log-level", "error"})

	if err := ObsCommands.Execute(); err == nil {
		t.Fatalf("Expected add with an invalid date to fail")
	}
	if medium != nil || observations != nil {
		t.Errorf("Expected the medium to be closed after a failed command")
	}
	if err := util.TakeCloseError(); err != nil {
		t.Errorf("Unexpected close error: %v", err)
	}
}
