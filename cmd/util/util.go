package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ValentinKolb/fieldlog/lib/common"
	"github.com/ValentinKolb/fieldlog/lib/db"
	"github.com/ValentinKolb/fieldlog/lib/db/engines/memdb"
	"github.com/ValentinKolb/fieldlog/lib/db/engines/sqlitedb"
	"github.com/ValentinKolb/fieldlog/lib/observation"
	"github.com/ValentinKolb/fieldlog/lib/species"
	"github.com/ValentinKolb/fieldlog/lib/store"
	"github.com/ValentinKolb/fieldlog/lib/store/lstore"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupGlobalFlags adds the configuration flags shared by all commands
func SetupGlobalFlags(cmd *cobra.Command) {
	key := "engine"
	cmd.PersistentFlags().String(key, string(common.EngineMemory), WrapString("Storage engine (memory, sqlite). memory keeps one snapshot file per origin, sqlite one database file that several processes can share"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "data", WrapString("Directory for snapshots and the sqlite database"))

	key = "origin"
	cmd.PersistentFlags().String(key, lstore.DefaultOrigin, WrapString("Origin the data belongs to. Different origins never see each other's observations"))

	key = "capacity-kb"
	cmd.PersistentFlags().Int(key, memdb.DefaultCapacity/1024, WrapString("Capacity of the storage medium in KB (0 = unbounded). Writes beyond it fail"))

	key = "storage-key"
	cmd.PersistentFlags().String(key, observation.DefaultKey, WrapString("Key under which the observations are stored"))

	key = "lock-writes"
	cmd.PersistentFlags().Bool(key, false, WrapString("Hold a writer lock in the medium during every change. Requires the sqlite engine, use it if several processes write"))

	key = "catalog"
	cmd.PersistentFlags().String(key, "", WrapString("Path of a species catalog (YAML). The embedded catalog is used if empty"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Level at which logs will be output (debug, info, warn, error)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the store metrics in Prometheus text format after the command"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("fieldlog")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the configuration from viper
func GetConfig() *common.Config {
	return &common.Config{
		Engine:      common.Engine(strings.ToLower(viper.GetString("engine"))),
		DataDir:     viper.GetString("data-dir"),
		Origin:      viper.GetString("origin"),
		CapacityKB:  viper.GetInt("capacity-kb"),
		StorageKey:  viper.GetString("storage-key"),
		LockWrites:  viper.GetBool("lock-writes"),
		CatalogPath: viper.GetString("catalog"),
		LogLevel:    viper.GetString("log-level"),
		Metrics:     viper.GetBool("metrics"),
	}
}

// Setup binds the flags, reads and validates the configuration and initializes the loggers.
// It is meant to be used as PersistentPreRunE of the command groups.
func Setup(cmd *cobra.Command) (*common.Config, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	conf := GetConfig()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return nil, err
	}

	log.Debugf("configuration:\n%s", conf)
	return conf, nil
}

// --------------------------------------------------------------------------
// Storage
// --------------------------------------------------------------------------

// OpenMedium opens the origin-scoped storage medium configured in conf
func OpenMedium(conf *common.Config) (store.IStore, error) {
	opts := &lstore.Options{Origin: conf.Origin}

	var factory store.DBFactory
	switch conf.Engine {
	case common.EngineMemory:
		opts.SnapshotPath = conf.SnapshotPath()
		factory = func() (db.KVDB, error) {
			return memdb.NewMemDB(&memdb.DBOptions{Capacity: conf.CapacityBytes()}), nil
		}
	case common.EngineSQLite:
		factory = func() (db.KVDB, error) {
			return sqlitedb.NewSQLiteDB(&sqlitedb.DBOptions{
				Path:     conf.SQLitePath(),
				Capacity: conf.CapacityBytes(),
			})
		}
	default:
		return nil, fmt.Errorf("invalid engine %s", conf.Engine)
	}

	medium, err := lstore.Open(factory, opts)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Debugf("opened %s storage for origin %s", conf.Engine, conf.Origin)
	return medium, nil
}

// closeErr collects the errors of media closed in cobra finalizers, which can't return them
var closeErr error

// CloseMedium closes a medium opened by a command (nil is ignored). An error is printed
// and kept for TakeCloseError.
func CloseMedium(medium store.IStore) {
	if medium == nil {
		return
	}
	if err := medium.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeErr = errors.Join(closeErr, err)
	}
}

// TakeCloseError returns and resets the errors collected by CloseMedium
func TakeCloseError() error {
	err := closeErr
	closeErr = nil
	return err
}

// LoadCatalog loads the configured species catalog
func LoadCatalog(conf *common.Config) (*species.Catalog, error) {
	if conf.CatalogPath == "" {
		return species.Default(), nil
	}
	return species.LoadFile(conf.CatalogPath)
}

// OpenObservationStore opens the medium and creates the observation store on top of it.
// The caller must close the returned medium.
func OpenObservationStore(conf *common.Config, catalog *species.Catalog) (*observation.Store, store.IStore, error) {
	medium, err := OpenMedium(conf)
	if err != nil {
		return nil, nil, err
	}

	opts := observation.DefaultOptions()
	opts.Key = conf.StorageKey
	opts.LockWrites = conf.LockWrites
	if catalog != nil {
		opts.Catalog = catalog
	}
	return observation.New(medium, opts), medium, nil
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// AddOutputFlag adds the --output flag to a command
func AddOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", WrapString("Output format (text, json)"))
}

// WantJSON reports whether the command should print JSON
func WantJSON(cmd *cobra.Command) (bool, error) {
	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "text", "":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("invalid output format %s (expected text or json)", output)
	}
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
