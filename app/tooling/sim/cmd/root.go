// Package cmd contains the sim app.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/ardanlabs/forkchain/foundation/blockchain/storage"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/forkchain/foundation/blockchain/storage/leveldb"
	"github.com/ardanlabs/forkchain/foundation/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the chain and its forks from the command line",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to a config file.")
	rootCmd.PersistentFlags().String("db-kind", "disk", "Storage to save into: disk or leveldb.")
	rootCmd.PersistentFlags().String("db-path", "zblock/chain.rlp", "Path to the file or database directory.")
	rootCmd.PersistentFlags().String("db-name", "main", "Name of the chain inside a leveldb database.")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log every chain event.")

	viper.BindPFlag("db.kind", rootCmd.PersistentFlags().Lookup("db-kind"))
	viper.BindPFlag("db.path", rootCmd.PersistentFlags().Lookup("db-path"))
	viper.BindPFlag("db.name", rootCmd.PersistentFlags().Lookup("db-name"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initConfig reads the config file when one is provided and lets SIM_
// environment variables override any value.
func initConfig() {
	viper.SetEnvPrefix("SIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		return
	}

	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("config file error:", err)
		os.Exit(1)
	}
}

// =============================================================================

// openStorage constructs the serializer named by the db settings.
func openStorage() (storage.Serializer, error) {
	path := viper.GetString("db.path")

	switch kind := viper.GetString("db.kind"); kind {
	case "disk":
		return disk.New(path)

	case "leveldb":
		return leveldb.New(path, viper.GetString("db.name"))

	default:
		return nil, fmt.Errorf("unknown storage kind %q", kind)
	}
}

// newEvHandler returns an event handler that logs through zap when the
// verbose setting is on.
func newEvHandler() (func(v string, args ...any), func(), error) {
	if !viper.GetBool("verbose") {
		return func(v string, args ...any) {}, func() {}, nil
	}

	log, err := logger.New("SIM")
	if err != nil {
		return nil, nil, err
	}

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...))
	}

	return ev, func() { log.Sync() }, nil
}
