// Package main is the `s3db` CLI: a thin cobra wrapper exercising the db
// package's programmatic API. It only wires flags/env into config loaders
// and calls into db.Open plus the EventualConsistency plugin's public
// API; no storage,
// schema, or consolidation logic lives in this package.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/s3db-go/s3db/common"
	"github.com/s3db-go/s3db/objectstore"
	"github.com/s3db-go/s3db/version"
)

var cfgFile string

// defaultConnection is the object-store connection string used when neither
// --connection nor S3DB_CONNECTION is set. Validated at package init so a
// typo here fails fast instead of surfacing as a confusing runtime error on
// the first `bootstrap` call.
var defaultConnection = common.GetEnv("S3DB_DEFAULT_CONNECTION", "memory://default")

func init() {
	common.Must(objectstore.ParseConnectionString(defaultConnection))
}

// rootCmd is the entry point for the s3db CLI.
var rootCmd = &cobra.Command{
	Use:     "s3db",
	Short:   "operate an s3db document store and EventualConsistency runtime",
	Version: version.GetModuleVersion(),
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.s3db.yaml)")
	rootCmd.PersistentFlags().String("connection", defaultConnection, "object-store connection string (s3://, file://, or memory://)")
	rootCmd.PersistentFlags().String("manifest", "", "path to a JSON resource manifest (see manifest.go)")

	viper.BindPFlag("connection", rootCmd.PersistentFlags().Lookup("connection"))
	viper.BindPFlag("manifest", rootCmd.PersistentFlags().Lookup("manifest"))

	rootCmd.AddCommand(serveCmd, consolidateCmd, gcCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".s3db")
	}

	viper.SetEnvPrefix("S3DB")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "s3db: using config file", viper.ConfigFileUsed())
	}

	if common.GetEnvBool("S3DB_DEBUG", false) {
		common.Logger.SetLevel(logrus.DebugLevel)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "s3db:", err)
		os.Exit(1)
	}
}
