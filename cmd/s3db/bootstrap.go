package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/s3db-go/s3db/db"
	"github.com/s3db-go/s3db/eventualconsistency"
)

// deployment bundles the opened database and, when the manifest declares
// one, its installed EventualConsistency plugin.
type deployment struct {
	db *db.Database
	ec *eventualconsistency.Plugin
}

// bootstrap opens the connection string, defines every resource the
// manifest declares, and installs the EventualConsistency plugin if the
// manifest configures one. Shared by every subcommand so each one stays a
// handful of lines of flag-to-call wiring.
func bootstrap(ctx context.Context) (*deployment, error) {
	conn := viper.GetString("connection")
	database, err := db.Open(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", conn, err)
	}

	var m manifest
	if path := viper.GetString("manifest"); path != "" {
		loaded, err := loadManifest(path)
		if err != nil {
			return nil, err
		}
		m = loaded
	}

	for _, rm := range m.Resources {
		if _, err := database.DefineResource(ctx, rm.toConfig()); err != nil {
			return nil, fmt.Errorf("define resource %q: %w", rm.Name, err)
		}
	}

	dep := &deployment{db: database}

	if len(m.EC) > 0 {
		ecCfg, err := ecConfigFromManifest(m)
		if err != nil {
			return nil, err
		}
		plugin := eventualconsistency.New(ecCfg, nil)
		if err := database.Install(ctx, plugin); err != nil {
			return nil, fmt.Errorf("install eventual-consistency plugin: %w", err)
		}
		dep.ec = plugin
	}

	return dep, nil
}
