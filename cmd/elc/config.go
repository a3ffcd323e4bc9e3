package main

import (
	"fmt"

	"github.com/franz/enginelib"
	"github.com/franz/enginelib/internal/util"
	"github.com/spf13/viper"
)

// applyLogFlags configures the logger from the global flags. Flags take
// precedence over ELC_* environment variables and the config file.
func applyLogFlags() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// libraryPath resolves the library directory from flag, environment or
// config file.
func libraryPath() string {
	return viper.GetString("library")
}

// openLibrary opens the configured library. A library with an unknown
// schema version still opens, with a warning; commands that need a
// supported schema fail on their own terms.
func openLibrary() (*enginelib.Database, error) {
	applyLogFlags()

	path := libraryPath()
	db, err := enginelib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open library at %s: %w", path, err)
	}
	if !db.IsSupported() {
		util.WarnLog("Library schema %s is newer than this build supports; most commands will fail", db.Version())
	}
	return db, nil
}
