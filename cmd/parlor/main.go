package main

import (
	"context"
	"fmt"
	"os"

	"parlor/internal/app"
	"parlor/pkg/config"
	"parlor/pkg/logger"
	"parlor/pkg/shutdown"
)

// Build-time metadata, injected via -ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	flagAddr, flagDB, flagCfg, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(flagCfg, setFlags["config"])
	cfg, _, _, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithLevel(cfg.Logging.Level)
	logger.Info("starting", "version", version, "commit", commit, "built", buildDate)

	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = flagAddr
	}
	dbPath := flagDB
	if !setFlags["db"] && cfg.Server.DBPath != "" {
		dbPath = cfg.Server.DBPath
	}

	source := "defaults"
	switch {
	case len(setFlags) > 0 && envUsed:
		source = "flags+env"
	case len(setFlags) > 0:
		source = "flags"
	case envUsed:
		source = "env"
	default:
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			source = cfgPath
		}
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	a, err := app.New(app.Options{
		Config:  cfg,
		Addr:    addr,
		DBPath:  dbPath,
		Source:  source,
		Version: version,
	})
	if err != nil {
		shutdown.Abort("startup failed", err, dbPath)
		return
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("server_exited", "error", err)
		os.Exit(1)
	}
}
