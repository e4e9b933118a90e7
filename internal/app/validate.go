package app

import (
	"fmt"
	"os"
)

// validateOptions checks the resolved startup inputs before anything
// touches disk or the network.
func validateOptions(opts Options) error {
	if opts.Config == nil {
		return fmt.Errorf("missing config")
	}
	if opts.Addr == "" {
		return fmt.Errorf("missing listen address")
	}
	if opts.DBPath == "" {
		return fmt.Errorf("missing database path")
	}

	cert := opts.Config.Server.TLS.CertFile
	key := opts.Config.Server.TLS.KeyFile
	if (cert == "") != (key == "") {
		return fmt.Errorf("TLS requires both cert_file and key_file")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("TLS cert file: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("TLS key file: %w", err)
		}
	}
	return nil
}
