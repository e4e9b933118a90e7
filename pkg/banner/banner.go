// Package banner prints the startup summary: listen address, config
// provenance and a quick production checklist.
package banner

import (
	"fmt"

	"parlor/pkg/config"
)

const art = `
██████╗  █████╗ ██████╗ ██╗      ██████╗ ██████╗
██╔══██╗██╔══██╗██╔══██╗██║     ██╔═══██╗██╔══██╗
██████╔╝███████║██████╔╝██║     ██║   ██║██████╔╝
██╔═══╝ ██╔══██║██╔══██╗██║     ██║   ██║██╔══██╗
██║     ██║  ██║██║  ██║███████╗╚██████╔╝██║  ██║
╚═╝     ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝ ╚═════╝ ╚═╝  ╚═╝
`

// Print writes the banner and a config summary to stdout. source names
// where the effective config came from (flags, env, config file).
func Print(cfg *config.Config, addr, dbPath, source, version string) {
	fmt.Print(art)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if source != "" {
		fmt.Printf("Config:   %s\n", source)
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/messages            - send a room or direct message")
	fmt.Println("GET  /v1/rooms               - list the caller's rooms")
	fmt.Println("GET  /v1/rooms/{id}/messages - page a room timeline")
	fmt.Println("POST /v1/invites             - invite a user to a room")
	fmt.Println("GET  /v1/presence/{user}     - read a user's presence")
	fmt.Println("GET  /v1/ws                  - websocket event stream")

	if cfg == nil {
		return
	}

	fmt.Println("\n== Production? ================================================")
	if n := len(cfg.Security.APIKeys.Backend); n > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", n)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if n := len(cfg.Security.APIKeys.Frontend); n > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", n)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}
	if n := len(cfg.Security.APIKeys.Admin); n > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", n)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}
	if cfg.Security.JWT.Secret != "" {
		fmt.Println("- User tokens: configured")
	} else {
		fmt.Println("- User tokens: unconfigured (HMAC signatures only)")
	}
	if cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}
	if cfg.CacheEnabled() {
		fmt.Printf("- Read cache: redis @ %s\n", cfg.Cache.Redis.Addr)
	} else {
		fmt.Println("- Read cache: disabled")
	}
	fmt.Printf("- Presence sweep: %s (staleness %s)\n", cfg.PresenceSweepCron(), cfg.PresenceStaleness())
	fmt.Printf("- Invite sweep:   %s (ttl %s)\n", cfg.InviteSweepCron(), cfg.InviteTTL())

	fmt.Println("\n== Logs =======================================================")
}
