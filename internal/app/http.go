package app

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"parlor/pkg/api"
	"parlor/pkg/auth"
	"parlor/pkg/store"
	"parlor/pkg/telemetry"

	"parlor/internal/gateway"
)

// buildHandler assembles the full HTTP surface: probes, metrics, docs,
// the websocket gateway and the API router, all behind the API-key
// gateway middleware.
func (a *App) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler)
	mux.HandleFunc("/readyz", a.readyzHandler)
	mux.Handle("/metrics", telemetry.Handler())
	mux.Handle("/docs/", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	mux.Handle("/openapi.yaml", http.FileServer(http.Dir("./docs")))

	// the websocket upgrade needs a verified end user, same as /v1
	mux.Handle("/v1/ws", auth.RequireIdentity(gateway.ServeWS(a.hub)))
	mux.Handle("/", api.Handler(a.opts.Config))

	cfg := a.opts.Config
	secCfg := auth.SecConfig{
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    append([]string{}, cfg.Security.IPWhitelist...),
		BackendKeys:    map[string]struct{}{},
		FrontendKeys:   map[string]struct{}{},
		AdminKeys:      map[string]struct{}{},
		JWTSecret:      cfg.Security.JWT.Secret,
		JWTIssuer:      cfg.Security.JWT.Issuer,
	}
	for _, k := range cfg.Security.APIKeys.Backend {
		secCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.APIKeys.Frontend {
		secCfg.FrontendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.APIKeys.Admin {
		secCfg.AdminKeys[k] = struct{}{}
	}
	return auth.AuthenticateRequestMiddleware(secCfg)(mux)
}

// startHTTP launches the server and returns its error channel.
func (a *App) startHTTP() <-chan error {
	a.srv = &http.Server{Addr: a.opts.Addr, Handler: a.buildHandler()}
	errCh := make(chan error, 1)
	go func() {
		cert := a.opts.Config.Server.TLS.CertFile
		key := a.opts.Config.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// readyzHandler reports ready once the store is open.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	ver := a.opts.Version
	if ver == "" {
		ver = "dev"
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","version":"` + ver + `"}`))
}
