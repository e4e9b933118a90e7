// Package api assembles the public HTTP surface: the authenticated /v1
// routes, the operator /admin routes and the backend signing endpoint.
// The API-key gateway and TLS sit outside, applied by the app wiring.
package api

import (
	"github.com/gorilla/mux"

	"parlor/pkg/api/handlers"
	"parlor/pkg/auth"
	"parlor/pkg/config"
	"parlor/pkg/telemetry"
)

// Handler builds the route tree. cfg may be nil in tests, in which case
// the default page-size clamp applies.
func Handler(cfg *config.Config) *mux.Router {
	if cfg != nil {
		handlers.SetPager(cfg.PageSize)
	}

	r := mux.NewRouter()
	r.Use(telemetry.Middleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.RequireIdentity)
	handlers.RegisterRooms(v1)
	handlers.RegisterMessages(v1)
	handlers.RegisterPresence(v1)
	handlers.RegisterInvites(v1)
	handlers.RegisterModeration(v1)

	admin := r.PathPrefix("/admin").Subrouter()
	handlers.RegisterAdmin(admin)

	handlers.RegisterSigning(r)
	return r
}
