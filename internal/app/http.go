package app

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"chatcore/pkg/api"
	"chatcore/pkg/auth"
	"chatcore/pkg/banner"
	"chatcore/pkg/metrics"
	"chatcore/pkg/store"
	"chatcore/pkg/utils"
)

const shutdownGrace = 10 * time.Second

func (a *App) printBanner() {
	banner.Print(a.addr, a.dbPath, a.responderName, a.version)
}

// buildHandler assembles the router with API routes, ops endpoints and the
// middleware chain (metrics inside the router so route templates label the
// series, auth outside).
func (a *App) buildHandler() http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)

	api.Register(r, a.orc)

	r.HandleFunc("/readyz", a.readyzHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	r.PathPrefix("/openapi.yaml").Handler(http.FileServer(http.Dir("./docs")))

	secCfg := auth.SecConfig{
		AllowedOrigins: append([]string{}, a.cfg.Security.CORS.AllowedOrigins...),
		RPS:            a.cfg.Security.RateLimit.RPS,
		Burst:          a.cfg.Security.RateLimit.Burst,
		BackendKeys:    auth.KeySet(a.cfg.Security.APIKeys.Backend),
		FrontendKeys:   auth.KeySet(a.cfg.Security.APIKeys.Frontend),
	}
	return auth.Middleware(secCfg)(r)
}

// readyzHandler reports readiness: the store must be open.
func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !store.Ready() {
		utils.JSONError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok", "version": ver})
}

// startHTTP starts the HTTP server in a goroutine and returns a channel
// that will carry any fatal server error.
func (a *App) startHTTP() <-chan error {
	a.srv = &http.Server{Addr: a.addr, Handler: a.buildHandler()}

	errCh := make(chan error, 1)
	go func() {
		cert := a.cfg.Server.TLS.CertFile
		key := a.cfg.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- a.srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- a.srv.ListenAndServe()
		}
	}()
	return errCh
}
