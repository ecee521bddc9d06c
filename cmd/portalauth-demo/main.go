// Command portalauth-demo runs the auth engine against a small in-process
// mock of the school-management backend. It walks one portal session end
// to end: a few rejected logins, a successful one, a permission check, a
// token refresh, and a logout, printing engine events and the final
// metrics as it goes.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	portalauth "github.com/classpoint/portalauth"
	"github.com/classpoint/portalauth/httpapi"
	"github.com/classpoint/portalauth/metrics/export/prometheus"
	"github.com/classpoint/portalauth/permission"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	demoEmail  = "amina@greenwood.edu"
	demoSecret = "correct-horse"
)

func main() {
	hostname := flag.String("hostname", "greenwood.classpoint.app", "portal hostname to resolve the tenant from")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, *hostname); err != nil {
		log.Fatal("demo failed", zap.Error(err))
	}
}

func run(log *zap.Logger, hostname string) error {
	ctx := context.Background()

	backend, baseURL, err := startBackend()
	if err != nil {
		return err
	}
	defer backend.Close()
	log.Info("mock backend listening", zap.String("url", baseURL))

	mr, err := miniredis.Run()
	if err != nil {
		return fmt.Errorf("miniredis: %w", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := portalauth.LoadEnv()
	cfg.Tenant.Hostname = hostname
	cfg.Transport.BaseURL = baseURL

	client, err := httpapi.NewClient(cfg.Transport, log)
	if err != nil {
		return err
	}

	sink := portalauth.NewChannelSink(32)
	engine, err := portalauth.New().
		WithConfig(cfg).
		WithAPI(client).
		WithRedis(rdb).
		WithEventSink(sink).
		WithLogger(log).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	go func() {
		for ev := range sink.Events() {
			log.Info("event",
				zap.String("type", ev.EventType),
				zap.String("phase", ev.Phase),
				zap.Bool("success", ev.Success),
				zap.String("error", ev.Error))
		}
	}()

	// A couple of wrong passwords first.
	for i := 0; i < 2; i++ {
		_, err := engine.Login(ctx, portalauth.Credentials{
			Identifier: demoEmail,
			Secret:     "guess-" + fmt.Sprint(i),
		})
		log.Info("bad login attempt", zap.Int("attempt", i+1), zap.Error(err))
	}

	state, err := engine.Login(ctx, portalauth.Credentials{
		Identifier: demoEmail,
		Secret:     demoSecret,
		Remember:   true,
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	log.Info("signed in",
		zap.String("user", state.User.DisplayName),
		zap.String("tenant", state.Tenant.Subdomain),
		zap.Time("expires", state.Session.ExpiresAt))

	canGrade := engine.HasPermission(permission.Name(permission.ActionView, "grades"))
	canDeleteSchool := engine.HasPermission(permission.Name(permission.ActionDelete, "school"))
	log.Info("permissions",
		zap.Bool("view_grades", canGrade),
		zap.Bool("delete_school", canDeleteSchool),
		zap.Duration("session_remaining", engine.RemainingSession()))

	if _, err := engine.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	log.Info("refreshed", zap.Duration("session_remaining", engine.RemainingSession()))

	engine.Logout(ctx)
	log.Info("logged out", zap.Bool("authenticated", engine.IsAuthenticated()))

	fmt.Println()
	fmt.Println(prometheus.NewExporter(engine).Render())
	return nil
}

// startBackend serves the JSON protocol the engine's HTTP client speaks,
// with one hard-coded teacher account on the greenwood tenant.
func startBackend() (*http.Server, string, error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/auth/login", func(w http.ResponseWriter, req *http.Request) {
		var body portalauth.LoginRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Identifier == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "identifier and secret are required")
			return
		}
		if body.Identifier != demoEmail || body.Secret != demoSecret {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
			return
		}
		writeJSON(w, http.StatusOK, portalauth.LoginResponse{
			AccessToken:  demoToken(15 * time.Minute),
			RefreshToken: "refresh-1",
			User: portalauth.APIUser{
				ID:              "u-amina",
				Email:           demoEmail,
				DisplayName:     "Amina Diallo",
				Role:            "teacher",
				TenantSubdomain: "greenwood",
			},
			Permissions: []string{"view_grades", "create_grades", "update_grades", "view_students"},
		})
	})

	r.Post("/auth/refresh", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.RefreshToken == "" {
			writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "refresh token not honored")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"accessToken":  demoToken(15 * time.Minute),
			"refreshToken": "refresh-2",
		})
	})

	r.Post("/auth/logout", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/tenants/{subdomain}", func(w http.ResponseWriter, req *http.Request) {
		sub := chi.URLParam(req, "subdomain")
		if sub != "greenwood" {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "no such tenant")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"id":          "t-greenwood",
			"subdomain":   "greenwood",
			"displayName": "Greenwood High School",
		})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	srv := &http.Server{Handler: r}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "backend: %v\n", err)
		}
	}()
	return srv, "http://" + ln.Addr().String(), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"code": code, "message": message})
}

// demoToken builds an unsigned JWT the engine can decode claims from.
func demoToken(ttl time.Duration) string {
	header, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	payload, _ := json.Marshal(map[string]any{
		"sub":         "u-amina",
		"role":        "teacher",
		"permissions": []string{"view_grades", "create_grades", "update_grades", "view_students"},
		"iat":         time.Now().Unix(),
		"exp":         time.Now().Add(ttl).Unix(),
	})
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + ".unsigned"
}
