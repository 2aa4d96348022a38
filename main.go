package main

import (
	"context"
	"fmt"
	"net/http"

	"rasdevd/internal/auth"
	"rasdevd/internal/auth/store"
	"rasdevd/internal/auth/token"
	"rasdevd/internal/config"
	"rasdevd/internal/server"
	"rasdevd/pkg/syscfg"
)

func main() {
	cfg := config.FromEnv()
	logger := server.Logger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	var deps server.Deps

	switch cfg.AuthBackend {
	case config.BackendHost:
		h := auth.NewHostAuthenticator(cfg.ShadowPath, cfg.PasswdPath)
		deps.Auth = h
		deps.Perms = auth.AllowSubject("admin")
		logger.Info().Msg("using host shadow database for authentication")
	default:
		st, err := store.Open(ctx, cfg.DBPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open credential store")
		}
		defer st.Close()
		if cfg.SeedPath != "" {
			if err := st.SeedFromFile(ctx, cfg.SeedPath); err != nil {
				logger.Fatal().Err(err).Str("path", cfg.SeedPath).Msg("seed credential store")
			}
		}
		deps.Store = st
		deps.Auth = auth.NewStoreAuthenticator(st)
		deps.Perms = st
	}

	deps.Tokens = token.NewService([]byte(cfg.Secret), cfg.TokenTTL)
	deps.Exec = syscfg.New(syscfg.Options{
		InterfacesPath: cfg.InterfacesPath,
		ResolvPath:     cfg.ResolvPath,
		NetScript:      cfg.NetScript,
		Timeout:        cfg.ExecTimeout,
		Logger:         *logger,
	})

	r := server.NewRouter(cfg, deps)
	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	logger.Info().Msgf("rasdevd listening on http://%s", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
