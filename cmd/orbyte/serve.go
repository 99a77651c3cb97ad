package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"orbyte.systems/orbyte"
	"orbyte.systems/orbyte/core"
	"orbyte.systems/orbyte/httpapi"
	"orbyte.systems/orbyte/internal/appconfig"
	"orbyte.systems/orbyte/internal/scriptexec"
	"orbyte.systems/orbyte/schema"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orbyte panel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}

			serverCfg := toServerConfig(cfg)
			server, err := orbyte.New(serverCfg, orbyte.ServerDeps{
				ServiceDeps: core.ServiceDeps{
					Logger: logger,
				},
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func toServerConfig(cfg appconfig.Config) orbyte.ServerConfig {
	return orbyte.ServerConfig{
		Service: schema.ServiceConfig{
			ScriptsRoot:     cfg.ScriptsRoot,
			StateDir:        cfg.StateDir,
			ScriptExt:       cfg.Scripts.Ext,
			NameMax:         cfg.Scripts.NameMax,
			ConsoleMaxLines: cfg.Scripts.ConsoleMaxLines,
		},
		HTTP: httpapi.Config{
			Addr:                cfg.HTTP.Addr,
			PanelToken:          cfg.HTTP.PanelToken,
			BasePath:            cfg.HTTP.BasePath,
			InitialConsoleLines: cfg.HTTP.InitialConsoleLines,
		},
		Exec: scriptexec.Config{
			Timeout: time.Duration(cfg.Exec.TimeoutSeconds) * time.Second,
		},
		HubHistory: 1000,
	}
}
