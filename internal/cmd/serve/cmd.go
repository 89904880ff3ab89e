/*
Copyright The PGSentinel Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package serve implements the "serve" command: the long-running
// supervisor that loads the on-disk configuration, probes every
// managed server, schedules the retention sweep, and hosts the
// management listener (SPEC_FULL.md §2).
package serve

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"

	"github.com/pgsentinel/pgsentinel/internal/configuration"
	"github.com/pgsentinel/pgsentinel/internal/supervisor"
	"github.com/pgsentinel/pgsentinel/pkg/composer"
	"github.com/pgsentinel/pgsentinel/pkg/log"
	"github.com/pgsentinel/pgsentinel/pkg/metrics"
	"github.com/pgsentinel/pgsentinel/pkg/operation"
	"github.com/pgsentinel/pgsentinel/pkg/server"
	"github.com/pgsentinel/pgsentinel/pkg/workflow"
)

// NewCmd creates the "serve" cobra command.
func NewCmd() *cobra.Command {
	var configPath string
	var socketNetwork string
	var socketAddress string
	var logLevel string
	var logDestination string

	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the supervisor process",
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, socketNetwork, socketAddress, logLevel, logDestination)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "/etc/pgsentinel/pgsentinel.yaml", "path to the configuration file")
	cmd.Flags().StringVar(&socketNetwork, "socket-network", "unix", "network the management listener binds on (unix or tcp)")
	cmd.Flags().StringVar(&socketAddress, "socket-address", "/var/run/pgsentinel/pgsentinel.sock",
		"address the management listener binds on")
	cmd.Flags().StringVar(&logLevel, "log-level", log.DefaultLevelString, "log level (error, warning, info, debug, trace)")
	cmd.Flags().StringVar(&logDestination, "log-destination", "", "log file path, empty for stderr")

	return cmd
}

func run(ctx context.Context, configPath, socketNetwork, socketAddress, logLevel, logDestination string) error {
	if _, err := log.New(logLevel, logDestination); err != nil {
		return fmt.Errorf("serve: configuring logging: %w", err)
	}

	config, err := configuration.Load(configPath)
	if err != nil {
		return err
	}

	servers, err := config.BuildServers()
	if err != nil {
		return err
	}

	probeServers(ctx, servers)

	reg := metrics.New(prometheus.NewRegistry())
	sup := supervisor.New(servers, config.EffectiveWorkers(), reg)

	ln, err := net.Listen(socketNetwork, socketAddress)
	if err != nil {
		return fmt.Errorf("serve: listening on %s %s: %w", socketNetwork, socketAddress, err)
	}
	defer ln.Close()

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := configuration.Watch(runCtx, configPath, func(reloaded *configuration.Data) {
		next, err := reloaded.BuildServers()
		if err != nil {
			log.Error(err, "serve: rejecting reloaded configuration")
			return
		}
		probeServers(runCtx, next)
		sup.SetServers(next)
		log.Info("serve: configuration reloaded", "servers", len(next))
	}); err != nil {
		log.Error(err, "serve: watching configuration file")
	}

	scheduler := scheduleRetention(runCtx, servers, config.EffectiveWorkers())
	scheduler.Start()
	defer scheduler.Stop()

	log.Info("serve: listening", "network", socketNetwork, "address", socketAddress)
	return sup.Serve(runCtx, ln)
}

// probeServers opens a short-lived control connection to every server
// to establish its initial Valid/WALStreaming state.
func probeServers(ctx context.Context, servers []*server.Server) {
	connector := &server.PQControlConnector{}
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, srv := range servers {
		if err := connector.Probe(probeCtx, srv); err != nil {
			log.Warning("initial control probe failed", "server", srv.Name, "error", err.Error())
		}
	}
}

// scheduleRetention builds one daily robfig/cron job per server that
// carries a retention policy, reusing operation.Delete as the
// retention stage's DeleteFunc (SPEC_FULL.md §4.3).
func scheduleRetention(ctx context.Context, servers []*server.Server, globalWorkers int) *cron.Cron {
	scheduler := cron.New()

	for _, srv := range servers {
		if srv.RetentionKeepCount <= 0 && srv.RetentionMaxAge <= 0 {
			continue
		}

		srv := srv
		del := func(ctx context.Context, s *server.Server, label string) error {
			result := operation.Delete(ctx, s, label, globalWorkers)
			if !result.Outcome.Status {
				return fmt.Errorf("retention delete of %s: %s", label, result.Outcome.Error)
			}
			return nil
		}

		wf := composer.ComposeRetention(srv, del)
		err := scheduler.AddFunc("@daily", func() {
			bag := workflow.NewBag(false)
			result := workflow.Run(ctx, wf, srv, "", bag)
			if !result.Ok() {
				log.Error(result.Err, "retention sweep failed", "server", srv.Name)
			}
		})
		if err != nil {
			log.Error(err, "serve: scheduling retention sweep", "server", srv.Name)
		}
	}

	return scheduler
}
