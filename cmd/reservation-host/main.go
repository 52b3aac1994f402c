// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Command reservation-host publishes a game session in the session directory and
// admits players into it through a reservation beacon.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/zipkin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AccelByte/extend-session-matchmaker/pkg/beacon"
	"github.com/AccelByte/extend-session-matchmaker/pkg/config"
	"github.com/AccelByte/extend-session-matchmaker/pkg/constants"
	"github.com/AccelByte/extend-session-matchmaker/pkg/directory"
	"github.com/AccelByte/extend-session-matchmaker/pkg/envelope"
	"github.com/AccelByte/extend-session-matchmaker/pkg/eventlog"
	"github.com/AccelByte/extend-session-matchmaker/pkg/matchmaking"
	"github.com/AccelByte/extend-session-matchmaker/pkg/metrics"
	"github.com/AccelByte/extend-session-matchmaker/pkg/models"
	"github.com/AccelByte/extend-session-matchmaker/pkg/reservation"
	"github.com/AccelByte/extend-session-matchmaker/pkg/scheduler"
	"github.com/AccelByte/extend-session-matchmaker/pkg/utils"
)

const refreshInterval = 2 * time.Second

type flags struct {
	playerID      string
	advertiseHost string
	displayName   string
	gameMode      string
	mapName       string
	maxPlayers    int
	elo           int
	hidden        bool
}

func parseFlags() flags {
	var f flags
	pflag.StringVar(&f.playerID, "player-id", "", "id the session is owned by (required)")
	pflag.StringVar(&f.advertiseHost, "advertise-host", "127.0.0.1", "host name players reach the beacon on")
	pflag.StringVar(&f.displayName, "display-name", "", "advertised session name")
	pflag.StringVar(&f.gameMode, "game-mode", "", "advertised game mode")
	pflag.StringVar(&f.mapName, "map", "", "advertised map")
	pflag.IntVar(&f.maxPlayers, "max-players", 8, "public slots of the session")
	pflag.IntVar(&f.elo, "elo", 1000, "advertised skill rating")
	pflag.BoolVar(&f.hidden, "hidden", false, "hide the session from regular searches")
	pflag.Parse()
	return f
}

func main() {
	f := parseFlags()
	if f.playerID == "" {
		fmt.Fprintln(os.Stderr, "--player-id is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(cfg.ZipkinEndpoint)
	if err != nil {
		logrus.Fatalf("failed to set up tracing: %v", err)
	}
	defer shutdownTracing()

	if err := run(ctx, cfg, f); err != nil && !errors.Is(err, context.Canceled) {
		logrus.Fatalf("reservation host stopped: %v", err)
	}
}

func setupTracing(endpoint string) (func(), error) {
	otel.SetTextMapPropagator(b3.New())
	if endpoint == "" {
		return func() {}, nil
	}
	exporter, err := zipkin.New(endpoint)
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}, nil
}

func newBackend(cfg *config.Config) directory.Backend {
	if cfg.RedisAddr == "" {
		logrus.Warn("REDIS_ADDR not set, using an in-memory session directory")
		return directory.NewMemoryBackend()
	}
	cli := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	return directory.NewRedisBackend(cli, "sessions")
}

// beaconHandler serves the beacon once the session exists.
type beaconHandler struct {
	host atomic.Pointer[beacon.Host]
}

func (h *beaconHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := h.host.Load()
	if host == nil {
		http.Error(w, "session not ready", http.StatusServiceUnavailable)
		return
	}
	host.ServeHTTP(w, r)
}

func run(ctx context.Context, cfg *config.Config, f flags) error {
	scope := envelope.NewRootScope(ctx, "reservation-host", "")
	defer scope.Finish()
	scope = scope.WithField("playerID", f.playerID)

	registry := prometheus.NewRegistry()
	mm := metrics.NewMetrics(registry)

	loop := scheduler.New()
	beaconAddr := net.JoinHostPort(f.advertiseHost, strconv.Itoa(cfg.BeaconPort))
	dir := directory.NewService(scope, loop, newBackend(cfg), f.playerID,
		directory.WithHostAddress(beaconAddr),
		directory.WithCallTimeout(cfg.SearchTimeout),
		directory.WithMaxResults(cfg.MaxSearchResults))

	var publisher *eventlog.Publisher
	if cfg.KafkaBrokers != "" {
		prod, err := eventlog.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		publisher = eventlog.NewPublisher(scope, prod, cfg.KafkaTopic)
		defer publisher.Close()
	}

	handler := &beaconHandler{}
	mux := http.NewServeMux()
	mux.Handle(beacon.Path, handler)
	beaconSrv := &http.Server{Addr: cfg.BeaconListenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), ReadHeaderTimeout: 5 * time.Second}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return loop.Run(ctx) })
	if publisher != nil {
		group.Go(func() error { return publisher.Run(ctx) })
	}
	for _, srv := range []*http.Server{beaconSrv, metricsSrv} {
		srv := srv
		group.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = beaconSrv.Shutdown(shutdownCtx)
		_ = metricsSrv.Shutdown(shutdownCtx)
		return nil
	})

	created := make(chan error, 1)
	err := loop.Call(ctx, func() {
		policy := matchmaking.New(scope, loop, dir, beacon.WebsocketDialer{}, cfg, matchmaking.WithMetrics(mm))
		if publisher != nil {
			publisher.ObservePolicy(f.playerID, policy)
		}
		policy.OnComplete(func(_ string, result models.CompleteResult, reason models.FailureReason) {
			if result != models.CompleteResultSessionCreated {
				created <- fmt.Errorf("create session: %s (%s)", result, reason)
				return
			}
			serve(scope, loop, dir, cfg, mm, handler)
			created <- nil
		})

		params := models.MatchmakingParams{
			ControllerID:      f.playerID,
			MaxSearchAttempts: 1,
			HostParams: models.HostParams{
				DisplayName:         f.displayName,
				GameMode:            f.gameMode,
				MapName:             f.mapName,
				MaxPlayers:          f.maxPlayers,
				Elo:                 f.elo,
				Hidden:              f.hidden,
				ShouldAdvertise:     true,
				AllowJoinInProgress: true,
			},
		}
		if err := policy.StartMatchmaking(constants.GameSessionName, params, models.MatchmakingFlags{}, models.MatchmakingModeCreateOnly, 0, nil); err != nil {
			scope.Log.Errorf("start session: %v", err)
		}
	})
	if err != nil {
		return err
	}

	select {
	case err := <-created:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	return group.Wait()
}

// serve attaches a ledger to the created session and keeps completing reservations of players
// the directory reports as arrived. Runs on the loop.
func serve(scope *envelope.Scope, loop *scheduler.Loop, dir *directory.Service, cfg *config.Config, mm metrics.MatchmakingMetrics, handler *beaconHandler) {
	named, _ := dir.GetNamedSession(constants.GameSessionName)
	roster := reservation.NewDirectoryRoster(dir, constants.GameSessionName)
	ledger := reservation.NewLedger(scope, loop, named.SessionID, named.Settings.Capacity()-1, cfg.ReservationExpiry,
		reservation.WithRoster(roster),
		reservation.WithBanChecker(roster),
		reservation.WithMetrics(mm))
	handler.host.Store(beacon.NewHost(scope, ledger, named.SessionID, beacon.WithLoop(loop), beacon.WithSecret(cfg.BeaconSecret)))
	scope.Log.WithField("sessionID", named.SessionID).Infof("session open for %d reservations", ledger.MaxReservations())

	loop.Every(refreshInterval, func() {
		dir.RefreshSession(constants.GameSessionName, func(ok bool) {
			if !ok {
				return
			}
			current, _ := dir.GetNamedSession(constants.GameSessionName)
			for _, res := range ledger.Reservations() {
				for _, member := range res.Members {
					if !member.Completed && utils.Contains(current.RegisteredPlayers, member.PlayerID) {
						ledger.CompleteReservation(member.PlayerID)
					}
				}
			}
		})
	})
}
