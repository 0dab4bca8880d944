package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go-modguard/internal/bot"
	"go-modguard/internal/commands"
	"go-modguard/internal/config"
	"go-modguard/internal/database"
	"go-modguard/internal/decision"
	"go-modguard/internal/detectors"
	"go-modguard/internal/dispatcher"
	"go-modguard/internal/engine"
	"go-modguard/internal/platform"
	"go-modguard/internal/state"
	"go-modguard/internal/watchdog"
)

const gatewayComponent = "gateway"

type Components struct {
	DB         *database.Database
	Windows    state.WindowStore
	Session    *bot.Session
	Platform   *platform.Discord
	Locks      *decision.SubjectLocks
	Executor   *dispatcher.Executor
	Dispatcher *dispatcher.Dispatcher
	Engine     *engine.Engine
	Matcher    *detectors.PatternMatcher
	Commands   *commands.Handler
	Handlers   *bot.Handlers
	Watchdog   *watchdog.Watchdog

	cancelHandlers context.CancelFunc
}

func Wire(cfg *config.Config, logger *slog.Logger) (*Components, error) {
	logger.Info("wiring components")

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var windows state.WindowStore
	switch strings.ToLower(cfg.State.Backend) {
	case "redis":
		rws, err := state.NewRedisWindowStore(cfg.State.RedisURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		windows = rws
	default:
		windows = state.NewMemWindowStore()
	}

	session, err := bot.New(cfg.Bot.Token, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	plat := platform.NewDiscord(session.Discord())

	tracker := state.NewTracker(windows)
	locks := decision.NewSubjectLocks(cfg.Dispatch.SubjectLockTTL.Std())

	antinuke := detectors.NewAntiNuke(db, plat, tracker, logger)
	antinuke.Timeout = cfg.AntiNuke.Timeout.Std()
	matcher := detectors.NewPatternMatcher(db, logger, cfg.Automod.RuleCacheSize, cfg.Automod.RuleCacheTTL.Std())
	spam := detectors.NewSpamDetector(db, tracker, logger)
	spam.CharRepeatMode = detectors.CharRepeatMode(cfg.Spam.CharRepeatMode)
	escalator := decision.NewEscalator(db, logger)

	executor := dispatcher.NewExecutor(plat, db, locks, logger, dispatcher.ExecutorConfig{
		WarningTTL:      cfg.Automod.WarningTTL.Std(),
		NotifyPerSecond: cfg.Dispatch.NotifyPerSecond,
		NotifyBurst:     cfg.Dispatch.NotifyBurst,
	})
	executor.SetEscalation(escalator.Evaluate)
	disp := dispatcher.NewDispatcher(executor, cfg.Dispatch.MaxInFlight, cfg.Dispatch.Timeout.Std(), logger)

	wd := watchdog.NewWatchdog(cfg.Engine.SweepInterval.Std(), logger)
	wd.RegisterComponent(engine.SweeperComponent, 3*cfg.Engine.SweepInterval.Std())
	wd.RegisterComponent(gatewayComponent, 2*time.Minute)

	eng := engine.New(engine.Deps{
		AntiNuke:  antinuke,
		Patterns:  matcher,
		Spam:      spam,
		Escalator: escalator,
		Tracker:   tracker,
		Locks:     locks,
		Dispatch:  disp,
		Watchdog:  wd,
		Logger:    logger,
	}, engine.Config{
		SweepInterval: cfg.Engine.SweepInterval.Std(),
		WindowIdle:    cfg.Engine.WindowIdle.Std(),
		DedupeSize:    cfg.Engine.DedupeSize,
		DedupeTTL:     cfg.Engine.DedupeTTL.Std(),
	})

	handlerCtx, cancel := context.WithCancel(context.Background())
	actors := bot.NewActorResolver(bot.SessionAuditLog(session.Discord()), cfg.Engine.ActorCacheTTL.Std(), logger)
	handlers := bot.NewHandlers(handlerCtx, eng, actors, db, cfg.GuildDefaults, logger)

	logger.Info("component wiring complete")
	return &Components{
		DB:             db,
		Windows:        windows,
		Session:        session,
		Platform:       plat,
		Locks:          locks,
		Executor:       executor,
		Dispatcher:     disp,
		Engine:         eng,
		Matcher:        matcher,
		Commands:       commands.NewHandler(db, eng, matcher, logger),
		Handlers:       handlers,
		Watchdog:       wd,
		cancelHandlers: cancel,
	}, nil
}

func StartAll(ctx context.Context, cfg *config.Config, c *Components, logger *slog.Logger) error {
	logger.Info("starting components")

	// handlers must be registered before connecting
	c.Handlers.Register(c.Session)

	if err := c.Session.Connect(); err != nil {
		return err
	}

	c.Session.SyncGuilds(ctx, c.DB, cfg.GuildDefaults)

	appID := cfg.Bot.ClientID
	if appID == "" {
		appID = c.Platform.BotID()
	}
	if err := c.Commands.Register(c.Session.Discord(), appID); err != nil {
		return err
	}
	return nil
}

// watchGateway reports the gateway healthy while discordgo keeps receiving
// heartbeat acks.
func watchGateway(ctx context.Context, s *bot.Session, wd *watchdog.Watchdog, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			dg := s.Discord()
			dg.RLock()
			lastAck := dg.LastHeartbeatAck
			dg.RUnlock()
			if time.Since(lastAck) < 2*time.Minute {
				wd.Heartbeat(gatewayComponent)
			}
		}
	}
}
