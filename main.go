package main

import (
	"context"
	"flag"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"TableWatch/bot"
	"TableWatch/bot/chat"
	"TableWatch/bot/chat/reservation"
	"TableWatch/entity"
	"TableWatch/impl/core"
	"TableWatch/internal/config"
	"TableWatch/internal/database"
	"TableWatch/internal/http-server/api"
	"TableWatch/internal/lib/logger"
	"TableWatch/internal/lib/sl"
	"TableWatch/internal/metrics"
	"TableWatch/internal/scheduler"
	"TableWatch/internal/service/provider"
	"TableWatch/internal/ws"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	// admin bot receives warnings and issues api keys
	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", sl.Err(err))
		} else {
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelWarn)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")
		}
	}

	lg.Info("starting tablewatch", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	metrics.MustRegister()

	loc, err := time.LoadLocation(conf.Watch.Timezone)
	if err != nil {
		lg.Error("load timezone, using local", slog.String("timezone", conf.Watch.Timezone), sl.Err(err))
		loc = time.Local
	}

	db, err := repository.NewMongoClient(conf, lg)
	if err != nil || db == nil {
		lg.Error("mongo client", sl.Err(err))
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err = db.EnsureIndexes(ctx); err != nil {
		lg.Error("ensure indexes", sl.Err(err))
	}
	lg.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("port", conf.Mongo.Port),
		slog.String("user", conf.Mongo.User),
		slog.String("database", conf.Mongo.Database),
	).Info("mongo client initialized")

	hub := ws.NewHub(lg)
	go hub.Run()

	handler := core.New(lg)
	handler.SetAuthKey(conf.Listen.ApiKey)
	handler.SetRepository(db)
	handler.SetEventSink(hub)

	if tgBot != nil {
		tgBot.SetKeyIssuer(handler)
		go func() {
			if err := tgBot.Start(); err != nil {
				lg.Error("telegram bot error", sl.Err(err))
			}
		}()
	}

	schedule := scheduler.ScheduleFromConfig(conf.Watch.PollSchedule)
	cacheTTL := time.Duration(conf.Watch.RestaurantCacheHours) * time.Hour

	var userBots []*bot.UserBot
	integrations := []struct {
		conf   config.Provider
		client provider.Client
		vocab  *reservation.Vocabulary
	}{
		{conf.Resy, provider.NewResy(conf.Resy, lg), reservation.ResyVocabulary()},
		{conf.OpenTable, provider.NewOpenTable(conf.OpenTable, lg), reservation.OpenTableVocabulary()},
	}
	for _, it := range integrations {
		if !it.conf.Enabled {
			continue
		}
		name := it.client.Name()
		log := lg.With(slog.String("provider", name))

		client := provider.NewCached(it.client, db, cacheTTL, lg)

		userBot, err := bot.NewUserBot(name, it.conf.BotName, it.conf.BotToken, lg)
		if err != nil {
			log.Error("failed to initialize user bot", sl.Err(err))
			continue
		}

		registry := reservation.NewRegistry(name, it.vocab, client, time.Now, loc)
		engine := chat.NewEngine(registry, chat.NewFlowManager(), client, db, it.vocab.Phrases, conf.Watch.MaxSubscriptions, lg)
		engine.SetListener(handler)
		userBot.SetEngine(engine, it.vocab)
		userBot.SetWatches(handler)

		notifier := bot.NewNotifier(name, userBot.Messenger(), it.vocab, lg)
		notifier.SetBlockMarker(db)

		poller := scheduler.New(name, db, client, notifier, scheduler.Options{
			ExpirationWindow: time.Duration(conf.Watch.ExpirationHours) * time.Hour,
			DayStartHour:     conf.Watch.DayStartHour,
			DayEndHour:       conf.Watch.DayEndHour,
			Location:         loc,
			Schedule:         schedule,
		}, lg)
		poller.SetListener(handler)
		handler.AddPoller(poller)
		poller.Start(ctx)

		go func() {
			if err := userBot.Start(); err != nil {
				log.Error("user bot error", sl.Err(err))
			}
		}()
		userBots = append(userBots, userBot)

		log.With(
			slog.String("bot_name", it.conf.BotName),
			sl.Secret("token", it.conf.Token),
		).Info("provider initialized")
	}
	if len(userBots) == 0 {
		lg.Warn("no provider enabled", slog.String("expected", entity.ProviderResy+", "+entity.ProviderOpenTable))
	}

	server := api.New(conf, lg, handler, hub)
	go func() {
		if err := server.Start(); err != nil {
			lg.Error("server start", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	handler.Stop()
	for _, b := range userBots {
		b.Stop()
	}
	if tgBot != nil {
		tgBot.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		lg.Error("server shutdown", sl.Err(err))
	}
	lg.Info("service stopped")
}
