package main

import (
	"context"
	"flag"
	"log/slog"

	"BizLink/bot"
	"BizLink/impl/core"
	"BizLink/internal/config"
	"BizLink/internal/connectivity"
	repository "BizLink/internal/database"
	"BizLink/internal/http-server/api"
	"BizLink/internal/lib/fileurl"
	"BizLink/internal/lib/logger"
	"BizLink/internal/lib/sl"
	"BizLink/internal/service/chat"
	"BizLink/internal/ws"
)

func main() {

	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, *logPath)

	// Initialize Telegram bot if enabled
	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		var err error
		tgBot, err = bot.NewTgBot(conf.Telegram.BotName, conf.Telegram.ApiKey, conf.Telegram.AdminId, lg)
		if err != nil {
			lg.Error("failed to initialize telegram bot", slog.String("error", err.Error()))
		} else {
			lg = logger.SetupTelegramHandler(lg, tgBot, slog.LevelError)
			lg.With(
				slog.String("bot_name", conf.Telegram.BotName),
			).Info("telegram bot initialized")
		}
	}

	lg.Info("starting bizlink", slog.String("config", *configPath), slog.String("env", conf.Env))
	lg.Debug("debug messages enabled")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := core.New(lg)

	db, err := repository.NewMongoClient(conf, lg)
	if err != nil {
		lg.With(
			sl.Err(err),
		).Error("mongo client")
	}
	if db == nil {
		lg.Error("mongo is required, nothing to serve")
		return
	}

	if err := db.EnsureIndexes(ctx); err != nil {
		lg.With(
			sl.Err(err),
		).Error("ensure indexes")
	}
	handler.SetRepository(db)
	lg.With(
		slog.String("host", conf.Mongo.Host),
		slog.String("port", conf.Mongo.Port),
		slog.String("user", conf.Mongo.User),
		slog.String("database", conf.Mongo.Database),
	).Info("mongo client initialized")

	monitor := connectivity.NewMonitor(db, conf.Chat.PingInterval, lg)
	go monitor.Run(ctx)

	cache := repository.NewCache(conf, lg)
	if cache != nil {
		lg.With(
			slog.String("host", conf.Redis.Host),
			slog.String("port", conf.Redis.Port),
		).Info("redis cache initialized")
	}

	hub := ws.NewHub(lg)
	hub.SetHandler(handler)
	go hub.Run()

	svc := chat.NewService(db, monitor, conf, lg)
	handler.SetChatService(svc)

	var inboxCache chat.InboxCache
	if cache != nil {
		inboxCache = cache
	}
	sessions := chat.NewManager(svc, inboxCache, hub, conf, lg)
	handler.SetSessionManager(sessions)
	defer sessions.Close()

	handler.SetEvents(hub)
	handler.SetSigner(fileurl.New(conf.Files.Secret, conf.Files.TTL))
	handler.SetMessageWindow(conf.Chat.MessageWindow)

	var stamps chat.SweepStamps
	if cache != nil {
		stamps = cache
	}
	sweeper := chat.NewSweeper(db, stamps, conf, lg)
	go sweeper.Run(ctx)

	// *** blocking start with http server ***
	err = api.New(conf, lg, handler, hub)
	if err != nil {
		lg.Error("server start", sl.Err(err))
		return
	}
	lg.Error("service stopped")
}
