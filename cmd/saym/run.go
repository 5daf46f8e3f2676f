package main

import (
	"context"
	"fmt"

	"github.com/jpcastberg/saym/internal/bot"
	"github.com/jpcastberg/saym/internal/config"
	"github.com/jpcastberg/saym/internal/db"
	"github.com/jpcastberg/saym/internal/logger"
	"github.com/jpcastberg/saym/internal/notify"
	"github.com/jpcastberg/saym/internal/realtime"
	"github.com/jpcastberg/saym/internal/server"
	"github.com/jpcastberg/saym/internal/session"
	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, cfg *config.Config) error {
	logger.Configure(cfg.Verbose, cfg.LogJSON)
	log := logger.New("saym")
	log.Info(fmt.Sprintf("Starting saym v%s", releaseVersion))

	repo, err := db.SetupDB(cfg.DB)
	if err != nil {
		log.Error("Failed to set up database", err)
		return err
	}
	defer repo.CloseConnection()

	registry := realtime.NewRegistry(cfg.SweepInterval, cfg.StaleAfter)

	var sms notify.SMSSender = notify.LogSMS{Logger: logger.New("sms")}
	if cfg.SMSGatewayURL != "" {
		sms = notify.NewSMSGateway(cfg.SMSGatewayURL, cfg.NotifyTimeout)
	}
	var push notify.PushSender
	if cfg.PushEnabled() {
		push = notify.NewWebPushSender(cfg.VAPIDPublic, cfg.VAPIDPrivate, cfg.VAPIDSubject, cfg.NotifyTimeout)
	} else {
		log.Warn("VAPID keys not configured, web push disabled")
	}
	dispatcher := notify.NewDispatcher(registry, repo, push, sms)
	dispatcher.Timeout = cfg.NotifyTimeout
	defer dispatcher.Wait()

	var generator bot.WordGenerator = bot.FallbackGenerator{}
	if cfg.WordAPIURL != "" {
		generator = bot.NewHTTPGenerator(cfg.WordAPIURL, cfg.NotifyTimeout)
	}
	scheduler := bot.NewScheduler(generator, cfg.BotDelay)
	defer scheduler.Stop()

	service := session.NewService(repo, dispatcher, scheduler, sms)
	scheduler.SetSubmitter(service)

	gs := server.NewGameServer(service, registry, cfg.BaseURL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return registry.Run(gctx) })
	g.Go(func() error { return gs.Run(gctx, cfg.Addr(), cfg.TLSCert, cfg.TLSKey) })
	err = g.Wait()
	log.Info("Goodbye !")
	return err
}
