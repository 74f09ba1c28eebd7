package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/telebot.v3"

	"github.com/azrahudaya/remindcare/internal/app"
	"github.com/azrahudaya/remindcare/internal/infra/adminweb"
	"github.com/azrahudaya/remindcare/internal/infra/config"
	idb "github.com/azrahudaya/remindcare/internal/infra/database"
	"github.com/azrahudaya/remindcare/internal/infra/logger"
	"github.com/azrahudaya/remindcare/internal/infra/scheduler"
	"github.com/azrahudaya/remindcare/internal/infra/telegram"
	"github.com/azrahudaya/remindcare/internal/timeutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()

	clock, err := timeutil.NewClock(cfg.Timezone)
	if err != nil {
		log.Fatalf("Could not initialize clock: %v", err)
	}

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	ctx := context.Background()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("Could not ensure database schema: %v", err)
	}

	subjectRepo := idb.NewPostgresSubjectRepository(db)
	checkinRepo := idb.NewPostgresCheckinRepository(db)
	visitRepo := idb.NewPostgresVisitRepository(db)

	pref := telebot.Settings{
		Token:  cfg.BotToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := log.WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		log.Fatalf("Could not create bot: %v", err)
	}
	client := telegram.NewTelebotAdapter(bot)

	adminService := app.NewAdminService(subjectRepo, checkinRepo, log.WithField("component", "admin"))
	reminderService := app.NewReminderService(
		subjectRepo, checkinRepo, visitRepo, client,
		log.WithField("component", "reminder"),
		app.ReminderOptions{
			DeliveryPollStartWeek:  cfg.DeliveryPollStartWeek,
			PregnancyWeekLimit:     cfg.PregnancyWeekLimit,
			RetryBaseDelay:         cfg.RetryBaseDelay,
			RetryMaxDelay:          cfg.RetryMaxDelay,
			MaxPollResponsesPerDay: cfg.MaxPollResponsesPerDay,
			LogRetentionDays:       cfg.LogRetentionDays,
		},
	)
	replyService := app.NewReplyService(
		subjectRepo, checkinRepo, visitRepo, client, adminService,
		log.WithField("component", "reply"),
		app.ReplyOptions{
			MaxPollResponsesPerDay: cfg.MaxPollResponsesPerDay,
			DeliveryPollStartWeek:  cfg.DeliveryPollStartWeek,
			EnforceAllowlist:       cfg.EnforceAllowlist,
			AdminChatIDs:           cfg.AdminChatIDs,
			AllowlistChatIDs:       cfg.AllowlistChatIDs,
		},
	)

	limiter := telegram.NewInboundLimiter(cfg.RateLimitPerMinute)
	telegram.RegisterHandlers(ctx, bot, replyService, limiter, clock, log.WithField("component", "telegram"))

	tickScheduler := scheduler.New(
		reminderService, clock,
		log.WithField("component", "scheduler"),
		cfg.TickSpec, cfg.MaxConcurrentSubjects,
	)
	if err := tickScheduler.Start(); err != nil {
		log.Fatalf("Could not start scheduler: %v", err)
	}

	var webServer *adminweb.Server
	if cfg.AdminWebEnabled {
		webServer = adminweb.NewServer(
			adminService, subjectRepo, checkinRepo, visitRepo,
			log.WithField("component", "adminweb"),
			adminweb.Options{
				Port:       cfg.AdminWebPort,
				Username:   cfg.AdminWebUser,
				Password:   cfg.AdminWebPassword,
				SessionTTL: cfg.AdminWebSessionTTL,
			},
		)
		go func() {
			if err := webServer.Start(); err != nil {
				log.WithError(err).Error("Admin web server failed")
			}
		}()
	}

	log.Info("Setup complete, starting bot")
	go bot.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	tickScheduler.Stop()
	bot.Stop()
	if webServer != nil {
		if err := webServer.Close(); err != nil {
			log.WithError(err).Warn("Admin web server close failed")
		}
	}
	log.Info("Shut down gracefully")
}
