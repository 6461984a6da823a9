package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/KuramaSyu/inu-sub000/internal/autoroles"
	"github.com/KuramaSyu/inu-sub000/internal/config"
	"github.com/KuramaSyu/inu-sub000/internal/interaction"
	"github.com/KuramaSyu/inu-sub000/internal/lavalink"
	"github.com/KuramaSyu/inu-sub000/internal/music"
	"github.com/KuramaSyu/inu-sub000/internal/music/resolver"
	"github.com/KuramaSyu/inu-sub000/internal/pipeline"
	"github.com/KuramaSyu/inu-sub000/internal/polls"
	"github.com/KuramaSyu/inu-sub000/internal/repositories/history"
	"github.com/KuramaSyu/inu-sub000/internal/repositories/musicprefs"
	"github.com/KuramaSyu/inu-sub000/internal/repositories/postgres"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	dg, err := discordgo.New("Bot " + cfg.Bot.DiscordToken)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	// Postgres
	db, err := postgres.Open(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrated")

	pollRepo := postgres.NewPollRepo(db)
	tagRepo := postgres.NewTagRepo(db)
	autoroleRepo := postgres.NewAutoroleRepo(db)
	guildRepo := postgres.NewGuildRepo(db)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	{
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
	}
	defer redisClient.Close()
	log.Println("Successfully connected to Redis")

	historyRepo := history.NewRedisRepository(&history.RedisRepoConfig{Client: redisClient})
	prefsRepo := musicprefs.NewRedisRepository(&musicprefs.RedisRepoConfig{Client: redisClient})

	// Interaction core
	registry := interaction.NewRegistry(&interaction.RegistryConfig{
		Transport: interaction.NewSessionTransport(dg),
	})
	waiter := interaction.NewWaiter()
	pipe := pipeline.New(&pipeline.Config{Registry: registry, Waiter: waiter})
	pipe.Use(
		pipeline.RecoveryMiddleware(),
		pipeline.LoggingMiddleware(),
		pipeline.ErrorMiddleware(),
		pipeline.DeferMiddleware(),
	)

	group, groupCtx := errgroup.WithContext(ctx)

	// Audio gateway
	var musicRegistry *music.Registry
	if cfg.Lavalink.Connect {
		lavaClient, err := lavalink.NewClient(&lavalink.Config{
			Address:  cfg.Lavalink.IP,
			Password: cfg.Lavalink.Password,
			UserID:   botUserID(dg),
		})
		if err != nil {
			log.Fatalf("Failed to create lavalink client: %v", err)
		}
		if err := lavaClient.Connect(groupCtx); err != nil {
			log.Fatalf("Failed to connect to lavalink: %v", err)
		}
		pool := lavalink.NewPool(lavaClient)

		trackResolver := resolver.New(&resolver.Config{
			Loader:  lavaClient,
			Tags:    tagRepo,
			History: historyRepo,
			Prefs:   prefsRepo,
		})
		musicRegistry = music.NewRegistry(&music.RegistryConfig{
			Session:  dg,
			Pool:     pool,
			Resolver: trackResolver,
			History:  historyRepo,
			Waiter:   waiter,
		})
		voiceController := music.NewVoiceController(dg, musicRegistry)

		pipe.Register(music.NewRouter(musicRegistry))
		dg.AddHandler(voiceController.HandleVoiceStateUpdate)
		dg.AddHandler(func(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
			node := pool.Node(e.GuildID)
			if err := node.OnVoiceServerUpdate(context.Background(), e.Token, e.Endpoint); err != nil {
				log.Printf("[Lavalink] voice server forward failed: %v", err)
			}
		})
		dg.AddHandler(func(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
			if s.State == nil || s.State.User == nil || e.UserID != s.State.User.ID {
				return
			}
			node := pool.Node(e.GuildID)
			if err := node.OnVoiceStateUpdate(context.Background(), e.SessionID); err != nil {
				log.Printf("[Lavalink] voice state forward failed: %v", err)
			}
		})

		group.Go(func() error { return musicRegistry.Run(groupCtx) })
	} else {
		log.Println("Lavalink disabled, music commands unavailable")
	}

	// Autoroles
	autoroleService := autoroles.NewService(&autoroles.Config{
		Store: autoroleRepo,
		Roles: autoroles.NewDiscordRoleManager(dg),
	})
	if err := autoroleService.Load(ctx); err != nil {
		log.Fatalf("Failed to load autoroles: %v", err)
	}
	group.Go(func() error { return autoroleService.Run(groupCtx) })

	// Polls
	pollEngine := polls.New(&polls.Config{Session: dg, Store: pollRepo})
	dg.AddHandler(pollEngine.HandleReactionAdd)
	dg.AddHandler(pollEngine.HandleReactionRemove)

	// Track the canonical guild list.
	dg.AddHandler(func(s *discordgo.Session, e *discordgo.GuildCreate) {
		if err := guildRepo.Ensure(context.Background(), e.ID); err != nil {
			log.Printf("Failed to record guild %s: %v", e.ID, err)
		}
	})

	dg.AddHandler(pipe.HandleInteraction)

	if err := dg.Open(); err != nil {
		log.Fatalf("Failed to open Discord connection: %v", err)
	}
	defer func() {
		if err := dg.Close(); err != nil {
			log.Printf("Failed to close Discord connection: %v", err)
		}
	}()

	if err := registerCommands(dg, os.Getenv("GUILD_ID")); err != nil {
		log.Printf("Failed to register commands: %v", err)
		return
	}

	// Reschedule poll finalizers that were pending before the restart.
	if err := pollEngine.Rescan(ctx); err != nil {
		log.Printf("Failed to rescan polls: %v", err)
	}

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	<-ctx.Done()
	fmt.Println("Shutting down...")

	stop()
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Printf("Background worker error: %v", err)
	}
}

// botUserID resolves the bot's user id before the gateway Ready event,
// which the lavalink handshake needs.
func botUserID(dg *discordgo.Session) string {
	if dg.State != nil && dg.State.User != nil {
		return dg.State.User.ID
	}
	user, err := dg.User("@me")
	if err != nil {
		log.Fatalf("Failed to resolve bot user: %v", err)
	}
	return user.ID
}
