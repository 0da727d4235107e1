package main

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/kollektive-hackathon/luckybase-backend/internal/action"
	"github.com/kollektive-hackathon/luckybase-backend/internal/directory"
	"github.com/kollektive-hackathon/luckybase-backend/internal/duel"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/blockchain"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/config"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/middleware"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/luckybase-backend/internal/pkg/pubsub"
	pkgws "github.com/kollektive-hackathon/luckybase-backend/internal/pkg/ws"
	"github.com/kollektive-hackathon/luckybase-backend/internal/ws"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Address the simulated chain signs as when no key is configured.
var devSender = common.HexToAddress("0x00000000000000000000000000000000000dE7e1")

func main() {
	cfg, err := config.Load(config.SetupViper())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupZerolog(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	units := model.AssetUnits{
		NativeSymbol:  cfg.NativeSymbol,
		TokenSymbol:   cfg.TokenSymbol,
		TokenDecimals: cfg.TokenDecimals,
	}

	gateway, closeGateway := setupGateway(ctx, cfg)
	defer closeGateway()

	hub := pkgws.NewNotificationHub()
	store := setupSnapshotStore(cfg)
	refresher := directory.NewRefresher(directory.NewBuilder(gateway, cfg.DirectoryWindow, units), store, hub, time.Now)

	duelService := duel.NewService(refresher, gateway, hub, units, time.Now)
	refresher.OnRefresh(duelService.Broadcast)

	submitter, err := action.NewSubmitter(gateway, setupActionLog(cfg), action.Config{
		Units:          units,
		TokenAddress:   common.HexToAddress(cfg.TokenAddress),
		MinStakeNative: cfg.MinStakeNative,
		MinStakeToken:  cfg.MinStakeToken,
		Timeout:        cfg.ActionTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid stake policy")
	}
	submitter.WithRefresher(refresher).WithNotifier(hub)

	if events := setupPubSub(ctx, cfg, refresher); events != nil {
		submitter.WithEvents(events)
		defer func() {
			events.Flush()
			events.Close()
		}()
	}

	if _, err := refresher.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial directory refresh failed")
	}
	scheduler := setupScheduler(refresher, cfg.DirectoryPollInterval)
	defer scheduler.Shutdown()

	apiRouter := setupApiRouter(refresher, duelService, submitter, hub)
	server := &http.Server{
		Addr:         cfg.Port,
		Handler:      apiRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Port).Str("chain_mode", cfg.ChainMode).Msg("Starting luckybase api")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	submitter.Wait()
	refresher.Wait()
}

func setupGateway(ctx context.Context, cfg *config.Config) (blockchain.Gateway, func()) {
	if cfg.ChainMode == config.ChainModeSimulated {
		sender := devSender
		if cfg.SignerPrivateKey != "" {
			address, err := blockchain.AddressFromKey(cfg.SignerPrivateKey)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid SIGNER_PRIVATE_KEY")
			}
			sender = address
		}
		token := common.HexToAddress(cfg.TokenAddress)
		sim := blockchain.NewSimulatedGateway(token, sender, time.Now)

		funds, _ := new(big.Int).SetString("1000000000000000000000000", 10)
		sim.Fund(sender, model.NativeAsset(), funds)
		sim.Fund(sender, model.TokenAsset(token), funds)
		log.Warn().Str("sender", sender.Hex()).Msg("Using simulated chain")
		return sim, func() {}
	}

	gateway, err := blockchain.NewEthGateway(ctx, blockchain.EthGatewayConfig{
		RpcUrl:           cfg.RpcUrl,
		ContractAddress:  cfg.ContractAddress,
		TokenAddress:     cfg.TokenAddress,
		SignerPrivateKey: cfg.SignerPrivateKey,
		BatchSize:        cfg.RpcBatchSize,
		Parallelism:      cfg.RpcParallelism,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to chain")
	}
	return gateway, gateway.Close
}

func setupSnapshotStore(cfg *config.Config) directory.SnapshotStore {
	if cfg.RedisUrl == "" {
		return directory.NewMemoryStore()
	}
	store, err := directory.NewRedisStoreFromURL(cfg.RedisUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize redis")
	}
	return store
}

func setupActionLog(cfg *config.Config) action.Log {
	if cfg.DbUrl == "" {
		return action.NewMemoryLog()
	}
	actions := action.NewGormLog(setupDb(cfg.DbUrl))
	if err := actions.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate action log")
	}
	return actions
}

func setupDb(dbUrl string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dbUrl), &gorm.Config{})

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	sqlDb, _ := db.DB()

	sqlDb.SetMaxOpenConns(50)
	sqlDb.SetConnMaxLifetime(time.Minute * 10)

	return db
}

func setupPubSub(ctx context.Context, cfg *config.Config, refresher *directory.Refresher) *pubsub.Client {
	if cfg.GoogleProjectId == "" {
		return nil
	}
	client, err := pubsub.NewClient(ctx, cfg.GoogleProjectId)
	if err != nil {
		log.Error().Err(err).Msg("Pub/Sub disabled")
		return nil
	}

	if cfg.RefreshSubscription != "" {
		go func() {
			if err := client.Subscribe(ctx, refresher.RefreshSubscription(cfg.RefreshSubscription)); err != nil {
				log.Error().Err(err).Str("subscription", cfg.RefreshSubscription).Msg("Refresh subscription stopped")
			}
		}()
	}
	return client
}

func setupScheduler(refresher *directory.Refresher, interval time.Duration) gocron.Scheduler {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}
	if _, err := refresher.Schedule(scheduler, interval); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule directory refresh")
	}
	scheduler.Start()
	return scheduler
}

func setupApiRouter(refresher *directory.Refresher, duelService *duel.Service, submitter *action.Submitter, hub *pkgws.WebSocketNotificationHub) *gin.Engine {
	apiRouter := gin.New()
	apiRouter.Use(gin.Logger())
	middleware.RegisterGlobalMiddleware(apiRouter)

	routerGroup := apiRouter.Group("/luckybase-api")

	duel.RegisterRoutes(routerGroup, duelService)
	action.RegisterRoutes(routerGroup, submitter, refresher)
	ws.RegisterRoutes(routerGroup, hub, duelService, submitter)

	return apiRouter
}

func setupZerolog(level string) {
	zerolog.LevelFieldName = "severity"
	zerolog.TimestampFieldName = "time"
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}
