// Package main is the entry point for the dmxnet Art-Net node.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bbernstein/dmxnet-go/internal/api"
	"github.com/bbernstein/dmxnet-go/internal/config"
	"github.com/bbernstein/dmxnet-go/internal/database"
	"github.com/bbernstein/dmxnet-go/internal/database/models"
	"github.com/bbernstein/dmxnet-go/internal/database/repositories"
	"github.com/bbernstein/dmxnet-go/internal/services/discovery"
	"github.com/bbernstein/dmxnet-go/internal/services/dmx"
	"github.com/bbernstein/dmxnet-go/internal/services/node"
	"github.com/bbernstein/dmxnet-go/internal/services/pubsub"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if len(os.Args) > 1 && os.Args[1] == "poll" {
		os.Exit(runPoll(cfg))
	}

	printBanner(cfg)

	engine, err := node.New(node.Config{
		OEM:        cfg.ArtNetOEM,
		ListenPort: cfg.ArtNetListenPort,
		ShortName:  cfg.ArtNetShortName,
		LongName:   cfg.ArtNetLongName,
		Hosts:      cfg.ArtNetHosts,
		Debug:      cfg.ArtNetDebug,
	})
	if err != nil {
		log.Fatalf("Invalid Art-Net configuration: %v", err)
	}

	var history *repositories.ControllerRepository
	ctx, cancel := context.WithCancel(context.Background())
	var historyDone sync.WaitGroup
	if cfg.HistoryEnabled {
		db, err := database.Connect(database.Config{
			URL:         cfg.DatabaseURL,
			MaxIdleConn: 2,
			MaxOpenConn: 4,
			Debug:       cfg.IsDevelopment() && cfg.ArtNetDebug,
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer func() { _ = database.Close() }()

		history = repositories.NewControllerRepository(db)
		pruneHistory(ctx, history, cfg.HistoryRetention, time.Now(), log.Default())
		// Subscribe before the node starts so no early poll is missed
		sub := engine.Events().Subscribe(pubsub.TopicControllerUpdated, "", 32)
		historyDone.Add(1)
		go func() {
			defer historyDone.Done()
			recordHistory(ctx, engine.Events(), sub, history, log.Default())
		}()
	}

	if err := engine.Start(); err != nil {
		log.Fatalf("Failed to start Art-Net node: %v", err)
	}

	if err := createEndpoints(engine, cfg); err != nil {
		engine.Stop()
		log.Fatalf("Failed to create Art-Net endpoints: %v", err)
	}

	var httpServer *http.Server
	if cfg.HTTPEnabled {
		monitor := api.NewServer(engine, history, api.Options{
			Version:    Version,
			CORSOrigin: cfg.CORSOrigin,
			Debug:      cfg.IsDevelopment() && cfg.ArtNetDebug,
		})
		httpServer = &http.Server{
			Addr:        ":" + cfg.Port,
			Handler:     monitor.Router(),
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		}

		go func() {
			log.Printf("Monitor listening on http://localhost:%s\n", cfg.Port)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server error: %v", err)
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down node...")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		shutdownCancel()
	}

	engine.Stop()
	cancel()
	historyDone.Wait()

	log.Println("Node stopped")
}

// createEndpoints creates the senders and receivers listed in cfg.
func createEndpoints(engine *node.Engine, cfg *config.Config) error {
	senders, err := cfg.Senders()
	if err != nil {
		return err
	}
	receivers, err := cfg.Receivers()
	if err != nil {
		return err
	}

	for _, entry := range senders {
		subUni := int(entry.Address.SubUni())
		if _, _, err := engine.NewSender(dmx.SenderOptions{
			Net:             int(entry.Address.Net()),
			SubUni:          &subUni,
			IP:              entry.IP,
			Port:            entry.Port,
			RefreshInterval: cfg.ArtNetRefreshInterval,
		}); err != nil {
			return fmt.Errorf("sender %s: %w", entry.Address, err)
		}
	}
	for _, addr := range receivers {
		if _, err := engine.NewReceiver(dmx.ReceiverOptions{
			Net:      int(addr.Net()),
			Subnet:   int(addr.SubNet()),
			Universe: int(addr.Universe()),
		}); err != nil {
			return fmt.Errorf("receiver %s: %w", addr, err)
		}
	}
	return nil
}

// recordHistory persists every controller update delivered to sub until ctx
// is done, then unsubscribes.
func recordHistory(ctx context.Context, bus *pubsub.PubSub, sub *pubsub.Subscriber, repo *repositories.ControllerRepository, logger dmx.Logger) {
	defer bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel:
			if !ok {
				return
			}
			c, isController := msg.(discovery.Controller)
			if !isController {
				continue
			}
			if _, err := repo.RecordPoll(ctx, toHistory(c)); err != nil {
				logger.Printf("Failed to record controller %s: %v", c.IP, err)
			}
		}
	}
}

// pruneHistory drops controllers not seen within retention. Zero disables it.
func pruneHistory(ctx context.Context, repo *repositories.ControllerRepository, retention time.Duration, now time.Time, logger dmx.Logger) {
	if retention <= 0 {
		return
	}
	removed, err := repo.DeleteSeenBefore(ctx, now.Add(-retention))
	if err != nil {
		logger.Printf("Failed to prune controller history: %v", err)
		return
	}
	if removed > 0 {
		logger.Printf("Pruned %d controller(s) not seen for %v", removed, retention)
	}
}

func toHistory(c discovery.Controller) models.Controller {
	return models.Controller{
		IP:                c.IP,
		Family:            c.Family,
		LastPoll:          c.LastPoll,
		DiagnosticUnicast: c.DiagnosticUnicast,
		DiagnosticEnable:  c.DiagnosticEnable,
		Unilateral:        c.Unilateral,
		Priority:          int(c.Priority),
	}
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  dmxnet Art-Net Node")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Art-Net:     port %d, OEM 0x%04x\n", cfg.ArtNetListenPort, cfg.ArtNetOEM)
	if cfg.HTTPEnabled {
		fmt.Printf("  Monitor:     :%s\n", cfg.Port)
	}
	if cfg.HistoryEnabled {
		fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	}
	fmt.Println("============================================")
}
