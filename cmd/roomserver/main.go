// Package main implements the multi-room realtime server: Chat, Drawing,
// Gobang, and LiveWar rooms over a single binary Envelope-framed websocket
// transport.
//
// Architecture Overview:
//   - Uses WebSocket for real-time bidirectional communication with clients
//   - Each room owns its own state machine and background tasks
//   - LiveWar rooms run a 100ms simulation tick; the others are event-driven
//   - Bearer tokens are resolved to an identity at connect time, degrading
//     silently to anonymous on any failure
//
// Connection Flow:
//  1. Client connects via WebSocket to /room/ws/{room_type}/{room_id}
//  2. Server resolves the bearer token (if any) to an identity
//  3. Server looks up or creates the room manager for that key
//  4. The manager takes over framing for the lifetime of the connection
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roomforge/server/internal/authz"
	"github.com/roomforge/server/internal/chatroom"
	"github.com/roomforge/server/internal/config"
	"github.com/roomforge/server/internal/drawingroom"
	"github.com/roomforge/server/internal/gobangroom"
	"github.com/roomforge/server/internal/livewar"
	"github.com/roomforge/server/internal/logging"
	"github.com/roomforge/server/internal/rooms"
	"github.com/roomforge/server/internal/transport"
)

const cleanupInterval = 30 * time.Second

var log = logging.Component("main")

func main() {
	cfg := config.Load()

	log.Info().Msg("=================================")
	log.Info().Msg("  Room Forge Realtime Server")
	log.Info().Msg("=================================")
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("listening config")
	log.Info().Int("map_width", cfg.MapWidth).Int("map_height", cfg.MapHeight).Msg("livewar map config")
	log.Info().Msg("=================================")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := rooms.NewRegistry(ctx)
	registry.Register(rooms.TypeChat, chatroom.NewManager)
	registry.Register(rooms.TypeDrawing, drawingroom.NewManager)
	registry.Register(rooms.TypeGobang, gobangroom.NewManager)
	registry.Register(rooms.TypeLiveWar, livewar.NewManager)

	resolver := authz.NewResolver(cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTExpiry, nil)
	srv := transport.NewServer(registry, resolver, cfg.EnableCORS)

	mux := http.NewServeMux()
	srv.Routes(mux)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}

	go runCleanupLoop(ctx, registry)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server error")
	}
}

// runCleanupLoop periodically reaps empty rooms, mirroring the teacher's
// 30s Matchmaker.CleanupEmptyRooms background goroutine.
func runCleanupLoop(ctx context.Context, registry *rooms.Registry) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.CleanupEmpty(); n > 0 {
				log.Info().Int("count", n).Msg("reaped empty rooms")
			}
		}
	}
}
