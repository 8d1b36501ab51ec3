package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/GHOUSEPASHAA/chatboxFull/internal/relay"
	"github.com/GHOUSEPASHAA/chatboxFull/internal/server/middleware"
	"github.com/GHOUSEPASHAA/chatboxFull/internal/store"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/config"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/state"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/state/statemanager"
	"github.com/GHOUSEPASHAA/chatboxFull/pkg/transport"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Stores bundles the external collaborators the relay consumes.
type Stores struct {
	Users    store.UserStore
	Groups   store.GroupStore
	Messages store.MessageStore
}

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	relay        *relay.Relay
	wg           sync.WaitGroup
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, stores Stores) *App {
	stateManager := statemanager.NewInMemoryManager(logger)
	eventRelay := relay.New(logger, stateManager, stores.Users, stores.Groups, stores.Messages)

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		relay:        eventRelay,
		config:       cfg,
		ctx:          rootCtx,
	}

	// Cycler closes the user's oldest connection when the limit is hit.
	connCycler := func(userID string) {
		oldest, found := stateManager.FindOldestUserConnection(userID)
		if found {
			logger.Info("Cycling connection: closing oldest", slog.String("userID", userID), slog.String("connID", oldest.ID.String()))
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(logger, cfg.Server.Auth.JWTSecret),
			middleware.NewConnectionLimiter(
				logger,
				stateManager.GetUserConnectionCount,
				connCycler,
				cfg.Server.ConnectionLimit,
			),
		),
	)

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.logger,
	)

	if _, err := a.stateManager.RegisterConnection(conn, reqMeta.IP); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}
	conn.SetOnMessageHandler(a.relay.HandleMessage)
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		connLogger.Info("Connection closed, tearing down session", slog.String("connID", id.String()))
		a.relay.ConnectionClosed(id)
	})

	// Binds the identity, joins the personal room, queues the userId event
	// and announces Online. The userId frame is queued before the pumps
	// start, so it is the first thing the client receives.
	if err := a.relay.SessionEstablished(r.Context(), conn.ID(), reqMeta.UserID); err != nil {
		connLogger.Error("Failed to establish session", slog.Any("error", err))
		conn.Close(err)
		return
	}

	connLogger.Info("User connection fully established")
	conn.Run()
	<-conn.Done()
}

// Shutdown runs the graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, conn := range a.stateManager.GetAllConnections() {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// Wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
