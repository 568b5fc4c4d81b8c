package devapi

import (
	"context"

	"github.com/dmitrijs2005/storyqueue/internal/devapi/config"
	"github.com/dmitrijs2005/storyqueue/internal/logging"
	"github.com/dmitrijs2005/storyqueue/internal/netx"
)

// App is the dev story API process.
type App struct {
	config  *config.Config
	logger  logging.Logger
	handler *Handler
}

func NewApp(cfg *config.Config, logger logging.Logger) *App {
	h := NewHandler(NewStore(), NewPusher(cfg.PushTimeout, logger), logger, Options{
		SecretKey: cfg.SecretKey,
		TokenTTL:  cfg.TokenTTL,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})
	return &App{config: cfg, logger: logger, handler: h}
}

// Run serves until ctx is done and then waits for pending push deliveries.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting dev story API...")
	err := netx.Serve(ctx, app.config.ListenAddr, New(app.handler), app.logger, app.config.ShutdownTimeout)
	app.handler.pusher.Wait()
	return err
}
