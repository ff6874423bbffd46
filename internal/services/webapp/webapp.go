package webapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cctv-checklist/internal/adapters/schema"
	sqliteadapter "cctv-checklist/internal/adapters/store/sqlite"
	"cctv-checklist/internal/app"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/autosave"
	"cctv-checklist/internal/services/checklist"
	"cctv-checklist/internal/services/delivery"
	"cctv-checklist/internal/services/export"
	"cctv-checklist/internal/services/persistence"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options 定义 HTTP API 服务启动参数。
// 本地单用户使用，不做鉴权。
type Options struct {
	Config  app.Config
	Catalog *schema.Catalog
	Logger  *zap.Logger
}

// Run 打开存储、恢复工作记录并启动 HTTP 服务，直到 ctx 结束。
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	defaults := app.DefaultConfig()
	if cfg.DBPath == "" {
		cfg.DBPath = defaults.DBPath
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = defaults.ExportDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaults.ListenAddr
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cat := opts.Catalog
	if cat == nil {
		loaded, err := schema.NewLoader(cfg.SchemaPath).Load(ctx)
		if err != nil {
			return err
		}
		cat = loaded
	}

	db, err := sqliteadapter.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	store := sqliteadapter.NewStore(db)
	store.MaxBlobBytes = cfg.ArchiveQuota
	if err := store.SetSchemaMetaValue(ctx, "catalog_version", cat.Version()); err != nil {
		logger.Warn("record catalog version failed", zap.Error(err))
	}

	gateway := persistence.NewGateway(store, func() model.Record { return checklist.NewRecord(cat) }, logger, persistence.WithQuestions(cat))
	saver := autosave.New(gateway, cfg.AutosaveWait, logger)
	if cfg.AutosaveWait > 0 {
		saver.Start(ctx)
	}
	defer func() { _ = saver.Close() }()

	var relay *delivery.SMTPRelay
	if cfg.SMTP.Enabled() {
		relay = delivery.NewSMTPRelay(cfg.SMTP, logger)
	}
	var sender delivery.Sender
	switch {
	case cfg.DeliveryURL != "":
		sender = delivery.NewHTTPClient(cfg.DeliveryURL, logger)
	case relay != nil:
		sender = relay
	}

	deps := Deps{
		Catalog:  cat,
		Gateway:  gateway,
		Store:    store,
		Exporter: export.NewDirExporter(cfg.ExportDir, store, logger),
		Sender:   sender,
		Autosave: saver,
		DBPath:   cfg.DBPath,
		Logger:   logger,
	}
	if relay != nil {
		deps.Relay = relay
	}
	srv := NewServer(ctx, deps)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("webapp listening", zap.String("addr", "http://"+cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		srv.Close()
		return nil
	})
	return g.Wait()
}
