package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"cctv-checklist/internal/adapters/schema"
	sqliteadapter "cctv-checklist/internal/adapters/store/sqlite"
	"cctv-checklist/internal/app"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/checklist"
	"cctv-checklist/internal/services/persistence"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI 入口。所有子命令错误都统一输出到 stderr 并返回非 0 状态码。
func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// execute 运行一次命令；无论成功与否都关闭数据库。
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	defer func() { _ = c.close() }()
	return root.ExecuteContext(ctx)
}

// cli 保存一次命令调用共享的配置与惰性打开的存储。
type cli struct {
	configPath string
	dbPath     string
	schemaPath string
	exportDir  string
	verbose    bool

	cfg    app.Config
	logger *zap.Logger

	db      *sql.DB
	store   *sqliteadapter.Store
	catalog *schema.Catalog
	gateway *persistence.Gateway
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "checklist-cli",
		Short:         "CCTV inspection checklist: fill, render, submit and audit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML config file")
	pf.StringVar(&c.dbPath, "db", "", "sqlite database path (default data/checklist.db)")
	pf.StringVar(&c.schemaPath, "schema", "", "question catalog YAML (default: builtin)")
	pf.StringVar(&c.exportDir, "export-dir", "", "directory for exported reports")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		c.migrateCmd(),
		c.schemaCmd(),
		c.showCmd(),
		c.clearCmd(),
		c.setCmd(),
		c.areasCmd(),
		c.certsCmd(),
		c.answerCmd(),
		c.toggleCmd(),
		c.equipmentCmd(),
		c.renderCmd(),
		c.overviewCmd(),
		c.submitCmd(),
		c.archiveCmd(),
		c.exportsCmd(),
		c.auditsCmd(),
		c.serveCmd(),
	)
	return root
}

// setup 按 默认值 -> 配置文件 -> 环境变量 -> 命令行参数 的顺序合并配置。
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := app.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = c.dbPath
	}
	if flags.Changed("schema") {
		cfg.SchemaPath = c.schemaPath
	}
	if flags.Changed("export-dir") {
		cfg.ExportDir = c.exportDir
	}
	c.cfg = cfg

	logger, err := app.NewLogger(c.verbose)
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

func (c *cli) close() error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

func (c *cli) loadCatalog(ctx context.Context) (*schema.Catalog, error) {
	if c.catalog != nil {
		return c.catalog, nil
	}
	cat, err := schema.NewLoader(c.cfg.SchemaPath).Load(ctx)
	if err != nil {
		return nil, err
	}
	c.catalog = cat
	return cat, nil
}

// open 打开数据库并组装网关，同一次调用内只打开一次。
func (c *cli) open(ctx context.Context) error {
	if c.db != nil {
		return nil
	}
	cat, err := c.loadCatalog(ctx)
	if err != nil {
		return err
	}
	db, err := sqliteadapter.Open(ctx, c.cfg.DBPath)
	if err != nil {
		return err
	}
	c.db = db
	c.store = sqliteadapter.NewStore(db)
	c.store.MaxBlobBytes = c.cfg.ArchiveQuota
	if err := c.store.SetSchemaMetaValue(ctx, "catalog_version", cat.Version()); err != nil {
		c.logger.Warn("record catalog version failed", zap.Error(err))
	}
	c.gateway = persistence.NewGateway(c.store, func() model.Record { return checklist.NewRecord(cat) }, c.logger, persistence.WithQuestions(cat))
	return nil
}

// session 恢复工作记录；每次编辑都立即写回存储。
func (c *cli) session(ctx context.Context) (*checklist.Editor, error) {
	if err := c.open(ctx); err != nil {
		return nil, err
	}
	e := checklist.NewEditor(c.catalog, checklist.WithRecord(c.gateway.Load(ctx)))
	e.OnChange(func(r model.Record) { c.gateway.Save(ctx, r) })
	return e, nil
}

// edit 在会话上执行一次编辑并打印结果记录。
func (c *cli) edit(cmd *cobra.Command, fn func(e *checklist.Editor) error) error {
	e, err := c.session(cmd.Context())
	if err != nil {
		return err
	}
	if err := fn(e); err != nil {
		return err
	}
	return printJSON(cmd, e.Record())
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
