package main

import (
	"fmt"
	"strings"
	"time"

	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/archive"
	"cctv-checklist/internal/services/delivery"
	"cctv-checklist/internal/services/export"
	"cctv-checklist/internal/services/report"
	"cctv-checklist/internal/services/reportpdf"
	"cctv-checklist/internal/services/submission"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) exporter() *export.DirExporter {
	return export.NewDirExporter(c.cfg.ExportDir, c.store, c.logger)
}

// sender 选择投递方式：配置了投递服务地址时走 HTTP，否则配置了 SMTP 时直连。
func (c *cli) sender() delivery.Sender {
	switch {
	case c.cfg.DeliveryURL != "":
		return delivery.NewHTTPClient(c.cfg.DeliveryURL, c.logger)
	case c.cfg.SMTP.Enabled():
		return delivery.NewSMTPRelay(c.cfg.SMTP, c.logger)
	}
	return nil
}

func (c *cli) submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Archive, export and deliver the working record, then reset it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			opts := []submission.Option{
				submission.WithLogger(c.logger),
				submission.WithAuditor(c.store, "cli"),
			}
			if s := c.sender(); s != nil {
				opts = append(opts, submission.WithSender(s))
			}
			res, err := submission.New(e, c.gateway, c.exporter(), opts...).Submit(cmd.Context())
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), submission.Notification(err))
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, res.Message)
			fmt.Fprintf(w, "snapshot=%s seq=%d file=%s delivered=%t\n", res.Snapshot.ID, res.Snapshot.Seq, res.FileName, res.Delivered)
			return nil
		},
	}
}

func (c *cli) archiveCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "archive", Short: "Browse, verify and export submitted checklists"}
	cmd.AddCommand(
		c.archiveListCmd(),
		c.archiveShowCmd(),
		c.archiveReportCmd(),
		c.archiveExportCmd(),
		c.archiveDeleteCmd(),
		c.archiveVerifyCmd(),
		c.archiveDiffCmd(),
		c.archiveBundleCmd(),
		c.archiveVerifyBundleCmd(),
	)
	return cmd
}

func (c *cli) listArchive(cmd *cobra.Command) ([]model.ArchivedSnapshot, error) {
	if err := c.open(cmd.Context()); err != nil {
		return nil, err
	}
	return c.gateway.ListArchive(cmd.Context())
}

func (c *cli) findSnapshot(cmd *cobra.Command, identity string) (model.ArchivedSnapshot, error) {
	if err := c.open(cmd.Context()); err != nil {
		return model.ArchivedSnapshot{}, err
	}
	s, ok, err := c.gateway.GetArchive(cmd.Context(), identity)
	if err != nil {
		return model.ArchivedSnapshot{}, err
	}
	if !ok {
		return model.ArchivedSnapshot{}, fmt.Errorf("archive entry not found: %s", identity)
	}
	return s, nil
}

func (c *cli) archiveListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.listArchive(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(w, "archive is empty")
				return nil
			}
			for _, s := range archive.Summaries(list) {
				when := s.Timestamp
				if t, err := time.Parse(time.RFC3339Nano, s.Timestamp); err == nil {
					when = humanize.Time(t)
				}
				fmt.Fprintf(w, "%4d  %-36s  %-16s  %-24s  %-24s  %s\n",
					s.Seq, s.ID, when, s.StationName, s.Contractor, humanize.Bytes(uint64(s.ReportBytes)))
			}
			return nil
		},
	}
}

func (c *cli) archiveShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print an archived snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.findSnapshot(cmd, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, s)
		},
	}
}

func (c *cli) archiveReportCmd() *cobra.Command {
	var format, out string
	var masked bool
	cmd := &cobra.Command{
		Use:   "report <id>",
		Short: "Print the stored report, or re-render it as text or pdf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.findSnapshot(cmd, args[0])
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case "html":
				return writeOut(cmd, out, []byte(s.Report))
			case "text":
				return writeOut(cmd, out, []byte(report.New(report.Options{Masked: masked, Catalog: c.catalog}).RenderText(s.Record)))
			case "pdf":
				if out == "" {
					return fmt.Errorf("--out is required for pdf")
				}
				b, err := reportpdf.Bytes(s.Record, reportpdf.Options{Masked: masked, Catalog: c.catalog, Snapshot: &s})
				if err != nil {
					return err
				}
				return writeOut(cmd, out, b)
			default:
				return fmt.Errorf("invalid format: %s", format)
			}
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "html", "html|text|pdf")
	f.StringVar(&out, "out", "", "write to file instead of stdout")
	f.BoolVar(&masked, "masked", false, "mask personal data (text and pdf)")
	return cmd
}

func (c *cli) archiveExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <id>",
		Short: "Write the archived report into the export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.findSnapshot(cmd, args[0])
			if err != nil {
				return err
			}
			at := time.Now()
			if t, err := time.Parse(time.RFC3339Nano, s.Timestamp); err == nil {
				at = t
			}
			info, err := c.exporter().ExportFile(cmd.Context(), export.FileName(s.Record.Client.StationName, at), []byte(s.Report), export.MediaTypeHTML)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported: %s sha256=%s size=%s\n", info.FilePath, info.SHA256, humanize.Bytes(uint64(info.SizeBytes)))
			return nil
		},
	}
}

func (c *cli) archiveDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an archived submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.open(cmd.Context()); err != nil {
				return err
			}
			n, err := c.gateway.RemoveFromArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if n > 0 {
				if err := c.store.AppendAudit(cmd.Context(), "archive", "delete", "success", "cli", "cli", map[string]any{"identity": args[0], "removed": n}); err != nil {
					c.logger.Warn("write audit failed", zap.Error(err))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed=%d\n", n)
			return nil
		},
	}
}

func (c *cli) archiveVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Recompute archive and audit hash chains",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.listArchive(cmd)
			if err != nil {
				return err
			}
			logs, err := c.store.ListAuditLogs(cmd.Context(), 5000)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			ar := archive.VerifySnapshots(list)
			au := archive.VerifyAuditLogs(logs)
			fmt.Fprintf(w, "archive_total=%d failed=%d legacy=%d gaps=%d\n", ar.Total, ar.Failed, ar.Legacy, len(ar.Gaps))
			for _, g := range ar.Gaps {
				fmt.Fprintf(w, "GAP  %+v\n", g)
			}
			fmt.Fprintf(w, "audit_total=%d failed=%d\n", au.Total, au.Failed)
			for _, f := range append(ar.Failures, au.Failures...) {
				fmt.Fprintf(w, "FAIL %+v\n", f)
			}
			if !ar.OK || !au.OK {
				return fmt.Errorf("verify failed: archive=%d audit=%d", ar.Failed, au.Failed)
			}
			return nil
		},
	}
}

func (c *cli) archiveDiffCmd() *cobra.Command {
	var html bool
	cmd := &cobra.Command{
		Use:   "diff <id-a> <id-b>",
		Short: "Line diff of two archived reports",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.findSnapshot(cmd, args[0])
			if err != nil {
				return err
			}
			b, err := c.findSnapshot(cmd, args[1])
			if err != nil {
				return err
			}
			var d archive.Diff
			if html {
				d = archive.DiffReports(a.Report, b.Report)
			} else {
				rd := report.New(report.Options{Catalog: c.catalog})
				d = archive.DiffReports(rd.RenderText(a.Record), rd.RenderText(b.Record))
			}
			w := cmd.OutOrStdout()
			if !d.Changed() {
				fmt.Fprintln(w, "no differences")
				return nil
			}
			fmt.Fprint(w, d.String())
			fmt.Fprintf(w, "added=%d removed=%d\n", d.Added, d.Removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&html, "html", false, "diff the stored HTML instead of re-rendered text")
	return cmd
}

func (c *cli) archiveBundleCmd() *cobra.Command {
	var masked, pdf bool
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Pack the archive into a hashed ZIP in the export directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.listArchive(cmd)
			if err != nil {
				return err
			}
			logs, err := c.store.ListAuditLogs(cmd.Context(), 5000)
			if err != nil {
				return err
			}
			raw, m, err := archive.BundleBytes(archive.BundleOptions{
				Snapshots:      list,
				Audits:         logs,
				Masked:         masked,
				IncludePDF:     pdf,
				Catalog:        c.catalog,
				CatalogVersion: c.catalog.Version(),
			})
			if err != nil {
				return err
			}
			info, err := c.exporter().ExportFile(cmd.Context(), archive.BundleName(time.Now()), raw, archive.MediaTypeZip)
			if err != nil {
				return err
			}
			if err := c.store.AppendAudit(cmd.Context(), "archive", "bundle", "success", "cli", "cli", map[string]any{
				"file": info.FilePath, "sha256": info.SHA256, "entries": len(list),
			}); err != nil {
				c.logger.Warn("write audit failed", zap.Error(err))
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "bundle: %s entries=%d size=%s sha256=%s\n", info.FilePath, len(m.Snapshots), humanize.Bytes(uint64(info.SizeBytes)), info.SHA256)
			for _, warn := range m.Warnings {
				fmt.Fprintf(w, "WARN %s\n", warn)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&masked, "masked", false, "re-render reports and records with masking")
	cmd.Flags().BoolVar(&pdf, "pdf", false, "include a PDF per entry")
	return cmd
}

func (c *cli) archiveVerifyBundleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-bundle <zip>",
		Short: "Check a bundle against its hashes.sha256 and audit chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := archive.VerifyBundleFile(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "files_total=%d ok=%d failed=%d\n", res.Total, res.OK, res.Failed)
			for _, f := range res.Files {
				if f.Status != "ok" {
					fmt.Fprintf(w, "FAIL %s status=%s expected=%s actual=%s %s\n", f.Path, f.Status, f.Expected, f.Actual, f.Error)
				}
			}
			if res.Audit != nil {
				fmt.Fprintf(w, "audit_chain_total=%d failed=%d\n", res.Audit.Total, res.Audit.Failed)
			}
			if !res.Passed() {
				return fmt.Errorf("bundle verify failed: %s", args[0])
			}
			return nil
		},
	}
}

func (c *cli) exportsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "exports",
		Short: "List exported files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(cmd.Context()); err != nil {
				return err
			}
			rows, err := c.store.ListExports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range rows {
				fmt.Fprintf(w, "%-16s  %-10s  %s  %s\n",
					humanize.Time(time.Unix(r.GeneratedAt, 0)), humanize.Bytes(uint64(r.SizeBytes)), r.MediaType, r.FilePath)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func (c *cli) auditsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audits",
		Short: "List audit log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(cmd.Context()); err != nil {
				return err
			}
			rows, err := c.store.ListAuditLogs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range rows {
				fmt.Fprintf(w, "%-16s  %-10s  %-8s  %-7s  %s  %s\n",
					humanize.Time(time.Unix(r.OccurredAt, 0)), r.EventType, r.Action, r.Status, r.Actor, r.DetailJSON)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "max rows")
	return cmd
}
