package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cctv-checklist/internal/adapters/schema"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/checklist"
	"cctv-checklist/internal/services/recordview"
	"cctv-checklist/internal/services/report"
	"cctv-checklist/internal/services/reportpdf"

	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the sqlite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(cmd.Context()); err != nil {
				return err
			}
			v, err := c.store.GetSchemaMetaValue(cmd.Context(), "schema_version")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied successfully: db=%s schema_version=%s\n", c.cfg.DBPath, v)
			return nil
		},
	}
}

func (c *cli) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "schema", Short: "Inspect the question catalog"}

	validate := &cobra.Command{
		Use:   "validate [file]",
		Short: "Load and validate a catalog file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.SchemaPath
			if len(args) == 1 {
				path = args[0]
			}
			cat, err := schema.NewLoader(path).Load(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: source=%s version=%s sections=%d questions=%d sha256=%s\n",
				cat.Source(), cat.Version(), len(cat.Sections()), cat.QuestionCount(), cat.SHA256())
			return nil
		},
	}

	var asJSON bool
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the active catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				cat, err := c.loadCatalog(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, cat.Bundle())
			}
			raw := schema.DefaultBytes()
			if c.cfg.SchemaPath != "" {
				b, err := os.ReadFile(c.cfg.SchemaPath)
				if err != nil {
					return fmt.Errorf("read schema catalog: %w", err)
				}
				raw = b
			}
			_, err := cmd.OutOrStdout().Write(raw)
			return err
		},
	}
	dump.Flags().BoolVar(&asJSON, "json", false, "print parsed catalog as JSON")

	cmd.AddCommand(validate, dump)
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	var masked bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the working record as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			r := e.Record()
			if masked {
				r = report.MaskRecord(r)
			}
			return printJSON(cmd, r)
		},
	}
	cmd.Flags().BoolVar(&masked, "masked", false, "mask phones, emails, addresses and logins")
	return cmd
}

func (c *cli) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Reset the working record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			e.Reset()
			c.gateway.ClearWorking(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "working record cleared")
			return nil
		},
	}
}

func (c *cli) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <group> <field> <value>",
		Short: "Set a scalar field (groups: client, responsible, it, contractor, contact)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.edit(cmd, func(e *checklist.Editor) error {
				return e.SetField(args[0], args[1], args[2])
			})
		},
	}
}

func (c *cli) areasCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "areas", Short: "Edit contractor service areas"}
	cmd.AddCommand(
		&cobra.Command{
			Use:  "add <label>",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.edit(cmd, func(e *checklist.Editor) error {
					e.AddServiceArea(args[0])
					return nil
				})
			},
		},
		&cobra.Command{
			Use:  "remove <index>",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				idx, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid index: %w", err)
				}
				return c.edit(cmd, func(e *checklist.Editor) error {
					e.RemoveServiceArea(idx)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:  "set [label...]",
			Args: cobra.ArbitraryArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.edit(cmd, func(e *checklist.Editor) error {
					e.SetServiceAreas(args)
					return nil
				})
			},
		},
	)
	return cmd
}

func (c *cli) certsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "certs", Short: "Edit contractor certifications"}
	cmd.AddCommand(&cobra.Command{
		Use:  "set [item...]",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.edit(cmd, func(e *checklist.Editor) error {
				e.SetCertifications(args)
				return nil
			})
		},
	})
	return cmd
}

func (c *cli) answerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer <question> <value...>",
		Short: "Answer a question; multiselect takes one arg per option, equipment takes a JSON array",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qid := model.QuestionID(args[0])
			if _, err := c.loadCatalog(cmd.Context()); err != nil {
				return err
			}
			v, err := answerValue(c.catalog, qid, args[1:])
			if err != nil {
				return err
			}
			return c.edit(cmd, func(e *checklist.Editor) error {
				return e.SetAnswer(qid, v)
			})
		},
	}
}

// answerValue 按题目类型把命令行参数转成答案；未知题目按文本处理，由编辑器决定是否接受。
func answerValue(cat *schema.Catalog, qid model.QuestionID, args []string) (model.AnswerValue, error) {
	q, ok := cat.Question(qid)
	if !ok {
		return model.TextAnswer(strings.Join(args, " ")), nil
	}
	switch q.Kind.ExpectedAnswer() {
	case model.AnswerList:
		return model.ListAnswer(args...), nil
	case model.AnswerEquipment:
		var items []model.EquipmentItem
		if err := json.Unmarshal([]byte(strings.Join(args, " ")), &items); err != nil {
			return model.AnswerValue{}, fmt.Errorf("equipment answer must be a JSON array: %w", err)
		}
		return model.AnswerValue{Kind: model.AnswerEquipment, Equipment: items}, nil
	default:
		return model.TextAnswer(strings.Join(args, " ")), nil
	}
}

func (c *cli) toggleCmd() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "toggle <question> <option>",
		Short: "Check (or --off uncheck) a multiselect option",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.edit(cmd, func(e *checklist.Editor) error {
				return e.ToggleOption(model.QuestionID(args[0]), args[1], !off)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "uncheck the option")
	return cmd
}

// equipmentFlags 是 equipment add 的参数名与暂存字段的对应关系，按录入表单的顺序排列。
var equipmentFlags = []struct{ flag, field, usage string }{
	{"model", "model", "equipment model (required)"},
	{"serial", "serialNumber", "serial number"},
	{"location", "location", "mounting location"},
	{"status", "status", "active|inactive"},
	{"quantity", "quantity", "quantity, non-positive values become 1"},
	{"ip", "ipAddress", "IP address"},
	{"port", "port", "port 1-65535, anything else is dropped"},
	{"login", "login", "device login"},
	{"password", "password", "device password (never rendered)"},
}

func (c *cli) equipmentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "equipment", Short: "Add and remove equipment"}

	values := make(map[string]*string, len(equipmentFlags))
	add := &cobra.Command{
		Use:   "add <section>",
		Short: "Compose an item from flags and append it to the section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := checklist.NewDraft()
			for _, f := range equipmentFlags {
				if !cmd.Flags().Changed(f.flag) {
					continue
				}
				if err := d.StageField(f.field, *values[f.flag]); err != nil {
					return err
				}
			}
			section := model.SectionKey(args[0])
			e, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			added, err := d.Commit(e, section)
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintln(cmd.ErrOrStderr(), "model is empty, nothing added")
			}
			return printJSON(cmd, e.Record().Equipment.Items(section))
		},
	}
	for _, f := range equipmentFlags {
		values[f.flag] = add.Flags().String(f.flag, "", f.usage)
	}

	remove := &cobra.Command{
		Use:   "remove <section> <position>",
		Short: "Remove the item at a zero-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position: %w", err)
			}
			return c.edit(cmd, func(e *checklist.Editor) error {
				_, err := e.RemoveEquipment(model.SectionKey(args[0]), pos)
				return err
			})
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func (c *cli) renderCmd() *cobra.Command {
	var format, out string
	var masked, labels bool
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the working record as html, text or pdf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			opts := report.Options{Masked: masked}
			if labels {
				opts.Catalog = c.catalog
			}
			var b []byte
			switch strings.ToLower(format) {
			case "html":
				b = []byte(report.New(opts).Render(e.Record()))
			case "text":
				b = []byte(report.New(opts).RenderText(e.Record()))
			case "pdf":
				if out == "" {
					return fmt.Errorf("--out is required for pdf")
				}
				b, err = reportpdf.Bytes(e.Record(), reportpdf.Options{Masked: masked, Catalog: c.catalog})
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("invalid format: %s", format)
			}
			return writeOut(cmd, out, b)
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "html", "html|text|pdf")
	f.StringVar(&out, "out", "", "write to file instead of stdout")
	f.BoolVar(&masked, "masked", false, "mask personal data")
	f.BoolVar(&labels, "labels", false, "use catalog titles and question labels")
	return cmd
}

func writeOut(cmd *cobra.Command, path string, b []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(b)
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "written: %s (%d bytes)\n", path, len(b))
	return nil
}

func (c *cli) overviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overview",
		Short: "Summarise the working record and run readiness checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			list, err := c.gateway.ListArchive(cmd.Context())
			if err != nil {
				return err
			}
			ov := recordview.Build(e.Record(), c.catalog, len(list))
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "station=%q answered=%d/%d equipment=%d archive=%d\n",
				ov.StationName, ov.AnsweredCount, ov.QuestionCount, ov.EquipmentTotal, ov.ArchiveCount)
			for _, ch := range ov.Checks {
				fmt.Fprintf(w, "%-5s %-20s %s\n", ch.Status, ch.Code, ch.Message)
			}
			if recordview.Ready(ov) {
				fmt.Fprintln(w, "ready to submit")
			} else {
				fmt.Fprintln(w, "not ready: required checks failed")
			}
			return nil
		},
	}
}
