package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/zfits/internal/pipeline"
	"github.com/ajitpratap0/zfits/pkg/config"
	"github.com/ajitpratap0/zfits/pkg/export"
)

func (a *app) tablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <file>",
		Short: "List the tables of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			descs, err := a.pipeline.Tables(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tMESSAGE TYPE\tROWS")
			for _, d := range descs {
				fmt.Fprintf(w, "%s\t%s\t%d\n", d.ExtName, d.MessageType, d.Rows)
			}
			return w.Flush()
		},
	}
}

func (a *app) dumpCommand() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Write the rows of a table as JSON lines or Avro",
		Example: `  zfits dump run.zfits --table Events
  zfits dump run.zfits --format avro --out events.avro`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			w, closeOut, err := output(cmd, out)
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			stats, err := a.pipeline.Dump(ctx, args[0], f, w)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			a.report(stats)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.JSON), "Output format (json, avro)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file; stdout when empty")
	return cmd
}

func (a *app) mergeCommand() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "merge <files...>",
		Short: "Merge a table of several containers by sequence key",
		Long: `Merge reads the same table from every input and emits its rows ordered by
sequence key (event_id, then eventNumber, or reader.key_fields). Ties keep
input order. Without --format the result is written as a new container to --out.`,
		Example: `  zfits merge a.zfits b.zfits --out merged.zfits
  zfits merge a.zfits b.zfits --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			if format == "" {
				if out == "" {
					return fmt.Errorf("merge needs --out or --format")
				}
				stats, err := a.pipeline.Merge(ctx, args, out)
				if err != nil {
					return err
				}
				a.report(stats)
				return nil
			}

			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			w, closeOut, err := output(cmd, out)
			if err != nil {
				return err
			}
			stats, err := a.pipeline.MergeExport(ctx, args, f, w)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			a.report(stats)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format (json, avro) instead of a container")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output container, or export file with --format")
	return cmd
}

func (a *app) copyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <in> <out>",
		Short: "Copy every table of a container into a new container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			stats, err := a.pipeline.Copy(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			a.report(stats)
			return nil
		},
	}
}

func (a *app) eventsCommand() *cobra.Command {
	var runID int
	var out string
	cmd := &cobra.Command{
		Use:   "events <file>",
		Short: "Summarize DigiCam camera events as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.pipeline.Options()
			opts.RunID = runID
			p := pipeline.New(a.driver, nil, opts, a.log)

			w, closeOut, err := output(cmd, out)
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()

			stats, err := p.Events(ctx, args[0], w)
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			a.report(stats)
			return nil
		},
	}
	cmd.Flags().IntVar(&runID, "run-id", 0, "Run id stamped on every event")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file; stdout when empty")
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "write <file>",
		Short: "Write the effective configuration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], a.cfg)
		},
	})
	return cmd
}

func (a *app) report(stats pipeline.Stats) {
	a.log.Info("done",
		zap.String("operation", stats.Operation),
		zap.String("table", stats.Table),
		zap.String("message_type", stats.MessageType),
		zap.Int("inputs", stats.Inputs),
		zap.Int64("rows", stats.Rows),
		zap.Duration("duration", stats.Duration))
}
