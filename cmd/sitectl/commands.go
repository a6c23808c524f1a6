package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lacuina/content-service/internal/app"
	"github.com/lacuina/content-service/internal/siteconfig"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the site document",
	}

	var section string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the merged site document",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			return printSection(cmd.OutOrStdout(), a.Sync.Get(), section)
		}),
	}
	show.Flags().StringVar(&section, "section", "", "print only this top-level section")

	defaults := &cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in default document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), siteconfig.Defaults())
		},
	}

	cmd.AddCommand(show, defaults)
	return cmd
}

func printSection(w io.Writer, doc siteconfig.Document, section string) error {
	if section == "" {
		return printJSON(w, doc)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(b, &top); err != nil {
		return err
	}
	raw, ok := top[section]
	if !ok {
		return fmt.Errorf("%w: %q", siteconfig.ErrUnknownSection, section)
	}
	return printJSON(w, raw)
}

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backup",
		Aliases: []string{"b"},
		Short:   "Manage backups of the site document",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			list, err := a.Backups.List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tNAME\t")
			for _, b := range list {
				mark := ""
				if b.Master {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, time.UnixMilli(b.Timestamp).In(a.Config.Site.Location()).Format("2006-01-02 15:04"), b.Name, mark)
			}
			return tw.Flush()
		}),
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Snapshot the current document",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			rec, err := a.Backups.Create(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", rec.ID, rec.Name)
			return nil
		}),
	}

	restore := &cobra.Command{
		Use:   "restore <id>",
		Short: "Overwrite the document with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			if _, err := a.Backups.Restore(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", args[0])
			return nil
		}),
	}

	del := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a backup",
		Args:    cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			if err := a.Backups.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		}),
	}

	master := &cobra.Command{
		Use:   "master",
		Short: "Save the current document as the delivery version",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			rec, err := a.Backups.SetMaster(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", rec.Name)
			return nil
		}),
	}

	cmd.AddCommand(list, create, restore, del, master)
	return cmd
}

var errNotConfirmed = errors.New("factory reset overwrites the whole site; pass --yes to confirm")

func newFactoryResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "factory-reset",
		Short: "Restore the delivery version, or the defaults when there is none",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errNotConfirmed
			}
			return nil
		},
		RunE: withApp(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
			src, err := a.Backups.FactoryReset(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset from %s\n", src)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
