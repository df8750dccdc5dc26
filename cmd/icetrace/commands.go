package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"icetrace/internal/core"
)

type addOutput struct {
	Kind       core.EntityType  `json:"kind"`
	DryRun     bool             `json:"dry_run"`
	Record     any              `json:"record"`
	Violations []core.Violation `json:"violations"`
}

func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", arg, err)
	}
	return id, nil
}

func addCommand() *cobra.Command {
	var (
		dryRun bool
		data   string
	)
	cmd := &cobra.Command{
		Use:   "add <kind>",
		Short: "Add a record read as JSON from --data or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) error {
			kind, k, err := lookupKind(args[0])
			if err != nil {
				return err
			}
			payload := []byte(data)
			if data == "" {
				if payload, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}
			rec, res, err := k.add(cmd.Context(), a.svc, payload, dryRun)
			if err != nil {
				return err
			}
			out := addOutput{Kind: kind, DryRun: dryRun, Record: rec, Violations: res.Violations}
			if out.Violations == nil {
				out.Violations = []core.Violation{}
			}
			return writeJSON(cmd, out)
		}),
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report the would-be id without committing")
	cmd.Flags().StringVar(&data, "data", "", "record as JSON, read from stdin when empty")
	return cmd
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(2),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) error {
			_, k, err := lookupKind(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			rec, err := k.get(cmd.Context(), a.svc, id)
			if err != nil {
				return err
			}
			return writeJSON(cmd, rec)
		}),
	}
}

func listCommand() *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List records of a kind, optionally under one parent",
		Long:  "List records of a kind in creation order. With --parent only the\nrecords owned by that parent are listed:\n\n" + parentHelp(),
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) error {
			kind, k, err := lookupKind(args[0])
			if err != nil {
				return err
			}
			if parent == "" {
				recs, err := k.list(cmd.Context(), a.svc)
				if err != nil {
					return err
				}
				return writeJSON(cmd, recs)
			}
			if k.children == nil {
				return fmt.Errorf("%s has no parent", kind)
			}
			parentID, err := parseID(parent)
			if err != nil {
				return fmt.Errorf("--parent must be a %s id: %w", k.parent, err)
			}
			recs, err := k.children(cmd.Context(), a.svc, parentID)
			if err != nil {
				return err
			}
			return writeJSON(cmd, recs)
		}),
	}
	cmd.Flags().StringVar(&parent, "parent", "", "id of the owning record, see the kind table above")
	return cmd
}

func traceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trace <product-id>",
		Short: "Print the provenance of a product",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			trace, err := a.svc.TraceProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd, trace)
		}),
	}
}

func verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the journal chain against stored records",
		Args:  cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, a *app, _ []string) error {
			report, err := a.svc.VerifyJournal(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, report)
		}),
	}
}

func archiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Write a snapshot of the registry to the blob store",
		Args:  cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, a *app, _ []string) error {
			archiver, err := a.archiver(cmd.Context())
			if err != nil {
				return err
			}
			info, err := archiver.Archive(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, info)
		}),
	}
}

func snapshotsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List archived snapshots",
		Args:  cobra.NoArgs,
		RunE: runE(func(cmd *cobra.Command, a *app, _ []string) error {
			archiver, err := a.archiver(cmd.Context())
			if err != nil {
				return err
			}
			infos, err := archiver.Snapshots(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, infos)
		}),
	}
}

func restoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <key>",
		Short: "Replace the registry with an archived snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) error {
			archiver, err := a.archiver(cmd.Context())
			if err != nil {
				return err
			}
			if err := archiver.Restore(cmd.Context(), args[0]); err != nil {
				return err
			}
			report, err := a.svc.VerifyJournal(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, struct {
				Key     string             `json:"key"`
				Journal core.JournalReport `json:"journal"`
			}{Key: args[0], Journal: report})
		}),
	}
}
