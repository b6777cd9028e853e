package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/replcheck/internal/catalog"
	"github.com/roach88/replcheck/internal/replica"
	"github.com/roach88/replcheck/internal/session"
)

// listingTimeLayout is the modification time format of long listings.
const listingTimeLayout = "2006-01-02.15:04"

const defaultResource = "demoResc"

// SimcatOptions holds flags shared by the simcat subcommands.
type SimcatOptions struct {
	*RootOptions
	Database string
}

// NewSimcatCommand creates the simcat command tree.
func NewSimcatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimcatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simcat",
		Short: "Drive the testbed catalog",
		Long: `simcat is a small stand-in for a storage system's catalog clients. It keeps
collections, data objects and replicas in a SQLite file so matrices can run
without a live storage system. It has no placement policy of its own.

Catalog errors are printed as "ERROR: <CODE>: <message>" and exit with 3.

The database defaults to $SIMCAT_DB.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", os.Getenv(session.SimcatDBVar), "path to the catalog database")

	cmd.AddCommand(
		newSimcatMkdir(opts),
		newSimcatPut(opts),
		newSimcatRepl(opts),
		newSimcatPhymv(opts),
		newSimcatTrim(opts),
		newSimcatModrepl(opts),
		newSimcatLs(opts),
		newSimcatRm(opts),
	)
	return cmd
}

// withCatalog opens the catalog for the duration of fn and maps catalog
// errors to ExitClientError.
func (o *SimcatOptions) withCatalog(cmd *cobra.Command, fn func(ctx context.Context, cat *catalog.Catalog) error) error {
	if o.Database == "" {
		return NewExitError(ExitCommandError, "no catalog database: set --db or "+session.SimcatDBVar)
	}
	cat, err := catalog.Open(o.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	defer cat.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, cat); err != nil {
		var ce *catalog.Error
		if errors.As(err, &ce) {
			return &ExitError{Code: ExitClientError, Err: err}
		}
		return err
	}
	return nil
}

func newSimcatMkdir(opts *SimcatOptions) *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir [-p] <collection>...",
		Short: "Create collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCatalog(cmd, func(ctx context.Context, cat *catalog.Catalog) error {
				for _, p := range args {
					if err := cat.MakeCollection(ctx, p, parents); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parents; an existing collection is not an error")
	return cmd
}

func newSimcatPut(opts *SimcatOptions) *cobra.Command {
	var (
		resource string
		owner    string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "put [-f] [-R resource] <local-file> <path>",
		Short: "Register a local file as a data object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return &ExitError{Code: ExitClientError, Message: "USER_FILE_DOES_NOT_EXIST", Err: err}
			}
			return opts.withCatalog(cmd, func(ctx context.Context, cat *catalog.Catalog) error {
				return cat.Put(ctx, args[1], resource, owner, info.Size(), force)
			})
		},
	}
	cmd.Flags().StringVarP(&resource, "resource", "R", defaultResource, "destination resource")
	cmd.Flags().StringVar(&owner, "owner", "rods", "owner recorded for a new object")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing object")
	return cmd
}

func newSimcatRepl(opts *SimcatOptions) *cobra.Command {
	var dest, source string
	cmd := &cobra.Command{
		Use:   "repl [-S source] [-R dest] <path>",
		Short: "Replicate a data object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCatalog(cmd, func(ctx context.Context, cat *catalog.Catalog) error {
				return cat.Replicate(ctx, args[0], dest, source)
			})
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "R", defaultResource, "destination resource")
	cmd.Flags().StringVarP(&source, "source", "S", "", "source resource; default is any good replica")
	return cmd
}

func newSimcatPhymv(opts *SimcatOptions) *cobra.Command {
	var dest, source string
	cmd := &cobra.Command{
		Use:   "phymv -S source -R dest <path>",
		Short: "Move a replica to another resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCatalog(cmd, func(ctx context.Context, cat *catalog.Catalog) error {
				return cat.Move(ctx, args[0], source, dest)
			})
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "R", "", "destination resource")
	cmd.Flags().StringVarP(&source, "source", "S", "", "source resource")
	_ = cmd.MarkFlagRequired("dest")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func newSimcatTrim(opts *SimcatOptions) *cobra.Command {
	var (
		resource string
		keep     int
	)
	cmd := &cobra.Command{
		Use:   "trim -S resource [-N keep] <path>",
		Short: "Remove a replica while enough others remain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCatalog(cmd, func(ctx context.Context, cat *catalog.Catalog) error {
				n, err := cat.Trim(ctx, args[0], resource, keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Number of files trimmed = %d.\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&resource, "source", "S", "", "resource to trim")
	cmd.Flags().IntVarP(&keep, "keep", "N", 2, "minimum number of replicas to keep")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func newSimcatModrepl(opts *SimcatOptions) *cobra.Command {
	var resource string
	cmd := &cobra.Command{
		Use:   "modrepl -R resource <path> <status-code>",
		Short: "Force a replica's status code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := strconv.Atoi(args[1])
			if err != nil {
				return &ExitError{Code: ExitClientError, Message: "SYS_INVALID_INPUT_PARAM: invalid status code", Err: err}
			}
			return opts.withCatalog(cmd, func(ctx context.Context, cat *catalog.Catalog) error {
				return cat.SetStatus(ctx, args[0], resource, code)
			})
		},
	}
	cmd.Flags().StringVarP(&resource, "resource", "R", "", "resource holding the replica")
	_ = cmd.MarkFlagRequired("resource")
	return cmd
}

func newSimcatLs(opts *SimcatOptions) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "ls [-l] <path>",
		Short: "List a collection or data object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCatalog(cmd, func(ctx context.Context, cat *catalog.Catalog) error {
				return listPath(ctx, cmd.OutOrStdout(), cat, args[0], long)
			})
		},
	}
	cmd.Flags().BoolVarP(&long, "long", "l", false, "show replicas")
	return cmd
}

func listPath(ctx context.Context, w io.Writer, cat *catalog.Catalog, p string, long bool) error {
	kind, err := cat.Stat(ctx, p)
	if err != nil {
		return err
	}
	switch kind {
	case catalog.KindObject:
		obj, err := cat.Object(ctx, p)
		if err != nil {
			return err
		}
		writeObject(w, *obj, long)
		return nil
	case catalog.KindCollection:
		listing, err := cat.List(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s:\n", listing.Path)
		for _, obj := range listing.Objects {
			writeObject(w, obj, long)
		}
		for _, sub := range listing.Collections {
			fmt.Fprintf(w, "  C- %s\n", sub)
		}
		return nil
	}
	return &catalog.Error{
		Code:    catalog.CodeNoRows,
		Message: "does not exist or user lacks access permission",
		Path:    p,
	}
}

func writeObject(w io.Writer, obj catalog.Object, long bool) {
	if !long {
		fmt.Fprintf(w, "  %s\n", obj.Name)
		return
	}
	for _, r := range obj.Replicas {
		fmt.Fprintf(w, "  %-12s %5d %-20s %12d %s %s %s\n",
			obj.Owner,
			r.Number,
			r.Hierarchy,
			r.Size,
			r.Modified.UTC().Format(listingTimeLayout),
			replica.FromCode(r.Status).Symbol(),
			obj.Name,
		)
	}
}

func newSimcatRm(opts *SimcatOptions) *cobra.Command {
	var recursive, force bool
	cmd := &cobra.Command{
		Use:   "rm [-r] [-f] <path>...",
		Short: "Remove data objects or collections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withCatalog(cmd, func(ctx context.Context, cat *catalog.Catalog) error {
				for _, p := range args {
					if err := cat.Remove(ctx, p, recursive); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove collections and their contents")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "accepted for compatibility; removal is immediate")
	return cmd
}
