package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

var nsUlog = grovelogging.NewUnifiedLogger("grove-voice.cmd.ns")

func NewNamespaceCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ns",
		Aliases: []string{"namespace"},
		Short:   "Manage namespaces",
		Long: `Manage namespaces. A namespace is a project workspace with its own home
directory on the backend. Exactly one namespace is current at a time.`,
	}

	cmd.AddCommand(
		newNamespaceListCmd(svc),
		newNamespaceCreateCmd(svc),
		newNamespaceUseCmd(svc),
		newNamespaceRenameCmd(svc),
		newNamespaceDeleteCmd(svc),
		newNamespaceRootCmd(svc),
	)
	return cmd
}

func newNamespaceListCmd(svc **service.Service) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List namespaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			s := *svc
			list, err := s.ListNamespaces(cmd.Context())
			if err != nil {
				return err
			}
			current := s.State.Namespace.Current()
			return render(cmd.OutOrStdout(), format, list, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "\tNAME\tHOME\tCREATED")
				for _, ns := range list {
					marker := ""
					if ns.Name == current {
						marker = "*"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, ns.Name, ns.HomePath, formatCreated(ns))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

func newNamespaceCreateCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a namespace",
		Long:  "Create a namespace. It becomes current when no namespace is current yet.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			ns, err := s.CreateNamespace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Created namespace %s at %s", ns.Name, ns.HomePath)
			if s.State.Namespace.Current() == ns.Name {
				msg += " (current)"
			}
			nsUlog.Info("Namespace created").
				Field("namespace", ns.Name).
				Field("home", ns.HomePath).
				Pretty(msg).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	}
}

func newNamespaceUseCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:     "use <name>",
		Aliases: []string{"switch"},
		Short:   "Make a namespace current",
		Long: `Make a namespace current. Stage paths and job references of the previous
namespace are cleared. Refused while a job of the current namespace is running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if err := s.SwitchNamespace(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, service.ErrJobRunning) {
					return fmt.Errorf("%w; wait for it to finish or check 'ev status'", err)
				}
				return err
			}
			nsUlog.Info("Namespace switched").
				Field("namespace", args[0]).
				Pretty(fmt.Sprintf("Now using namespace %s", args[0])).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	}
}

func newNamespaceRenameCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename a namespace",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, err := (*svc).RenameNamespace(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			nsUlog.Info("Namespace renamed").
				Field("from", args[0]).
				Field("to", ns.Name).
				Pretty(fmt.Sprintf("Renamed %s to %s", args[0], ns.Name)).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	}
}

func newNamespaceDeleteCmd(svc **service.Service) *cobra.Command {
	var (
		replacement string
		yes         bool
	)

	cmd := &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a namespace",
		Long: `Delete a namespace and everything under its home directory.
Deleting the current namespace requires --switch-to with the namespace to use instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete namespace %s and all of its files?", args[0])) {
				nsUlog.Info("Delete cancelled").Pretty("Cancelled.").PrettyOnly().Log(cmd.Context())
				return nil
			}
			if err := (*svc).DeleteNamespace(cmd.Context(), args[0], replacement); err != nil {
				if errors.Is(err, service.ErrActiveNamespace) {
					return fmt.Errorf("%w; pass --switch-to <name>", err)
				}
				return err
			}
			nsUlog.Info("Namespace deleted").
				Field("namespace", args[0]).
				Pretty(fmt.Sprintf("Deleted namespace %s", args[0])).
				PrettyOnly().
				Log(cmd.Context())
			return nil
		},
	}

	cmd.Flags().StringVar(&replacement, "switch-to", "", "Namespace to make current when deleting the current one")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}

func newNamespaceRootCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "root [path]",
		Short: "Show or set the directory namespaces are created in",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := *svc
			if len(args) == 1 {
				if err := s.API.SetNamespacesRoot(ctx, args[0]); err != nil {
					return err
				}
				nsUlog.Info("Namespaces root set").
					Field("root", args[0]).
					Pretty(fmt.Sprintf("Namespaces root set to %s", args[0])).
					PrettyOnly().
					Log(ctx)
				return nil
			}
			root, err := s.API.GetNamespacesRoot(ctx)
			if err != nil {
				return err
			}
			nsUlog.Info("Namespaces root").Field("root", root).Pretty(root).PrettyOnly().Log(ctx)
			return nil
		},
	}
	return cmd
}

func formatCreated(ns models.Namespace) string {
	t := ns.Created()
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateTime)
}

// currentNamespace resolves the current namespace or explains how to pick one.
func currentNamespace(ctx context.Context, s *service.Service) (*models.Namespace, error) {
	ns, err := s.CurrentNamespace(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w; run 'ev ns create <name>' or 'ev ns use <name>'", err)
	}
	return ns, nil
}
