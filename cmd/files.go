package cmd

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-voice/pkg/files"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

var filesUlog = grovelogging.NewUnifiedLogger("grove-voice.cmd.files")

func NewFilesCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Browse and manage files in the current namespace",
		Long: `Browse and manage files in the current namespace. Relative paths are
resolved against the namespace home directory.`,
	}

	cmd.AddCommand(
		newFilesListCmd(svc),
		newFilesMkdirCmd(svc),
		newFilesUploadCmd(svc),
		newFilesGetCmd(svc),
		newFilesRemoveCmd(svc),
	)
	return cmd
}

// filesService returns the service with file-manager toasts printed to the terminal.
func filesService(svc **service.Service) *service.Service {
	s := *svc
	s.Files.SetNotifier(files.NotifierFunc(notifyCLI))
	return s
}

func notifyCLI(level files.Level, msg string) {
	if level == files.LevelError {
		filesUlog.Info("File operation failed").Field("error", msg).Pretty("error: " + msg).Log(context.Background())
		return
	}
	filesUlog.Info("File operation").Pretty(msg).PrettyOnly().Log(context.Background())
}

// remotePath resolves p against the namespace home. Paths outside the home are refused.
func remotePath(ctx context.Context, s *service.Service, p string) (string, error) {
	ns, err := currentNamespace(ctx, s)
	if err != nil {
		return "", err
	}
	home := path.Clean(ns.HomePath)
	if p == "" {
		return home, nil
	}
	resolved := p
	if !path.IsAbs(p) {
		resolved = files.Join(home, p)
	}
	resolved = path.Clean(resolved)
	if resolved != home && !strings.HasPrefix(resolved, home+"/") {
		return "", fmt.Errorf("%s is outside namespace %s", p, ns.Name)
	}
	return resolved, nil
}

func newFilesListCmd(svc **service.Service) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "ls [path]",
		Aliases: []string{"list"},
		Short:   "List a directory",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			s := filesService(svc)
			var arg string
			if len(args) == 1 {
				arg = args[0]
			}
			dir, err := remotePath(ctx, s, arg)
			if err != nil {
				return err
			}
			listing := s.Files.List(ctx, dir)
			return render(cmd.OutOrStdout(), format, listing, func(w *tabwriter.Writer) {
				fmt.Fprintln(w, "TYPE\tNAME\tSIZE\tMODIFIED")
				for _, item := range listing.Items() {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.Type, displayName(item), displaySize(item), item.LastModified.Format("2006-01-02 15:04"))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

func displayName(item models.FileItem) string {
	if item.IsDir() {
		return item.Name + "/"
	}
	return item.Name
}

func displaySize(item models.FileItem) string {
	if item.IsDir() {
		return "-"
	}
	return fmt.Sprintf("%d", item.Size)
}

func newFilesMkdirCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := filesService(svc)
			target, err := remotePath(ctx, s, args[0])
			if err != nil {
				return err
			}
			return s.Files.CreateFolder(ctx, path.Dir(target), path.Base(target))
		},
	}
}

func newFilesUploadCmd(svc **service.Service) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <local-file>... [--to dir]",
		Short: "Upload local files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := filesService(svc)
			dest, _ := cmd.Flags().GetString("to")
			dir, err := remotePath(ctx, s, dest)
			if err != nil {
				return err
			}
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name can only be used with a single file")
			}
			for _, local := range args {
				data, err := os.ReadFile(local)
				if err != nil {
					return fmt.Errorf("read %s: %w", local, err)
				}
				target := filepath.Base(local)
				if name != "" {
					target = name
				}
				if err := s.Files.Upload(ctx, dir, target, data); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().String("to", "", "Destination directory (default: namespace home)")
	cmd.Flags().StringVar(&name, "name", "", "Remote file name (default: local base name)")
	return cmd
}

func newFilesGetCmd(svc **service.Service) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "get <path>",
		Aliases: []string{"download"},
		Short:   "Download a file",
		Long:    "Download a file. Use -o - to write it to stdout.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := filesService(svc)
			src, err := remotePath(ctx, s, args[0])
			if err != nil {
				return err
			}
			data, err := s.Files.Download(ctx, src)
			if err != nil {
				return err
			}
			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = path.Base(src)
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			filesUlog.Info("File downloaded").
				Field("path", src).
				Field("bytes", len(data)).
				Pretty(fmt.Sprintf("Saved %s (%d bytes)", output, len(data))).
				PrettyOnly().
				Log(ctx)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Local destination (default: remote base name)")
	return cmd
}

func newFilesRemoveCmd(svc **service.Service) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm <path>...",
		Aliases: []string{"delete"},
		Short:   "Delete files or folders",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := filesService(svc)
			targets := make([]string, 0, len(args))
			for _, a := range args {
				p, err := remotePath(ctx, s, a)
				if err != nil {
					return err
				}
				targets = append(targets, p)
			}

			if !yes {
				fmt.Fprintln(cmd.OutOrStdout(), "The following will be deleted:")
				for _, t := range targets {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", t)
				}
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete %d item(s)?", len(targets))) {
					filesUlog.Info("Delete cancelled").Pretty("Cancelled.").PrettyOnly().Log(ctx)
					return nil
				}
			}

			// Refetch the parent of the first target, which is what a browser would show.
			return s.Files.DeleteMany(ctx, path.Dir(targets[0]), targets)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	return cmd
}
