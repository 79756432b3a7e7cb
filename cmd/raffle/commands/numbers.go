package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"rafflebot/internal/backup"
	"rafflebot/internal/raffle"
	"rafflebot/internal/storage"
)

func addCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "add <n>",
		Short:   "Add one number",
		Example: "  raffle add 42\n  raffle add -5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.report(cmd, c.svc.Add(cmd.Context(), c.area, args[0]))
		},
	}
}

// bulk reads its text from the arguments, or from stdin when none are given.
func bulkCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "bulk [numbers...]",
		Short:   "Add numbers and ranges, e.g. 1-10, 15; 20",
		Example: "  raffle bulk 1-10, 15; 20\n  raffle bulk -3 4\n  echo 1-100 | raffle bulk",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := joinArgs(args)
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimSpace(string(b))
			}
			return c.report(cmd, c.svc.Bulk(cmd.Context(), c.area, text))
		},
	}
}

func searchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "search <n>",
		Short:   "Check whether a number is in the list",
		Example: "  raffle search 7\n  raffle search -5",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.report(cmd, c.svc.Search(c.area, args[0]))
		},
	}
}

func listCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the count and all numbers ascending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view := c.svc.List()
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, view.CountText())
			if view.Count > 0 {
				fmt.Fprintln(w, raffle.FormatList(view.Numbers))
			}
			return nil
		},
	}
}

func exportCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the numbers as a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			art := c.svc.Export()
			if out == "" || out == "-" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(art.Data))
				return err
			}
			if err := storage.WriteFileAtomic(out, art.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d number(s), %s)\n", out, art.Count, humanize.Bytes(uint64(len(art.Data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}

func importCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file|-]",
		Short: "Merge numbers from a JSON array file (stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := c.cfg.MaxImportBytes()
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			data, err := io.ReadAll(io.LimitReader(r, limit+1))
			if err != nil {
				return err
			}
			if int64(len(data)) > limit {
				return fmt.Errorf("file too large (max %s)", humanize.IBytes(uint64(limit)))
			}
			return c.report(cmd, c.svc.Import(cmd.Context(), c.area, data))
		},
	}
}

func clearCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Clear all %d number(s)? [y/N]: ", c.svc.Store().Size())
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(line)); a != "y" && a != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}
			return c.report(cmd, c.svc.Clear(cmd.Context(), c.area))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func backupCmd(c *cli) *cobra.Command {
	var dir string
	var keep int
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a timestamped backup file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc := c.cfg.BackupRuntime()
			if dir != "" {
				bc.Dir = dir
			}
			if cmd.Flags().Changed("keep") {
				bc.Keep = keep
			}
			res, err := backup.NewWriter(bc.Dir, bc.Keep, c.log).Write(c.svc.Store().SnapshotSorted())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d number(s), %s)\n", res.Path, res.Count, humanize.Bytes(uint64(res.Bytes)))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "backup directory (default backup.dir)")
	cmd.Flags().IntVar(&keep, "keep", 0, "keep only the newest N backups (0 keeps all)")
	return cmd
}
