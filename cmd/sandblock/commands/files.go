package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	sandlib "github.com/AnishMulay/sandblock/clients/library"
)

const transferBlock = 1 << 20

var (
	createSize uint64
	rmForce    bool
	putCreate  bool
	getOutput  string
)

func formatCtime(us uint64) string {
	return time.UnixMicro(int64(us)).UTC().Format(time.RFC3339)
}

var lsCmd = &cobra.Command{
	Use:   "ls <dir>",
	Short: "List a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *sandlib.FileClient) error {
			entries, err := c.Listdir(args[0], currentUser())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.FileName,
					e.FileType.String(),
					strconv.FormatUint(e.Length, 10),
					e.Owner,
					strconv.FormatUint(e.ID, 10),
					formatCtime(e.Ctime),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"Name", "Type", "Size", "Owner", "ID", "Created"}, rows)
			return nil
		})
	},
}

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show file metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *sandlib.FileClient) error {
			st, err := c.StatFile(args[0], currentUser())
			if err != nil {
				return err
			}
			printPairs(cmd.OutOrStdout(), [][2]string{
				{"Path", args[0]},
				{"ID", strconv.FormatUint(st.ID, 10)},
				{"Parent", strconv.FormatUint(st.ParentID, 10)},
				{"Type", st.FileType.String()},
				{"Size", strconv.FormatUint(st.Length, 10)},
				{"Created", formatCtime(st.Ctime)},
			})
			return nil
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <dir>",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *sandlib.FileClient) error {
			return c.Mkdir(args[0], currentUser())
		})
	},
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <dir>",
	Short: "Remove an empty directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *sandlib.FileClient) error {
			return c.Rmdir(args[0], currentUser())
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create a file of a fixed size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *sandlib.FileClient) error {
			return c.Create(args[0], currentUser(), createSize)
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *sandlib.FileClient) error {
			return c.Unlink(args[0], currentUser(), rmForce)
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <old> <new>",
	Short: "Rename a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *sandlib.FileClient) error {
			return c.Rename(currentUser(), args[0], args[1])
		})
	},
}

var extendCmd = &cobra.Command{
	Use:   "extend <path> <size>",
	Short: "Grow a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		size, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", args[1], err)
		}
		return withClient(func(c *sandlib.FileClient) error {
			return c.Extend(args[0], currentUser(), size)
		})
	},
}

var chownCmd = &cobra.Command{
	Use:   "chown <path> <owner>",
	Short: "Change the owner of a file (root only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *sandlib.FileClient) error {
			return c.ChangeOwner(args[0], args[1], currentUser())
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <local> <path>",
	Short: "Copy a local file into a sandblock file",
	Long: `Copy a local file into a sandblock file. The data is zero padded to the
IO block size. With --create the destination is created first.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if rem := len(data) % sandlib.IOAlignedBlockSize; rem != 0 {
			data = append(data, make([]byte, sandlib.IOAlignedBlockSize-rem)...)
		}

		return withClient(func(c *sandlib.FileClient) error {
			user := currentUser()
			if putCreate {
				if err := c.Create(args[1], user, uint64(len(data))); err != nil {
					return err
				}
			}
			fd, err := c.Open(args[1], user)
			if err != nil {
				return err
			}
			defer c.Close(fd)

			for off := 0; off < len(data); off += transferBlock {
				end := min(off+transferBlock, len(data))
				if _, err := c.Write(fd, data[off:end], int64(off)); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(data), args[1])
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Read a whole sandblock file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out io.Writer = cmd.OutOrStdout()
		if getOutput != "" {
			f, err := os.Create(getOutput)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		return withClient(func(c *sandlib.FileClient) error {
			user := currentUser()
			st, err := c.StatFile(args[0], user)
			if err != nil {
				return err
			}
			fd, err := c.Open(args[0], user)
			if err != nil {
				return err
			}
			defer c.Close(fd)

			buf := make([]byte, transferBlock)
			for off := uint64(0); off < st.Length; off += transferBlock {
				n := min(uint64(transferBlock), st.Length-off)
				if _, err := c.Read(fd, buf[:n], int64(off)); err != nil {
					return err
				}
				if _, err := out.Write(buf[:n]); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	createCmd.Flags().Uint64Var(&createSize, "size", 0, "file size in bytes (multiple of 4096)")
	_ = createCmd.MarkFlagRequired("size")
	rmCmd.Flags().BoolVarP(&rmForce, "force", "f", false, "delete even if the file is open")
	putCmd.Flags().BoolVar(&putCreate, "create", false, "create the destination file")
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "write to a local file instead of stdout")
}
