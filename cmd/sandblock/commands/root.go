// Package commands implements the sandblock CLI on top of the client library.
package commands

import (
	"github.com/spf13/cobra"

	sandlib "github.com/AnishMulay/sandblock/clients/library"
)

var (
	cfgFile  string
	owner    string
	password string
)

var rootCmd = &cobra.Command{
	Use:   "sandblock",
	Short: "sandblock - client for the sandblock block store",
	Long: `sandblock talks to a sandblock cluster (or an embedded one) through the
same client library virtualization hosts link against.

Use "sandblock [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "client config file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&owner, "user", "u", "", "file owner to act as")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "password (root only)")

	rootCmd.AddCommand(lsCmd, statCmd, mkdirCmd, rmdirCmd)
	rootCmd.AddCommand(createCmd, rmCmd, mvCmd, extendCmd, chownCmd)
	rootCmd.AddCommand(putCmd, getCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func currentUser() sandlib.UserInfo {
	return sandlib.UserInfo{Owner: owner, Password: password}
}

// withClient initializes a FileClient for the duration of one command.
func withClient(fn func(c *sandlib.FileClient) error) error {
	c := sandlib.NewFileClient()
	if err := c.Init(cfgFile); err != nil {
		return err
	}
	defer c.UnInit()
	return fn(c)
}
