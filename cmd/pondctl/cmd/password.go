package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/good-yellow-bee/pondview/internal/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash an operator password for the server config",
	Long: `Read a password and print its bcrypt hash. Put the hash under
auth.users in the server config to let that operator log in.

The password is read without echo on a terminal, or as one line from stdin
when piped.

Example:
  pondctl hash-password
  echo "s3cret" | pondctl hash-password`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword(os.Stderr, os.Stdin, int(os.Stdin.Fd()), "Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

// promptPassword reads a password without echo when fd is a terminal and
// falls back to one line of in otherwise.
func promptPassword(out io.Writer, in io.Reader, fd int, prompt string) (string, error) {
	fmt.Fprint(out, prompt)

	if term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	password, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || password == "") {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
