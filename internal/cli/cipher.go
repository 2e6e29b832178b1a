package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitsmind/graphsql/internal/cipher"
)

// CipherOptions holds flags for encrypt and decrypt.
type CipherOptions struct {
	*RootOptions
	Secret string
}

// CipherResult is what encrypt and decrypt print.
type CipherResult struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// NewEncryptCommand creates the encrypt command.
func NewEncryptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CipherOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "encrypt <graph>",
		Short: "Encode a graph expression as a graph_cipher payload",
		Long: `Encode a graph expression so it can be sent as graph_cipher.

The secret has the form shift or shift.scramble. Without --secret the
config file secret, or GRAPHSQL_SECRET, is used.

Example:
  graphsql encrypt "{name,children{name}}" --secret 7.3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCipher(opts, args[0], cipher.Encrypt, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "cipher secret (shift[.scramble])")
	return cmd
}

// NewDecryptCommand creates the decrypt command.
func NewDecryptCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CipherOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "decrypt <payload>",
		Short:         "Decode a graph_cipher payload",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCipher(opts, args[0], cipher.Decrypt, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Secret, "secret", "", "cipher secret (shift[.scramble])")
	return cmd
}

func runCipher(opts *CipherOptions, input string, fn func(string, string) (string, error), cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	secret := opts.Secret
	if secret == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		secret = cfg.Secret
	}
	if secret == "" {
		_ = formatter.Error(ErrCodeGeneric, "no secret: pass --secret or set GRAPHSQL_SECRET", nil)
		return NewExitError(ExitCommandError, "no secret configured")
	}

	out, err := fn(input, secret)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(CipherResult{Input: input, Output: out})
	}
	fmt.Fprintln(formatter.Writer, out)
	return nil
}
