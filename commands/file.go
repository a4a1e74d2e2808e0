package commands

import (
	"errors"
	"os"
	"path/filepath"

	"aethersecure/crypto"
	"aethersecure/vault"

	"github.com/spf13/cobra"
)

// filePasswordEnv supplies the password when --password is omitted.
const filePasswordEnv = "AETHERSECURE_FILE_PASSWORD"

type fileFlags struct {
	password string
	out      string
}

func (f *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Password (default from "+filePasswordEnv+")")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", `Output path, "-" for stdout (default next to the input)`)
}

func (f *fileFlags) resolvePassword() (string, error) {
	if f.password != "" {
		return f.password, nil
	}
	if env := os.Getenv(filePasswordEnv); env != "" {
		return env, nil
	}
	return "", errors.New("a password is required (--password or " + filePasswordEnv + ")")
}

func newFileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Password-based AES-256-GCM file encryption",
	}
	cmd.AddCommand(newFileEncryptCommand(), newFileDecryptCommand())
	return cmd
}

func newFileEncryptCommand() *cobra.Command {
	flags := &fileFlags{}
	cmd := &cobra.Command{
		Use:     "encrypt [flags] file",
		Aliases: []string{"enc"},
		Short:   "Encrypt a file to <name>.enc",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := flags.resolvePassword()
			if err != nil {
				return err
			}
			data, err := readFile(args[0])
			if err != nil {
				return err
			}
			blob, err := crypto.EncryptFile(data, password)
			if err != nil {
				return err
			}

			out := flags.out
			if out == "" {
				out = siblingPath(args[0], vault.EncryptedDisplayName(filepath.Base(args[0])))
			}
			return writeOutput(cmd, out, blob)
		},
	}
	flags.register(cmd)
	return cmd
}

func newFileDecryptCommand() *cobra.Command {
	flags := &fileFlags{}
	cmd := &cobra.Command{
		Use:     "decrypt [flags] file.enc",
		Aliases: []string{"dec"},
		Short:   "Decrypt a file produced by encrypt",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := flags.resolvePassword()
			if err != nil {
				return err
			}
			blob, err := readFile(args[0])
			if err != nil {
				return err
			}
			data, err := crypto.DecryptFile(blob, password)
			if err != nil {
				return err
			}

			out := flags.out
			if out == "" {
				out = siblingPath(args[0], vault.DecryptedFileName(filepath.Base(args[0])))
			}
			return writeOutput(cmd, out, data)
		},
	}
	flags.register(cmd)
	return cmd
}
