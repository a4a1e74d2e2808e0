package commands

import (
	"fmt"

	"aethersecure/crypto"

	"github.com/spf13/cobra"
)

type textKeyFlags struct {
	shift int
	key   string
}

func (f *textKeyFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.shift, "shift", "s", 0, "Caesar shift, 1 to 25")
	cmd.Flags().StringVarP(&f.key, "key", "k", "", "XOR key")
	_ = cmd.MarkFlagRequired("shift")
	_ = cmd.MarkFlagRequired("key")
}

func newTextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text",
		Short: "Caesar + XOR text super-cipher",
	}
	cmd.AddCommand(newTextEncryptCommand(), newTextDecryptCommand())
	return cmd
}

func newTextEncryptCommand() *cobra.Command {
	keys := &textKeyFlags{}
	cmd := &cobra.Command{
		Use:     "encrypt [flags] [plaintext]",
		Aliases: []string{"enc"},
		Short:   "Encrypt text to base64 (reads stdin without an argument)",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := textInput(cmd, args)
			if err != nil {
				return err
			}
			ciphertext, err := crypto.SuperEncryptText(plaintext, keys.shift, keys.key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ciphertext)
			return nil
		},
	}
	keys.register(cmd)
	return cmd
}

func newTextDecryptCommand() *cobra.Command {
	keys := &textKeyFlags{}
	cmd := &cobra.Command{
		Use:     "decrypt [flags] [base64-ciphertext]",
		Aliases: []string{"dec"},
		Short:   "Decrypt base64 text (reads stdin without an argument)",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ciphertext, err := textInput(cmd, args)
			if err != nil {
				return err
			}
			plaintext, err := crypto.SuperDecryptText(ciphertext, keys.shift, keys.key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plaintext)
			return nil
		},
	}
	keys.register(cmd)
	return cmd
}
