package commands

import (
	"fmt"
	"path/filepath"

	"aethersecure/stego"
	"aethersecure/vault"

	"github.com/spf13/cobra"
)

func newStegoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stego",
		Short: "Hide text in the least significant bits of an image",
	}
	cmd.AddCommand(newStegoHideCommand(), newStegoExtractCommand(), newStegoCapacityCommand())
	return cmd
}

func newStegoHideCommand() *cobra.Command {
	var message, out string
	cmd := &cobra.Command{
		Use:   "hide [flags] cover-image",
		Short: "Embed a message and write a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cover, err := readFile(args[0])
			if err != nil {
				return err
			}
			stegoImage, err := stego.Hide(cover, message)
			if err != nil {
				return err
			}
			if out == "" {
				out = siblingPath(args[0], vault.StegoDisplayName(filepath.Base(args[0])))
			}
			return writeOutput(cmd, out, stegoImage)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message to hide")
	cmd.Flags().StringVarP(&out, "out", "o", "", `Output path, "-" for stdout (default stego_<name>.png next to the cover)`)
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newStegoExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract image",
		Short: "Print the message hidden in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readFile(args[0])
			if err != nil {
				return err
			}
			message, err := stego.Extract(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
}

func newStegoCapacityCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "capacity image",
		Short: "Print how many characters an image can hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readFile(args[0])
			if err != nil {
				return err
			}
			capacity, err := stego.Capacity(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), capacity)
			return nil
		},
	}
}
