package commands

import (
	"errors"
	"fmt"
	"strings"

	"aethersecure/face"

	"github.com/spf13/cobra"
)

func newFaceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "face",
		Short: "Face embedding utilities",
	}
	cmd.AddCommand(newFaceCompareCommand())
	return cmd
}

func newFaceCompareCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compare enrolled probe",
		Short: "Score two embeddings (JSON arrays or files holding them)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enrolled, err := loadEmbedding(args[0])
			if err != nil {
				return fmt.Errorf("enrolled: %w", err)
			}
			probe, err := loadEmbedding(args[1])
			if err != nil {
				return fmt.Errorf("probe: %w", err)
			}

			similarity, ok := face.CosineSimilarity(enrolled, probe)
			if !ok {
				return errors.New("embeddings cannot be compared (length mismatch or zero vector)")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "similarity=%.4f match=%t\n", similarity, face.Match(enrolled, probe))
			return nil
		},
	}
}

// loadEmbedding parses arg as a JSON array, or reads it as a file path.
func loadEmbedding(arg string) (face.Embedding, error) {
	raw := strings.TrimSpace(arg)
	if !strings.HasPrefix(raw, "[") {
		data, err := readFile(arg)
		if err != nil {
			return nil, err
		}
		raw = string(data)
	}
	return face.ParseEmbedding(raw)
}
