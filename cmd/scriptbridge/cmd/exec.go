package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	input     string
	inputFile string
)

// errFailedStatus is returned when the plugin reports a failed invocation.
var errFailedStatus = errors.New("invocation failed")

// execCmd represents the exec command.
var execCmd = &cobra.Command{
	Use:   "exec",
	Short: "Invoke a script plugin in process",
	Long: `Load the plugin module from the mount directory and invoke its entry point
once with the given input. The output is written to stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := readInput(cmd)
		if err != nil {
			return err
		}

		r, err := newNativeRunner(cmd.Context(), afero.NewOsFs(), cfg)
		if err != nil {
			return err
		}
		defer r.Close()

		return invokeOnce(cmd, r, data)
	},
}

func init() {
	addInputFlags(execCmd)
	rootCmd.AddCommand(execCmd)
}

func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&input, "input", "i", "", "input passed to the entry point")
	cmd.Flags().StringVarP(&inputFile, "input-file", "f", "", "read input from a file, - for stdin")
	cmd.MarkFlagsMutuallyExclusive("input", "input-file")
}

// readInput returns the request payload selected by the input flags.
func readInput(cmd *cobra.Command) ([]byte, error) {
	switch inputFile {
	case "":
		return []byte(input), nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}

		return data, nil
	default:
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}

		return data, nil
	}
}

// invokeOnce runs one call and prints its result.
func invokeOnce(cmd *cobra.Command, r invoker, data []byte) error {
	res, err := r.Call(data)
	if err != nil {
		return err
	}

	printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
	if res.Status != 0 {
		return fmt.Errorf("%w: status %d", errFailedStatus, res.Status)
	}

	return nil
}
