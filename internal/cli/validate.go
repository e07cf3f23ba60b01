package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptengine/internal/engine"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a script compiles",
		Long: `Compile a script file without running it and report diagnostics.

Uses the same compiler as the "validate" opcode. Exits 1 when the file does
not compile.

Examples:
  scriptengine validate ./lib/strings.js
  scriptengine validate ./lib/strings.js --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	source, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("cannot read %s", path), err.Error())
		return WrapExitError(ExitCommandError, "failed to read file", err)
	}
	formatter.VerboseLog("Compiling %s (%d bytes)", path, len(source))

	result, err := engine.Validate(string(source))
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, "compiler failure", err.Error())
		return WrapExitError(ExitCommandError, "compiler failure", err)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", path)
	} else {
		diagnostics, _ := result.Errors.([]string)
		fmt.Fprintf(formatter.Writer, "✗ %s has %d error(s)\n", path, len(diagnostics))
		for _, d := range diagnostics {
			fmt.Fprintf(formatter.Writer, "  %s\n", d)
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%s does not compile", path))
	}
	return nil
}
