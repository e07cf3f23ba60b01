package cli

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/scriptengine/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string // optional - defaults to the latest session
}

// TraceExchange is one handled request in trace output.
type TraceExchange struct {
	Seq         int64  `json:"seq"`
	Opcode      string `json:"opcode"`
	Status      string `json:"status"`
	Code        int    `json:"code,omitempty"`
	RequestHash string `json:"request_hash"`
	DurationUS  int64  `json:"duration_us"`
}

// TraceLibrary is one merged library in trace output.
type TraceLibrary struct {
	Seq        int64    `json:"seq"`
	Path       string   `json:"path"`
	Name       string   `json:"name"`
	SourceHash string   `json:"source_hash"`
	Bindings   []string `json:"bindings"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session   string          `json:"session"`
	Exchanges []TraceExchange `json:"exchanges"`
	Libraries []TraceLibrary  `json:"libraries"`
	Stats     TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for the session.
type TraceStats struct {
	Requests  int `json:"requests"`
	Errors    int `json:"errors"`
	Libraries int `json:"libraries"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show what a serving session did",
		Long: `Show the requests and library loads recorded in a journal.

Examples:
  scriptengine trace --db ./journal.db
  scriptengine trace --db ./journal.db --session 0190b6c2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (default: latest)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, "cannot open journal", err.Error())
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	sessions, err := j.Sessions(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, "cannot list sessions", err.Error())
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	session := opts.Session
	switch {
	case session != "":
		if !slices.ContainsFunc(sessions, func(s journal.Session) bool { return s.ID == session }) {
			_ = formatter.Error(ErrCodeInvalidInput, fmt.Sprintf("unknown session %q", session), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown session %q", session))
		}
	case len(sessions) == 0:
		_ = formatter.Error(ErrCodeNotFound, "journal has no sessions", nil)
		return NewExitError(ExitCommandError, "journal has no sessions")
	default:
		session = sessions[len(sessions)-1].ID
	}

	result, err := buildTrace(ctx, j, session)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, "cannot read session", err.Error())
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return printTrace(formatter, result)
}

func buildTrace(ctx context.Context, j *journal.Journal, session string) (TraceResult, error) {
	exchanges, err := j.Exchanges(ctx, session)
	if err != nil {
		return TraceResult{}, err
	}
	libraries, err := j.Libraries(ctx, session)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{
		Session:   session,
		Exchanges: make([]TraceExchange, 0, len(exchanges)),
		Libraries: make([]TraceLibrary, 0, len(libraries)),
	}
	for _, ex := range exchanges {
		result.Exchanges = append(result.Exchanges, TraceExchange{
			Seq:         ex.Seq,
			Opcode:      ex.Opcode,
			Status:      ex.Status,
			Code:        ex.Code,
			RequestHash: ex.RequestHash,
			DurationUS:  ex.Duration.Microseconds(),
		})
		if ex.Code != 0 {
			result.Stats.Errors++
		}
	}
	for _, lib := range libraries {
		result.Libraries = append(result.Libraries, TraceLibrary(lib))
	}
	result.Stats.Requests = len(result.Exchanges)
	result.Stats.Libraries = len(result.Libraries)
	return result, nil
}

func printTrace(f *OutputFormatter, result TraceResult) error {
	fmt.Fprintf(f.Writer, "Session %s: %d request(s), %d error(s), %d library load(s)\n\n",
		result.Session, result.Stats.Requests, result.Stats.Errors, result.Stats.Libraries)

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tOPCODE\tSTATUS\tCODE\tDURATION")
	for _, ex := range result.Exchanges {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%dµs\n", ex.Seq, ex.Opcode, ex.Status, ex.Code, ex.DurationUS)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, lib := range result.Libraries {
		fmt.Fprintf(f.Writer, "\n[%d] %s (%s): %v\n", lib.Seq, lib.Path, lib.Name, lib.Bindings)
	}
	return nil
}
