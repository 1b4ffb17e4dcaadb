// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/parkbook/internal/runner"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter writes the summary of a run to an output.
type Reporter interface {
	// Write renders a single run summary.
	Write(summary runner.Summary) error
	// Close flushes the report and closes the underlying file, if any.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format ("json" or "text") writing to outputPath.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	return NewTo(format, outputPath, os.Stdout)
}

// NewTo is New with stdout replaced, so callers can capture the report.
func NewTo(format, outputPath string, stdout io.Writer) (Reporter, error) {
	switch format {
	case "json", "text":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		// Wrap stdout so Close() is a no-op.
		writer = &nopWriteCloser{stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == "json" {
		return &jsonReporter{w: writer}, nil
	}
	return &textReporter{w: writer}, nil
}

type jsonReporter struct {
	w io.WriteCloser
}

func (r *jsonReporter) Write(summary runner.Summary) error {
	if summary.Planned == nil {
		summary.Planned = []string{}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	data = append(data, '\n')
	_, err = r.w.Write(data)
	return err
}

func (r *jsonReporter) Close() error {
	return r.w.Close()
}

type textReporter struct {
	w io.WriteCloser
}

func (r *textReporter) Write(s runner.Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", s.RunID)
	fmt.Fprintf(&b, "  %s, %s planned, %s booked",
		english.Plural(s.Sessions, "session", ""),
		english.Plural(len(s.Planned), "date", ""),
		humanize.Comma(int64(len(s.Booked()))),
	)
	if !s.StartedAt.IsZero() && s.FinishedAt.Sub(s.StartedAt) >= time.Second {
		fmt.Fprintf(&b, " in %s", strings.TrimSpace(humanize.RelTime(s.StartedAt, s.FinishedAt, "", "")))
	}
	b.WriteString("\n")
	if s.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", s.Error)
	}
	if len(s.Outcomes) > 0 {
		b.WriteString("\n")
		tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tDATE\tFLOOR\tRESULT\tSLOT\tATTEMPTS\tMESSAGE")
		for _, o := range s.Outcomes {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%d\t%s\n", o.Session, o.Date, o.Floor, o.Result, o.Slot, o.Attempts, o.Message)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *textReporter) Close() error {
	return r.w.Close()
}
