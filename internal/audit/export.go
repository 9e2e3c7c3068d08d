// SPDX-License-Identifier: MIT

package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/renameio/v2"
)

// csvHeader is the stable column order of the operator export.
var csvHeader = []string{
	"seq", "timestamp", "session_key", "stage_before", "input",
	"trigger", "reply", "stage_after", "action", "duration_ms",
}

// WriteCSV streams the full audit log as CSV to w, one row per entry, in
// the stable column order operators depend on.
func WriteCSV(ctx context.Context, sink Sink, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("audit: csv header: %w", err)
	}
	err := sink.Scan(ctx, func(e FlowLogEntry) error {
		return cw.Write([]string{
			strconv.FormatInt(e.Seq, 10),
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.SessionKey,
			string(e.StageBefore),
			e.Input,
			e.Trigger,
			e.Reply,
			string(e.StageAfter),
			e.Action,
			strconv.FormatInt(e.DurationMS, 10),
		})
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// ExportFile writes the CSV export atomically: the file at path is either
// the previous complete export or the new one, never a partial write.
func ExportFile(ctx context.Context, sink Sink, path string) error {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("audit: create pending export: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if err := WriteCSV(ctx, sink, pendingFile); err != nil {
		return fmt.Errorf("audit: write export: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("audit: replace export: %w", err)
	}
	return nil
}
