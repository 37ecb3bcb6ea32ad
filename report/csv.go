package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nballoc/allocbench/collect"
)

// Header is the first record of every CSV table.
var Header = []string{"Test", "Allocator", "Size", "Threads", "Run", "Time"}

// WriteCSV writes rows as a CSV table in the order given.
func WriteCSV(w io.Writer, rows []collect.Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range rows {
		if err := cw.Write([]string{
			r.Test, r.Allocator, r.Size, r.Threads, r.Run, r.Time,
		}); err != nil {
			return fmt.Errorf("write row %s: %w", r.Filename(), err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteCSVFile writes the table to path. The file is replaced atomically,
// so a failed write leaves any previous table untouched.
func WriteCSVFile(path string, rows []collect.Row) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".allocbench-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := WriteCSV(tmp, rows); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("rename to %s: %w", path, err)
	}

	return nil
}
