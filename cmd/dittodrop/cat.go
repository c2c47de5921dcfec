package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittodrop/pkg/file"
)

// catFiles prints each record under a header line. Buffers are released as
// soon as they are written.
func catFiles(w io.Writer, records []*file.Record) error {
	for i, rec := range records {
		if err := rec.Populate(); err != nil {
			return err
		}

		_, err := fmt.Fprintf(w, "==> %s (%s) <==\n", rec.Path(), humanize.IBytes(rec.Size()))
		if err == nil {
			_, err = w.Write(rec.Bytes())
		}
		if err == nil && i < len(records)-1 {
			_, err = io.WriteString(w, "\n")
		}
		rec.Reset()
		if err != nil {
			return fmt.Errorf("write %s: %w", rec.Name(), err)
		}
	}
	return nil
}
