package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go-invoice/payment/db"
)

// FileLedger keeps one JSON object per line in a plain file.
// It is not safe for concurrent writers.
type FileLedger struct {
	path string
}

func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

func (l *FileLedger) Path() string {
	return l.path
}

func (l *FileLedger) Append(rec *db.Invoice) error {
	line, err := encode(rec)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("appending to ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing ledger: %w", err)
	}
	return f.Close()
}

func (l *FileLedger) ReadAll() ([]db.Invoice, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []db.Invoice{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	records := []db.Invoice{}
	position := 0
	r := bufio.NewReader(f)
	for {
		// ReadBytes has no line length limit, unlike bufio.Scanner
		line, readErr := r.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("reading ledger: %w", readErr)
		}

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			position++
			rec, err := decode(position, line)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		if readErr == io.EOF {
			return records, nil
		}
	}
}

func (l *FileLedger) FindLatest(id string) (*db.Invoice, bool, error) {
	records, err := l.ReadAll()
	if err != nil {
		return nil, false, err
	}
	rec, found := latest(records, id)
	return rec, found, nil
}
