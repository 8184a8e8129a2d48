package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/lpdesk/lpdesk/internal/domain"
)

const dayLayout = "2006-01-02"

// TransactionArchive keeps a daily JSONL snapshot of each watched pair's
// normalized transactions. Objects live at
//
//	archive/transactions/{schema}/{pair}/{YYYY-MM-DD}.jsonl
//
// A day is written once it is complete; the current day is rewritten on
// every run.
type TransactionArchive struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
}

// NewTransactionArchive creates a new TransactionArchive. audit may be nil.
func NewTransactionArchive(writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore) *TransactionArchive {
	return &TransactionArchive{writer: writer, reader: reader, audit: audit}
}

// Archive groups records by UTC day and uploads one file per day. Days before
// now that already have a file are skipped. It returns the number of records
// written.
func (a *TransactionArchive) Archive(ctx context.Context, schema domain.SchemaVersion, pairID string, records []domain.TransactionRecord, now time.Time) (int, error) {
	byDay := make(map[string][]domain.TransactionRecord)
	for _, r := range records {
		day := r.Timestamp.UTC().Format(dayLayout)
		byDay[day] = append(byDay[day], r)
	}

	today := now.UTC().Format(dayLayout)
	written := 0
	for day, recs := range byDay {
		p := archivePath(schema, pairID, day)
		if day < today {
			exists, err := a.reader.Exists(ctx, p)
			if err != nil {
				return written, fmt.Errorf("s3blob: archive exists %s: %w", p, err)
			}
			if exists {
				continue
			}
		}

		buf, err := marshalJSONL(recs)
		if err != nil {
			return written, fmt.Errorf("s3blob: archive marshal %s: %w", p, err)
		}
		if err := a.writer.Put(ctx, p, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return written, fmt.Errorf("s3blob: archive upload %s: %w", p, err)
		}
		written += len(recs)

		if a.audit != nil {
			if err := a.audit.Log(ctx, "archive.transactions", map[string]any{
				"path":  p,
				"count": len(recs),
				"pair":  pairID,
			}); err != nil {
				return written, fmt.Errorf("s3blob: archive audit log: %w", err)
			}
		}
	}
	return written, nil
}

// Days lists the archived days of a pair, oldest first.
func (a *TransactionArchive) Days(ctx context.Context, schema domain.SchemaVersion, pairID string) ([]string, error) {
	infos, err := a.reader.List(ctx, archivePrefix(schema, pairID))
	if err != nil {
		return nil, err
	}
	days := make([]string, 0, len(infos))
	for _, info := range infos {
		base := path.Base(info.Path)
		if !strings.HasSuffix(base, ".jsonl") {
			continue
		}
		days = append(days, strings.TrimSuffix(base, ".jsonl"))
	}
	return days, nil
}

// Load reads the archived records of one day. Returns domain.ErrNotFound if
// the day was never archived.
func (a *TransactionArchive) Load(ctx context.Context, schema domain.SchemaVersion, pairID, day string) ([]domain.TransactionRecord, error) {
	if _, err := time.Parse(dayLayout, day); err != nil {
		return nil, fmt.Errorf("s3blob: invalid archive day %q: %w", day, domain.ErrNotFound)
	}
	body, err := a.reader.Get(ctx, archivePath(schema, pairID, day))
	if err != nil {
		return nil, err
	}
	defer body.Close()

	out := []domain.TransactionRecord{}
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var r domain.TransactionRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("s3blob: decode archive line: %w", err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("s3blob: read archive: %w", err)
	}
	return out, nil
}

func archivePrefix(schema domain.SchemaVersion, pairID string) string {
	return fmt.Sprintf("archive/transactions/%s/%s/", schema, strings.ToLower(pairID))
}

func archivePath(schema domain.SchemaVersion, pairID, day string) string {
	return archivePrefix(schema, pairID) + day + ".jsonl"
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
