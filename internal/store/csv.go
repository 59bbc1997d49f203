package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/partnerled/gdapctl/internal/gdap"
	"github.com/partnerled/gdapctl/internal/util"
)

// roleSetSeparator joins role identifiers inside the single roleSet
// column. The set is always explicit, never inferred from position.
const roleSetSeparator = ";"

var csvColumns = []string{
	"id", "kind", "customerKey", "displayName", "groupKey",
	"roleSet", "status", "lastError", "attempt", "requestedAt", "updatedAt", "runId",
}

type csvStore struct{}

func (s *csvStore) Load(path string) ([]gdap.WorkItem, *LoadReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	report := &LoadReport{Fingerprint: util.Fingerprint(data)}

	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, report, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if len(header) != len(csvColumns) || !strings.EqualFold(header[0], "id") {
		return nil, nil, fmt.Errorf("unrecognized header in %s", path)
	}

	var items []gdap.WorkItem
	line := 1

	for {
		line++
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.Total++
			report.Skipped++
			report.Errors = append(report.Errors, &FormatError{Line: line, Reason: err.Error()})
			continue
		}

		report.Total++
		item, err := rowToItem(row)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, &FormatError{Line: line, Reason: err.Error()})
			continue
		}

		items = append(items, item)
	}

	return items, report, nil
}

func (s *csvStore) Append(path string, items []gdap.WorkItem) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)

	// Header only on a fresh file so repeated appends stay well-formed.
	if stat.Size() == 0 {
		if err := w.Write(csvColumns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for _, item := range items {
		if err := w.Write(itemToRow(item)); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush records: %w", err)
	}

	return f.Sync()
}

func itemToRow(item gdap.WorkItem) []string {
	return []string{
		item.ID,
		string(item.Kind),
		item.CustomerKey,
		item.DisplayName,
		item.GroupKey,
		strings.Join(item.RoleSet, roleSetSeparator),
		string(item.Status),
		item.LastError,
		strconv.Itoa(item.Attempt),
		formatTime(item.RequestedAt),
		formatTime(item.UpdatedAt),
		item.RunID,
	}
}

func rowToItem(row []string) (gdap.WorkItem, error) {
	if len(row) != len(csvColumns) {
		return gdap.WorkItem{}, fmt.Errorf("expected %d fields, got %d", len(csvColumns), len(row))
	}

	var attempt int
	if row[8] != "" {
		var err error
		attempt, err = strconv.Atoi(row[8])
		if err != nil {
			return gdap.WorkItem{}, fmt.Errorf("invalid attempt %q", row[8])
		}
	}

	requestedAt, err := parseTime(row[9])
	if err != nil {
		return gdap.WorkItem{}, fmt.Errorf("invalid requestedAt %q", row[9])
	}

	updatedAt, err := parseTime(row[10])
	if err != nil {
		return gdap.WorkItem{}, fmt.Errorf("invalid updatedAt %q", row[10])
	}

	var roleSet []string
	if row[5] != "" {
		roleSet = strings.Split(row[5], roleSetSeparator)
	}

	status := gdap.Status(row[6])
	if status == "" {
		status = gdap.StatusPending
	}

	item := gdap.WorkItem{
		ID:          row[0],
		Kind:        gdap.Kind(row[1]),
		CustomerKey: row[2],
		DisplayName: row[3],
		GroupKey:    row[4],
		RoleSet:     roleSet,
		Status:      status,
		LastError:   row[7],
		Attempt:     attempt,
		RequestedAt: requestedAt,
		UpdatedAt:   updatedAt,
		RunID:       row[11],
	}

	if err := item.Validate(); err != nil {
		return gdap.WorkItem{}, err
	}

	return item, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.New("timestamp must be RFC3339")
	}
	return t, nil
}
