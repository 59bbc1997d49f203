package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/minio/crc64nvme"
	"github.com/partnerled/gdapctl/internal/gdap"
	"github.com/partnerled/gdapctl/internal/util"
	"github.com/rs/zerolog/log"
)

// envelope wraps one record per line. The CRC64-NVME checksum covers the
// raw record bytes so a torn write from a crash is detectable on reload.
type envelope struct {
	CRC    string          `json:"crc"`
	Record json.RawMessage `json:"record"`
}

type jsonlStore struct{}

func (s *jsonlStore) Load(path string) ([]gdap.WorkItem, *LoadReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	report := &LoadReport{Fingerprint: util.Fingerprint(data)}

	var lines [][]byte
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to scan %s: %w", path, err)
	}

	var items []gdap.WorkItem

	for i, line := range lines {
		report.Total++

		item, err := decodeLine(line)
		if err != nil {
			// A corrupt final line is the expected artifact of a crash
			// mid-append. Drop it quietly; anything earlier is a real
			// format problem worth reporting.
			if i == len(lines)-1 {
				report.Total--
				log.Warn().Str("path", path).Err(err).Msg("dropping torn trailing record")
				break
			}
			report.Skipped++
			report.Errors = append(report.Errors, &FormatError{Line: i + 1, Reason: err.Error()})
			continue
		}

		items = append(items, item)
	}

	return items, report, nil
}

func (s *jsonlStore) Append(path string, items []gdap.WorkItem) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, item := range items {
		line, err := encodeLine(item)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush records: %w", err)
	}

	return f.Sync()
}

func encodeLine(item gdap.WorkItem) ([]byte, error) {
	record, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	env := envelope{
		CRC:    fmt.Sprintf("%016x", checksum(record)),
		Record: record,
	}

	return json.Marshal(env)
}

func checksum(data []byte) uint64 {
	h := crc64nvme.New()
	h.Write(data)
	return h.Sum64()
}

func decodeLine(line []byte) (gdap.WorkItem, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return gdap.WorkItem{}, fmt.Errorf("invalid envelope: %v", err)
	}

	want := fmt.Sprintf("%016x", checksum(env.Record))
	if env.CRC != want {
		return gdap.WorkItem{}, fmt.Errorf("checksum mismatch: stored=%s computed=%s", env.CRC, want)
	}

	var item gdap.WorkItem
	if err := json.Unmarshal(env.Record, &item); err != nil {
		return gdap.WorkItem{}, fmt.Errorf("invalid record: %v", err)
	}

	if err := item.Validate(); err != nil {
		return gdap.WorkItem{}, err
	}

	return item, nil
}
