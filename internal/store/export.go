package store

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/partnerled/gdapctl/internal/gdap"
)

// Catalog exports (customers, roles, security groups) replace the file
// rather than appending: each export is a fresh snapshot.

// WriteCustomers writes the customer catalog in the chosen format. With
// compress set, the output is a zstd-compressed JSONL stream regardless
// of format, intended for very large customer lists.
func WriteCustomers(path string, format Format, customers []gdap.Customer, compress bool) error {
	if compress {
		return writeCompressedJSONL(path, func(enc *json.Encoder) error {
			for _, c := range customers {
				if err := enc.Encode(c); err != nil {
					return fmt.Errorf("failed to encode customer: %w", err)
				}
			}
			return nil
		})
	}

	rows := make([][]string, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []string{c.TenantID, c.Name, c.Domain})
	}

	return writeSnapshot(path, format, []string{"tenantId", "name", "domain"}, rows, func(enc *json.Encoder) error {
		for _, c := range customers {
			if err := enc.Encode(c); err != nil {
				return fmt.Errorf("failed to encode customer: %w", err)
			}
		}
		return nil
	})
}

// WriteRoles writes the directory role catalog.
func WriteRoles(path string, format Format, roles []gdap.DirectoryRole) error {
	rows := make([][]string, 0, len(roles))
	for _, r := range roles {
		rows = append(rows, []string{r.ID, r.Name})
	}

	return writeSnapshot(path, format, []string{"id", "name"}, rows, func(enc *json.Encoder) error {
		for _, r := range roles {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("failed to encode role: %w", err)
			}
		}
		return nil
	})
}

// WriteGroups writes the partner security group catalog.
func WriteGroups(path string, format Format, groups []gdap.SecurityGroup) error {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{g.ID, g.Name})
	}

	return writeSnapshot(path, format, []string{"id", "name"}, rows, func(enc *json.Encoder) error {
		for _, g := range groups {
			if err := enc.Encode(g); err != nil {
				return fmt.Errorf("failed to encode group: %w", err)
			}
		}
		return nil
	})
}

func writeSnapshot(path string, format Format, header []string, rows [][]string, encodeJSONL func(*json.Encoder) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case FormatCSV:
		if err := writeCSVRows(f, header, rows); err != nil {
			return err
		}
	case FormatJSONL:
		w := bufio.NewWriter(f)
		if err := encodeJSONL(json.NewEncoder(w)); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("failed to flush %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	return f.Sync()
}

func writeCSVRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeCompressedJSONL(path string, encodeJSONL func(*json.Encoder) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}

	if err := encodeJSONL(json.NewEncoder(zw)); err != nil {
		zw.Close()
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish compressed stream: %w", err)
	}

	return f.Sync()
}

// ReadCompressedCustomers reloads a compressed customer export. Mainly
// used by tests and by operators verifying a bulk download.
func ReadCompressedCustomers(path string) ([]gdap.Customer, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed stream: %w", err)
	}
	defer zr.Close()

	var customers []gdap.Customer
	dec := json.NewDecoder(zr)
	for {
		var c gdap.Customer
		if err := dec.Decode(&c); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode customer: %w", err)
		}
		customers = append(customers, c)
	}

	return customers, nil
}
