package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/partnerled/gdapctl/internal/gdap"
	"github.com/stretchr/testify/require"
)

func testCustomers() []gdap.Customer {
	return []gdap.Customer{
		{TenantID: "tenant-1", Name: "Contoso", Domain: "contoso.onmicrosoft.com"},
		{TenantID: "tenant-2", Name: "Fabrikam", Domain: "fabrikam.onmicrosoft.com"},
	}
}

func TestWriteCustomersCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.csv")

	require.NoError(t, WriteCustomers(path, FormatCSV, testCustomers(), false))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"tenantId", "name", "domain"}, rows[0])
	require.Equal(t, []string{"tenant-1", "Contoso", "contoso.onmicrosoft.com"}, rows[1])
}

func TestWriteCustomersCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.jsonl.zst")

	want := testCustomers()
	require.NoError(t, WriteCustomers(path, FormatCSV, want, true))

	got, err := ReadCompressedCustomers(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestWriteCustomersSnapshotReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.csv")

	require.NoError(t, WriteCustomers(path, FormatCSV, testCustomers(), false))
	require.NoError(t, WriteCustomers(path, FormatCSV, testCustomers()[:1], false))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestWriteRolesAndGroups(t *testing.T) {
	dir := t.TempDir()

	roles := []gdap.DirectoryRole{{ID: "role-1", Name: "Helpdesk Administrator"}}
	require.NoError(t, WriteRoles(filepath.Join(dir, "roles.jsonl"), FormatJSONL, roles))

	groups := []gdap.SecurityGroup{{ID: "group-1", Name: "Tier1 Support"}}
	require.NoError(t, WriteGroups(filepath.Join(dir, "groups.csv"), FormatCSV, groups))

	data, err := os.ReadFile(filepath.Join(dir, "roles.jsonl"))
	require.NoError(t, err)
	require.Contains(t, string(data), "Helpdesk Administrator")

	data, err = os.ReadFile(filepath.Join(dir, "groups.csv"))
	require.NoError(t, err)
	require.Contains(t, string(data), "Tier1 Support")
}

func TestReadCompressedCustomersMissing(t *testing.T) {
	_, err := ReadCompressedCustomers(filepath.Join(t.TempDir(), "missing.zst"))
	require.ErrorIs(t, err, ErrNotFound)
}
