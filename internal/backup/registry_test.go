package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)

	_, err = NewRegistry([]TableDescriptor{
		{Name: "brands", PrimaryKey: "id"},
		{Name: "brands", PrimaryKey: "id"},
	})
	assert.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry([]TableDescriptor{
		{Name: "brands; drop table users", PrimaryKey: "id"},
	})
	assert.ErrorContains(t, err, "invalid table name")

	_, err = NewRegistry([]TableDescriptor{
		{Name: "brands", PrimaryKey: ""},
	})
	assert.ErrorContains(t, err, "invalid primary key")

	_, err = NewRegistry([]TableDescriptor{
		{Name: "brands", PrimaryKey: "id", TimeColumns: []string{"created at"}},
	})
	assert.ErrorContains(t, err, "invalid time column")
}

func TestRegistryOrdering(t *testing.T) {
	reg, err := NewRegistry([]TableDescriptor{
		{Name: "parents", PrimaryKey: "id"},
		{Name: "children", PrimaryKey: "id"},
		{Name: "grandchildren", PrimaryKey: "id"},
	})
	require.NoError(t, err)

	forward := reg.Tables()
	require.Len(t, forward, 3)
	assert.Equal(t, "parents", forward[0].Name)
	assert.Equal(t, "grandchildren", forward[2].Name)

	reversed := reg.Reversed()
	assert.Equal(t, "grandchildren", reversed[0].Name)
	assert.Equal(t, "parents", reversed[2].Name)

	d, ok := reg.Lookup("children")
	require.True(t, ok)
	assert.Equal(t, "id", d.PrimaryKey)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
}

func TestCatalogRegistry(t *testing.T) {
	reg := CatalogRegistry()

	tables := reg.Tables()
	require.Equal(t, 10, len(tables))

	// Identity tables lead so catalog rows referencing operators resolve on merge.
	assert.Equal(t, "roles", tables[0].Name)
	assert.Equal(t, "users", tables[1].Name)
	assert.Equal(t, "direct_sales", tables[len(tables)-1].Name)
}

func TestProtectedTables(t *testing.T) {
	assert.True(t, IsProtected("roles"))
	assert.True(t, IsProtected("users"))
	assert.False(t, IsProtected("brands"))
	assert.False(t, IsProtected("direct_sales"))
}
