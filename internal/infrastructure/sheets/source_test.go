package sheets

import (
	"testing"

	"github.com/kset/verifikator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCols() config.RosterColumns {
	return config.RosterColumns{
		FullName:         "Ime i prezime",
		Section:          "Matična sekcija",
		MembershipStatus: "Trenutna vrsta članstva",
		OrgEmail:         "KSET e-pošta",
		PersonalEmail:    "Privatna e-pošta",
	}
}

func TestRecordsFromRows(t *testing.T) {
	rows := [][]interface{}{
		{"Ime i prezime", "Matična sekcija", "Trenutna vrsta članstva", "KSET e-pošta", "Privatna e-pošta"},
		{"Ana Anić", "Računarska", "Aktivni član", "a@kset.org", "a@gmail.com"},
		{"Boris Borić", "Foto", "Počasni član", " b@kset.org ", ""},
	}

	records, err := recordsFromRows(rows, testCols())

	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Ana Anić", records[0].FullName)
	assert.Equal(t, "Računarska", records[0].Section)
	assert.Equal(t, "Aktivni član", records[0].MembershipStatus)
	assert.Equal(t, "a@kset.org", records[0].OrgEmail)
	assert.Equal(t, "a@gmail.com", records[0].PersonalEmail)

	// Cell padding comes off, casing stays as entered.
	assert.Equal(t, "b@kset.org", records[1].OrgEmail)
	assert.Empty(t, records[1].PersonalEmail)
}

func TestRecordsFromRows_ReorderedColumns(t *testing.T) {
	rows := [][]interface{}{
		{"Privatna e-pošta", "Ime i prezime", "KSET e-pošta"},
		{"a@gmail.com", "Ana Anić", "a@kset.org"},
	}

	records, err := recordsFromRows(rows, testCols())

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ana Anić", records[0].FullName)
	assert.Equal(t, "a@kset.org", records[0].OrgEmail)
	assert.Equal(t, "a@gmail.com", records[0].PersonalEmail)
	assert.Empty(t, records[0].Section)
}

func TestRecordsFromRows_MissingEmailColumn(t *testing.T) {
	rows := [][]interface{}{
		{"Ime i prezime", "KSET e-pošta"},
		{"Ana Anić", "a@kset.org"},
	}

	_, err := recordsFromRows(rows, testCols())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Privatna e-pošta")
}

func TestRecordsFromRows_SkipsRowsWithoutEmails(t *testing.T) {
	rows := [][]interface{}{
		{"Ime i prezime", "KSET e-pošta", "Privatna e-pošta"},
		{"Nema Mailova", "", "  "},
		{"Ana Anić", "a@kset.org", ""},
		{"Kratki Red"},
	}

	records, err := recordsFromRows(rows, testCols())

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ana Anić", records[0].FullName)
}

func TestRecordsFromRows_EmptyRange(t *testing.T) {
	_, err := recordsFromRows(nil, testCols())
	require.Error(t, err)
}

func TestRecordsFromRows_NonStringCells(t *testing.T) {
	rows := [][]interface{}{
		{"Ime i prezime", "KSET e-pošta", "Privatna e-pošta"},
		{12345, "a@kset.org", ""},
	}

	records, err := recordsFromRows(rows, testCols())

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "12345", records[0].FullName)
}
