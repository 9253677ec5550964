package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPlacesCSV(t *testing.T) {
	in := strings.NewReader(
		"id,slug,name,website,city,phone\n" +
			"42,garcia-and-sons,Garcia & Sons,https://garcia.example,Riverside,+1-555-0142\n" +
			"7,trattoria-nonna,Trattoria Nonna,,,\n")

	places, err := readPlacesCSV(in)
	require.NoError(t, err)
	require.Len(t, places, 2)
	assert.Equal(t, int64(42), places[0].ID)
	assert.Equal(t, "https://garcia.example", places[0].Website)
	assert.Equal(t, "Trattoria Nonna", places[1].Name)
	assert.Empty(t, places[1].Website)
}

func TestReadPlacesCSVColumnOrderIndependent(t *testing.T) {
	in := strings.NewReader("name,id,slug\nGarcia & Sons,42,garcia-and-sons\n")

	places, err := readPlacesCSV(in)
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "garcia-and-sons", places[0].Slug)
}

func TestReadPlacesCSVMissingRequiredColumn(t *testing.T) {
	in := strings.NewReader("id,name\n42,Garcia & Sons\n")

	_, err := readPlacesCSV(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"slug"`)
}

func TestReadPlacesCSVBadRow(t *testing.T) {
	in := strings.NewReader("id,slug,name\nnot-a-number,garcia,Garcia\n")

	_, err := readPlacesCSV(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
