package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civildesk/models"
)

// rowStrings renders a mapped row the way the remote API returns it.
func rowStrings(t *testing.T, row []interface{}) []string {
	t.Helper()
	out := make([]string, len(row))
	for i, cell := range row {
		s, ok := cell.(string)
		require.True(t, ok, "cell %d is not a string", i)
		out[i] = s
	}
	return out
}

func TestTicketRowRoundTrip(t *testing.T) {
	in := models.Ticket{
		ID:            "CH-2026-0042",
		Title:         "Deslizamento na encosta",
		Description:   "Barranco cedeu após a chuva.",
		RequesterName: "Maria Souza",
		Phone:         "(13) 98888-7777",
		Neighborhood:  "Jardim Rio da Praia",
		Address:       "Rua das Flores, 123",
		Location:      &models.GeoLocation{Latitude: -23.853, Longitude: -46.142},
		Status:        models.StatusInProgress,
		Priority:      models.PriorityHigh,
		CreatedBy:     "Operador 1",
		CreatedAt:     "2026-08-30T12:00:00Z",
		UpdatedAt:     "2026-08-30T12:00:00Z",
		Photos:        []string{"data:image/png;base64,AAAA"},
		AIAnalysis:    "Risco de novo deslizamento.",
	}

	row := ticketToRow(in)
	require.Len(t, row, rowWidth)

	out := rowToTicket(rowStrings(t, row))
	assert.Equal(t, in, out)
}

func TestRowDisplayLabels(t *testing.T) {
	row := ticketToRow(models.Ticket{
		ID:       "CH-2026-0001",
		Status:   models.StatusResolved,
		Priority: models.PriorityCritical,
	})

	cells := rowStrings(t, row)
	assert.Equal(t, "Resolvido", cells[colStatus])
	assert.Equal(t, "Crítica", cells[colPriority])
}

func TestUnknownLabelsFallBack(t *testing.T) {
	row := make([]string, rowWidth)
	row[colID] = "CH-2026-0002"
	row[colStatus] = "Aguardando"
	row[colPriority] = "Urgentíssima"

	out := rowToTicket(row)
	assert.Equal(t, models.StatusOpen, out.Status)
	assert.Equal(t, models.PriorityMedium, out.Priority)
}

func TestShortRowTolerated(t *testing.T) {
	out := rowToTicket([]string{"Maria", "2026-08-30T12:00:00Z"})
	assert.Equal(t, "Maria", out.RequesterName)
	assert.Equal(t, "2026-08-30T12:00:00Z", out.CreatedAt)
	assert.Empty(t, out.ID)
	assert.Equal(t, models.StatusOpen, out.Status)
}

func TestLocationParsing(t *testing.T) {
	assert.Nil(t, parseLocation(""))
	assert.Nil(t, parseLocation("not a location"))
	assert.Nil(t, parseLocation("abc, def"))

	loc := parseLocation("-23.853, -46.142")
	require.NotNil(t, loc)
	assert.Equal(t, -23.853, loc.Latitude)
	assert.Equal(t, -46.142, loc.Longitude)

	assert.Equal(t, "", formatLocation(nil))
	assert.Equal(t, "-23.853, -46.142", formatLocation(loc))
}

func TestOversizePhotoUsesPlaceholder(t *testing.T) {
	big := "data:image/png;base64," + strings.Repeat("A", 60000)
	in := models.Ticket{
		ID:        "CH-2026-0003",
		Title:     "Alagamento",
		Status:    models.StatusOpen,
		Priority:  models.PriorityMedium,
		CreatedAt: "2026-08-30T12:00:00Z",
		UpdatedAt: "2026-08-30T12:00:00Z",
		Photos:    []string{big},
	}

	row := ticketToRow(in)
	cells := rowStrings(t, row)

	// Display column holds the notice, JSON column keeps the full photo.
	assert.Equal(t, photoPlaceholder, cells[colPhoto])
	assert.Contains(t, cells[colPhotosJSON], big)

	out := rowToTicket(cells)
	require.Len(t, out.Photos, 1)
	assert.Equal(t, big, out.Photos[0], "oversize photo must survive the round trip")
}

func TestLegacyRowWithoutJSONColumn(t *testing.T) {
	row := make([]string, rowWidth)
	row[colID] = "CH-2024-0100"
	row[colPhoto] = "https://example.com/foto.jpg"

	out := rowToTicket(row)
	assert.Equal(t, []string{"https://example.com/foto.jpg"}, out.Photos)

	// The placeholder notice itself must never be mistaken for a photo.
	row[colPhoto] = photoPlaceholder
	out = rowToTicket(row)
	assert.Empty(t, out.Photos)
}
