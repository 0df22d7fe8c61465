package backend

import (
	"encoding/json"
	"strconv"
	"strings"

	"civildesk/models"
)

// The spreadsheet stores one ticket per row in a fixed 15-column layout
// (A..O). Column order is load-bearing: both mapping directions must agree on
// it exactly.
const (
	colRequester    = 0  // A
	colCreatedAt    = 1  // B
	colPhone        = 2  // C
	colAddress      = 3  // D
	colNeighborhood = 4  // E
	colTitle        = 5  // F
	colPriority     = 6  // G
	colStatus       = 7  // H
	colLocation     = 8  // I — "lat, lng"
	colAnalysis     = 9  // J
	colPhoto        = 10 // K — primary photo or oversize notice
	colID           = 11 // L
	colDescription  = 12 // M
	colPhotosJSON   = 13 // N — full photo array, JSON-encoded
	colCreatedBy    = 14 // O

	rowWidth = 15
)

// Remote cells cap out at 50000 characters; photos above this threshold are
// replaced in the display column by a notice and survive only in the JSON
// column.
const (
	photoCellLimit   = 40000
	photoPlaceholder = "[FOTO MUITO GRANDE - ver coluna de fotos]"
)

// Enum fields round-trip through display labels, not raw enum tags; the
// spreadsheet is read by humans.
var statusLabels = map[models.TicketStatus]string{
	models.StatusOpen:       "Aberto",
	models.StatusInProgress: "Em Andamento",
	models.StatusResolved:   "Resolvido",
	models.StatusCancelled:  "Cancelado",
}

var priorityLabels = map[models.TicketPriority]string{
	models.PriorityLow:      "Baixa",
	models.PriorityMedium:   "Média",
	models.PriorityHigh:     "Alta",
	models.PriorityCritical: "Crítica",
}

// StatusLabel returns the display label for s, defaulting to the OPEN label.
func StatusLabel(s models.TicketStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return statusLabels[models.StatusOpen]
}

// PriorityLabel returns the display label for p, defaulting to the MEDIUM label.
func PriorityLabel(p models.TicketPriority) string {
	if label, ok := priorityLabels[p]; ok {
		return label
	}
	return priorityLabels[models.PriorityMedium]
}

// statusFromLabel maps a display label back to its status. An unrecognized
// label yields OPEN rather than an error.
func statusFromLabel(label string) models.TicketStatus {
	for status, l := range statusLabels {
		if l == label {
			return status
		}
	}
	return models.StatusOpen
}

// priorityFromLabel maps a display label back to its priority, MEDIUM on an
// unrecognized label.
func priorityFromLabel(label string) models.TicketPriority {
	for priority, l := range priorityLabels {
		if l == label {
			return priority
		}
	}
	return models.PriorityMedium
}

// formatLocation serializes a coordinate pair as "<lat>, <lng>".
func formatLocation(loc *models.GeoLocation) string {
	if loc == nil {
		return ""
	}
	return strconv.FormatFloat(loc.Latitude, 'f', -1, 64) + ", " +
		strconv.FormatFloat(loc.Longitude, 'f', -1, 64)
}

// parseLocation parses a "<lat>, <lng>" cell. Unparsable strings yield no
// location, not an error.
func parseLocation(s string) *models.GeoLocation {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil
	}
	return &models.GeoLocation{Latitude: lat, Longitude: lng}
}

// ticketToRow maps a ticket onto the fixed A..O layout.
func ticketToRow(t models.Ticket) []interface{} {
	primaryPhoto := ""
	if len(t.Photos) > 0 {
		primaryPhoto = t.Photos[0]
		if len(primaryPhoto) > photoCellLimit {
			primaryPhoto = photoPlaceholder
		}
	}

	// The JSON column always carries the full array so oversize photos are
	// never lost to the display-column notice.
	photosJSON := "[]"
	if len(t.Photos) > 0 {
		if raw, err := json.Marshal(t.Photos); err == nil {
			photosJSON = string(raw)
		}
	}

	return []interface{}{
		t.RequesterName,
		t.CreatedAt,
		t.Phone,
		t.Address,
		t.Neighborhood,
		t.Title,
		PriorityLabel(t.Priority),
		StatusLabel(t.Status),
		formatLocation(t.Location),
		t.AIAnalysis,
		primaryPhoto,
		t.ID,
		t.Description,
		photosJSON,
		t.CreatedBy,
	}
}

// rowToTicket maps a spreadsheet row back to a ticket. Short rows are
// tolerated; missing trailing cells read as empty.
func rowToTicket(row []string) models.Ticket {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}

	t := models.Ticket{
		RequesterName: cell(colRequester),
		CreatedAt:     cell(colCreatedAt),
		Phone:         cell(colPhone),
		Address:       cell(colAddress),
		Neighborhood:  cell(colNeighborhood),
		Title:         cell(colTitle),
		Priority:      priorityFromLabel(cell(colPriority)),
		Status:        statusFromLabel(cell(colStatus)),
		Location:      parseLocation(cell(colLocation)),
		AIAnalysis:    cell(colAnalysis),
		ID:            cell(colID),
		Description:   cell(colDescription),
		CreatedBy:     cell(colCreatedBy),
		UpdatedAt:     cell(colCreatedAt),
		Photos:        []string{},
	}

	// Prefer the lossless JSON column; fall back to the display column for
	// rows written before the JSON column existed.
	if raw := cell(colPhotosJSON); raw != "" {
		var photos []string
		if err := json.Unmarshal([]byte(raw), &photos); err == nil {
			t.Photos = photos
		}
	}
	if len(t.Photos) == 0 {
		if p := cell(colPhoto); p != "" && p != photoPlaceholder {
			t.Photos = []string{p}
		}
	}

	return t
}
