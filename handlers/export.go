package handlers

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"civildesk/audit"
	"civildesk/backend"
	"civildesk/middleware"
	"civildesk/sync"
)

type ExportHandler struct {
	data  *sync.DataService
	trail *audit.Trail
}

func NewExportHandler(data *sync.DataService, trail *audit.Trail) *ExportHandler {
	return &ExportHandler{
		data:  data,
		trail: trail,
	}
}

// ExportTickets streams all tickets as a CSV download. Status and priority
// use the same display labels as the spreadsheet backend.
func (h *ExportHandler) ExportTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	tickets, err := h.data.GetTickets(r.Context())
	if err != nil {
		log.Printf("❌ Failed to get tickets: %v", err)
		writeError(w, "Failed to retrieve tickets", http.StatusInternalServerError)
		return
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("civildesk_tickets_%s.csv", timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"ID",
		"Título",
		"Descrição",
		"Status",
		"Prioridade",
		"Solicitante",
		"Telefone",
		"Bairro",
		"Endereço",
		"Latitude",
		"Longitude",
		"Criado Em",
		"Atualizado Em",
		"Criado Por",
	}
	if err := writer.Write(header); err != nil {
		log.Printf("❌ Failed to write CSV header: %v", err)
		return
	}

	for _, t := range tickets {
		lat, lng := "", ""
		if t.Location != nil {
			lat = strconv.FormatFloat(t.Location.Latitude, 'f', -1, 64)
			lng = strconv.FormatFloat(t.Location.Longitude, 'f', -1, 64)
		}

		row := []string{
			t.ID,
			t.Title,
			t.Description,
			backend.StatusLabel(t.Status),
			backend.PriorityLabel(t.Priority),
			t.RequesterName,
			t.Phone,
			t.Neighborhood,
			t.Address,
			lat,
			lng,
			t.CreatedAt,
			t.UpdatedAt,
			t.CreatedBy,
		}
		if err := writer.Write(row); err != nil {
			log.Printf("❌ Failed to write CSV row for %s: %v", t.ID, err)
			return
		}
	}

	h.trail.Record(user.ID, "EXPORT_TICKETS", fmt.Sprintf("Exported %d tickets", len(tickets)))
	log.Printf("✅ Exported %d tickets (by %s)", len(tickets), user.Email)
}
