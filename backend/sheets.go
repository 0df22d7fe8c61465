package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"civildesk/models"
)

const defaultSheetsBaseURL = "https://sheets.googleapis.com"

// Sheets is the spreadsheet backend: tickets are rows in a fixed 15-column
// sheet, reached through the ranged-values REST API with a bearer token.
//
// Row identity is a linear scan of the id column — the remote system is the
// source of truth and carries no index. The scan stays behind this adapter so
// an indexed lookup could replace it without touching the sync layer.
type Sheets struct {
	cfg        SheetsConfig
	baseURL    string
	httpClient *http.Client
}

// NewSheets builds the spreadsheet backend. Fails fast when the descriptor is
// incomplete; performs no network I/O.
func NewSheets(cfg SheetsConfig) (*Sheets, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets descriptor missing spreadsheet id")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("sheets descriptor missing access token")
	}
	return &Sheets{
		cfg:     cfg,
		baseURL: defaultSheetsBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

func (s *Sheets) Name() string     { return "sheets" }
func (s *Sheets) Configured() bool { return true }

type valueRange struct {
	Values [][]interface{} `json:"values"`
}

// FetchAll reads A2:O (header row excluded) and maps each row to a ticket.
// Rows without an id cell are skipped with the rest of the row.
func (s *Sheets) FetchAll(ctx context.Context) ([]models.Ticket, error) {
	vr, err := s.getRange(ctx, "A2:O")
	if err != nil {
		return nil, err
	}

	var tickets []models.Ticket
	for _, raw := range vr.Values {
		row := stringCells(raw)
		t := rowToTicket(row)
		if t.ID == "" {
			continue
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// Upsert validates the ticket, scans the id column for an existing row and
// updates it in place, or appends a new row when the id is absent.
func (s *Sheets) Upsert(ctx context.Context, t models.Ticket) error {
	if err := validateForWrite(t); err != nil {
		return err
	}

	rowIndex, err := s.findRow(ctx, t.ID)
	if err != nil {
		return err
	}

	row := ticketToRow(t)
	if rowIndex > 0 {
		return s.updateRow(ctx, rowIndex, row)
	}
	return s.appendRow(ctx, row)
}

// findRow returns the 1-based sheet row holding id, or 0 when not found.
// Data starts at row 2; row 1 is the header.
func (s *Sheets) findRow(ctx context.Context, id string) (int, error) {
	vr, err := s.getRange(ctx, "L2:L")
	if err != nil {
		return 0, err
	}
	for i, raw := range vr.Values {
		row := stringCells(raw)
		if len(row) > 0 && row[0] == id {
			return i + 2, nil
		}
	}
	return 0, nil
}

func (s *Sheets) getRange(ctx context.Context, rng string) (*valueRange, error) {
	url := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s", s.baseURL, s.cfg.SpreadsheetID, rng)
	body, err := s.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	var vr valueRange
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("failed to decode values response: %w: %v", ErrProtocol, err)
	}
	return &vr, nil
}

func (s *Sheets) appendRow(ctx context.Context, row []interface{}) error {
	url := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED",
		s.baseURL, s.cfg.SpreadsheetID, "A2:O")
	_, err := s.do(ctx, http.MethodPost, url, valueRange{Values: [][]interface{}{row}})
	return err
}

func (s *Sheets) updateRow(ctx context.Context, rowIndex int, row []interface{}) error {
	rng := fmt.Sprintf("A%d:O%d", rowIndex, rowIndex)
	url := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?valueInputOption=USER_ENTERED",
		s.baseURL, s.cfg.SpreadsheetID, rng)
	_, err := s.do(ctx, http.MethodPut, url, valueRange{Values: [][]interface{}{row}})
	return err
}

// do performs one authorized call and folds failures into the shared error
// kinds: transport problems are ErrUnavailable, 401/403 is ErrPermissionDenied,
// 404 is ErrNotFound, anything else non-2xx is ErrProtocol.
func (s *Sheets) do(ctx context.Context, method, url string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheets request failed: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("sheets API denied access (%d): %w", resp.StatusCode, ErrPermissionDenied)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("spreadsheet %s not found: %w", s.cfg.SpreadsheetID, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("sheets API error (%d): %s: %w", resp.StatusCode, truncate(body, 200), ErrProtocol)
	}

	return body, nil
}

// stringCells renders a JSON row as strings; the API returns mixed
// number/string cells depending on how a value was entered.
func stringCells(raw []interface{}) []string {
	cells := make([]string, len(raw))
	for i, v := range raw {
		switch c := v.(type) {
		case string:
			cells[i] = c
		case float64:
			cells[i] = fmt.Sprintf("%v", c)
		case nil:
			cells[i] = ""
		default:
			cells[i] = fmt.Sprintf("%v", c)
		}
	}
	return cells
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
