// Package dataset loads the building-complaint CSV and encodes rows into
// time-to-event observations.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"complaint-survival-audit/internal/survival"
)

// Complaint is one row of the source dataset.
type Complaint struct {
	Priority       string  `json:"priority"`
	Category       string  `json:"category"`
	Unit           string  `json:"unit"`
	CommunityBoard string  `json:"community_board"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Days           float64 `json:"days"`
	Status         string  `json:"status"`
}

// Dataset pairs the raw rows with their encoded observations. Complaints[i]
// and Observations[i] describe the same record.
type Dataset struct {
	Complaints   []Complaint
	Observations []survival.Observation
	InvalidRows  int
}

// Resolved reports whether a status value means the complaint was closed out.
// Everything else is treated as still open, i.e. censored.
func Resolved(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "closed", "close", "resolved":
		return true
	}
	return false
}

// EncodeObservation converts an elapsed-days/status pair into its canonical
// time-to-event form.
func EncodeObservation(days float64, status string) (survival.Observation, error) {
	if strings.TrimSpace(status) == "" {
		return survival.Observation{}, errors.New("empty status")
	}
	return survival.NewObservation(days, Resolved(status))
}

// Load reads a complaints CSV. Header names are matched loosely against the
// alias lists below; rows with missing or malformed required fields are
// counted and skipped.
func Load(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file)
}

// Read parses complaints from an open CSV stream.
func Read(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read header: %w", err)
	}

	colMap := normalizeHeaders(headers)
	daysIdx, ok := findColumn(colMap, []string{"days", "elapsed_days", "days_open", "days_to_resolution"})
	if !ok {
		return nil, errors.New("missing days column")
	}
	statusIdx, ok := findColumn(colMap, []string{"status", "complaint_status", "resolution_status"})
	if !ok {
		return nil, errors.New("missing status column")
	}
	priorityIdx, _ := findColumn(colMap, []string{"complaint_priority", "priority"})
	categoryIdx, _ := findColumn(colMap, []string{"complaint_category", "category", "complaint_type"})
	unitIdx, _ := findColumn(colMap, []string{"unit", "responding_unit", "agency_unit"})
	boardIdx, _ := findColumn(colMap, []string{"community_board", "board", "cb"})
	latIdx, _ := findColumn(colMap, []string{"latitude", "lat"})
	lonIdx, _ := findColumn(colMap, []string{"longitude", "lon", "lng"})

	ds := &Dataset{}
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("unable to read CSV: %w", err)
		}
		if len(record) == 0 {
			continue
		}

		days, err := parseNumber(getValue(record, daysIdx))
		if err != nil || days < 0 {
			ds.InvalidRows++
			continue
		}
		status := getValue(record, statusIdx)
		obs, err := EncodeObservation(days, status)
		if err != nil {
			ds.InvalidRows++
			continue
		}

		complaint := Complaint{
			Priority:       getValue(record, priorityIdx),
			Category:       getValue(record, categoryIdx),
			Unit:           getValue(record, unitIdx),
			CommunityBoard: getValue(record, boardIdx),
			Days:           days,
			Status:         status,
		}
		if latIdx >= 0 {
			if lat, err := parseNumber(getValue(record, latIdx)); err == nil {
				complaint.Latitude = lat
			}
		}
		if lonIdx >= 0 {
			if lon, err := parseNumber(getValue(record, lonIdx)); err == nil {
				complaint.Longitude = lon
			}
		}

		ds.Complaints = append(ds.Complaints, complaint)
		ds.Observations = append(ds.Observations, obs)
	}

	if len(ds.Complaints) == 0 {
		return nil, errors.New("no valid complaint rows")
	}
	return ds, nil
}

// Subset returns the complaints and observations at the given indices.
func (ds *Dataset) Subset(indices []int) ([]Complaint, []survival.Observation) {
	complaints := make([]Complaint, 0, len(indices))
	obs := make([]survival.Observation, 0, len(indices))
	for _, idx := range indices {
		complaints = append(complaints, ds.Complaints[idx])
		obs = append(obs, ds.Observations[idx])
	}
	return complaints, obs
}

func parseNumber(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty number")
	}
	return strconv.ParseFloat(value, 64)
}

func normalizeHeaders(headers []string) map[string]int {
	result := make(map[string]int, len(headers))
	for idx, header := range headers {
		normalized := normalizeHeader(header)
		if _, exists := result[normalized]; !exists {
			result[normalized] = idx
		}
	}
	return result
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func findColumn(headers map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := headers[normalizeHeader(name)]; ok {
			return idx, true
		}
	}
	return -1, false
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
