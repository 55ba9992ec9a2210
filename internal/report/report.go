// Package report renders the audit results: a sectioned narrative on stdout,
// a JSON artifact, an alerts CSV of slow-predicted complaints, and plots.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"complaint-survival-audit/internal/pipeline"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	winnerColor = color.New(color.FgGreen, color.Bold)
	alertColor  = color.New(color.FgRed)
)

// Print writes the narrative report to stdout.
func Print(r *pipeline.Report) {
	headerColor.Println("Building Complaint Resolution Survival Audit")
	fmt.Println(strings.Repeat("=", 44))
	fmt.Printf("Input: %s\n", filepath.Base(r.Summary.Input))
	fmt.Printf("Seed: %d\n", r.Summary.Seed)
	fmt.Printf("Complaints: %d (%d resolved, %d still open)\n",
		r.Summary.TotalComplaints, r.Summary.Resolved, r.Summary.Censored)
	fmt.Printf("Split: train %d / validation %d / test %d\n",
		r.Summary.TrainSize, r.Summary.ValidationSize, r.Summary.TestSize)
	if r.Summary.InvalidRows > 0 {
		fmt.Printf("Invalid rows skipped: %d\n", r.Summary.InvalidRows)
	}
	if len(r.Summary.Horizons) > 0 {
		fmt.Printf("Horizons: %.0f..%.0f days\n",
			r.Summary.Horizons[0], r.Summary.Horizons[len(r.Summary.Horizons)-1])
	}

	fmt.Println("\nValidation leaderboard (integrated Brier, lower is better)")
	fmt.Println(strings.Repeat("-", 44))
	for _, entry := range r.Leaderboard {
		line := fmt.Sprintf("%-48s IBS %.4f | C %.3f", entry.ConfigKey,
			entry.IntegratedBrier, entry.Concordance)
		if entry.ConfigKey == r.Winner.ConfigKey {
			winnerColor.Println(line + "  <- selected")
		} else {
			fmt.Println(line)
		}
	}

	fmt.Println("\nHeld-out test metrics (winner refit on train+validation)")
	fmt.Println(strings.Repeat("-", 44))
	fmt.Printf("Integrated Brier: %.4f | Concordance: %.3f\n",
		r.Test.IntegratedBrier, r.Test.Concordance)
	for _, hm := range r.Test.ByHorizon {
		fmt.Printf("t=%3.0fd | Brier %.4f | AUC %.3f\n", hm.Horizon, hm.Brier, hm.AUC)
	}

	fmt.Println("\nSlowest predicted resolutions")
	fmt.Println(strings.Repeat("-", 44))
	if len(r.SlowResolvers) == 0 {
		fmt.Println("No test complaints.")
	}
	for _, p := range r.SlowResolvers {
		line := fmt.Sprintf("%s | %s | board %s | predicted %.0f days | %s",
			orUnknown(p.Priority), orUnknown(p.Category), orUnknown(p.CommunityBoard),
			p.PredictedDays, p.Tier)
		if p.Tier == "stalled" {
			alertColor.Println(line)
		} else {
			fmt.Println(line)
		}
	}
}

func orUnknown(value string) string {
	if value == "" {
		return "Unknown"
	}
	return value
}

// WriteJSON writes the full report as indented JSON.
func WriteJSON(r *pipeline.Report, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// TierRank orders the prediction tiers for the alerts filter.
func TierRank(value string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on_pace":
		return 0, true
	case "lagging":
		return 1, true
	case "overdue":
		return 2, true
	case "stalled":
		return 3, true
	default:
		return 0, false
	}
}

// WriteAlertsCSV writes test complaints at or above the minimum tier.
func WriteAlertsCSV(r *pipeline.Report, path string, minTier string) error {
	threshold, ok := TierRank(minTier)
	if !ok {
		return fmt.Errorf("invalid --min-tier value: %s", minTier)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"priority",
		"category",
		"unit",
		"community_board",
		"latitude",
		"longitude",
		"observed_days",
		"resolved",
		"predicted_days",
		"tier",
	}); err != nil {
		return err
	}

	for _, p := range r.Predictions {
		rank, _ := TierRank(p.Tier)
		if rank < threshold {
			continue
		}
		record := []string{
			p.Priority,
			p.Category,
			p.Unit,
			p.CommunityBoard,
			fmt.Sprintf("%.5f", p.Latitude),
			fmt.Sprintf("%.5f", p.Longitude),
			fmt.Sprintf("%.0f", p.ObservedDays),
			fmt.Sprintf("%t", p.Resolved),
			fmt.Sprintf("%.0f", p.PredictedDays),
			p.Tier,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
