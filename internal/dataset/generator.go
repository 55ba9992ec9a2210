package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	synthPriorities = []string{"EMERGENCY", "HAZARDOUS", "NON-EMERGENCY", "REFERRED"}
	synthCategories = []string{
		"HEAT/HOT WATER", "PLUMBING", "PAINT/PLASTER", "ELECTRIC",
		"DOOR/WINDOW", "UNSANITARY CONDITION", "WATER LEAK", "GENERAL",
	}
	synthUnits = []string{"Code Enforcement", "Emergency Ops", "Anti-Harassment", "Special Enforcement"}
)

// priority scale factors keep a real signal in the synthetic data: emergency
// complaints resolve faster than referred ones.
var synthScale = map[string]float64{
	"EMERGENCY":     20,
	"HAZARDOUS":     45,
	"NON-EMERGENCY": 90,
	"REFERRED":      150,
}

// WriteSynthetic generates a complaints CSV with n rows. The same seed always
// produces the same file.
func WriteSynthetic(path string, n int, seed int64) error {
	if n <= 0 {
		return fmt.Errorf("row count must be positive, got %d", n)
	}
	faker := gofakeit.New(seed)

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"complaint_priority", "complaint_category", "unit", "community_board",
		"latitude", "longitude", "days", "status",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		priority := faker.RandomString(synthPriorities)
		category := faker.RandomString(synthCategories)
		unit := faker.RandomString(synthUnits)
		board := fmt.Sprintf("%02d", faker.Number(1, 18))

		// Weibull-shaped resolution times around the priority scale.
		u := faker.Float64Range(0.01, 0.99)
		days := synthScale[priority] * math.Pow(-math.Log(1-u), 1/1.3)
		days = math.Round(days)

		// Long-running complaints are more likely to still be open.
		status := "CLOSED"
		openOdds := math.Min(0.85, days/400)
		if faker.Float64Range(0, 1) < openOdds {
			status = "OPEN"
			days = math.Round(days * faker.Float64Range(0.3, 0.9))
		}

		record := []string{
			priority,
			category,
			unit,
			board,
			fmt.Sprintf("%.5f", faker.Float64Range(40.50, 40.92)),
			fmt.Sprintf("%.5f", faker.Float64Range(-74.25, -73.70)),
			fmt.Sprintf("%.0f", days),
			status,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
