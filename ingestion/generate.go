package ingestion

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/poiesic/insight/core"
)

var (
	genders        = []string{"Male", "Female"}
	countries      = []string{"USA", "UK", "Canada", "Germany", "France"}
	feedbackScores = []string{"Low", "Medium", "High"}
	loyaltyLevels  = []string{"Bronze", "Silver", "Gold"}
)

// Generate returns n synthetic records. The same seed always yields the same
// records. Customer identifiers are "1" through n.
func Generate(n int, seed uint64) []core.Record {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	records := make([]core.Record, n)
	for i := range records {
		product := rng.IntN(10) + 1
		service := rng.IntN(10) + 1
		// Satisfaction loosely tracks the two quality ratings
		satisfaction := float64(product+service)*4.5 + rng.Float64()*10
		satisfaction = math.Round(math.Min(satisfaction, 100)*10) / 10

		records[i] = core.DeriveSummary(core.Record{
			CustomerID:        strconv.Itoa(i + 1),
			Age:               18 + rng.IntN(52),
			Gender:            genders[rng.IntN(len(genders))],
			Country:           countries[rng.IntN(len(countries))],
			Income:            math.Round((20000+rng.Float64()*130000)*100) / 100,
			ProductQuality:    product,
			ServiceQuality:    service,
			PurchaseFrequency: rng.IntN(25),
			FeedbackScore:     feedbackScores[rng.IntN(len(feedbackScores))],
			LoyaltyLevel:      loyaltyLevels[rng.IntN(len(loyaltyLevels))],
			SatisfactionScore: satisfaction,
		})
	}
	return records
}

// Write encodes records as CSV with a header row in canonical column order.
// The output can be read back with Load.
func Write(w io.Writer, records []core.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.CustomerID,
			strconv.Itoa(r.Age),
			r.Gender,
			r.Country,
			strconv.FormatFloat(r.Income, 'f', -1, 64),
			strconv.Itoa(r.ProductQuality),
			strconv.Itoa(r.ServiceQuality),
			strconv.Itoa(r.PurchaseFrequency),
			r.FeedbackScore,
			r.LoyaltyLevel,
			strconv.FormatFloat(r.SatisfactionScore, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
