package core

import "fmt"

const summaryFormat = "Customer Profile: %d year old %s from %s with income $%.2f. " +
	"Product Quality Rating: %d/10, Service Quality: %d/10. " +
	"Purchases %d times per year. Feedback Score: %s. " +
	"Loyalty Level: %s. Satisfaction Score: %.1f%%"

// Summarize renders the profile text for a record. It is pure and never
// returns an empty string.
func Summarize(r Record) string {
	return fmt.Sprintf(summaryFormat,
		r.Age, r.Gender, r.Country, r.Income,
		r.ProductQuality, r.ServiceQuality,
		r.PurchaseFrequency, r.FeedbackScore,
		r.LoyaltyLevel, r.SatisfactionScore)
}

// DeriveSummary returns a copy of r with Summary populated.
// Any previous Summary value is replaced, so repeated calls agree.
func DeriveSummary(r Record) Record {
	r.Summary = Summarize(r)
	return r
}
