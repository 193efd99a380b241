package models

import "time"

type WebsiteAnalysis struct {
	ID             string    `json:"id"`
	URL            string    `json:"url"`
	FinalURL       string    `json:"final_url,omitempty"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	// Cancelled marks a site the batch never finished; such records are
	// reported but not persisted.
	Cancelled      bool      `json:"cancelled,omitempty"`
	StatusCode     int       `json:"status_code,omitempty"`
	Platform       string    `json:"platform,omitempty"`
	Theme          string    `json:"theme,omitempty"`
	PaymentMethods []string  `json:"payment_methods,omitempty"`
	ProductCount   *int      `json:"product_count,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	Category       string    `json:"category,omitempty"`
	ProductTypes   []string  `json:"product_types,omitempty"`
	Title          string    `json:"title,omitempty"`
	Description    string    `json:"description,omitempty"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// FailedCount returns how many analyses in the batch did not succeed.
func FailedCount(analyses []WebsiteAnalysis) int {
	n := 0
	for _, a := range analyses {
		if !a.Success {
			n++
		}
	}
	return n
}
