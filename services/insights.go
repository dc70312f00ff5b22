package services

import (
	"rental-scout/models"
	"rental-scout/utils"
)

// Summarize aggregates a result set. Prices are read back from their
// normalized display form; listings without a positive price are left out of
// the price figures but still counted.
func Summarize(listings []models.ListingRecord) models.SearchSummary {
	summary := models.SearchSummary{
		ByLocation: make(map[string]int),
	}
	if len(listings) == 0 {
		return summary
	}

	summary.Count = len(listings)

	seenSource := make(map[string]struct{})
	var (
		total  float64
		priced int
	)
	for _, l := range listings {
		if _, ok := seenSource[l.SourceID]; !ok && l.SourceID != "" {
			seenSource[l.SourceID] = struct{}{}
			summary.Sources = append(summary.Sources, l.SourceID)
		}
		if l.Location != "" {
			summary.ByLocation[l.Location]++
		}

		price := utils.ParseAmount(l.Price)
		if price <= 0 {
			continue
		}
		if priced == 0 || price < summary.MinPrice {
			summary.MinPrice = price
		}
		if price > summary.MaxPrice {
			summary.MaxPrice = price
		}
		total += price
		priced++
	}

	if priced > 0 {
		summary.AveragePrice = round2(total / float64(priced))
		summary.MinPrice = round2(summary.MinPrice)
		summary.MaxPrice = round2(summary.MaxPrice)
	}
	return summary
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
