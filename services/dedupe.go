package services

import "rental-scout/models"

// Dedupe drops every record whose (title, price, location) was already seen
// earlier in records. Survivors keep their first-seen order.
func Dedupe(records []models.ListingRecord) []models.ListingRecord {
	seen := make(map[models.ListingKey]struct{}, len(records))
	result := make([]models.ListingRecord, 0, len(records))

	for _, r := range records {
		key := r.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, r)
	}
	return result
}
