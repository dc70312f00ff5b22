package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rental-scout/models"
)

func TestDedupe(t *testing.T) {
	a := listing("Studio meublé centre", "600€/mois", "Grenoble", "x")
	b := listing("T3 avec balcon", "950€/mois", "Grenoble", "x")
	aMirror := a
	aMirror.URL = "https://mirror/a"
	samePriceOtherTown := a
	samePriceOtherTown.Location = "Échirolles"

	tests := []struct {
		name string
		in   []models.ListingRecord
		want []models.ListingRecord
	}{
		{"empty", nil, []models.ListingRecord{}},
		{"no duplicates", []models.ListingRecord{a, b}, []models.ListingRecord{a, b}},
		{"url is not part of identity", []models.ListingRecord{a, b, aMirror}, []models.ListingRecord{a, b}},
		{"location is part of identity", []models.ListingRecord{a, samePriceOtherTown}, []models.ListingRecord{a, samePriceOtherTown}},
		{"keeps first seen order", []models.ListingRecord{b, a, b, a}, []models.ListingRecord{b, a}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedupe(tt.in)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), len(tt.in))
			assert.Equal(t, got, Dedupe(got), "idempotent")
		})
	}
}
