package shipping

import (
	"testing"

	"atelia_back_end/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestParseStreet(t *testing.T) {
	cases := []struct {
		in     string
		street string
		number string
	}{
		{"Rue de la Loi 16", "Rue de la Loi", "16"},
		{"Rue de la Loi 16b", "Rue de la Loi", "16b"},
		{"Avenue Louise 143 A", "Avenue Louise", "143 A"},
		{"Kerkstraat 1", "Kerkstraat", "1"},
		{"  Grand Place 7  ", "Grand Place", "7"},
	}
	for _, tc := range cases {
		street, number := ParseStreet(tc.in)
		assert.Equal(t, tc.street, street, tc.in)
		assert.Equal(t, tc.number, number, tc.in)
	}
}

func TestParseStreetSansNumero(t *testing.T) {
	// Dégradation douce : pas de numéro détecté, tout part dans la rue
	street, number := ParseStreet("Lieu-dit Le Bois Joli")
	assert.Equal(t, "Lieu-dit Le Bois Joli", street)
	assert.Equal(t, "", number)

	street, number = ParseStreet("")
	assert.Equal(t, "", street)
	assert.Equal(t, "", number)
}

func TestItemWeight(t *testing.T) {
	assert.Equal(t, 200.0, ItemWeight("t-shirt"))
	assert.Equal(t, 1200.0, ItemWeight("coat"))
	assert.Equal(t, 200.0, ItemWeight(" T-Shirt ")) // casse et espaces ignorés

	// Catégorie inconnue ou absente : poids par défaut
	assert.Equal(t, DefaultItemWeight, ItemWeight("chapeau"))
	assert.Equal(t, DefaultItemWeight, ItemWeight(""))
}

func TestEstimateWeightGrams(t *testing.T) {
	items := []models.ReturnItem{
		{Category: "jeans", Quantity: 1},   // 700
		{Category: "t-shirt", Quantity: 2}, // 400
	}
	assert.Equal(t, 1100, EstimateWeightGrams(items))

	// Catégorie inconnue : 2 × 400 par défaut
	assert.Equal(t, 800, EstimateWeightGrams([]models.ReturnItem{{Category: "?", Quantity: 2}}))

	assert.Equal(t, 0, EstimateWeightGrams(nil))
}
