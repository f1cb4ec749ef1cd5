package shipping

import (
	"math"
	"regexp"
	"strings"

	"atelia_back_end/internal/models"
)

// Sendcloud exige le nom de rue et le numéro dans des champs séparés, alors
// que les commandes stockent une adresse libre. On capture « <rue> <numéro
// + lettres optionnelles> » en fin de chaîne ; ex: "Rue de la Loi 16b" →
// ("Rue de la Loi", "16b").
var streetRegexp = regexp.MustCompile(`^(.*\S)\s+(\d+\s*[a-zA-Z]*)$`)

// ParseStreet découpe une adresse libre en (rue, numéro). Sans
// correspondance, dégradation douce : toute la chaîne comme rue, numéro vide.
func ParseStreet(address string) (street, houseNumber string) {
	address = strings.TrimSpace(address)
	m := streetRegexp.FindStringSubmatch(address)
	if m == nil {
		return address, ""
	}
	return m[1], strings.TrimSpace(m[2])
}

// Poids unitaires estimés par catégorie de vêtement, en grammes
var categoryWeights = map[string]float64{
	"t-shirt":   200,
	"shirt":     250,
	"top":       250,
	"pants":     600,
	"jeans":     700,
	"shorts":    350,
	"skirt":     300,
	"dress":     400,
	"sweater":   500,
	"hoodie":    600,
	"jacket":    800,
	"coat":      1200,
	"shoes":     900,
	"accessory": 150,
}

// DefaultItemWeight s'applique aux catégories inconnues et aux lignes sans
// correspondance
const DefaultItemWeight = 400.0

// ItemWeight renvoie le poids unitaire estimé d'une catégorie, en grammes
func ItemWeight(category string) float64 {
	if w, ok := categoryWeights[strings.ToLower(strings.TrimSpace(category))]; ok {
		return w
	}
	return DefaultItemWeight
}

// EstimateWeightGrams estime le poids total du colis de retour. Le total est
// arrondi au gramme supérieur, le transporteur n'accepte qu'un entier.
func EstimateWeightGrams(items []models.ReturnItem) int {
	var total float64
	for _, item := range items {
		total += ItemWeight(item.Category) * float64(item.Quantity)
	}
	return int(math.Ceil(total))
}
