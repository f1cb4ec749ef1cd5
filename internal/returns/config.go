package returns

import (
	"log"
	"os"
	"strconv"
)

// Config regroupe les réglages du moteur de retours, chargés depuis .env
type Config struct {
	ReturnWindowDays int     // délai de retour après livraison
	AutoApprove      bool    // approbation automatique des nouvelles demandes
	LabelCostExclTax float64 // frais d'étiquette HT
	LabelCostInclTax float64 // frais d'étiquette TTC (montant facturé)
}

func LoadConfig() Config {
	cfg := Config{
		ReturnWindowDays: 14,
		AutoApprove:      false,
		LabelCostExclTax: 6.50,
		LabelCostInclTax: 7.87,
	}

	if v := os.Getenv("RETURN_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReturnWindowDays = n
		} else {
			log.Printf("⚠️ RETURN_WINDOW_DAYS invalide (%s), valeur par défaut %d", v, cfg.ReturnWindowDays)
		}
	}
	if v := os.Getenv("RETURN_AUTO_APPROVE"); v == "true" || v == "1" {
		cfg.AutoApprove = true
	}
	if v := os.Getenv("RETURN_LABEL_COST_EXCL_TAX"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LabelCostExclTax = f
		}
	}
	if v := os.Getenv("RETURN_LABEL_COST_INCL_TAX"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.LabelCostInclTax = f
		}
	}

	return cfg
}
