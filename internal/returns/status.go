package returns

import (
	"fmt"

	"atelia_back_end/internal/models"
)

// Table des transitions autorisées. Toute transition absente de cette table
// est illégale et doit être refusée, jamais forcée.
var transitions = map[models.ReturnStatus][]models.ReturnStatus{
	models.StatusReturnRequested:             {models.StatusReturnApproved, models.StatusReturnRejected},
	models.StatusReturnApproved:              {models.StatusReturnLabelPaymentPending, models.StatusReturnRejected},
	models.StatusReturnLabelPaymentPending:   {models.StatusReturnLabelPaymentCompleted, models.StatusReturnRejected},
	models.StatusReturnLabelPaymentCompleted: {models.StatusReturnLabelGenerated, models.StatusReturnRejected},
	models.StatusReturnLabelGenerated:        {models.StatusReturnInTransit, models.StatusReturnReceived, models.StatusReturnRejected},
	models.StatusReturnInTransit:             {models.StatusReturnReceived, models.StatusReturnRejected},
	models.StatusReturnReceived:              {models.StatusRefundProcessing, models.StatusReturnRejected},
	models.StatusRefundProcessing:            {models.StatusRefunded, models.StatusReturnRejected},
	models.StatusRefunded:                    {},
	models.StatusReturnRejected:              {},
}

// IsTerminal indique si le statut clôture définitivement la demande
func IsTerminal(s models.ReturnStatus) bool {
	return s == models.StatusRefunded || s == models.StatusReturnRejected
}

// IsActive indique si la demande compte comme retour actif pour la commande
// (au plus un retour actif par commande)
func IsActive(s models.ReturnStatus) bool {
	return !IsTerminal(s)
}

// CanTransition vérifie que la transition from → to figure dans la table
func CanTransition(from, to models.ReturnStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition valide une transition de statut. C'est l'unique point de
// décision : tous les chemins de mutation passent par ici.
func Transition(from, to models.ReturnStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: transition %s → %s interdite", ErrInvalidState, from, to)
	}
	return nil
}
