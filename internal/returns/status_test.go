package returns

import (
	"errors"
	"testing"

	"atelia_back_end/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTransitionChaineNominale(t *testing.T) {
	chain := []models.ReturnStatus{
		models.StatusReturnRequested,
		models.StatusReturnApproved,
		models.StatusReturnLabelPaymentPending,
		models.StatusReturnLabelPaymentCompleted,
		models.StatusReturnLabelGenerated,
		models.StatusReturnInTransit,
		models.StatusReturnReceived,
		models.StatusRefundProcessing,
		models.StatusRefunded,
	}
	for i := 0; i < len(chain)-1; i++ {
		assert.NoError(t, Transition(chain[i], chain[i+1]), "%s → %s", chain[i], chain[i+1])
	}
}

func TestTransitionSautInterdit(t *testing.T) {
	// Pas de raccourci : on ne saute jamais une étape
	err := Transition(models.StatusReturnRequested, models.StatusReturnLabelGenerated)
	assert.True(t, errors.Is(err, ErrInvalidState))

	err = Transition(models.StatusReturnApproved, models.StatusRefunded)
	assert.True(t, errors.Is(err, ErrInvalidState))

	// Pas de retour en arrière
	err = Transition(models.StatusReturnLabelGenerated, models.StatusReturnApproved)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestTransitionRejetDepuisToutStatutActif(t *testing.T) {
	actifs := []models.ReturnStatus{
		models.StatusReturnRequested,
		models.StatusReturnApproved,
		models.StatusReturnLabelPaymentPending,
		models.StatusReturnLabelPaymentCompleted,
		models.StatusReturnLabelGenerated,
		models.StatusReturnInTransit,
		models.StatusReturnReceived,
		models.StatusRefundProcessing,
	}
	for _, s := range actifs {
		assert.NoError(t, Transition(s, models.StatusReturnRejected), "rejet depuis %s", s)
	}
}

func TestStatutsTerminauxSansSortie(t *testing.T) {
	all := []models.ReturnStatus{
		models.StatusReturnRequested,
		models.StatusReturnApproved,
		models.StatusReturnLabelPaymentPending,
		models.StatusReturnLabelPaymentCompleted,
		models.StatusReturnLabelGenerated,
		models.StatusReturnInTransit,
		models.StatusReturnReceived,
		models.StatusRefundProcessing,
		models.StatusRefunded,
		models.StatusReturnRejected,
	}
	for _, to := range all {
		assert.False(t, CanTransition(models.StatusRefunded, to))
		assert.False(t, CanTransition(models.StatusReturnRejected, to))
	}
}

func TestIsTerminalEtIsActive(t *testing.T) {
	assert.True(t, IsTerminal(models.StatusRefunded))
	assert.True(t, IsTerminal(models.StatusReturnRejected))
	assert.False(t, IsTerminal(models.StatusReturnReceived))

	assert.True(t, IsActive(models.StatusReturnRequested))
	assert.False(t, IsActive(models.StatusRefunded))
}

func TestTransitionStatutInconnu(t *testing.T) {
	err := Transition(models.ReturnStatus("n_existe_pas"), models.StatusReturnApproved)
	assert.True(t, errors.Is(err, ErrInvalidState))
}
