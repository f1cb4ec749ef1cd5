package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"atelia_back_end/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastCfg() Config {
	return Config{Interval: time.Millisecond, MaxAttempts: 5}
}

func TestPollEtiquetteDejaPresente(t *testing.T) {
	fetches := 0
	p := New(func(ctx context.Context) (*models.ReturnRequest, error) {
		fetches++
		return &models.ReturnRequest{
			Status:       models.StatusReturnLabelGenerated,
			TrackingCode: "SC123",
		}, nil
	}, fastCfg())

	ret, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SC123", ret.TrackingCode)
	assert.Equal(t, 1, fetches)
}

func TestPollEtiquetteApparait(t *testing.T) {
	fetches := 0
	p := New(func(ctx context.Context) (*models.ReturnRequest, error) {
		fetches++
		if fetches < 3 {
			// Paiement confirmé mais étiquette pas encore émise
			return &models.ReturnRequest{Status: models.StatusReturnLabelPaymentCompleted}, nil
		}
		return &models.ReturnRequest{
			Status:   models.StatusReturnLabelGenerated,
			LabelURL: "https://panel.sendcloud.sc/labels/42.pdf",
		}, nil
	}, fastCfg())

	ret, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturnLabelGenerated, ret.Status)
	assert.Equal(t, 3, fetches)
}

func TestPollBudgetEpuise(t *testing.T) {
	fetches := 0
	p := New(func(ctx context.Context) (*models.ReturnRequest, error) {
		fetches++
		return &models.ReturnRequest{Status: models.StatusReturnLabelPaymentCompleted}, nil
	}, fastCfg())

	_, err := p.Poll(context.Background())
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 5, fetches)
}

func TestPollErreursTransitoires(t *testing.T) {
	// Une lecture en erreur consomme une tentative sans arrêter la campagne
	fetches := 0
	p := New(func(ctx context.Context) (*models.ReturnRequest, error) {
		fetches++
		if fetches == 1 {
			return nil, errors.New("réseau indisponible")
		}
		return &models.ReturnRequest{Status: models.StatusReturnLabelGenerated}, nil
	}, fastCfg())

	ret, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturnLabelGenerated, ret.Status)
}

func TestPollRetourRejete(t *testing.T) {
	// Un statut terminal arrête le poller : l'étiquette ne viendra plus
	p := New(func(ctx context.Context) (*models.ReturnRequest, error) {
		return &models.ReturnRequest{Status: models.StatusReturnRejected}, nil
	}, fastCfg())

	ret, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StatusReturnRejected, ret.Status)
}

func TestPollUneSeuleCampagneALaFois(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var startOnce sync.Once
	p := New(func(ctx context.Context) (*models.ReturnRequest, error) {
		startOnce.Do(func() { close(started) })
		<-release
		return &models.ReturnRequest{Status: models.StatusReturnLabelGenerated}, nil
	}, fastCfg())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := p.Poll(context.Background())
		assert.NoError(t, err)
	}()

	<-started
	assert.True(t, p.IsRunning())
	_, err := p.Poll(context.Background())
	assert.True(t, errors.Is(err, ErrAlreadyRunning))

	close(release)
	wg.Wait()

	// Campagne terminée : on peut relancer
	assert.False(t, p.IsRunning())
	_, err = p.Poll(context.Background())
	assert.NoError(t, err)
}

func TestPollContexteAnnule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(func(ctx context.Context) (*models.ReturnRequest, error) {
		cancel()
		return &models.ReturnRequest{Status: models.StatusReturnLabelPaymentCompleted}, nil
	}, Config{Interval: time.Minute, MaxAttempts: 3})

	_, err := p.Poll(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}
