package poller

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"atelia_back_end/internal/models"
)

// Le client web relance ce poller au retour de la page de paiement Stripe
// (paramètre payment=success). Il relit le retour à intervalle fixe jusqu'à
// l'apparition de l'étiquette, en secours du push WebSocket.

// ErrExhausted signale l'épuisement du budget de tentatives sans étiquette.
// Ce n'est pas un échec du retour : l'émission peut encore aboutir côté
// serveur, l'appelant invite à rafraîchir manuellement.
var ErrExhausted = errors.New("budget de tentatives épuisé, étiquette toujours absente")

// ErrAlreadyRunning : un seul poller actif à la fois par retour
var ErrAlreadyRunning = errors.New("un poller est déjà actif pour ce retour")

// FetchFunc relit le retour courant (typiquement GET /api/returns/:id)
type FetchFunc func(ctx context.Context) (*models.ReturnRequest, error)

// Config borne la boucle de polling
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{
		Interval:    3 * time.Second,
		MaxAttempts: 20,
	}
}

// StatusPoller relit un retour jusqu'à un statut terminal pour l'étiquette.
// Réutilisable : chaque Poll est une campagne bornée et indépendante, mais
// jamais deux en parallèle.
type StatusPoller struct {
	fetch   FetchFunc
	cfg     Config
	running atomic.Bool
}

func New(fetch FetchFunc, cfg Config) *StatusPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &StatusPoller{fetch: fetch, cfg: cfg}
}

// done vaut vrai dès que l'étiquette est disponible ou que le retour a
// atteint un statut où elle ne viendra plus
func done(ret *models.ReturnRequest) bool {
	if ret.LabelURL != "" || ret.TrackingCode != "" {
		return true
	}
	switch ret.Status {
	case models.StatusReturnLabelGenerated,
		models.StatusReturnInTransit,
		models.StatusReturnReceived,
		models.StatusRefundProcessing,
		models.StatusRefunded,
		models.StatusReturnRejected:
		return true
	}
	return false
}

// Poll exécute une campagne de polling bornée. Renvoie le retour dès qu'un
// état final pour l'étiquette est observé, ErrExhausted après MaxAttempts
// lectures infructueuses, ou l'erreur du contexte si celui-ci expire.
// Les erreurs de lecture transitoires consomment une tentative sans
// interrompre la campagne.
func (p *StatusPoller) Poll(ctx context.Context) (*models.ReturnRequest, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		ret, err := p.fetch(ctx)
		if err != nil {
			log.Printf("⚠️ Lecture retour échouée (tentative %d/%d): %v", attempt, p.cfg.MaxAttempts, err)
		} else if done(ret) {
			return ret, nil
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return nil, ErrExhausted
}

// IsRunning indique si une campagne est en cours
func (p *StatusPoller) IsRunning() bool {
	return p.running.Load()
}
