package returns

import "errors"

// Taxonomie d'erreurs du moteur de retours. Les handlers les traduisent en
// codes HTTP avec errors.Is, les messages détaillés sont enveloppés via %w.
var (
	ErrNotFound         = errors.New("retour ou commande introuvable")
	ErrInvalidState     = errors.New("état invalide pour cette opération")
	ErrDeadlineExceeded = errors.New("délai de retour dépassé")
	ErrInvalidInput     = errors.New("articles ou quantités invalides")
	ErrConflict         = errors.New("un retour actif existe déjà pour cette commande")
	ErrExternalService  = errors.New("erreur service externe")
	ErrUnauthorized     = errors.New("accès refusé")
)
