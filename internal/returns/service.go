package returns

import (
	"fmt"
	"log"
	"strings"
	"time"

	"atelia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// PaymentClient est le port vers Stripe pour les frais d'étiquette et le
// remboursement final
type PaymentClient interface {
	// CreateLabelFeeIntent crée le PaymentIntent des frais d'étiquette avec
	// les métadonnées {type, return_id, order_id}
	CreateLabelFeeIntent(ret *models.ReturnRequest) (intentID, clientSecret string, err error)
	// GetIntentClientSecret récupère le client secret d'un intent existant
	GetIntentClientSecret(intentID string) (string, error)
	// RefundPayment rembourse un montant sur le paiement d'origine de la commande
	RefundPayment(paymentIntentID string, amount float64) (refundID string, err error)
}

// Carrier est le port vers le transporteur (Sendcloud)
type Carrier interface {
	CreateReturnLabel(order *models.Order, ret *models.ReturnRequest) (*models.ReturnLabel, error)
}

// Notifier envoie les e-mails de changement de statut. Fire-and-forget :
// un échec d'envoi ne doit jamais faire échouer la transition.
type Notifier interface {
	NotifyStatus(ret *models.ReturnRequest, status models.ReturnStatus)
}

// Indexer pousse le retour dans l'index de recherche back-office (optionnel)
type Indexer interface {
	IndexReturn(ret *models.ReturnRequest)
}

// Archiver copie le PDF d'étiquette vers le stockage interne (optionnel)
type Archiver interface {
	ArchiveLabel(ret *models.ReturnRequest, label *models.ReturnLabel) (string, error)
}

// CacheBus invalide le cache de détail et publie la transition (optionnel)
type CacheBus interface {
	InvalidateReturn(id string)
	PublishStatus(id string, status models.ReturnStatus)
}

// Service est le moteur du cycle de vie des retours
type Service struct {
	store    Store
	orders   OrderStore
	payments PaymentClient
	carrier  Carrier
	notifier Notifier
	indexer  Indexer
	archiver Archiver
	cache    CacheBus
	cfg      Config
	now      func() time.Time
}

func NewService(store Store, orders OrderStore, payments PaymentClient, carrier Carrier, notifier Notifier, cfg Config) *Service {
	return &Service{
		store:    store,
		orders:   orders,
		payments: payments,
		carrier:  carrier,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithIndexer active l'indexation Elasticsearch des retours
func (s *Service) WithIndexer(i Indexer) *Service { s.indexer = i; return s }

// WithArchiver active l'archivage MinIO des PDF d'étiquette
func (s *Service) WithArchiver(a Archiver) *Service { s.archiver = a; return s }

// WithCache active le cache Redis et le canal pub/sub de statut
func (s *Service) WithCache(c CacheBus) *Service { s.cache = c; return s }

// CreateReturnItem est une ligne de la demande client
type CreateReturnItem struct {
	OrderItemID gocql.UUID `json:"order_item_id"`
	Quantity    int        `json:"quantity"`
}

// CreateReturnInput est la demande de création d'un retour
type CreateReturnInput struct {
	OrderID      gocql.UUID
	UserID       string // vide pour un invité
	Email        string // e-mail du demandeur (vérifié pour les invités)
	Items        []CreateReturnItem
	Reason       string
	CustomerNote string
}

// CreateReturn valide et crée une demande de retour. L'ordre des
// vérifications est contractuel : NotFound → InvalidState →
// DeadlineExceeded → InvalidInput → Conflict.
func (s *Service) CreateReturn(in CreateReturnInput) (*models.ReturnRequest, error) {
	// 1. La commande existe et appartient au demandeur (user_id, ou e-mail
	// pour une commande invité)
	order, err := s.orders.GetOrder(in.OrderID)
	if err != nil {
		return nil, ErrNotFound
	}
	owned := (in.UserID != "" && order.UserID == in.UserID) ||
		(order.UserID == "" && in.Email != "" && strings.EqualFold(order.Email, in.Email))
	if !owned {
		return nil, ErrNotFound
	}

	// 2. La commande doit être livrée
	if order.Status != "delivered" || order.DeliveredAt == nil {
		return nil, fmt.Errorf("%w: la commande doit être livrée avant d'être retournée", ErrInvalidState)
	}

	// 3. Fenêtre de retour : valable jusqu'à delivered_at + N jours inclus
	deadline := order.DeliveredAt.AddDate(0, 0, s.cfg.ReturnWindowDays)
	if s.now().After(deadline) {
		return nil, fmt.Errorf("%w: la fenêtre de %d jours est close", ErrDeadlineExceeded, s.cfg.ReturnWindowDays)
	}

	// 4. Chaque ligne référence un article de la commande, quantité bornée
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: aucun article sélectionné", ErrInvalidInput)
	}
	var returnItems []models.ReturnItem
	var refundAmount float64
	seen := make(map[gocql.UUID]bool, len(in.Items))
	for _, reqItem := range in.Items {
		// Une ligne par article : des doublons contourneraient la borne de
		// quantité ligne par ligne
		if seen[reqItem.OrderItemID] {
			return nil, fmt.Errorf("%w: article %s en double dans la demande", ErrInvalidInput, reqItem.OrderItemID)
		}
		seen[reqItem.OrderItemID] = true

		var orderItem *models.OrderItem
		for i := range order.Items {
			if order.Items[i].ID == reqItem.OrderItemID {
				orderItem = &order.Items[i]
				break
			}
		}
		if orderItem == nil {
			return nil, fmt.Errorf("%w: article %s absent de la commande", ErrInvalidInput, reqItem.OrderItemID)
		}
		if reqItem.Quantity <= 0 || reqItem.Quantity > orderItem.Quantity {
			return nil, fmt.Errorf("%w: quantité invalide pour %s", ErrInvalidInput, orderItem.Name)
		}
		returnItems = append(returnItems, models.ReturnItem{
			OrderItemID: orderItem.ID,
			ProductID:   orderItem.ProductID,
			Name:        orderItem.Name,
			SKU:         orderItem.SKU,
			Category:    orderItem.Category,
			Quantity:    reqItem.Quantity,
			Price:       orderItem.Price,
		})
		// Montant recalculé côté serveur, jamais fourni par le client
		refundAmount += orderItem.Price * float64(reqItem.Quantity)
	}

	// 5. Au plus un retour actif par commande
	existing, err := s.store.FindActiveByOrder(in.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrConflict
	}

	now := s.now()
	ret := &models.ReturnRequest{
		ID:                 gocql.TimeUUID(),
		OrderID:            in.OrderID,
		UserID:             order.UserID,
		Email:              order.Email,
		Status:             models.StatusReturnRequested,
		Reason:             in.Reason,
		CustomerNote:       in.CustomerNote,
		Items:              returnItems,
		RefundAmount:       refundAmount,
		TotalRefund:        refundAmount,
		LabelCostExclTax:   s.cfg.LabelCostExclTax,
		LabelCostInclTax:   s.cfg.LabelCostInclTax,
		LabelPaymentStatus: "pending",
		CreatedAt:          now,
	}
	if s.cfg.AutoApprove {
		ret.Status = models.StatusReturnApproved
		ret.ApprovedAt = &now
	}

	if err := s.store.Insert(ret); err != nil {
		return nil, err
	}

	if err := s.orders.MarkOrderHasReturns(order.ID); err != nil {
		log.Printf("⚠️ Impossible de marquer has_returns sur %s: %v", order.ID, err)
	}

	s.afterTransition(ret)
	s.notifier.NotifyStatus(ret, models.StatusReturnRequested)

	if s.cfg.AutoApprove {
		s.notifier.NotifyStatus(ret, models.StatusReturnApproved)
		// La création du paiement peut échouer sans invalider le retour :
		// il sera (re)créé à la demande via l'endpoint de paiement
		if _, _, err := s.CreateLabelFeePayment(ret.ID); err != nil {
			log.Printf("⚠️ Création du paiement d'étiquette différée pour %s: %v", ret.ID, err)
		}
	}

	log.Printf("📦 Retour créé: %s (commande %s, %.2f€)", ret.ID, ret.OrderID, ret.RefundAmount)
	return s.store.GetReturn(ret.ID)
}

// CreateLabelFeePayment crée (ou réutilise) le PaymentIntent des frais
// d'étiquette. Idempotent : si un identifiant de paiement existe déjà, il est
// réutilisé tel quel, jamais régénéré.
func (s *Service) CreateLabelFeePayment(id gocql.UUID) (intentID, clientSecret string, err error) {
	ret, err := s.store.GetReturn(id)
	if err != nil {
		return "", "", err
	}

	if ret.LabelPaymentID != "" {
		secret, err := s.payments.GetIntentClientSecret(ret.LabelPaymentID)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrExternalService, err)
		}
		return ret.LabelPaymentID, secret, nil
	}

	switch ret.Status {
	case models.StatusReturnApproved, models.StatusReturnLabelPaymentPending:
		// ok
	default:
		return "", "", fmt.Errorf("%w: le retour doit être approuvé avant le paiement", ErrInvalidState)
	}

	intentID, clientSecret, err = s.payments.CreateLabelFeeIntent(ret)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	now := s.now()
	if err := s.store.SetLabelPayment(ret.ID, intentID, now); err != nil {
		return "", "", err
	}
	if ret.Status == models.StatusReturnApproved {
		if err := s.applyTransition(ret, models.StatusReturnLabelPaymentPending); err != nil {
			return "", "", err
		}
	}

	log.Printf("💳 PaymentIntent étiquette créé: %s (%.2f€) pour retour %s", intentID, ret.LabelCostInclTax, ret.ID)
	return intentID, clientSecret, nil
}

// HandleLabelPaymentSucceeded applique l'événement webhook Stripe
// « payment_intent.succeeded » pour les frais d'étiquette. La livraison
// étant at-least-once, le rejeu d'un événement déjà appliqué est un no-op.
// L'émission d'étiquette est tentée dans la foulée ; son échec laisse le
// retour en return_label_payment_completed, statut qui autorise un nouvel
// essai (redelivery du webhook ou action admin).
func (s *Service) HandleLabelPaymentSucceeded(id gocql.UUID) error {
	ret, err := s.store.GetReturn(id)
	if err != nil {
		return err
	}

	if ret.LabelPaymentStatus != "completed" {
		if err := Transition(ret.Status, models.StatusReturnLabelPaymentCompleted); err != nil {
			return err
		}
		now := s.now()
		if err := s.store.SetLabelPaid(ret.ID, now); err != nil {
			return err
		}
		if err := s.applyTransition(ret, models.StatusReturnLabelPaymentCompleted); err != nil {
			return err
		}
		log.Printf("✅ Paiement d'étiquette confirmé pour retour %s", ret.ID)
	} else if ret.Status == models.StatusReturnLabelPaymentPending {
		// Paiement persisté mais transition perdue (panne entre les deux
		// écritures) : la redelivery rattrape la transition, sinon le retour
		// resterait payé mais bloqué
		if err := s.applyTransition(ret, models.StatusReturnLabelPaymentCompleted); err != nil {
			return err
		}
		log.Printf("✅ Transition de paiement rattrapée pour retour %s", ret.ID)
	}

	_, err = s.IssueLabel(id)
	return err
}

// IssueLabel émet l'étiquette de retour auprès du transporteur.
// Garde 1 : une étiquette déjà émise est renvoyée telle quelle (aucun appel
// transporteur). Garde 2 : refus tant que le paiement n'est pas confirmé.
// Tout échec laisse le retour inchangé en return_label_payment_completed.
func (s *Service) IssueLabel(id gocql.UUID) (*models.ReturnLabel, error) {
	ret, err := s.store.GetReturn(id)
	if err != nil {
		return nil, err
	}

	if ret.LabelURL != "" || ret.TrackingCode != "" {
		return &models.ReturnLabel{
			ParcelID:     ret.CarrierParcelID,
			TrackingCode: ret.TrackingCode,
			TrackingURL:  ret.TrackingURL,
			LabelURL:     ret.LabelURL,
		}, nil
	}

	if ret.Status != models.StatusReturnLabelPaymentCompleted {
		return nil, fmt.Errorf("%w: émission d'étiquette impossible en statut %s", ErrInvalidState, ret.Status)
	}

	order, err := s.orders.GetOrder(ret.OrderID)
	if err != nil {
		return nil, err
	}

	label, err := s.carrier.CreateReturnLabel(order, ret)
	if err != nil {
		log.Printf("❌ Émission étiquette échouée pour retour %s: %v", ret.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	archiveURL := ""
	if s.archiver != nil && label.LabelURL != "" {
		// L'archivage est une optimisation, jamais bloquant
		if u, err := s.archiver.ArchiveLabel(ret, label); err != nil {
			log.Printf("⚠️ Archivage étiquette échoué pour %s: %v", ret.ID, err)
		} else {
			archiveURL = u
		}
	}

	now := s.now()
	if err := s.store.SetLabelArtifacts(ret.ID, *label, archiveURL, now); err != nil {
		return nil, err
	}
	if err := s.applyTransition(ret, models.StatusReturnLabelGenerated); err != nil {
		return nil, err
	}

	updated, err := s.store.GetReturn(ret.ID)
	if err == nil {
		s.notifier.NotifyStatus(updated, models.StatusReturnLabelGenerated)
	}

	log.Printf("🏷️ Étiquette générée pour retour %s: %s", ret.ID, label.TrackingCode)
	return label, nil
}

// ApproveReturn approuve une demande en attente (admin)
func (s *Service) ApproveReturn(id gocql.UUID) error {
	ret, err := s.store.GetReturn(id)
	if err != nil {
		return err
	}
	if err := s.applyTransition(ret, models.StatusReturnApproved); err != nil {
		return err
	}
	now := s.now()
	if err := s.store.SetApprovedAt(ret.ID, now); err != nil {
		return err
	}

	s.notifier.NotifyStatus(ret, models.StatusReturnApproved)

	// Même politique qu'à la création auto-approuvée : l'échec du paiement
	// n'annule pas l'approbation
	if _, _, err := s.CreateLabelFeePayment(ret.ID); err != nil {
		log.Printf("⚠️ Création du paiement d'étiquette différée pour %s: %v", ret.ID, err)
	}
	return nil
}

// RejectReturn rejette une demande depuis n'importe quel statut actif (admin)
func (s *Service) RejectReturn(id gocql.UUID) error {
	ret, err := s.store.GetReturn(id)
	if err != nil {
		return err
	}
	if err := s.applyTransition(ret, models.StatusReturnRejected); err != nil {
		return err
	}
	s.notifier.NotifyStatus(ret, models.StatusReturnRejected)
	log.Printf("❌ Retour rejeté: %s", ret.ID)
	return nil
}

// HandleTrackingUpdate applique un statut transporteur (webhook Sendcloud).
// Les statuts inconnus sont ignorés sans erreur.
func (s *Service) HandleTrackingUpdate(id gocql.UUID, carrierStatus string) error {
	var target models.ReturnStatus
	switch carrierStatus {
	case "en_route_to_sorting_center", "picked_up", "in_transit", "announced":
		target = models.StatusReturnInTransit
	case "delivered":
		target = models.StatusReturnReceived
	default:
		log.Printf("ℹ️ Statut transporteur ignoré pour retour %s: %s", id, carrierStatus)
		return nil
	}

	ret, err := s.store.GetReturn(id)
	if err != nil {
		return err
	}
	if ret.Status == target {
		return nil // rejeu webhook
	}
	// delivered peut arriver sans passage observé par in_transit
	if target == models.StatusReturnReceived && ret.Status == models.StatusReturnLabelGenerated {
		if err := s.applyTransition(ret, models.StatusReturnInTransit); err != nil {
			return err
		}
		ret.Status = models.StatusReturnInTransit
	}
	return s.applyTransition(ret, target)
}

// HandleCarrierTrackingByOrder corrèle un webhook transporteur avec le retour
// actif de la commande : le champ order_number des expéditions Sendcloud porte
// l'UUID de la commande. Sans retour actif, l'événement est ignoré (colis
// d'un retour déjà clôturé, ou flux sans rapport).
func (s *Service) HandleCarrierTrackingByOrder(orderID gocql.UUID, carrierStatus string) error {
	ret, err := s.store.FindActiveByOrder(orderID)
	if err != nil {
		return err
	}
	if ret == nil {
		log.Printf("ℹ️ Webhook transporteur sans retour actif pour commande %s", orderID)
		return nil
	}
	return s.HandleTrackingUpdate(ret.ID, carrierStatus)
}

// ExecuteRefund exécute le remboursement final via Stripe (admin).
// refund_processing est persisté avant l'appel Stripe : en cas d'échec le
// retour reste dans ce statut et l'opération peut être relancée.
func (s *Service) ExecuteRefund(id gocql.UUID) (string, error) {
	ret, err := s.store.GetReturn(id)
	if err != nil {
		return "", err
	}

	if ret.StripeRefundID != "" {
		return ret.StripeRefundID, nil
	}

	if ret.Status == models.StatusReturnReceived {
		if err := s.applyTransition(ret, models.StatusRefundProcessing); err != nil {
			return "", err
		}
		ret.Status = models.StatusRefundProcessing
	}
	if ret.Status != models.StatusRefundProcessing {
		return "", fmt.Errorf("%w: remboursement impossible en statut %s", ErrInvalidState, ret.Status)
	}

	order, err := s.orders.GetOrder(ret.OrderID)
	if err != nil {
		return "", err
	}

	refundID, err := s.payments.RefundPayment(order.PaymentIntentID, ret.TotalRefund)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	if err := s.store.SetStripeRefund(ret.ID, refundID, ret.TotalRefund); err != nil {
		log.Printf("⚠️ Erreur persistance refund Stripe %s: %v", refundID, err)
	}
	if err := s.applyTransition(ret, models.StatusRefunded); err != nil {
		return refundID, err
	}

	updated, err := s.store.GetReturn(ret.ID)
	if err == nil {
		s.notifier.NotifyStatus(updated, models.StatusRefunded)
	}

	log.Printf("💰 Retour remboursé: %s (Stripe: %s, %.2f€)", ret.ID, refundID, ret.TotalRefund)
	return refundID, nil
}

// GetReturnFor renvoie le retour si le demandeur y a droit (propriétaire,
// invité avec e-mail correspondant, ou admin)
func (s *Service) GetReturnFor(id gocql.UUID, userID, email string, isAdmin bool) (*models.ReturnRequest, error) {
	ret, err := s.store.GetReturn(id)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return ret, nil
	}
	if userID != "" && ret.UserID == userID {
		return ret, nil
	}
	if ret.UserID == "" && email != "" && strings.EqualFold(ret.Email, email) {
		return ret, nil
	}
	return nil, ErrUnauthorized
}

// ListForUser renvoie les retours du client connecté
func (s *Service) ListForUser(userID string) ([]models.ReturnRequest, error) {
	return s.store.ListByUser(userID)
}

// ListAll renvoie les retours filtrés (admin)
func (s *Service) ListAll(status models.ReturnStatus, orderID string) ([]models.ReturnRequest, error) {
	return s.store.ListAll(status, orderID)
}

// History renvoie le journal de transitions d'un retour
func (s *Service) History(id gocql.UUID) ([]models.StatusHistoryEntry, error) {
	return s.store.History(id)
}

// applyTransition valide puis persiste une transition, et déclenche les
// effets transverses (cache, index)
func (s *Service) applyTransition(ret *models.ReturnRequest, to models.ReturnStatus) error {
	if err := Transition(ret.Status, to); err != nil {
		return err
	}
	if err := s.store.SetStatus(ret.ID, ret.Status, to, s.now()); err != nil {
		return err
	}
	old := ret.Status
	ret.Status = to
	log.Printf("🔄 Retour %s: %s → %s", ret.ID, old, to)
	s.afterTransition(ret)
	return nil
}

func (s *Service) afterTransition(ret *models.ReturnRequest) {
	if s.cache != nil {
		s.cache.InvalidateReturn(ret.ID.String())
		s.cache.PublishStatus(ret.ID.String(), ret.Status)
	}
	if s.indexer != nil {
		s.indexer.IndexReturn(ret)
	}
}
