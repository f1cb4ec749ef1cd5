package returns

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"atelia_back_end/internal/database"
	"atelia_back_end/internal/models"

	"github.com/gocql/gocql"
)

// Store est le port de persistance des demandes de retour.
// L'implémentation ScyllaDB est l'écrivain unique ; l'admin et les pages
// commande ne font que lire.
type Store interface {
	GetReturn(id gocql.UUID) (*models.ReturnRequest, error)
	FindActiveByOrder(orderID gocql.UUID) (*models.ReturnRequest, error)
	Insert(r *models.ReturnRequest) error
	SetStatus(id gocql.UUID, old, new models.ReturnStatus, now time.Time) error
	SetApprovedAt(id gocql.UUID, at time.Time) error
	SetLabelPayment(id gocql.UUID, paymentIntentID string, now time.Time) error
	SetLabelPaid(id gocql.UUID, at time.Time) error
	SetLabelArtifacts(id gocql.UUID, label models.ReturnLabel, archiveURL string, at time.Time) error
	SetStripeRefund(id gocql.UUID, refundID string, totalRefund float64) error
	ListByUser(userID string) ([]models.ReturnRequest, error)
	ListByEmail(email string) ([]models.ReturnRequest, error)
	ListAll(status models.ReturnStatus, orderID string) ([]models.ReturnRequest, error)
	History(id gocql.UUID) ([]models.StatusHistoryEntry, error)
}

// OrderStore est le port de lecture des commandes (collaborateur externe,
// lecture seule sauf le drapeau has_returns)
type OrderStore interface {
	GetOrder(id gocql.UUID) (*models.Order, error)
	MarkOrderHasReturns(id gocql.UUID) error
}

// ScyllaStore implémente Store et OrderStore sur le keyspace orders
type ScyllaStore struct{}

func NewScyllaStore() *ScyllaStore {
	return &ScyllaStore{}
}

const returnColumns = `return_id, order_id, user_id, email, status, reason, customer_note, items,
	refund_amount, total_refund, label_cost_excl_tax, label_cost_incl_tax,
	label_payment_id, label_payment_status, label_paid_at,
	tracking_code, tracking_url, label_url, label_archive_url, carrier_parcel_id, label_generated_at,
	stripe_refund_id, created_at, approved_at, updated_at`

func returnDest(r *models.ReturnRequest, status *string, itemsJSON *string) []interface{} {
	return []interface{}{
		&r.ID, &r.OrderID, &r.UserID, &r.Email, status, &r.Reason, &r.CustomerNote, itemsJSON,
		&r.RefundAmount, &r.TotalRefund, &r.LabelCostExclTax, &r.LabelCostInclTax,
		&r.LabelPaymentID, &r.LabelPaymentStatus, &r.LabelPaidAt,
		&r.TrackingCode, &r.TrackingURL, &r.LabelURL, &r.LabelArchiveURL, &r.CarrierParcelID, &r.LabelGeneratedAt,
		&r.StripeRefundID, &r.CreatedAt, &r.ApprovedAt, &r.UpdatedAt,
	}
}

func decodeReturn(r *models.ReturnRequest, status, itemsJSON string) error {
	r.Status = models.ReturnStatus(status)
	if itemsJSON != "" {
		if err := json.Unmarshal([]byte(itemsJSON), &r.Items); err != nil {
			return fmt.Errorf("décodage items du retour %s: %w", r.ID, err)
		}
	}
	return nil
}

// scanReturn lit une ligne unique (gocql.Query)
func scanReturn(q *gocql.Query) (*models.ReturnRequest, error) {
	var r models.ReturnRequest
	var status, itemsJSON string
	if err := q.Scan(returnDest(&r, &status, &itemsJSON)...); err != nil {
		return nil, err
	}
	if err := decodeReturn(&r, status, itemsJSON); err != nil {
		return nil, err
	}
	return &r, nil
}

// scanReturnIter lit la ligne suivante d'un itérateur (gocql.Iter)
func scanReturnIter(iter *gocql.Iter) (*models.ReturnRequest, bool) {
	var r models.ReturnRequest
	var status, itemsJSON string
	if !iter.Scan(returnDest(&r, &status, &itemsJSON)...) {
		return nil, false
	}
	if err := decodeReturn(&r, status, itemsJSON); err != nil {
		log.Printf("⚠️ Ligne retour ignorée: %v", err)
		return nil, false
	}
	return &r, true
}

func (s *ScyllaStore) GetReturn(id gocql.UUID) (*models.ReturnRequest, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}
	q := session.Query(`SELECT `+returnColumns+` FROM returns WHERE return_id = ?`, id)
	r, err := scanReturn(q)
	if err == gocql.ErrNotFound {
		return nil, ErrNotFound
	}
	return r, err
}

// FindActiveByOrder retourne le retour actif (non terminal) de la commande,
// ou nil s'il n'y en a pas. C'est la vérification lecture-puis-écriture qui
// garantit « au plus un retour actif par commande » (fenêtre de course
// concurrente assumée, pas de verrou distribué).
func (s *ScyllaStore) FindActiveByOrder(orderID gocql.UUID) (*models.ReturnRequest, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT `+returnColumns+` FROM returns WHERE order_id = ? ALLOW FILTERING`, orderID).Iter()
	defer iter.Close()

	for {
		r, ok := scanReturnIter(iter)
		if !ok {
			break
		}
		if IsActive(r.Status) {
			return r, nil
		}
	}
	return nil, nil
}

func (s *ScyllaStore) Insert(r *models.ReturnRequest) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	itemsJSON, err := json.Marshal(r.Items)
	if err != nil {
		return err
	}

	err = session.Query(`
		INSERT INTO returns (`+returnColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.OrderID, r.UserID, r.Email, string(r.Status), r.Reason, r.CustomerNote, string(itemsJSON),
		r.RefundAmount, r.TotalRefund, r.LabelCostExclTax, r.LabelCostInclTax,
		r.LabelPaymentID, r.LabelPaymentStatus, r.LabelPaidAt,
		r.TrackingCode, r.TrackingURL, r.LabelURL, r.LabelArchiveURL, r.CarrierParcelID, r.LabelGeneratedAt,
		r.StripeRefundID, r.CreatedAt, r.ApprovedAt, r.UpdatedAt,
	).Exec()
	if err != nil {
		return err
	}

	// Première entrée d'historique : création
	return s.appendHistory(r.ID, "", r.Status, r.CreatedAt)
}

func (s *ScyllaStore) appendHistory(id gocql.UUID, old, new models.ReturnStatus, at time.Time) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`
		INSERT INTO return_status_history (return_id, created_at, old_status, new_status)
		VALUES (?, ?, ?, ?)
	`, id, at, string(old), string(new)).Exec()
}

// SetStatus persiste la transition et son entrée d'historique
func (s *ScyllaStore) SetStatus(id gocql.UUID, old, new models.ReturnStatus, now time.Time) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	if err := session.Query(`UPDATE returns SET status = ?, updated_at = ? WHERE return_id = ?`,
		string(new), now, id).Exec(); err != nil {
		return err
	}
	return s.appendHistory(id, old, new, now)
}

func (s *ScyllaStore) SetApprovedAt(id gocql.UUID, at time.Time) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`UPDATE returns SET approved_at = ?, updated_at = ? WHERE return_id = ?`,
		at, at, id).Exec()
}

func (s *ScyllaStore) SetLabelPayment(id gocql.UUID, paymentIntentID string, now time.Time) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`
		UPDATE returns SET label_payment_id = ?, label_payment_status = ?, updated_at = ? WHERE return_id = ?
	`, paymentIntentID, "pending", now, id).Exec()
}

func (s *ScyllaStore) SetLabelPaid(id gocql.UUID, at time.Time) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`
		UPDATE returns SET label_payment_status = ?, label_paid_at = ?, updated_at = ? WHERE return_id = ?
	`, "completed", at, at, id).Exec()
}

func (s *ScyllaStore) SetLabelArtifacts(id gocql.UUID, label models.ReturnLabel, archiveURL string, at time.Time) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`
		UPDATE returns SET tracking_code = ?, tracking_url = ?, label_url = ?, label_archive_url = ?,
			carrier_parcel_id = ?, label_generated_at = ?, updated_at = ? WHERE return_id = ?
	`, label.TrackingCode, label.TrackingURL, label.LabelURL, archiveURL, label.ParcelID, at, at, id).Exec()
}

func (s *ScyllaStore) SetStripeRefund(id gocql.UUID, refundID string, totalRefund float64) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`
		UPDATE returns SET stripe_refund_id = ?, total_refund = ?, updated_at = ? WHERE return_id = ?
	`, refundID, totalRefund, time.Now(), id).Exec()
}

func (s *ScyllaStore) list(query string, bind ...interface{}) ([]models.ReturnRequest, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(query, bind...).Iter()
	var out []models.ReturnRequest
	for {
		r, ok := scanReturnIter(iter)
		if !ok {
			break
		}
		out = append(out, *r)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ScyllaStore) ListByUser(userID string) ([]models.ReturnRequest, error) {
	return s.list(`SELECT `+returnColumns+` FROM returns WHERE user_id = ? ALLOW FILTERING`, userID)
}

func (s *ScyllaStore) ListByEmail(email string) ([]models.ReturnRequest, error) {
	return s.list(`SELECT `+returnColumns+` FROM returns WHERE email = ? ALLOW FILTERING`, email)
}

func (s *ScyllaStore) ListAll(status models.ReturnStatus, orderID string) ([]models.ReturnRequest, error) {
	switch {
	case status != "" && orderID != "":
		return s.list(`SELECT `+returnColumns+` FROM returns WHERE status = ? AND order_id = ? ALLOW FILTERING`,
			string(status), orderID)
	case status != "":
		return s.list(`SELECT `+returnColumns+` FROM returns WHERE status = ? ALLOW FILTERING`, string(status))
	case orderID != "":
		return s.list(`SELECT `+returnColumns+` FROM returns WHERE order_id = ? ALLOW FILTERING`, orderID)
	default:
		return s.list(`SELECT ` + returnColumns + ` FROM returns`)
	}
}

func (s *ScyllaStore) History(id gocql.UUID) ([]models.StatusHistoryEntry, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`
		SELECT return_id, created_at, old_status, new_status
		FROM return_status_history WHERE return_id = ?
	`, id).Iter()

	var out []models.StatusHistoryEntry
	var e models.StatusHistoryEntry
	var oldS, newS string
	for iter.Scan(&e.ReturnID, &e.CreatedAt, &oldS, &newS) {
		e.OldStatus = models.ReturnStatus(oldS)
		e.NewStatus = models.ReturnStatus(newS)
		out = append(out, e)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Commandes (lecture seule + has_returns) ---

func (s *ScyllaStore) GetOrder(id gocql.UUID) (*models.Order, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var o models.Order
	err = session.Query(`
		SELECT order_id, user_id, email, payment_intent_id, total_price, status, has_returns,
			delivered_at, created_at, shipping_name, shipping_street, shipping_postal_code,
			shipping_city, shipping_country
		FROM orders WHERE order_id = ?
	`, id).Scan(
		&o.ID, &o.UserID, &o.Email, &o.PaymentIntentID, &o.TotalPrice, &o.Status, &o.HasReturns,
		&o.DeliveredAt, &o.CreatedAt, &o.ShippingName, &o.ShippingStreet, &o.ShippingPostalCode,
		&o.ShippingCity, &o.ShippingCountry,
	)
	if err == gocql.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	iter := session.Query(`
		SELECT item_id, order_id, product_id, name, sku, category, price, quantity
		FROM order_items WHERE order_id = ?
	`, id).Iter()

	var item models.OrderItem
	for iter.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.SKU, &item.Category, &item.Price, &item.Quantity) {
		o.Items = append(o.Items, item)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	return &o, nil
}

func (s *ScyllaStore) MarkOrderHasReturns(id gocql.UUID) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}
	return session.Query(`UPDATE orders SET has_returns = ? WHERE order_id = ?`, true, id).Exec()
}
