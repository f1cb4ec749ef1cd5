package models

import (
	"time"

	"github.com/gocql/gocql"
)

// ReturnStatus représente l'état d'une demande de retour dans son cycle de vie
type ReturnStatus string

const (
	StatusReturnRequested             ReturnStatus = "return_requested"
	StatusReturnApproved              ReturnStatus = "return_approved"
	StatusReturnLabelPaymentPending   ReturnStatus = "return_label_payment_pending"
	StatusReturnLabelPaymentCompleted ReturnStatus = "return_label_payment_completed"
	StatusReturnLabelGenerated        ReturnStatus = "return_label_generated"
	StatusReturnInTransit             ReturnStatus = "return_in_transit"
	StatusReturnReceived              ReturnStatus = "return_received"
	StatusRefundProcessing            ReturnStatus = "refund_processing"
	StatusRefunded                    ReturnStatus = "refunded"
	StatusReturnRejected              ReturnStatus = "return_rejected"
)

// ReturnItem est une ligne de retour (référence un article de la commande)
type ReturnItem struct {
	OrderItemID gocql.UUID `json:"order_item_id"`
	ProductID   gocql.UUID `json:"product_id"`
	Name        string     `json:"name"`
	SKU         string     `json:"sku"`
	Category    string     `json:"category"`
	Quantity    int        `json:"quantity"`
	Price       float64    `json:"price"` // prix unitaire au moment de l'achat
}

// ReturnRequest est la demande de retour complète (agrégat)
type ReturnRequest struct {
	ID           gocql.UUID   `json:"id" db:"return_id"`
	OrderID      gocql.UUID   `json:"order_id" db:"order_id"`
	UserID       string       `json:"user_id,omitempty" db:"user_id"` // vide pour les commandes invité
	Email        string       `json:"email" db:"email"`
	Status       ReturnStatus `json:"status" db:"status"`
	Reason       string       `json:"reason" db:"reason"`
	CustomerNote string       `json:"customer_note,omitempty" db:"customer_note"`
	Items        []ReturnItem `json:"items" db:"items"`

	// Montants
	RefundAmount float64 `json:"refund_amount" db:"refund_amount"` // somme prix × quantité
	TotalRefund  float64 `json:"total_refund" db:"total_refund"`   // refund_amount - frais d'étiquette non remboursés

	// Frais d'étiquette (paiement Stripe séparé de la commande)
	LabelCostExclTax   float64    `json:"label_cost_excl_tax" db:"label_cost_excl_tax"`
	LabelCostInclTax   float64    `json:"label_cost_incl_tax" db:"label_cost_incl_tax"`
	LabelPaymentID     string     `json:"label_payment_id,omitempty" db:"label_payment_id"` // PaymentIntent Stripe, clé d'idempotence
	LabelPaymentStatus string     `json:"label_payment_status" db:"label_payment_status"`   // pending, completed
	LabelPaidAt        *time.Time `json:"label_paid_at,omitempty" db:"label_paid_at"`

	// Artefacts transporteur (présents à partir de return_label_generated)
	TrackingCode     string     `json:"tracking_code,omitempty" db:"tracking_code"`
	TrackingURL      string     `json:"tracking_url,omitempty" db:"tracking_url"`
	LabelURL         string     `json:"label_url,omitempty" db:"label_url"`
	LabelArchiveURL  string     `json:"label_archive_url,omitempty" db:"label_archive_url"`
	CarrierParcelID  string     `json:"carrier_parcel_id,omitempty" db:"carrier_parcel_id"`
	LabelGeneratedAt *time.Time `json:"label_generated_at,omitempty" db:"label_generated_at"`

	// Remboursement final
	StripeRefundID string `json:"stripe_refund_id,omitempty" db:"stripe_refund_id"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// StatusHistoryEntry est une entrée du journal de transitions (append-only)
type StatusHistoryEntry struct {
	ReturnID  gocql.UUID   `json:"return_id" db:"return_id"`
	OldStatus ReturnStatus `json:"old_status" db:"old_status"`
	NewStatus ReturnStatus `json:"new_status" db:"new_status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}
