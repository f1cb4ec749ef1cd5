package models

import (
	"time"

	"github.com/gocql/gocql"
)

// OrderItem est un article d'une commande (table order_items)
type OrderItem struct {
	ID        gocql.UUID `json:"id" db:"item_id"`
	OrderID   gocql.UUID `json:"order_id" db:"order_id"`
	ProductID gocql.UUID `json:"product_id" db:"product_id"`
	Name      string     `json:"name" db:"name"`
	SKU       string     `json:"sku" db:"sku"`
	Category  string     `json:"category" db:"category"` // catégorie vêtement, sert à estimer le poids
	Price     float64    `json:"price" db:"price"`       // prix unitaire au moment de l'achat
	Quantity  int        `json:"quantity" db:"quantity"`
}

// Order est la commande vue par le moteur de retours (lecture seule, sauf has_returns)
type Order struct {
	ID              gocql.UUID  `json:"id" db:"order_id"`
	UserID          string      `json:"user_id,omitempty" db:"user_id"` // vide pour une commande invité
	Email           string      `json:"email" db:"email"`
	PaymentIntentID string      `json:"payment_intent_id" db:"payment_intent_id"`
	TotalPrice      float64     `json:"total_price" db:"total_price"`
	Status          string      `json:"status" db:"status"` // paid, shipped, delivered, ...
	HasReturns      bool        `json:"has_returns" db:"has_returns"`
	DeliveredAt     *time.Time  `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	Items           []OrderItem `json:"items"`

	// Adresse de livraison (sert d'adresse expéditeur pour le retour)
	ShippingName       string `json:"shipping_name" db:"shipping_name"`
	ShippingStreet     string `json:"shipping_street" db:"shipping_street"` // adresse libre, ex: "Rue de la Loi 16b"
	ShippingPostalCode string `json:"shipping_postal_code" db:"shipping_postal_code"`
	ShippingCity       string `json:"shipping_city" db:"shipping_city"`
	ShippingCountry    string `json:"shipping_country" db:"shipping_country"` // code ISO, ex: "BE"
}
