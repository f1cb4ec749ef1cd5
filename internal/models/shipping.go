package models

// ShippingOption est un produit d'expédition renvoyé par l'API Sendcloud
type ShippingOption struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Carrier string `json:"carrier"`
}

// ReturnLabel regroupe les artefacts renvoyés par le transporteur
type ReturnLabel struct {
	ParcelID     string `json:"parcel_id"`
	TrackingCode string `json:"tracking_code"`
	TrackingURL  string `json:"tracking_url"`
	LabelURL     string `json:"label_url,omitempty"` // peut être absent si le PDF est généré en asynchrone
}
