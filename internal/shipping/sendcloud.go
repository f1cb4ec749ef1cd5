package shipping

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"

	"atelia_back_end/internal/models"
)

// FallbackShippingOptionCode est utilisé quand la découverte d'options
// échoue : un colis qui revient bien au dépôt vaut mieux qu'une émission
// d'étiquette avortée pour cause de produit transporteur introuvable.
const FallbackShippingOptionCode = "postnl:small/dropoff,return"

// MerchantAddress est l'adresse de retour du marchand (destinataire fixe)
type MerchantAddress struct {
	Name       string
	Street     string // adresse libre, découpée comme celle du client
	PostalCode string
	City       string
	Country    string
}

// Client appelle l'API Sendcloud V3 (découverte d'options + création de
// retours)
type Client struct {
	BaseURL   string
	PublicKey string
	SecretKey string
	Merchant  MerchantAddress
	HTTP      *http.Client
}

// NewClientFromEnv construit le client depuis .env
func NewClientFromEnv() *Client {
	baseURL := os.Getenv("SENDCLOUD_BASE_URL")
	if baseURL == "" {
		baseURL = "https://panel.sendcloud.sc"
	}
	return &Client{
		BaseURL:   baseURL,
		PublicKey: os.Getenv("SENDCLOUD_PUBLIC_KEY"),
		SecretKey: os.Getenv("SENDCLOUD_SECRET_KEY"),
		Merchant: MerchantAddress{
			Name:       os.Getenv("RETURN_ADDRESS_NAME"),
			Street:     os.Getenv("RETURN_ADDRESS_STREET"),
			PostalCode: os.Getenv("RETURN_ADDRESS_POSTAL_CODE"),
			City:       os.Getenv("RETURN_ADDRESS_CITY"),
			Country:    os.Getenv("RETURN_ADDRESS_COUNTRY"),
		},
		HTTP: http.DefaultClient,
	}
}

func (c *Client) do(method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.PublicKey, c.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Sendcloud %s %s: HTTP %d: %s", method, path, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("réponse Sendcloud illisible: %w", err)
		}
	}
	return nil
}

type optionsRequest struct {
	FromCountry    string        `json:"from_country_code"`
	ToCountry      string        `json:"to_country_code"`
	FromPostalCode string        `json:"from_postal_code"`
	ToPostalCode   string        `json:"to_postal_code"`
	Weight         weightPayload `json:"weight"`
	Carriers       []string      `json:"carriers,omitempty"`
}

type weightPayload struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

type optionsResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Carrier struct {
			Code string `json:"code"`
		} `json:"carrier"`
		Product struct {
			Name string `json:"name"`
		} `json:"product"`
		Functionalities struct {
			LastMile string `json:"last_mile"`
			Size     string `json:"size"`
			Returns  bool   `json:"returns"`
		} `json:"functionalities"`
	} `json:"data"`
}

// FetchShippingOptions interroge la découverte d'options Sendcloud
func (c *Client) FetchShippingOptions(fromCountry, fromPostal, toCountry, toPostal string, weightGrams int) ([]models.ShippingOption, error) {
	req := optionsRequest{
		FromCountry:    fromCountry,
		ToCountry:      toCountry,
		FromPostalCode: fromPostal,
		ToPostalCode:   toPostal,
		Weight: weightPayload{
			Value: strconv.Itoa(weightGrams),
			Unit:  "gram",
		},
	}

	var resp optionsResponse
	if err := c.do(http.MethodPost, "/api/v3/fetch-shipping-options", req, &resp); err != nil {
		return nil, err
	}

	options := make([]models.ShippingOption, 0, len(resp.Data))
	for _, d := range resp.Data {
		options = append(options, models.ShippingOption{
			Code:    d.Code,
			Name:    d.Product.Name,
			Carrier: d.Carrier.Code,
		})
	}
	return options, nil
}

// ResolveShippingOption choisit le code produit transporteur : de préférence
// un dépôt en point relais petit format, sinon la première option renvoyée,
// et le code de secours codé en dur si l'API échoue, quelle que soit
// l'erreur.
func (c *Client) ResolveShippingOption(fromCountry, fromPostal, toCountry, toPostal string, weightGrams int) string {
	var resp optionsResponse
	req := optionsRequest{
		FromCountry:    fromCountry,
		ToCountry:      toCountry,
		FromPostalCode: fromPostal,
		ToPostalCode:   toPostal,
		Weight:         weightPayload{Value: strconv.Itoa(weightGrams), Unit: "gram"},
	}
	if err := c.do(http.MethodPost, "/api/v3/fetch-shipping-options", req, &resp); err != nil {
		log.Printf("⚠️ Découverte d'options Sendcloud échouée, code de secours utilisé: %v", err)
		return FallbackShippingOptionCode
	}
	if len(resp.Data) == 0 {
		log.Println("⚠️ Aucune option Sendcloud renvoyée, code de secours utilisé")
		return FallbackShippingOptionCode
	}

	for _, d := range resp.Data {
		if d.Functionalities.LastMile == "service_point" && d.Functionalities.Size == "small" {
			return d.Code
		}
	}
	return resp.Data[0].Code
}

type addressPayload struct {
	Name        string `json:"name"`
	AddressLine string `json:"address_line_1"`
	HouseNumber string `json:"house_number"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
}

type parcelItemPayload struct {
	Description   string        `json:"description"`
	Quantity      int           `json:"quantity"`
	Weight        weightPayload `json:"weight"`
	Price         pricePayload  `json:"price"`
	SKU           string        `json:"sku,omitempty"`
	OriginCountry string        `json:"origin_country,omitempty"`
	ReturnReason  string        `json:"return_reason,omitempty"`
	ReturnMessage string        `json:"return_message,omitempty"`
}

type pricePayload struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type returnShipmentRequest struct {
	FromAddress addressPayload `json:"from_address"`
	ToAddress   addressPayload `json:"to_address"`
	ShipWith    struct {
		Type               string `json:"type"`
		ShippingOptionCode string `json:"shipping_option_code"`
	} `json:"ship_with"`
	Weight          weightPayload       `json:"weight"`
	OrderNumber     string              `json:"order_number"`
	TotalOrderValue pricePayload        `json:"total_order_value"`
	ParcelItems     []parcelItemPayload `json:"parcel_items"`
}

type returnShipmentResponse struct {
	Data struct {
		ID             json.Number `json:"id"`
		TrackingNumber string      `json:"tracking_number"`
		TrackingURL    string      `json:"tracking_url"`
		Label          struct {
			NormalPrinter string `json:"normal_printer"`
		} `json:"label"`
	} `json:"data"`
}

// CreateReturnLabel construit et soumet la demande de retour Sendcloud pour
// cette commande et ce retour. Implémente returns.Carrier.
func (c *Client) CreateReturnLabel(order *models.Order, ret *models.ReturnRequest) (*models.ReturnLabel, error) {
	senderStreet, senderNumber := ParseStreet(order.ShippingStreet)
	merchantStreet, merchantNumber := ParseStreet(c.Merchant.Street)

	weight := EstimateWeightGrams(ret.Items)
	optionCode := c.ResolveShippingOption(
		order.ShippingCountry, order.ShippingPostalCode,
		c.Merchant.Country, c.Merchant.PostalCode,
		weight,
	)

	req := returnShipmentRequest{
		FromAddress: addressPayload{
			Name:        order.ShippingName,
			AddressLine: senderStreet,
			HouseNumber: senderNumber,
			PostalCode:  order.ShippingPostalCode,
			City:        order.ShippingCity,
			CountryCode: order.ShippingCountry,
		},
		ToAddress: addressPayload{
			Name:        c.Merchant.Name,
			AddressLine: merchantStreet,
			HouseNumber: merchantNumber,
			PostalCode:  c.Merchant.PostalCode,
			City:        c.Merchant.City,
			CountryCode: c.Merchant.Country,
		},
		Weight:      weightPayload{Value: strconv.Itoa(weight), Unit: "gram"},
		OrderNumber: ret.OrderID.String(),
		TotalOrderValue: pricePayload{
			Value:    ret.RefundAmount,
			Currency: "EUR",
		},
	}
	req.ShipWith.Type = "shipping_option_code"
	req.ShipWith.ShippingOptionCode = optionCode

	for _, item := range ret.Items {
		req.ParcelItems = append(req.ParcelItems, parcelItemPayload{
			Description:   item.Name,
			Quantity:      item.Quantity,
			Weight:        weightPayload{Value: strconv.Itoa(int(ItemWeight(item.Category))), Unit: "gram"},
			Price:         pricePayload{Value: item.Price, Currency: "EUR"},
			SKU:           item.SKU,
			OriginCountry: c.Merchant.Country,
			ReturnReason:  ret.Reason,
			ReturnMessage: ret.CustomerNote,
		})
	}

	var resp returnShipmentResponse
	if err := c.do(http.MethodPost, "/api/v3/returns", req, &resp); err != nil {
		return nil, err
	}

	if resp.Data.TrackingNumber == "" {
		return nil, fmt.Errorf("réponse Sendcloud sans numéro de suivi")
	}

	// Le PDF peut être généré en asynchrone côté Sendcloud : label_url
	// absent n'est pas une erreur, l'appelant re-consultera.
	return &models.ReturnLabel{
		ParcelID:     resp.Data.ID.String(),
		TrackingCode: resp.Data.TrackingNumber,
		TrackingURL:  resp.Data.TrackingURL,
		LabelURL:     resp.Data.Label.NormalPrinter,
	}, nil
}
