package shipping

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atelia_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	return &Client{
		BaseURL:   baseURL,
		PublicKey: "pub",
		SecretKey: "sec",
		Merchant: MerchantAddress{
			Name:       "Atelia Retours",
			Street:     "Quai des Usines 5",
			PostalCode: "1000",
			City:       "Bruxelles",
			Country:    "BE",
		},
		HTTP: http.DefaultClient,
	}
}

func optionJSON(code, lastMile, size string) map[string]interface{} {
	return map[string]interface{}{
		"code":    code,
		"carrier": map[string]string{"code": "postnl"},
		"product": map[string]string{"name": code},
		"functionalities": map[string]interface{}{
			"last_mile": lastMile,
			"size":      size,
			"returns":   true,
		},
	}
}

func TestResolveShippingOptionPrefereDepotRelais(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/fetch-shipping-options", r.URL.Path)
		user, pass, _ := r.BasicAuth()
		assert.Equal(t, "pub", user)
		assert.Equal(t, "sec", pass)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []interface{}{
				optionJSON("postnl:large/home,return", "home_address", "large"),
				optionJSON("postnl:small/dropoff,return", "service_point", "small"),
			},
		})
	}))
	defer srv.Close()

	code := testClient(srv.URL).ResolveShippingOption("NL", "1012AB", "BE", "1000", 700)
	assert.Equal(t, "postnl:small/dropoff,return", code)
}

func TestResolveShippingOptionPremiereSinon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []interface{}{
				optionJSON("dpd:medium/home,return", "home_address", "medium"),
				optionJSON("dhl:large/home,return", "home_address", "large"),
			},
		})
	}))
	defer srv.Close()

	code := testClient(srv.URL).ResolveShippingOption("NL", "1012AB", "BE", "1000", 700)
	assert.Equal(t, "dpd:medium/home,return", code)
}

func TestResolveShippingOptionSecours(t *testing.T) {
	// API en erreur → code de secours
	srvErr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}))
	defer srvErr.Close()
	assert.Equal(t, FallbackShippingOptionCode,
		testClient(srvErr.URL).ResolveShippingOption("NL", "1012AB", "BE", "1000", 700))

	// Liste vide → code de secours aussi
	srvEmpty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer srvEmpty.Close()
	assert.Equal(t, FallbackShippingOptionCode,
		testClient(srvEmpty.URL).ResolveShippingOption("NL", "1012AB", "BE", "1000", 700))

	// Serveur injoignable → code de secours encore
	srvDown := httptest.NewServer(nil)
	srvDown.Close()
	assert.Equal(t, FallbackShippingOptionCode,
		testClient(srvDown.URL).ResolveShippingOption("NL", "1012AB", "BE", "1000", 700))
}

func testOrderAndReturn() (*models.Order, *models.ReturnRequest) {
	delivered := time.Now().AddDate(0, 0, -3)
	order := &models.Order{
		ID:                 gocql.TimeUUID(),
		Email:              "client@example.com",
		Status:             "delivered",
		DeliveredAt:        &delivered,
		ShippingName:       "Jeanne Dupont",
		ShippingStreet:     "Kerkstraat 12b",
		ShippingPostalCode: "1012AB",
		ShippingCity:       "Amsterdam",
		ShippingCountry:    "NL",
	}
	ret := &models.ReturnRequest{
		ID:           gocql.TimeUUID(),
		OrderID:      order.ID,
		Status:       models.StatusReturnLabelPaymentCompleted,
		Reason:       "Taille trop petite",
		CustomerNote: "Le 38 taille comme un 36",
		RefundAmount: 59.90,
		Items: []models.ReturnItem{
			{Name: "Jean slim", SKU: "JEAN-32", Category: "jeans", Quantity: 1, Price: 59.90},
		},
	}
	return order, ret
}

func TestCreateReturnLabel(t *testing.T) {
	var gotShipment map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/fetch-shipping-options":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []interface{}{optionJSON("postnl:small/dropoff,return", "service_point", "small")},
			})
		case "/api/v3/returns":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotShipment))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"id":              981237,
					"tracking_number": "SC123456789NL",
					"tracking_url":    "https://tracking.example/SC123456789NL",
					"label":           map[string]string{"normal_printer": "https://panel.sendcloud.sc/labels/981237.pdf"},
				},
			})
		default:
			t.Errorf("chemin inattendu: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	order, ret := testOrderAndReturn()
	label, err := testClient(srv.URL).CreateReturnLabel(order, ret)
	require.NoError(t, err)

	assert.Equal(t, "981237", label.ParcelID)
	assert.Equal(t, "SC123456789NL", label.TrackingCode)
	assert.Equal(t, "https://panel.sendcloud.sc/labels/981237.pdf", label.LabelURL)

	// Adresse expéditeur découpée en rue + numéro
	from := gotShipment["from_address"].(map[string]interface{})
	assert.Equal(t, "Kerkstraat", from["address_line_1"])
	assert.Equal(t, "12b", from["house_number"])

	to := gotShipment["to_address"].(map[string]interface{})
	assert.Equal(t, "Quai des Usines", to["address_line_1"])
	assert.Equal(t, "5", to["house_number"])

	// Option résolue, poids en grammes, corrélation par numéro de commande
	shipWith := gotShipment["ship_with"].(map[string]interface{})
	assert.Equal(t, "shipping_option_code", shipWith["type"])
	assert.Equal(t, "postnl:small/dropoff,return", shipWith["shipping_option_code"])

	weight := gotShipment["weight"].(map[string]interface{})
	assert.Equal(t, "700", weight["value"])
	assert.Equal(t, "gram", weight["unit"])

	assert.Equal(t, ret.OrderID.String(), gotShipment["order_number"])

	items := gotShipment["parcel_items"].([]interface{})
	require.Len(t, items, 1)
	line := items[0].(map[string]interface{})
	assert.Equal(t, "Jean slim", line["description"])
	assert.Equal(t, "Taille trop petite", line["return_reason"])
}

func TestCreateReturnLabelPDFAsynchrone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/fetch-shipping-options":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []interface{}{optionJSON("postnl:small/dropoff,return", "service_point", "small")},
			})
		case "/api/v3/returns":
			// label absent : généré plus tard côté Sendcloud
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"id":              981238,
					"tracking_number": "SC999NL",
				},
			})
		}
	}))
	defer srv.Close()

	order, ret := testOrderAndReturn()
	label, err := testClient(srv.URL).CreateReturnLabel(order, ret)
	require.NoError(t, err)
	assert.Equal(t, "SC999NL", label.TrackingCode)
	assert.Empty(t, label.LabelURL)
}

func TestCreateReturnLabelSansSuivi(t *testing.T) {
	// Pas de tracking_number : réponse inexploitable, c'est une erreur
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/fetch-shipping-options":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []interface{}{optionJSON("postnl:small/dropoff,return", "service_point", "small")},
			})
		case "/api/v3/returns":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{"id": 981239},
			})
		}
	}))
	defer srv.Close()

	order, ret := testOrderAndReturn()
	_, err := testClient(srv.URL).CreateReturnLabel(order, ret)
	assert.Error(t, err)
}

func TestCreateReturnLabelErreurAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/fetch-shipping-options":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"data": []interface{}{optionJSON("postnl:small/dropoff,return", "service_point", "small")},
			})
		case "/api/v3/returns":
			http.Error(w, `{"error":"to_address invalide"}`, http.StatusUnprocessableEntity)
		}
	}))
	defer srv.Close()

	order, ret := testOrderAndReturn()
	_, err := testClient(srv.URL).CreateReturnLabel(order, ret)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}
