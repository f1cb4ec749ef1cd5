package payement

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"

	"atelia_back_end/internal/returns"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// Svc est injecté au démarrage par routes.RegisterRoutes
var Svc *returns.Service

func Init(svc *returns.Service) {
	Svc = svc
}

// ✅ Webhook Stripe — confirmation du paiement des frais d'étiquette
func StripeWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		log.Println("❌ Lecture payload échouée:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Échec lecture body"})
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	var event stripe.Event

	if secret == "" {
		log.Println("⚠️ Pas de STRIPE_WEBHOOK_SECRET — mode test")
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Println("❌ JSON invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "JSON invalide"})
			return
		}
	} else {
		event, err = webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
		if err != nil {
			log.Println("❌ Signature Stripe invalide:", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
			return
		}
	}

	log.Printf("📥 Événement Stripe reçu : %s", event.Type)

	if event.Type != "payment_intent.succeeded" {
		log.Printf("ℹ️ Événement ignoré : %s", event.Type)
		c.Status(http.StatusOK)
		return
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		log.Println("❌ Erreur décodage PaymentIntent:", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "PaymentIntent illisible"})
		return
	}

	if pi.Metadata["type"] != returns.MetadataTypeLabelPayment {
		log.Printf("ℹ️ PaymentIntent %s sans rapport avec les retours, ignoré", pi.ID)
		c.Status(http.StatusOK)
		return
	}

	returnUUID, err := gocql.ParseUUID(pi.Metadata["return_id"])
	if err != nil {
		log.Printf("⚠️ Métadonnée return_id invalide sur %s: %v", pi.ID, err)
		c.Status(http.StatusOK)
		return
	}

	if err := Svc.HandleLabelPaymentSucceeded(returnUUID); err != nil {
		// Retour introuvable ou transition refusée : rejouer ne changera
		// rien, on acquitte. Tout le reste (étiquette, base) est
		// retentable : 500 pour provoquer une redelivery Stripe.
		if errors.Is(err, returns.ErrNotFound) || errors.Is(err, returns.ErrInvalidState) {
			log.Printf("⚠️ Paiement étiquette %s non applicable au retour %s: %v", pi.ID, returnUUID, err)
			c.Status(http.StatusOK)
			return
		}
		log.Printf("❌ Traitement paiement étiquette échoué pour retour %s: %v", returnUUID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Traitement différé, redelivery attendue"})
		return
	}

	c.Status(http.StatusOK)
}

// sendcloudParcelEvent est le payload « parcel_status_changed » de Sendcloud
type sendcloudParcelEvent struct {
	Action string `json:"action"`
	Parcel struct {
		TrackingNumber string `json:"tracking_number"`
		OrderNumber    string `json:"order_number"`
		Status         struct {
			ID      int    `json:"id"`
			Message string `json:"message"`
		} `json:"status"`
	} `json:"parcel"`
}

// verifySendcloudSignature vérifie le HMAC-SHA256 du corps avec la clé
// secrète Sendcloud (en-tête Sendcloud-Signature)
func verifySendcloudSignature(payload []byte, signature string) bool {
	secret := os.Getenv("SENDCLOUD_SECRET_KEY")
	if secret == "" {
		log.Println("⚠️ Pas de SENDCLOUD_SECRET_KEY — signature non vérifiée")
		return true
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// 📦 Webhook Sendcloud — suivi du colis de retour (in transit, delivered)
func SendcloudWebhook(c *gin.Context) {
	const MaxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Échec lecture body"})
		return
	}

	if !verifySendcloudSignature(payload, c.GetHeader("Sendcloud-Signature")) {
		log.Println("❌ Signature Sendcloud invalide")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Signature invalide"})
		return
	}

	var event sendcloudParcelEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON invalide"})
		return
	}

	if event.Action != "parcel_status_changed" {
		c.Status(http.StatusOK)
		return
	}

	orderUUID, err := gocql.ParseUUID(event.Parcel.OrderNumber)
	if err != nil {
		// Colis d'un flux aller ou numéro de commande non UUID : pas pour nous
		log.Printf("ℹ️ Webhook Sendcloud ignoré (order_number %q)", event.Parcel.OrderNumber)
		c.Status(http.StatusOK)
		return
	}

	// « En route to sorting center » → en_route_to_sorting_center
	carrierStatus := strings.ReplaceAll(strings.ToLower(event.Parcel.Status.Message), " ", "_")

	log.Printf("📥 Suivi Sendcloud: commande %s, colis %s, statut %s",
		orderUUID, event.Parcel.TrackingNumber, carrierStatus)

	if err := Svc.HandleCarrierTrackingByOrder(orderUUID, carrierStatus); err != nil {
		if errors.Is(err, returns.ErrInvalidState) {
			// Événements hors d'ordre : acquitter, le suivi suivant corrigera
			log.Printf("⚠️ Transition de suivi refusée pour commande %s: %v", orderUUID, err)
			c.Status(http.StatusOK)
			return
		}
		log.Printf("❌ Traitement suivi Sendcloud échoué: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Traitement différé"})
		return
	}

	c.Status(http.StatusOK)
}
