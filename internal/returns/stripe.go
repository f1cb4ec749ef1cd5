package returns

import (
	"fmt"

	"atelia_back_end/internal/models"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"
)

// MetadataTypeLabelPayment identifie les PaymentIntents de frais d'étiquette
// dans les webhooks. C'est l'unique lien entre l'événement asynchrone Stripe
// et la demande de retour : les trois clés doivent rester exactes.
const MetadataTypeLabelPayment = "return_label_payment"

// StripePayments implémente PaymentClient avec l'API Stripe
type StripePayments struct{}

func NewStripePayments() *StripePayments {
	return &StripePayments{}
}

func (p *StripePayments) CreateLabelFeeIntent(ret *models.ReturnRequest) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		// Montant TTC en centimes
		Amount:   stripe.Int64(int64(ret.LabelCostInclTax * 100)),
		Currency: stripe.String("eur"),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"type":      MetadataTypeLabelPayment,
			"return_id": ret.ID.String(),
			"order_id":  ret.OrderID.String(),
		},
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return "", "", fmt.Errorf("création PaymentIntent étiquette: %w", err)
	}
	return intent.ID, intent.ClientSecret, nil
}

func (p *StripePayments) GetIntentClientSecret(intentID string) (string, error) {
	intent, err := paymentintent.Get(intentID, nil)
	if err != nil {
		return "", fmt.Errorf("lecture PaymentIntent %s: %w", intentID, err)
	}
	return intent.ClientSecret, nil
}

func (p *StripePayments) RefundPayment(paymentIntentID string, amount float64) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(int64(amount * 100)),
		Reason:        stripe.String("requested_by_customer"),
	}

	stripeRefund, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("remboursement Stripe: %w", err)
	}
	return stripeRefund.ID, nil
}
