package utils

import (
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"atelia_back_end/internal/models"

	qrcode "github.com/skip2/go-qrcode"
)

// EmailNotifier envoie les e-mails de suivi de retour. Implémente
// returns.Notifier : tout échec est avalé, une transition d'état ne doit
// jamais échouer à cause du SMTP.
type EmailNotifier struct {
	HTTP *http.Client
}

func NewEmailNotifier() *EmailNotifier {
	return &EmailNotifier{
		HTTP: &http.Client{Timeout: 20 * time.Second},
	}
}

func (n *EmailNotifier) NotifyStatus(ret *models.ReturnRequest, status models.ReturnStatus) {
	if ret.Email == "" {
		return
	}

	subject := getReturnEmailSubject(status)
	html := generateReturnEmailHTML(ret, status)

	// Pour l'e-mail d'étiquette : PDF en pièce jointe si déjà disponible
	var attachment []byte
	if status == models.StatusReturnLabelGenerated && ret.LabelURL != "" {
		attachment = n.fetchLabelPDF(ret.LabelURL)
	}

	if err := SendEmail(ret.Email, subject, html, attachment, "etiquette_retour.pdf"); err != nil {
		log.Printf("❌ Erreur envoi email statut retour: %v", err)
		return
	}

	log.Printf("📧 Email de statut retour envoyé: %s → %s", status, ret.Email)
}

func (n *EmailNotifier) fetchLabelPDF(url string) []byte {
	resp, err := n.HTTP.Get(url)
	if err != nil {
		log.Printf("⚠️ Téléchargement PDF étiquette échoué: %v", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}
	return data
}

func getReturnEmailSubject(status models.ReturnStatus) string {
	switch status {
	case models.StatusReturnRequested:
		return "📋 Demande de retour reçue - Atelia"
	case models.StatusReturnApproved:
		return "✅ Retour approuvé - Atelia"
	case models.StatusReturnLabelGenerated:
		return "🏷️ Votre étiquette de retour est prête - Atelia"
	case models.StatusReturnReceived:
		return "📦 Votre retour est bien arrivé - Atelia"
	case models.StatusRefunded:
		return "💰 Remboursement effectué - Atelia"
	case models.StatusReturnRejected:
		return "❌ Demande de retour refusée - Atelia"
	default:
		return "📋 Mise à jour de votre retour - Atelia"
	}
}

func getReturnStatusMessage(ret *models.ReturnRequest, status models.ReturnStatus) string {
	switch status {
	case models.StatusReturnRequested:
		return "Nous avons bien reçu votre demande de retour. Elle sera examinée rapidement."
	case models.StatusReturnApproved:
		return "Votre demande de retour a été approuvée. Réglez les frais d'étiquette pour recevoir votre étiquette prépayée."
	case models.StatusReturnLabelGenerated:
		return "Votre étiquette de retour prépayée est prête. Déposez votre colis en point relais avec le QR code ci-dessous."
	case models.StatusReturnReceived:
		return "Votre colis retour est arrivé à notre dépôt. Le remboursement sera traité sous peu."
	case models.StatusRefunded:
		return fmt.Sprintf("Votre remboursement de %.2f€ a été effectué sur votre moyen de paiement d'origine.", ret.TotalRefund)
	case models.StatusReturnRejected:
		return "Votre demande de retour n'a pas pu être acceptée. Contactez-nous pour plus de détails."
	default:
		return "Le statut de votre retour a été mis à jour."
	}
}

func generateReturnEmailHTML(ret *models.ReturnRequest, status models.ReturnStatus) string {
	message := getReturnStatusMessage(ret, status)

	itemsHTML := ""
	for _, item := range ret.Items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td style="padding: 8px; border: 1px solid #ddd;">%s</td>
				<td style="padding: 8px; border: 1px solid #ddd;">%d</td>
				<td style="padding: 8px; border: 1px solid #ddd;">%.2f€</td>
			</tr>`, item.Name, item.Quantity, item.Price*float64(item.Quantity))
	}

	trackingHTML := ""
	if status == models.StatusReturnLabelGenerated && ret.TrackingURL != "" {
		trackingHTML = fmt.Sprintf(`
			<p style="margin: 20px 0;">
				Suivi du colis : <a href="%s">%s</a>
			</p>%s`, ret.TrackingURL, ret.TrackingCode, trackingQRHTML(ret.TrackingURL))
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="fr">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Suivi de votre retour</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Suivi de votre retour</h2>
		<p>Bonjour,</p>
		<p>%s</p>

		<h3>Articles retournés</h3>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Article</th>
					<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 8px; text-align: left; border: 1px solid #ddd;">Montant</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
			<tfoot>
				<tr>
					<td colspan="2" style="padding: 8px; text-align: right; font-weight: bold;">Remboursement:</td>
					<td style="padding: 8px; font-weight: bold;">%.2f€</td>
				</tr>
			</tfoot>
		</table>
		%s
		<p style="margin-top: 30px; color: #555;">
			Cordialement,<br>
			<strong>L'équipe Atelia</strong>
		</p>
	</div>
</body>
</html>`, message, itemsHTML, ret.RefundAmount, trackingHTML)
}

// trackingQRHTML génère le QR code du lien de suivi, intégré en data URI
func trackingQRHTML(trackingURL string) string {
	png, err := qrcode.Encode(trackingURL, qrcode.Medium, 200)
	if err != nil {
		log.Printf("⚠️ Génération QR code échouée: %v", err)
		return ""
	}
	return fmt.Sprintf(`
			<div style="text-align: center; margin: 20px 0;">
				<img src="data:image/png;base64,%s" alt="QR code de suivi" width="200" height="200" />
			</div>`, base64.StdEncoding.EncodeToString(png))
}
