package retours

import (
	"net/http"

	"atelia_back_end/internal/models"
	services "atelia_back_end/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// GetAllReturns liste les retours pour le back-office, filtrables par statut
// et par commande. Avec ?q=, la recherche texte passe par Elasticsearch.
func GetAllReturns(c *gin.Context) {
	status := c.Query("status")
	orderID := c.Query("order_id")
	query := c.Query("q")

	if query != "" {
		results, err := services.SearchReturns(status, orderID, query)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur recherche retours", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"returns": results, "count": len(results)})
		return
	}

	list, err := Svc.ListAll(models.ReturnStatus(status), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"returns": list, "count": len(list)})
}

// ProcessReturn approuve ou rejette une demande en attente
func ProcessReturn(c *gin.Context) {
	returnUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID retour invalide"})
		return
	}

	var req struct {
		Action string `json:"action" binding:"required"` // approve, reject
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	switch req.Action {
	case "approve":
		err = Svc.ApproveReturn(gocql.UUID(returnUUID))
	case "reject":
		err = Svc.RejectReturn(gocql.UUID(returnUUID))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Action invalide (approve ou reject)"})
		return
	}

	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Demande de retour traitée",
		"action":  req.Action,
	})
}

// RetryLabel relance l'émission d'étiquette d'un retour payé mais bloqué.
// Sans effet (et sans nouvel appel transporteur) si l'étiquette existe déjà.
func RetryLabel(c *gin.Context) {
	returnUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID retour invalide"})
		return
	}

	label, err := Svc.IssueLabel(gocql.UUID(returnUUID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Étiquette disponible",
		"label":   label,
	})
}

// ExecuteRefund déclenche le remboursement Stripe d'un retour reçu
func ExecuteRefund(c *gin.Context) {
	returnUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID retour invalide"})
		return
	}

	refundID, err := Svc.ExecuteRefund(gocql.UUID(returnUUID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "Remboursement traité avec succès",
		"stripe_refund_id": refundID,
	})
}

// GetReturnHistory renvoie le journal de transitions (audit)
func GetReturnHistory(c *gin.Context) {
	returnUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID retour invalide"})
		return
	}

	history, err := Svc.History(gocql.UUID(returnUUID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}
