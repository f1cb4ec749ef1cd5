package retours

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"atelia_back_end/internal/cache"
	"atelia_back_end/internal/models"
	"atelia_back_end/internal/returns"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// Svc est le moteur de retours partagé par tous les handlers, injecté au
// démarrage par routes.RegisterRoutes
var Svc *returns.Service

func Init(svc *returns.Service) {
	Svc = svc
}

// respondError traduit la taxonomie d'erreurs du moteur en codes HTTP
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, returns.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande ou retour introuvable"})
	case errors.Is(err, returns.ErrDeadlineExceeded):
		c.JSON(http.StatusGone, gin.H{"error": "Le délai de retour est dépassé"})
	case errors.Is(err, returns.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Articles ou quantités invalides", "details": err.Error()})
	case errors.Is(err, returns.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, returns.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Un retour est déjà en cours pour cette commande"})
	case errors.Is(err, returns.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Ce retour ne vous appartient pas"})
	case errors.Is(err, returns.ErrExternalService):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Service externe indisponible, réessayez plus tard"})
	default:
		log.Printf("❌ Erreur interne retours: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne"})
	}
}

// CreateReturn crée une demande de retour pour une commande livrée
func CreateReturn(c *gin.Context) {
	var req struct {
		OrderID      string                      `json:"order_id" binding:"required"`
		Items        []returns.CreateReturnItem  `json:"items" binding:"required"`
		Reason       string                      `json:"reason" binding:"required,min=5,max=500"`
		CustomerNote string                      `json:"customer_note" binding:"max=1000"`
		GuestEmail   string                      `json:"guest_email"` // commandes invité
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	orderUUID, err := uuid.Parse(req.OrderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	userID := c.GetString("user_id")
	email := c.GetString("email")
	if email == "" {
		email = req.GuestEmail
	}
	if userID == "" && email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentification ou e-mail de commande requis"})
		return
	}

	ret, err := Svc.CreateReturn(returns.CreateReturnInput{
		OrderID:      gocql.UUID(orderUUID),
		UserID:       userID,
		Email:        email,
		Items:        req.Items,
		Reason:       req.Reason,
		CustomerNote: req.CustomerNote,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Demande de retour créée",
		"return":  ret,
	})
}

// GetMyReturns liste les retours du client connecté
func GetMyReturns(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}

	list, err := Svc.ListForUser(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"returns": list,
		"count":   len(list),
	})
}

// callerIdentity extrait (user_id, email) : context JWT pour un client
// connecté, query param email pour un invité
func callerIdentity(c *gin.Context) (string, string) {
	userID := c.GetString("user_id")
	email := c.GetString("email")
	if email == "" {
		email = c.Query("email")
	}
	return userID, email
}

// GetReturn renvoie le détail d'un retour. C'est la cible du poller client :
// la lecture passe par le cache Redis à TTL court.
func GetReturn(c *gin.Context) {
	returnUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID retour invalide"})
		return
	}

	userID, email := callerIdentity(c)
	isAdmin := c.GetString("role") == "admin"

	// Cache d'abord — la vérification de propriété s'applique aussi à la
	// version en cache
	if cached, ok := cache.GetCachedReturn(returnUUID.String()); ok {
		if authorized(cached, userID, email, isAdmin) {
			c.JSON(http.StatusOK, gin.H{"return": cached})
			return
		}
	}

	ret, err := Svc.GetReturnFor(gocql.UUID(returnUUID), userID, email, isAdmin)
	if err != nil {
		respondError(c, err)
		return
	}

	cache.SetCachedReturn(ret)
	c.JSON(http.StatusOK, gin.H{"return": ret})
}

func authorized(ret *models.ReturnRequest, userID, email string, isAdmin bool) bool {
	if isAdmin {
		return true
	}
	if userID != "" && ret.UserID == userID {
		return true
	}
	return ret.UserID == "" && email != "" && strings.EqualFold(ret.Email, email)
}

// CreateLabelPayment crée (ou réutilise) le paiement des frais d'étiquette.
// Répond au cas des retours approuvés restés sans paiement : l'appel est
// idempotent et peut être relancé à volonté.
func CreateLabelPayment(c *gin.Context) {
	returnUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID retour invalide"})
		return
	}

	userID, email := callerIdentity(c)
	isAdmin := c.GetString("role") == "admin"

	if _, err := Svc.GetReturnFor(gocql.UUID(returnUUID), userID, email, isAdmin); err != nil {
		respondError(c, err)
		return
	}

	intentID, clientSecret, err := Svc.CreateLabelFeePayment(gocql.UUID(returnUUID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"paymentId":    intentID,
		"clientSecret": clientSecret,
	})
}
