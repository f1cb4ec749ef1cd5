package retours

import (
	"context"
	"log"
	"net/http"
	"time"

	"atelia_back_end/internal/cache"
	"atelia_back_end/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Autoriser toutes les origines (à ajuster en production)
		return true
	},
}

// ReturnWebSocket pousse les transitions de statut d'un retour en temps réel,
// alternative au polling de GET /api/returns/:id
func ReturnWebSocket(c *gin.Context) {
	returnUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID retour invalide"})
		return
	}

	userID, email := callerIdentity(c)
	isAdmin := c.GetString("role") == "admin"

	// Vérifier la propriété avant l'upgrade
	ret, err := Svc.GetReturnFor(gocql.UUID(returnUUID), userID, email, isAdmin)
	if err != nil {
		respondError(c, err)
		return
	}

	// Upgrade vers WebSocket
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Erreur upgrade WebSocket: %v", err)
		return
	}
	defer conn.Close()

	ctx := context.Background()

	// S'abonner au canal Redis de ce retour
	pubsub := database.Redis.Subscribe(ctx, cache.StatusChannel(ret.ID.String()))
	defer pubsub.Close()

	ch := pubsub.Channel()

	// État initial à la connexion
	conn.WriteJSON(map[string]interface{}{
		"type":   "connected",
		"status": ret.Status,
	})

	// Boucle d'écoute
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}

			// Renvoyer le détail complet, pas seulement le statut publié
			current, err := Svc.GetReturnFor(gocql.UUID(returnUUID), userID, email, isAdmin)
			response := map[string]interface{}{
				"type":   "status_updated",
				"status": msg.Payload,
			}
			if err == nil {
				response["return"] = current
			}

			if err := conn.WriteJSON(response); err != nil {
				log.Printf("❌ Erreur envoi WebSocket: %v", err)
				return
			}
		case <-time.After(30 * time.Second):
			// Ping pour garder la connexion active
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
