package cache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"atelia_back_end/internal/database"
	"atelia_back_end/internal/models"
)

// TTL court : le détail d'un retour est relu en boucle par le poller client,
// mais une transition doit être visible vite
const ReturnCacheTTL = 5 * time.Second

func returnKey(id string) string {
	return "return:" + id
}

// StatusChannel est le canal pub/sub notifiant les transitions d'un retour
func StatusChannel(id string) string {
	return "return:status:" + id
}

// GetCachedReturn récupère un retour depuis Redis, ou (nil, false)
func GetCachedReturn(id string) (*models.ReturnRequest, bool) {
	if database.Redis == nil {
		return nil, false
	}
	ctx := context.Background()

	data, err := database.Redis.Get(ctx, returnKey(id)).Result()
	if err != nil {
		return nil, false
	}

	var ret models.ReturnRequest
	if err := json.Unmarshal([]byte(data), &ret); err != nil {
		return nil, false
	}
	return &ret, true
}

// SetCachedReturn met un retour en cache
func SetCachedReturn(ret *models.ReturnRequest) {
	if database.Redis == nil {
		return
	}
	ctx := context.Background()

	data, err := json.Marshal(ret)
	if err != nil {
		return
	}
	database.Redis.Set(ctx, returnKey(ret.ID.String()), data, ReturnCacheTTL)
}

// RedisBus implémente returns.CacheBus : invalidation du cache de détail et
// publication des transitions pour le canal WebSocket
type RedisBus struct{}

func NewRedisBus() *RedisBus {
	return &RedisBus{}
}

func (b *RedisBus) InvalidateReturn(id string) {
	if database.Redis == nil {
		return
	}
	ctx := context.Background()
	if err := database.Redis.Del(ctx, returnKey(id)).Err(); err != nil {
		log.Printf("⚠️ Invalidation cache retour %s: %v", id, err)
	}
}

func (b *RedisBus) PublishStatus(id string, status models.ReturnStatus) {
	if database.Redis == nil {
		return
	}
	ctx := context.Background()
	if err := database.Redis.Publish(ctx, StatusChannel(id), string(status)).Err(); err != nil {
		log.Printf("⚠️ Publication statut retour %s: %v", id, err)
	}
}
