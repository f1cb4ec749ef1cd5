package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"atelia_back_end/internal/database"
	"atelia_back_end/internal/models"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const returnsIndex = "returns"

//
// --- INDEXATION DANS ELASTICSEARCH ---
//

// ElasticIndexer implémente returns.Indexer
type ElasticIndexer struct{}

func NewElasticIndexer() *ElasticIndexer {
	return &ElasticIndexer{}
}

func (e *ElasticIndexer) IndexReturn(ret *models.ReturnRequest) {
	IndexReturn(ret)
}

// IndexReturn (ré)indexe un retour pour la recherche back-office.
// Appelé à chaque transition de statut ; jamais bloquant.
func IndexReturn(ret *models.ReturnRequest) {
	if database.Elastic == nil {
		log.Println("⚠️ Elastic non initialisé, impossible d'indexer le retour", ret.ID)
		return
	}

	data, _ := json.Marshal(ret)
	req := esapi.IndexRequest{
		Index:      returnsIndex,
		DocumentID: ret.ID.String(),
		Body:       bytes.NewReader(data),
		Refresh:    "true", // visible immédiatement dans le back-office
	}

	res, err := req.Do(context.Background(), database.Elastic)
	if err != nil {
		log.Println("❌ Erreur envoi Elastic:", err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("⚠️ Elastic a renvoyé une erreur pour le retour %s: %s", ret.ID, res.String())
	} else {
		log.Printf("✅ Retour indexé dans Elasticsearch: %s (%s)", ret.ID, ret.Status)
	}
}

//
// --- RECHERCHE DANS ELASTICSEARCH ---
//

// SearchReturns recherche des retours par statut, commande et texte libre
// sur le motif de retour (back-office)
func SearchReturns(status, orderID, query string) ([]map[string]interface{}, error) {
	if database.Elastic == nil {
		return nil, errors.New("client Elasticsearch non initialisé")
	}

	must := []map[string]interface{}{}
	if status != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"status.keyword": status},
		})
	}
	if orderID != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"order_id.keyword": orderID},
		})
	}
	if query != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"reason", "customer_note", "email"},
			},
		})
	}

	q := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("erreur encodage requête: %v", err)
	}

	req := esapi.SearchRequest{
		Index: []string{returnsIndex},
		Body:  &buf,
	}
	res, err := req.Do(context.Background(), database.Elastic)
	if err != nil {
		return nil, fmt.Errorf("erreur requête Elastic: %v", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		json.NewDecoder(res.Body).Decode(&e)
		log.Printf("❌ Elasticsearch erreur: %+v", e)
		return nil, errors.New("index non trouvé ou vide")
	}

	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("erreur décodage JSON: %v", err)
	}

	hitsData, ok := r["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("réponse Elastic invalide (pas de hits)")
	}

	hitsArray, ok := hitsData["hits"].([]interface{})
	if !ok {
		return nil, errors.New("réponse Elastic invalide (hits malformés)")
	}

	var results []map[string]interface{}
	for _, h := range hitsArray {
		hit, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		if source, ok := hit["_source"].(map[string]interface{}); ok {
			results = append(results, source)
		}
	}
	return results, nil
}
