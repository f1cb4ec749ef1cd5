package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"atelia_back_end/internal/database"
	"atelia_back_end/internal/models"

	"github.com/minio/minio-go/v7"
)

// LabelArchiver copie le PDF d'étiquette Sendcloud vers MinIO : les URL
// d'étiquette côté transporteur expirent, l'archive interne non.
// Implémente returns.Archiver.
type LabelArchiver struct {
	HTTP *http.Client
}

func NewLabelArchiver() *LabelArchiver {
	return &LabelArchiver{
		HTTP: &http.Client{Timeout: 30 * time.Second},
	}
}

func labelsBucket() string {
	if b := os.Getenv("MINIO_LABELS_BUCKET"); b != "" {
		return b
	}
	return "return-labels"
}

// ArchiveLabel télécharge le PDF et l'archive. Renvoie l'URL interne.
func (a *LabelArchiver) ArchiveLabel(ret *models.ReturnRequest, label *models.ReturnLabel) (string, error) {
	if database.MinIO == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}

	resp, err := a.HTTP.Get(label.LabelURL)
	if err != nil {
		return "", fmt.Errorf("téléchargement étiquette: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("téléchargement étiquette: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	bucket := labelsBucket()
	objectName := fmt.Sprintf("%s/etiquette_retour.pdf", ret.ID)

	_, err = database.MinIO.PutObject(context.Background(), bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return "", fmt.Errorf("archivage MinIO: %w", err)
	}

	url := fmt.Sprintf("http://%s/%s/%s", os.Getenv("MINIO_ENDPOINT"), bucket, objectName)
	return url, nil
}
