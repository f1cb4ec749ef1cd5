package retours

import (
	"testing"

	"atelia_back_end/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAuthorized(t *testing.T) {
	owned := &models.ReturnRequest{UserID: "user-1", Email: "client@example.com"}

	assert.True(t, authorized(owned, "user-1", "", false))
	assert.False(t, authorized(owned, "user-2", "", false))
	assert.True(t, authorized(owned, "", "", true)) // admin

	// Retour lié à un compte : l'e-mail seul ne suffit pas
	assert.False(t, authorized(owned, "", "client@example.com", false))
}

func TestAuthorizedInvite(t *testing.T) {
	guest := &models.ReturnRequest{UserID: "", Email: "client@example.com"}

	assert.True(t, authorized(guest, "", "client@example.com", false))
	// La casse de l'e-mail ne compte pas, comme côté moteur
	assert.True(t, authorized(guest, "", "Client@Example.COM", false))
	assert.False(t, authorized(guest, "", "intrus@example.com", false))
	assert.False(t, authorized(guest, "", "", false))
}
