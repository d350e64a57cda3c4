package carrier

import (
	"strings"

	"github.com/vietddude/recourse/internal/core/domain"
)

// statusKeywords maps vendor status text fragments onto the closed status
// set. Order matters: pickup-point phrases often contain delivery vocabulary
// ("remis en point relais"), so availability is checked first.
var statusKeywords = []struct {
	status   domain.TrackingStatus
	keywords []string
}{
	{domain.StatusAvailableAtPoint, []string{
		"point relais", "point retrait", "disponible en point",
		"bureau de poste", "en attente de retrait",
		"pickup point", "available for collection", "awaiting collection",
	}},
	{domain.StatusDelivered, []string{
		"livré", "livre", "delivered", "remis", "distribué", "distribue",
		"livraison effectuée",
	}},
	{domain.StatusException, []string{
		"incident", "exception", "perdu", "lost", "avarie", "damaged",
		"endommagé", "retour", "returned", "refus", "refused", "anomalie",
	}},
	{domain.StatusInTransit, []string{
		"transit", "en cours", "acheminement", "pris en charge",
		"expédié", "expedie", "shipped", "en livraison", "out for delivery",
		"préparation", "tri", "départ", "arrivé",
	}},
}

// NormalizeStatus maps carrier-specific free text ("Livré", "remis",
// "disponible en point relais", ...) onto the closed status set. Unmatched
// text normalizes to UNKNOWN; this function never fails.
func NormalizeStatus(text string) domain.TrackingStatus {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return domain.StatusUnknown
	}
	for _, group := range statusKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(s, kw) {
				return group.status
			}
		}
	}
	return domain.StatusUnknown
}
