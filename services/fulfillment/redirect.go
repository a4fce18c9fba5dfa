package fulfillment

import "plancosmique/models"

// Redirect targets.
const (
	RouteLibrary          = "/bibliotheque"
	RouteConsultations    = "/consultations"
	routeConsultationBase = "/consultations/"
)

// RedirectTarget decides where the user lands after the countdown. Fixed
// priority, not a heuristic: a book with a download URL always wins over a
// bare consultation id.
func RedirectTarget(productType, downloadURL, consultationID string) string {
	if productType == models.ProductTypeBook && downloadURL != "" {
		return RouteLibrary
	}
	if consultationID != "" {
		return routeConsultationBase + consultationID
	}
	return RouteConsultations
}
