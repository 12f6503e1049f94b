package ports

import "context"

// IsochroneProvider resolves a travel-time catchment population for a
// point. It is an external collaborator: on failure the
// caller substitutes radial population at 0.8*minutes km and flags the
// feature as estimated.
type IsochroneProvider interface {
	CatchmentPopulation(ctx context.Context, lat, lng float64, minutes int) (population int64, err error)
}
