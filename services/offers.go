package services

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"pricewatch/models"
)

// OfferKind classifies the promotional signal of an observation.
type OfferKind int

const (
	NoOffer OfferKind = iota
	PackageOffer
	DiscountOffer
)

func (k OfferKind) String() string {
	switch k {
	case PackageOffer:
		return "package"
	case DiscountOffer:
		return "discount"
	default:
		return "none"
	}
}

// Offer is an observation seen as a promotion. Package offers carry Quantity
// and Price; discount offers carry DiscountPct.
type Offer struct {
	Kind        OfferKind
	Model       string
	Retailer    string
	Quantity    int
	Price       float64
	DiscountPct int
}

// Classify returns the offer an observation represents. Multi-unit bundles
// win over markdowns; ok is false when there is no promotional signal.
func Classify(o models.Observation) (offer Offer, ok bool) {
	if o.Quantity > 1 {
		return Offer{
			Kind:     PackageOffer,
			Model:    o.Model,
			Retailer: o.Retailer,
			Quantity: o.Quantity,
			Price:    o.Price,
		}, true
	}
	pct, ok := DiscountPct(o)
	if !ok {
		return Offer{}, false
	}
	return Offer{
		Kind:        DiscountOffer,
		Model:       o.Model,
		Retailer:    o.Retailer,
		DiscountPct: int(roundHalfEven(pct, 0)),
	}, true
}

// DiscountPct returns (discount_price - price) / discount_price * 100,
// unrounded. The denominator is the listed discount price, not the regular
// price; downstream consumers depend on this exact figure.
// TODO(pricing): confirm with the sheet owners whether the denominator should be Precio.
func DiscountPct(o models.Observation) (float64, bool) {
	if o.DiscountPrice <= 0 {
		return 0, false
	}
	return (o.DiscountPrice - o.Price) / o.DiscountPrice * 100, true
}

// roundHalfEven rounds x to the given number of decimals, ties to even.
func roundHalfEven(x float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(x*scale) / scale
}

func packageLabel(quantity int, price float64, model, retailer string) string {
	return fmt.Sprintf("%d for $%s on %s (%s)",
		quantity, decimal.NewFromFloat(price).Truncate(0).String(), model, retailer)
}

func discountLabel(pct float64, model, retailer string) string {
	return fmt.Sprintf("%s%% off %s at %s", decimal.NewFromFloat(pct).String(), model, retailer)
}

func seriesLabel(model, retailer string) string {
	return model + " (" + retailer + ")"
}

func rankKey(model, retailer string) string {
	return model + " - " + retailer
}
