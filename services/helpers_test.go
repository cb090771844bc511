package services

import (
	"time"

	"pricewatch/models"
)

func mustTime(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ob(ts, retailer, model string, price, discountPrice float64, qty int) models.Observation {
	return models.Observation{
		Timestamp:     mustTime(ts),
		Retailer:      retailer,
		Model:         model,
		ProductName:   model + " 500ml",
		Price:         price,
		DiscountPrice: discountPrice,
		Quantity:      qty,
	}
}
