// Package units normalizes a catalog product into the unit choices a line can
// carry and reprices a line when its unit changes.
package units

import (
	"errors"
	"strings"

	"github.com/odyssey-erp/odyssey-entry/internal/calc"
	"github.com/odyssey-erp/odyssey-entry/internal/catalog"
)

// MainUnitKey identifies the main unit option when the product has no unit id.
const MainUnitKey = "main"

// Option is the canonical unit choice stored on a line.
type Option struct {
	ID            string   `json:"id"`
	UnitID        string   `json:"unitId"`
	MultiUnitID   string   `json:"multiUnitId,omitempty"`
	Name          string   `json:"name"`
	Factor        float64  `json:"factor"`
	Price         float64  `json:"price"`
	Retail        float64  `json:"retail"`
	Wholesale     float64  `json:"wholesale"`
	SpecialPrice1 float64  `json:"specialPrice1"`
	SpecialPrice2 float64  `json:"specialPrice2"`
	Serials       []string `json:"serials,omitempty"`
}

// IsMain reports whether the option is the product's main unit.
func (o Option) IsMain() bool {
	return o.MultiUnitID == ""
}

// ErrUnknownUnit indicates a requested unit the product does not offer.
var ErrUnknownUnit = errors.New("units: unit not available for product")

// Options lists the unit choices for a product, main unit first. Packaged
// units are only offered when multiUnit is enabled and the product does not
// track batches.
func Options(p catalog.Product, multiUnit bool) []Option {
	mainID := p.UnitID
	if mainID == "" {
		mainID = MainUnitKey
	}
	opts := []Option{{
		ID:            mainID,
		UnitID:        p.UnitID,
		Name:          p.UnitName,
		Factor:        1,
		Price:         p.PurchasePrice,
		Retail:        p.Retail,
		Wholesale:     p.Wholesale,
		SpecialPrice1: p.SpecialPrice1,
		SpecialPrice2: p.SpecialPrice2,
		Serials:       p.Serials,
	}}
	if !multiUnit || p.BatchTracked {
		return opts
	}
	for _, mu := range p.MultiUnits {
		factor := mu.Factor
		if factor <= 0 {
			factor = 1
		}
		opts = append(opts, Option{
			ID:            mu.ID,
			UnitID:        mu.UnitID,
			MultiUnitID:   mu.ID,
			Name:          mu.UnitName,
			Factor:        factor,
			Price:         calc.Round2(p.PurchasePrice * factor),
			Retail:        orFallback(mu.Retail, p.Retail),
			Wholesale:     orFallback(mu.Wholesale, p.Wholesale),
			SpecialPrice1: orFallback(mu.SpecialPrice1, p.SpecialPrice1),
			SpecialPrice2: orFallback(mu.SpecialPrice2, p.SpecialPrice2),
			Serials:       mu.Serials,
		})
	}
	return opts
}

// Pick returns the option with the given id, or the first option when id is
// empty.
func Pick(opts []Option, id string) (Option, error) {
	if len(opts) == 0 {
		return Option{}, ErrUnknownUnit
	}
	if id == "" {
		return opts[0], nil
	}
	for _, o := range opts {
		if o.ID == id {
			return o, nil
		}
	}
	return Option{}, ErrUnknownUnit
}

// Resolve lists the product's options and picks the requested one.
func Resolve(p catalog.Product, requestedID string, multiUnit bool) (Option, []Option, error) {
	opts := Options(p, multiUnit)
	o, err := Pick(opts, requestedID)
	if err != nil {
		return Option{}, opts, err
	}
	return o, opts, nil
}

// ResolveSerial finds the unit that owns a scanned serial. The main unit wins
// on an exact match, then packaged units are scanned in order; without any
// match the first option is used.
func ResolveSerial(p catalog.Product, serial string, multiUnit bool) (Option, []Option) {
	opts := Options(p, multiUnit)
	serial = strings.TrimSpace(serial)
	if serial != "" {
		if containsSerial(opts[0].Serials, serial) {
			return opts[0], opts
		}
		for _, o := range opts[1:] {
			if containsSerial(o.Serials, serial) {
				return o, opts
			}
		}
	}
	return opts[0], opts
}

// Reseed replaces the pricing of a line with the option's values. Quantity
// goes back to one and any discount is dropped; the caller re-derives.
func Reseed(f calc.Figures, o Option) calc.Figures {
	f.Quantity = 1
	f.DiscPercent = 0
	f.DiscAmount = 0
	f.DiscBasis = calc.DiscountByPercent
	f.Price = o.Price
	f.Retail = o.Retail
	f.Wholesale = o.Wholesale
	f.SpecialPrice1 = o.SpecialPrice1
	f.SpecialPrice2 = o.SpecialPrice2
	f.ProfitPercent = calc.ProfitFrom(o.Price, o.Retail)
	return f
}

func orFallback(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

func containsSerial(serials []string, serial string) bool {
	for _, s := range serials {
		if s == serial {
			return true
		}
	}
	return false
}
