// Package batch collapses saved entry lines into inventory batches.
package batch

import (
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-entry/internal/calc"
)

const (
	noBatchSuffix = "-NO-BATCH"
	noExpiry      = "no-expiry"
)

// Line is the subset of an entry line needed to build batches.
type Line struct {
	ProductID     string
	BatchTracked  bool
	Price         float64
	ExpiryDate    string
	Quantity      float64
	DiscAmount    float64
	VatAmount     float64
	Gross         float64
	Total         float64
	BatchNumber   string
	MultiUnitID   string
	Retail        float64
	Wholesale     float64
	SpecialPrice1 float64
	SpecialPrice2 float64
}

// Batch is one inventory lot produced by a save.
type Batch struct {
	Key           string  `json:"key"`
	ProductID     string  `json:"productId"`
	PurchasePrice float64 `json:"purchasePrice"`
	ExpiryDate    string  `json:"expiryDate,omitempty"`
	TotalQuantity float64 `json:"totalQuantity"`
	DiscAmount    float64 `json:"discAmount"`
	VatAmount     float64 `json:"vatAmount"`
	Gross         float64 `json:"gross"`
	Total         float64 `json:"total"`
	BatchNumber   string  `json:"batchNumber,omitempty"`
	MultiUnitID   string  `json:"multiUnitId,omitempty"`
	Retail        float64 `json:"retail"`
	Wholesale     float64 `json:"wholesale"`
	SpecialPrice1 float64 `json:"specialPrice1"`
	SpecialPrice2 float64 `json:"specialPrice2"`
	LineCount     int     `json:"lineCount"`

	averaged bool
	costSum  float64
}

// Key returns the grouping key of a line.
func Key(l Line) string {
	if !l.BatchTracked {
		return l.ProductID + noBatchSuffix
	}
	expiry := strings.TrimSpace(l.ExpiryDate)
	if expiry == "" {
		expiry = noExpiry
	}
	return l.ProductID + "-" + strconv.FormatFloat(l.Price, 'f', -1, 64) + "-" + expiry
}

// Group merges lines sharing a key. Lines without a product are skipped and
// batches come out in the order their key was first seen.
func Group(lines []Line) []Batch {
	index := make(map[string]int, len(lines))
	var out []Batch
	for _, l := range lines {
		if l.ProductID == "" {
			continue
		}
		key := Key(l)
		i, ok := index[key]
		if !ok {
			b := Batch{
				Key:           key,
				ProductID:     l.ProductID,
				PurchasePrice: l.Price,
				BatchNumber:   l.BatchNumber,
				MultiUnitID:   l.MultiUnitID,
				Retail:        l.Retail,
				Wholesale:     l.Wholesale,
				SpecialPrice1: l.SpecialPrice1,
				SpecialPrice2: l.SpecialPrice2,
			}
			if l.BatchTracked {
				b.ExpiryDate = strings.TrimSpace(l.ExpiryDate)
			} else {
				b.averaged = true
			}
			out = append(out, b)
			i = len(out) - 1
			index[key] = i
		}
		merge(&out[i], l)
	}
	for i := range out {
		b := &out[i]
		b.TotalQuantity = calc.Round2(b.TotalQuantity)
		b.DiscAmount = calc.Round2(b.DiscAmount)
		b.VatAmount = calc.Round2(b.VatAmount)
		b.Gross = calc.Round2(b.Gross)
		b.Total = calc.Round2(b.Total)
	}
	return out
}

func merge(b *Batch, l Line) {
	b.TotalQuantity += l.Quantity
	b.DiscAmount += l.DiscAmount
	b.VatAmount += l.VatAmount
	b.Gross += l.Gross
	b.Total += l.Total
	b.LineCount++
	if !b.averaged {
		return
	}
	// running weighted average; an empty quantity keeps the previous cost
	b.costSum += l.Price * l.Quantity
	if b.TotalQuantity != 0 {
		b.PurchasePrice = b.costSum / b.TotalQuantity
	}
}
