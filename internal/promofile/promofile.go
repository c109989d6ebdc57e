// Package promofile reads and writes gzipped JSON-lines files of promo code
// definitions and imports them into the promo registry.
package promofile

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"promo-orders/internal/model"

	"github.com/klauspost/pgzip"
)

// Definition is one promo code line in a definition file.
type Definition struct {
	Code            string                `json:"code"`
	DiscountPercent int                   `json:"discountPercent"`
	MaxUsage        int                   `json:"maxUsage"`
	MaxUsagePerUser int                   `json:"maxUsagePerUser"`
	ValidFrom       *time.Time            `json:"validFrom,omitempty"`
	ValidUntil      *time.Time            `json:"validUntil,omitempty"`
	Status          model.PromoCodeStatus `json:"status,omitempty"`
}

// Request converts the definition into a registry create request.
func (d Definition) Request() *model.CreatePromoCodeRequest {
	return &model.CreatePromoCodeRequest{
		Code:            d.Code,
		DiscountPercent: d.DiscountPercent,
		MaxUsage:        d.MaxUsage,
		MaxUsagePerUser: d.MaxUsagePerUser,
		ValidFrom:       d.ValidFrom,
		ValidUntil:      d.ValidUntil,
		Status:          d.Status,
	}
}

// Loader defines the interface for loading definition files.
type Loader interface {
	// Load reads a gzipped definition file.
	Load(ctx context.Context, path string) ([]Definition, error)
}

// checkEvery is how many lines are read between context checks.
const checkEvery = 10_000

// decode reads gzipped JSON lines from r. Blank lines are skipped.
func decode(ctx context.Context, r io.Reader) ([]Definition, error) {
	zr, err := pgzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var defs []Definition
	line := 0
	for scanner.Scan() {
		line++
		if line%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var def Definition
		if err := json.Unmarshal([]byte(text), &def); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		defs = append(defs, def)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}

	return defs, nil
}

// Encode writes defs to w as gzipped JSON lines.
func Encode(w io.Writer, defs []Definition) error {
	zw := pgzip.NewWriter(w)
	enc := json.NewEncoder(zw)
	for _, def := range defs {
		if err := enc.Encode(def); err != nil {
			_ = zw.Close()
			return fmt.Errorf("failed to encode definition %s: %w", def.Code, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush gzip writer: %w", err)
	}
	return nil
}

// WriteFile writes defs to path as a gzipped definition file.
func WriteFile(path string, defs []Definition) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Encode(f, defs); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Sample builds n definitions valid from now for 30 days, with varied
// discounts and caps.
func Sample(n int, now time.Time) []Definition {
	from := now.UTC().Truncate(time.Second)
	until := from.Add(model.DefaultPromoValidity)

	defs := make([]Definition, 0, n)
	for i := range n {
		defs = append(defs, Definition{
			Code:            fmt.Sprintf("SAMPLE%04d", i+1),
			DiscountPercent: 5 + (i*5)%50,
			MaxUsage:        100 * (1 + i%10),
			MaxUsagePerUser: 1 + i%5,
			ValidFrom:       &from,
			ValidUntil:      &until,
			Status:          model.PromoCodeActive,
		})
	}
	return defs
}
