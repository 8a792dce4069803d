// Package vdp fetches vehicle-detail pages and extracts normalized vehicle
// records through a layered fallback chain.
package vdp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/quirkauto/inventory-crawler/internal/inventory"
	"github.com/quirkauto/inventory-crawler/internal/metrics"
	"github.com/quirkauto/inventory-crawler/internal/robots"
)

// Client fetches page bodies. Satisfied by *fetch.Client.
type Client interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Parser turns a VDP URL into a best-effort vehicle record. Completeness
// judgment is deferred entirely to the validator; Parse fails only when the
// page cannot be fetched or the robots policy blocks it.
type Parser struct {
	client Client
	guard  robots.Policy
	logger *zap.Logger
}

// NewParser builds a Parser using the shared transport and robots guard.
func NewParser(client Client, guard robots.Policy, logger *zap.Logger) *Parser {
	return &Parser{
		client: client,
		guard:  guard,
		logger: logger,
	}
}

// Parse fetches vdpURL and extracts a vehicle record. A non-empty override
// pins the stock type known from the list that produced this URL, taking
// precedence over anything inferred from the page.
func (p *Parser) Parse(ctx context.Context, vdpURL string, override inventory.StockType) (inventory.Vehicle, error) {
	if !p.guard.Allowed(ctx, vdpURL) {
		return inventory.Vehicle{}, fmt.Errorf("%s: %w", vdpURL, robots.ErrDisallowed)
	}
	html, err := p.client.Fetch(ctx, vdpURL)
	if err != nil {
		return inventory.Vehicle{}, err
	}

	vehicle := Extract(html, vdpURL)
	if override != "" {
		vehicle.StockType = override
	}
	metrics.VehiclesParsed.Inc()
	p.logger.Debug("Parsed vehicle detail page",
		zap.String("url", vdpURL),
		zap.String("vin", vehicle.VIN),
		zap.String("stock_type", string(vehicle.StockType)),
	)
	return vehicle, nil
}
