package service

import (
	"time"

	"github.com/egannguyen/energystack-storefront/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DemoCatalog returns the products loaded into an empty catalog at startup. Creation times are
// spaced a second apart so the listing order matches the slice order reversed.
func DemoCatalog(now time.Time) []entity.Product {
	seed := []struct {
		name, description, price string
		category                 entity.Category
		stock                    int
		image                    string
	}{
		{"SolarMax Pro 400W Panel", "High-efficiency monocrystalline solar panel with 21% efficiency rating. Perfect for residential installations.", "299.99", entity.CategorySolarPanels, 50, "/solar-panel-installation.png"},
		{"PowerInvert 5000W Hybrid Inverter", "Smart hybrid inverter with battery backup capability and WiFi monitoring.", "1299.99", entity.CategoryInverters, 25, "/solar-inverter.png"},
		{"EnergyStore 10kWh Lithium Battery", "Long-lasting lithium iron phosphate battery with 6000+ cycle life.", "2499.99", entity.CategoryBatteries, 15, "/solar-battery.png"},
		{"SolarMount Roof Kit", "Complete mounting solution for tile and metal roofs. Includes all hardware.", "199.99", entity.CategoryAccessories, 100, "/solar-mounting-kit.png"},
		{"EcoPanel 350W Monocrystalline", "Cost-effective solar panel with excellent performance in low light conditions.", "249.99", entity.CategorySolarPanels, 75, "/eco-solar-panel.png"},
		{"SmartCharge MPPT Controller", "60A MPPT charge controller with LCD display and smartphone app.", "189.99", entity.CategoryAccessories, 40, "/mppt-controller.png"},
	}

	products := make([]entity.Product, 0, len(seed))
	for i, s := range seed {
		created := now.Add(time.Duration(i-len(seed)) * time.Second)
		products = append(products, entity.Product{
			ID:          uuid.NewString(),
			Name:        s.name,
			Description: s.description,
			Price:       decimal.RequireFromString(s.price),
			Category:    s.category,
			Stock:       s.stock,
			Images:      []string{s.image},
			CreatedAt:   created,
			UpdatedAt:   created,
		})
	}
	return products
}
