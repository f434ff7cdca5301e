package product

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/kit-checkout/internal"
	productDatamodel "github.com/frahmantamala/kit-checkout/internal/core/datamodel/product"
	"github.com/shopspring/decimal"
)

const (
	KitEssencialID = "kit-essencial"
	KitLiderID     = "kit_lider_transformada"

	defaultCategory = "Estudos Bíblicos"
)

type Kit struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Category            string          `json:"category"`
	Price               decimal.Decimal `json:"price"`
	Currency            string          `json:"currency"`
	ReferencePrefix     string          `json:"-"`
	StatementDescriptor string          `json:"-"`
	DeliveryURL         string          `json:"-"`
	Premium             bool            `json:"premium"`
	IsActive            bool            `json:"-"`
}

// KitType is the short label carried in payment metadata ("essencial", "lider").
func (k *Kit) KitType() string {
	t := strings.TrimPrefix(k.ReferencePrefix, "kit-")
	t = strings.TrimPrefix(t, "kit_")
	return t
}

// Source names the checkout page the payment originated from.
func (k *Kit) Source() string {
	return "checkout-" + k.KitType()
}

// ExternalReference builds the merchant reference sent to the provider,
// reusing the prefix's own separator (kit-essencial-<ms>, kit_lider_<ms>).
func (k *Kit) ExternalReference(unixMillis int64) string {
	sep := "-"
	if strings.Contains(k.ReferencePrefix, "_") && !strings.Contains(k.ReferencePrefix, "-") {
		sep = "_"
	}
	return fmt.Sprintf("%s%s%d", k.ReferencePrefix, sep, unixMillis)
}

func (k *Kit) ToResponse() KitResponse {
	return KitResponse{
		ID:       k.ID,
		Title:    k.Title,
		Price:    k.Price.StringFixed(2),
		Currency: k.Currency,
		Premium:  k.Premium,
	}
}

// DefaultKits is the catalog sold by the funnel when no kits are configured.
func DefaultKits() []*Kit {
	return []*Kit{
		{
			ID:              KitEssencialID,
			Title:           "Kit Essencial - Estudos Bíblicos Femininos",
			Description:     "Acesso ao Kit Essencial de Estudos Bíblicos Femininos",
			Category:        defaultCategory,
			Price:           decimal.RequireFromString("15.00"),
			Currency:        productDatamodel.CurrencyBRL,
			ReferencePrefix: "kit-essencial",
			DeliveryURL:     "https://drive.google.com/drive/folders/kit-essencial",
			IsActive:        true,
		},
		{
			ID:                  KitLiderID,
			Title:               "Kit Líder Transformada",
			Description:         "Kit completo para líderes de estudos bíblicos femininos",
			Category:            defaultCategory,
			Price:               decimal.RequireFromString("24.90"),
			Currency:            productDatamodel.CurrencyBRL,
			ReferencePrefix:     "kit_lider",
			StatementDescriptor: "PVEB KITLIDER",
			DeliveryURL:         "https://drive.google.com/drive/folders/kit-lider-transformada",
			Premium:             true,
			IsActive:            true,
		},
	}
}

// KitsFromConfig converts configured kits, falling back to DefaultKits when none are set.
func KitsFromConfig(cfgs []internal.KitConfig) ([]*Kit, error) {
	if len(cfgs) == 0 {
		return DefaultKits(), nil
	}

	kits := make([]*Kit, 0, len(cfgs))
	for _, c := range cfgs {
		price, err := decimal.NewFromString(c.Price)
		if err != nil {
			return nil, fmt.Errorf("kit %s: invalid price %q: %w", c.ID, c.Price, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("kit %s: price must be positive", c.ID)
		}

		prefix := c.ReferencePrefix
		if prefix == "" {
			prefix = c.ID
		}
		category := c.Category
		if category == "" {
			category = defaultCategory
		}

		kits = append(kits, &Kit{
			ID:                  c.ID,
			Title:               c.Title,
			Description:         c.Description,
			Category:            category,
			Price:               price,
			Currency:            productDatamodel.CurrencyBRL,
			ReferencePrefix:     prefix,
			StatementDescriptor: c.StatementDescriptor,
			DeliveryURL:         c.DeliveryURL,
			Premium:             c.Premium,
			IsActive:            true,
		})
	}
	return kits, nil
}

func ToDataModel(k *Kit) *productDatamodel.Kit {
	return &productDatamodel.Kit{
		ID:                  k.ID,
		Title:               k.Title,
		Description:         k.Description,
		Category:            k.Category,
		Price:               k.Price,
		Currency:            k.Currency,
		ReferencePrefix:     k.ReferencePrefix,
		StatementDescriptor: k.StatementDescriptor,
		DeliveryURL:         k.DeliveryURL,
		Premium:             k.Premium,
		IsActive:            k.IsActive,
	}
}

func FromDataModel(k *productDatamodel.Kit) *Kit {
	return &Kit{
		ID:                  k.ID,
		Title:               k.Title,
		Description:         k.Description,
		Category:            k.Category,
		Price:               k.Price,
		Currency:            k.Currency,
		ReferencePrefix:     k.ReferencePrefix,
		StatementDescriptor: k.StatementDescriptor,
		DeliveryURL:         k.DeliveryURL,
		Premium:             k.Premium,
		IsActive:            k.IsActive,
	}
}
