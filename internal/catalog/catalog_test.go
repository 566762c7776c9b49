package catalog

import (
	"testing"

	"github.com/ariefcatur/chat-storefront/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixture = []Product{
	{
		ID: "0d6f5b8e-5f37-4c6e-9a57-2b1f0d3e4a11", Brand: "Nike", Model: "Air Jordan 1", SKU: "AJ1-CHI",
		Colorway: "Chicago", Category: "basketball", PriceCents: 89000000,
		Variants: []Variant{{ID: "v-aj1-40", Size: "40", Stock: 0}, {ID: "v-aj1-42", Size: "42", Stock: 2}},
	},
	{
		ID: "8c2c7f7e-7c1b-4b0e-b3d5-6b9e2e0f9c22", Brand: "Nike", Model: "Air Jordan 4", SKU: "AJ4-BRD",
		Colorway: "Bred", Category: "basketball", PriceCents: 99000000,
		Variants: []Variant{{ID: "v-aj4-42", Size: "42", Stock: 0}},
	},
	{
		ID: "f3a9e1c4-2d6b-4a8f-8e7c-1b5d9c0a3e33", Brand: "Adidas", Model: "Samba", SKU: "SMB-WHT",
		Colorway: "White Black", Category: "lifestyle", PriceCents: 52000000,
		Variants: []Variant{{ID: "v-smb-38", Size: "38", Stock: 1}, {ID: "v-smb-41.5", Size: "41.5", Stock: 4}},
	},
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name   string
		ref    string
		wantID string
	}{
		{"exact brand and model", "Nike Air Jordan 4", fixture[1].ID},
		{"exact model", "samba", fixture[2].ID},
		{"stop words stripped", "las Samba para", fixture[2].ID},
		{"partial prefers stock", "jordan", fixture[0].ID},
		{"colorway substring", "bred", fixture[1].ID},
		{"sku substring", "smb-wht", fixture[2].ID},
		{"uuid exact", fixture[1].ID, fixture[1].ID},
		{"uuid upper case", "F3A9E1C4-2D6B-4A8F-8E7C-1B5D9C0A3E33", fixture[2].ID},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := Resolve(fixture, tc.ref)
			require.True(t, ok)
			assert.Equal(t, tc.wantID, p.ID)
		})
	}
}

func TestResolve_NoMatch(t *testing.T) {
	for _, ref := range []string{
		"",
		"las",
		"de la x",
		"puma suede",
		"11111111-2222-3333-4444-555555555555",
	} {
		_, ok := Resolve(fixture, ref)
		assert.False(t, ok, ref)
	}
}

func TestResolve_ExactBeatsStockedPartial(t *testing.T) {
	products := []Product{
		{ID: "a", Brand: "Nike", Model: "Dunk", SKU: "DNK", Variants: []Variant{{Size: "42", Stock: 0}}},
		{ID: "b", Brand: "Nike", Model: "Dunk Low", SKU: "DNK-LO", Variants: []Variant{{Size: "42", Stock: 5}}},
	}

	p, ok := Resolve(products, "dunk")
	require.True(t, ok)
	assert.Equal(t, "a", p.ID)
}

func TestCheck(t *testing.T) {
	hit := Check(fixture[2], "41.5")
	assert.True(t, hit.Available)
	assert.Equal(t, 4, hit.Stock)
	assert.Equal(t, "v-smb-41.5", hit.VariantID)

	miss := Check(fixture[0], "40")
	assert.False(t, miss.Available)
	assert.Equal(t, []orders.Size{"42"}, miss.AvailableSizes)

	unknown := Check(fixture[2], "44")
	assert.False(t, unknown.Available)
	assert.Equal(t, []orders.Size{"38", "41.5"}, unknown.AvailableSizes)
}

func TestInStockSizes_NumericOrder(t *testing.T) {
	p := Product{Variants: []Variant{
		{Size: "42", Stock: 1}, {Size: "M", Stock: 1}, {Size: "9.5", Stock: 1}, {Size: "40", Stock: 0},
	}}
	assert.Equal(t, []orders.Size{"9.5", "42", "M"}, p.InStockSizes())
}

func TestFilter(t *testing.T) {
	assert.Len(t, Filter(fixture, "", ""), 2, "out of stock products are hidden")
	assert.Len(t, Filter(fixture, "jordan", ""), 1)
	assert.Len(t, Filter(fixture, "", "LIFESTYLE"), 1)
	assert.Empty(t, Filter(fixture, "samba", "basketball"))
}
