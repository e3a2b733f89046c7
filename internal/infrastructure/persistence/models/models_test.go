package models

import (
	"testing"
	"time"

	"github.com/crm/backend/internal/domain/crm"
	"github.com/crm/backend/internal/domain/schema"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_CRMCatalog(t *testing.T) {
	require.NoError(t, Verify(crm.Catalog()))
}

func TestVerify_ReportsDrift(t *testing.T) {
	reg, err := schema.NewBuilder().
		Entity(schema.Entity{
			Name:       crm.Campaign,
			Table:      "campaign",
			Collection: "Campaign",
			Fields: []schema.Field{
				schema.String("name", 50, true),
				schema.String("slogan", 20, false),
				schema.Decimal("budget", false),
			},
		}).
		Entity(schema.Entity{
			Name:         "Ghost",
			Table:        "ghosts",
			Collection:   "Ghost",
			Capabilities: []schema.Capability{schema.CapabilityIdentity},
			Fields:       []schema.Field{schema.String("name", 10, true)},
		}).
		Build()
	require.NoError(t, err)

	err = Verify(reg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `Campaign: model table "campaigns", want "campaign"`)
	assert.Contains(t, msg, `Campaign: column "name" size 100, want 50`)
	assert.Contains(t, msg, `Campaign: missing column "slogan"`)
	assert.Contains(t, msg, `Campaign: column "budget" not null = true, want false`)
	assert.Contains(t, msg, "Ghost: no persistence model")
}

func TestBindings_CoverCatalog(t *testing.T) {
	reg := crm.Catalog()
	assert.ElementsMatch(t, reg.EntityNames(), Bound())

	for _, e := range reg.Entities() {
		b, ok := For(e.Name)
		require.True(t, ok, e.Name)
		m := b.New()
		assert.Equal(t, e.Name, m.EntityName())
		assert.Equal(t, e.Table, m.TableName())
		assert.Zero(t, m.GetID())

		attrs := m.Attributes()
		assert.Contains(t, attrs, e.PrimaryKey)
		for _, name := range e.FieldNames() {
			assert.Contains(t, attrs, name, "%s.%s", e.Name, name)
		}
	}

	_, ok := For("Ghost")
	assert.False(t, ok)
}

func TestModel_AssignAndAttributes(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m := &CampaignModel{}
	m.Assign(schema.Record{
		"name":       "Spring Sale",
		"start_date": start,
		"budget":     decimal.NewFromInt(5000),
		"end_date":   nil,
		"unknown":    "ignored",
	})

	assert.Equal(t, "Spring Sale", m.Name)
	assert.Equal(t, start, m.StartDate)
	assert.Nil(t, m.EndDate)
	assert.True(t, decimal.NewFromInt(5000).Equal(m.Budget))

	attrs := m.Attributes()
	assert.Equal(t, "Spring Sale", attrs["name"])
	assert.Nil(t, attrs["end_date"])

	t.Run("optional values can be cleared", func(t *testing.T) {
		c := &CustomerModel{}
		c.Assign(schema.Record{"email": "a@example.com"})
		require.NotNil(t, c.Email)
		assert.Equal(t, "a@example.com", *c.Email)

		c.Assign(schema.Record{"email": nil})
		assert.Nil(t, c.Email)
	})
}

func TestEmployeeModel_Principal(t *testing.T) {
	var p crm.Principal = &EmployeeModel{BaseModel: BaseModel{ID: 7}, Name: "Ada", Position: "CTO"}
	assert.Equal(t, int64(7), p.PrincipalID())
	assert.Equal(t, "Ada", p.PrincipalName())
	assert.Empty(t, p.PrincipalEmail())

	email := "ada@example.com"
	p = &EmployeeModel{Email: &email}
	assert.Equal(t, email, p.PrincipalEmail())
}

func TestGoName(t *testing.T) {
	tests := map[string]string{
		"campaign":         "Campaign",
		"contact_name":     "ContactName",
		"customer_id":      "CustomerID",
		"CampaignLeadList": "CampaignLeadList",
		"order":            "Order",
	}
	for in, want := range tests {
		assert.Equal(t, want, GoName(in), in)
	}
}

func TestConstraintName(t *testing.T) {
	reg := crm.Catalog()

	tests := map[string]string{
		"customer_orders":       "fk_customers_order_list",
		"campaign_leads":        "fk_campaigns_campaign_lead_list",
		"product_order_details": "fk_products_order_detail_list",
	}
	for relName, want := range tests {
		rel, ok := reg.Relationship(relName)
		require.True(t, ok, relName)
		got, err := ConstraintName(rel)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
