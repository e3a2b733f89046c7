package crm

import (
	"testing"

	"github.com/crm/backend/internal/domain/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog(t *testing.T) {
	reg, err := NewCatalog()
	require.NoError(t, err)

	assert.Equal(t, []string{
		Campaign, Customer, Department, Employee, Lead, Product, Supplier,
		CampaignLead, EmployeeDepartment, Order, ProductSupplier, OrderDetail,
	}, reg.EntityNames())
	assert.Len(t, reg.Relationships(), 9)
}

func TestCatalog_IsShared(t *testing.T) {
	assert.Same(t, Catalog(), Catalog())
}

func TestCatalog_RequiredFields(t *testing.T) {
	reg := Catalog()

	tests := []struct {
		entity   string
		required []string
	}{
		{Campaign, []string{"name", "start_date", "budget"}},
		{Customer, []string{"name", "balance"}},
		{Department, []string{"name"}},
		{Employee, []string{"name", "position"}},
		{Lead, []string{"name", "interest_level"}},
		{Product, []string{"name", "price"}},
		{Supplier, []string{"name"}},
		{CampaignLead, []string{"campaign_id", "lead_id"}},
		{EmployeeDepartment, []string{"employee_id", "department_id"}},
		{Order, []string{"customer_id", "status"}},
		{ProductSupplier, []string{"product_id", "supplier_id"}},
		{OrderDetail, []string{"order_id", "product_id", "quantity", "unit_price"}},
	}

	for _, tt := range tests {
		t.Run(tt.entity, func(t *testing.T) {
			e, ok := reg.Entity(tt.entity)
			require.True(t, ok)
			assert.Equal(t, tt.required, e.RequiredFields())
			assert.Equal(t, "id", e.PrimaryKey)
		})
	}
}

func TestCatalog_JunctionsResolveBothParents(t *testing.T) {
	reg := Catalog()

	junctions := map[string][2]string{
		CampaignLead:       {Campaign, Lead},
		EmployeeDepartment: {Employee, Department},
		ProductSupplier:    {Product, Supplier},
		OrderDetail:        {Order, Product},
	}

	for junction, parents := range junctions {
		t.Run(junction, func(t *testing.T) {
			e, ok := reg.Entity(junction)
			require.True(t, ok)
			assert.True(t, e.Junction)

			rels := reg.ParentRelationships(junction)
			got := make([]string, len(rels))
			for i, r := range rels {
				got[i] = r.Parent
			}
			assert.ElementsMatch(t, parents[:], got)
		})
	}
}

func TestCatalog_ManyToManyNavigations(t *testing.T) {
	reg := Catalog()

	tests := []struct {
		entity, nav, target, through string
	}{
		{Campaign, "Leads", Lead, CampaignLead},
		{Lead, "Campaigns", Campaign, CampaignLead},
		{Employee, "Departments", Department, EmployeeDepartment},
		{Department, "Employees", Employee, EmployeeDepartment},
		{Product, "Suppliers", Supplier, ProductSupplier},
		{Supplier, "Products", Product, ProductSupplier},
		{Order, "Products", Product, OrderDetail},
		{Product, "Orders", Order, OrderDetail},
	}

	for _, tt := range tests {
		t.Run(tt.entity+"."+tt.nav, func(t *testing.T) {
			nav, err := reg.Navigate(tt.entity, tt.nav)
			require.NoError(t, err)
			assert.Equal(t, schema.ManyToManyKind, nav.Kind)
			assert.Equal(t, tt.target, nav.Target)
			assert.Equal(t, tt.through, nav.Through)
		})
	}
}

func TestCatalog_BackReferencesMatchCollections(t *testing.T) {
	reg := Catalog()

	for _, rel := range reg.Relationships() {
		t.Run(rel.Name, func(t *testing.T) {
			down, err := reg.Navigate(rel.Parent, rel.Collection)
			require.NoError(t, err)
			up, err := reg.Navigate(rel.Child, rel.BackReference)
			require.NoError(t, err)

			assert.Equal(t, rel.Child, down.Target)
			assert.Equal(t, rel.Parent, up.Target)
			assert.Equal(t, down.Name, up.Inverse)
			assert.Equal(t, up.Name, down.Inverse)
		})
	}
}

func TestCatalog_DeletePolicies(t *testing.T) {
	reg := Catalog()

	restrict := map[string]bool{"customer_orders": true, "product_order_details": true}
	for _, rel := range reg.Relationships() {
		want := schema.Cascade
		if restrict[rel.Name] {
			want = schema.Restrict
		}
		assert.Equal(t, want, rel.OnDelete, rel.Name)
	}
}

func TestCatalog_IdentityCapability(t *testing.T) {
	reg := Catalog()

	for _, name := range reg.EntityNames() {
		assert.Equal(t, name == Employee, reg.HasCapability(name, schema.CapabilityIdentity), name)
	}
}

func TestCatalog_DependencyOrder(t *testing.T) {
	order := Catalog().DependencyOrder()
	require.Len(t, order, 12)

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	assert.Less(t, pos[Customer], pos[Order])
	assert.Less(t, pos[Order], pos[OrderDetail])
	assert.Less(t, pos[Product], pos[OrderDetail])
	assert.Less(t, pos[Campaign], pos[CampaignLead])
}
