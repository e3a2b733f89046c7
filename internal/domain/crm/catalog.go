// Package crm declares the CRM data model: campaigns and their leads,
// customers and their orders, products and their suppliers, employees and
// their departments.
package crm

import (
	"sync"

	"github.com/crm/backend/internal/domain/schema"
)

// Entity names
const (
	Campaign           = "Campaign"
	Customer           = "Customer"
	Department         = "Department"
	Employee           = "Employee"
	Lead               = "Lead"
	Product            = "Product"
	Supplier           = "Supplier"
	CampaignLead       = "CampaignLead"
	EmployeeDepartment = "EmployeeDepartment"
	Order              = "Order"
	ProductSupplier    = "ProductSupplier"
	OrderDetail        = "OrderDetail"
)

var (
	catalogOnce sync.Once
	catalog     *schema.Registry
)

// Catalog returns the process-wide CRM registry.
// It panics if the declarations are invalid, which is a programming error.
func Catalog() *schema.Registry {
	catalogOnce.Do(func() {
		reg, err := NewCatalog()
		if err != nil {
			panic(err)
		}
		catalog = reg
	})
	return catalog
}

// NewCatalog builds and validates a fresh CRM registry
func NewCatalog() (*schema.Registry, error) {
	b := schema.NewBuilder()

	b.Entity(schema.Entity{
		Name:        Campaign,
		Table:       "campaigns",
		Collection:  "Campaign",
		Description: "Marketing campaigns.",
		Fields: []schema.Field{
			schema.String("name", 100, true),
			schema.DateTime("start_date", true),
			schema.DateTime("end_date", false),
			schema.Decimal("budget", true),
		},
	})
	b.Entity(schema.Entity{
		Name:        Customer,
		Table:       "customers",
		Collection:  "Customer",
		Description: "Customers with contact details and balance.",
		Fields: []schema.Field{
			schema.String("name", 100, true),
			schema.String("email", 100, false),
			schema.String("phone", 20, false),
			schema.Text("address", false),
			schema.Decimal("balance", true),
			schema.DateTime("created_at", false),
		},
	})
	b.Entity(schema.Entity{
		Name:        Department,
		Table:       "departments",
		Collection:  "Department",
		Description: "Departments within the company.",
		Fields: []schema.Field{
			schema.String("name", 100, true),
			schema.Text("description", false),
		},
	})
	b.Entity(schema.Entity{
		Name:         Employee,
		Table:        "employees",
		Collection:   "Employee",
		Description:  "Employees and their position in the company.",
		Capabilities: []schema.Capability{schema.CapabilityIdentity},
		Fields: []schema.Field{
			schema.String("name", 100, true),
			schema.String("position", 100, true),
			schema.String("email", 100, false),
		},
	})
	b.Entity(schema.Entity{
		Name:        Lead,
		Table:       "leads",
		Collection:  "Lead",
		Description: "Sales leads for potential customers.",
		Fields: []schema.Field{
			schema.String("name", 100, true),
			schema.String("email", 100, false),
			schema.String("phone", 20, false),
			schema.Integer("interest_level", true),
		},
	})
	b.Entity(schema.Entity{
		Name:        Product,
		Table:       "products",
		Collection:  "Product",
		Description: "Products the company offers.",
		Fields: []schema.Field{
			schema.String("name", 100, true),
			schema.Text("description", false),
			schema.Decimal("price", true),
		},
	})
	b.Entity(schema.Entity{
		Name:        Supplier,
		Table:       "suppliers",
		Collection:  "Supplier",
		Description: "Suppliers providing products.",
		Fields: []schema.Field{
			schema.String("name", 100, true),
			schema.String("contact_name", 100, false),
			schema.String("phone", 20, false),
			schema.Text("address", false),
		},
	})
	b.Entity(schema.Entity{
		Name:        CampaignLead,
		Table:       "campaign_leads",
		Collection:  "CampaignLead",
		Description: "Leads captured through campaigns.",
		Junction:    true,
		Fields: []schema.Field{
			schema.Reference("campaign_id", Campaign, true),
			schema.Reference("lead_id", Lead, true),
		},
	})
	b.Entity(schema.Entity{
		Name:        EmployeeDepartment,
		Table:       "employee_departments",
		Collection:  "EmployeeDepartment",
		Description: "Department membership of employees.",
		Junction:    true,
		Fields: []schema.Field{
			schema.Reference("employee_id", Employee, true),
			schema.Reference("department_id", Department, true),
		},
	})
	b.Entity(schema.Entity{
		Name:        Order,
		Table:       "orders",
		Collection:  "Order",
		Description: "Customer orders.",
		Fields: []schema.Field{
			schema.Reference("customer_id", Customer, true),
			schema.DateTime("order_date", false),
			schema.String("status", 50, true),
		},
	})
	b.Entity(schema.Entity{
		Name:        ProductSupplier,
		Table:       "product_suppliers",
		Collection:  "ProductSupplier",
		Description: "Links products to their suppliers.",
		Junction:    true,
		Fields: []schema.Field{
			schema.Reference("product_id", Product, true),
			schema.Reference("supplier_id", Supplier, true),
		},
	})
	b.Entity(schema.Entity{
		Name:        OrderDetail,
		Table:       "order_details",
		Collection:  "OrderDetail",
		Description: "Order lines: one product within an order.",
		Junction:    true,
		Fields: []schema.Field{
			schema.Reference("order_id", Order, true),
			schema.Reference("product_id", Product, true),
			schema.Integer("quantity", true),
			schema.Decimal("unit_price", true),
		},
	})

	relate(b, "campaign_leads", Campaign, CampaignLead, "campaign_id", "CampaignLeadList", "campaign", schema.Cascade)
	relate(b, "lead_campaigns", Lead, CampaignLead, "lead_id", "CampaignLeadList", "lead", schema.Cascade)
	relate(b, "customer_orders", Customer, Order, "customer_id", "OrderList", "customer", schema.Restrict)
	relate(b, "department_employees", Department, EmployeeDepartment, "department_id", "EmployeeDepartmentList", "department", schema.Cascade)
	relate(b, "employee_departments", Employee, EmployeeDepartment, "employee_id", "EmployeeDepartmentList", "employee", schema.Cascade)
	relate(b, "product_suppliers", Product, ProductSupplier, "product_id", "ProductSupplierList", "product", schema.Cascade)
	relate(b, "supplier_products", Supplier, ProductSupplier, "supplier_id", "ProductSupplierList", "supplier", schema.Cascade)
	relate(b, "order_details", Order, OrderDetail, "order_id", "OrderDetailList", "order", schema.Cascade)
	relate(b, "product_order_details", Product, OrderDetail, "product_id", "OrderDetailList", "product", schema.Restrict)

	b.ManyToMany(schema.ManyToMany{
		Name: "campaign_lead", Left: Campaign, Right: Lead, Through: CampaignLead,
		LeftCollection: "Leads", RightCollection: "Campaigns",
	})
	b.ManyToMany(schema.ManyToMany{
		Name: "employee_department", Left: Employee, Right: Department, Through: EmployeeDepartment,
		LeftCollection: "Departments", RightCollection: "Employees",
	})
	b.ManyToMany(schema.ManyToMany{
		Name: "product_supplier", Left: Product, Right: Supplier, Through: ProductSupplier,
		LeftCollection: "Suppliers", RightCollection: "Products",
	})
	b.ManyToMany(schema.ManyToMany{
		Name: "order_product", Left: Order, Right: Product, Through: OrderDetail,
		LeftCollection: "Products", RightCollection: "Orders",
	})

	return b.Build()
}

func relate(b *schema.Builder, name, parent, child, fk, collection, backRef string, onDelete schema.DeletePolicy) {
	b.Relationship(schema.Relationship{
		Name:          name,
		Parent:        parent,
		Child:         child,
		ForeignKey:    fk,
		Collection:    collection,
		BackReference: backRef,
		OnDelete:      onDelete,
	})
}
