package models

import (
	"time"

	"github.com/crm/backend/internal/domain/crm"
	"github.com/crm/backend/internal/domain/schema"
	"github.com/shopspring/decimal"
)

func init() {
	register(bind[CampaignModel](crm.Campaign))
	register(bind[CustomerModel](crm.Customer))
	register(bind[DepartmentModel](crm.Department))
	register(bind[EmployeeModel](crm.Employee))
	register(bind[LeadModel](crm.Lead))
	register(bind[ProductModel](crm.Product))
	register(bind[SupplierModel](crm.Supplier))
	register(bind[CampaignLeadModel](crm.CampaignLead))
	register(bind[EmployeeDepartmentModel](crm.EmployeeDepartment))
	register(bind[OrderModel](crm.Order))
	register(bind[ProductSupplierModel](crm.ProductSupplier))
	register(bind[OrderDetailModel](crm.OrderDetail))
}

// CampaignModel is the persistence model for marketing campaigns.
type CampaignModel struct {
	BaseModel
	Name      string          `gorm:"size:100;not null"`
	StartDate time.Time       `gorm:"not null"`
	EndDate   *time.Time
	Budget    decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	CampaignLeadList []CampaignLeadModel `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (CampaignModel) TableName() string { return "campaigns" }

// EntityName returns the registry entity name
func (CampaignModel) EntityName() string { return crm.Campaign }

// Attributes returns the column values keyed by field name
func (m *CampaignModel) Attributes() schema.Record {
	return schema.Record{
		"id":         m.ID,
		"name":       m.Name,
		"start_date": m.StartDate,
		"end_date":   optTime(m.EndDate),
		"budget":     m.Budget,
	}
}

// Assign copies normalized record values onto the model
func (m *CampaignModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "name":
			m.Name = asString(v)
		case "start_date":
			m.StartDate = asTime(v)
		case "end_date":
			m.EndDate = asOptTime(v)
		case "budget":
			m.Budget = asDecimal(v)
		}
	}
}

// CustomerModel is the persistence model for customers.
type CustomerModel struct {
	BaseModel
	Name      string          `gorm:"size:100;not null"`
	Email     *string         `gorm:"size:100"`
	Phone     *string         `gorm:"size:20"`
	Address   *string         `gorm:"type:text"`
	Balance   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt *time.Time      `gorm:"autoCreateTime:false"`

	OrderList []OrderModel `gorm:"foreignKey:CustomerID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string { return "customers" }

// EntityName returns the registry entity name
func (CustomerModel) EntityName() string { return crm.Customer }

// Attributes returns the column values keyed by field name
func (m *CustomerModel) Attributes() schema.Record {
	return schema.Record{
		"id":         m.ID,
		"name":       m.Name,
		"email":      optString(m.Email),
		"phone":      optString(m.Phone),
		"address":    optString(m.Address),
		"balance":    m.Balance,
		"created_at": optTime(m.CreatedAt),
	}
}

// Assign copies normalized record values onto the model
func (m *CustomerModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "name":
			m.Name = asString(v)
		case "email":
			m.Email = asOptString(v)
		case "phone":
			m.Phone = asOptString(v)
		case "address":
			m.Address = asOptString(v)
		case "balance":
			m.Balance = asDecimal(v)
		case "created_at":
			m.CreatedAt = asOptTime(v)
		}
	}
}

// DepartmentModel is the persistence model for departments.
type DepartmentModel struct {
	BaseModel
	Name        string  `gorm:"size:100;not null"`
	Description *string `gorm:"type:text"`

	EmployeeDepartmentList []EmployeeDepartmentModel `gorm:"foreignKey:DepartmentID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (DepartmentModel) TableName() string { return "departments" }

// EntityName returns the registry entity name
func (DepartmentModel) EntityName() string { return crm.Department }

// Attributes returns the column values keyed by field name
func (m *DepartmentModel) Attributes() schema.Record {
	return schema.Record{
		"id":          m.ID,
		"name":        m.Name,
		"description": optString(m.Description),
	}
}

// Assign copies normalized record values onto the model
func (m *DepartmentModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "name":
			m.Name = asString(v)
		case "description":
			m.Description = asOptString(v)
		}
	}
}

// EmployeeModel is the persistence model for employees.
// Employees carry the identity capability and implement crm.Principal.
type EmployeeModel struct {
	BaseModel
	Name     string  `gorm:"size:100;not null"`
	Position string  `gorm:"size:100;not null"`
	Email    *string `gorm:"size:100"`

	EmployeeDepartmentList []EmployeeDepartmentModel `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (EmployeeModel) TableName() string { return "employees" }

// EntityName returns the registry entity name
func (EmployeeModel) EntityName() string { return crm.Employee }

// Attributes returns the column values keyed by field name
func (m *EmployeeModel) Attributes() schema.Record {
	return schema.Record{
		"id":       m.ID,
		"name":     m.Name,
		"position": m.Position,
		"email":    optString(m.Email),
	}
}

// Assign copies normalized record values onto the model
func (m *EmployeeModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "name":
			m.Name = asString(v)
		case "position":
			m.Position = asString(v)
		case "email":
			m.Email = asOptString(v)
		}
	}
}

// PrincipalID implements crm.Principal
func (m *EmployeeModel) PrincipalID() int64 { return m.ID }

// PrincipalName implements crm.Principal
func (m *EmployeeModel) PrincipalName() string { return m.Name }

// PrincipalEmail implements crm.Principal. Empty when no email is on file.
func (m *EmployeeModel) PrincipalEmail() string {
	if m.Email == nil {
		return ""
	}
	return *m.Email
}

// LeadModel is the persistence model for sales leads.
type LeadModel struct {
	BaseModel
	Name          string  `gorm:"size:100;not null"`
	Email         *string `gorm:"size:100"`
	Phone         *string `gorm:"size:20"`
	InterestLevel int64   `gorm:"not null"`

	CampaignLeadList []CampaignLeadModel `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (LeadModel) TableName() string { return "leads" }

// EntityName returns the registry entity name
func (LeadModel) EntityName() string { return crm.Lead }

// Attributes returns the column values keyed by field name
func (m *LeadModel) Attributes() schema.Record {
	return schema.Record{
		"id":             m.ID,
		"name":           m.Name,
		"email":          optString(m.Email),
		"phone":          optString(m.Phone),
		"interest_level": m.InterestLevel,
	}
}

// Assign copies normalized record values onto the model
func (m *LeadModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "name":
			m.Name = asString(v)
		case "email":
			m.Email = asOptString(v)
		case "phone":
			m.Phone = asOptString(v)
		case "interest_level":
			m.InterestLevel = asInt64(v)
		}
	}
}

// ProductModel is the persistence model for products.
type ProductModel struct {
	BaseModel
	Name        string          `gorm:"size:100;not null"`
	Description *string         `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	ProductSupplierList []ProductSupplierModel `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	OrderDetailList     []OrderDetailModel     `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string { return "products" }

// EntityName returns the registry entity name
func (ProductModel) EntityName() string { return crm.Product }

// Attributes returns the column values keyed by field name
func (m *ProductModel) Attributes() schema.Record {
	return schema.Record{
		"id":          m.ID,
		"name":        m.Name,
		"description": optString(m.Description),
		"price":       m.Price,
	}
}

// Assign copies normalized record values onto the model
func (m *ProductModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "name":
			m.Name = asString(v)
		case "description":
			m.Description = asOptString(v)
		case "price":
			m.Price = asDecimal(v)
		}
	}
}

// SupplierModel is the persistence model for suppliers.
type SupplierModel struct {
	BaseModel
	Name        string  `gorm:"size:100;not null"`
	ContactName *string `gorm:"size:100"`
	Phone       *string `gorm:"size:20"`
	Address     *string `gorm:"type:text"`

	ProductSupplierList []ProductSupplierModel `gorm:"foreignKey:SupplierID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string { return "suppliers" }

// EntityName returns the registry entity name
func (SupplierModel) EntityName() string { return crm.Supplier }

// Attributes returns the column values keyed by field name
func (m *SupplierModel) Attributes() schema.Record {
	return schema.Record{
		"id":           m.ID,
		"name":         m.Name,
		"contact_name": optString(m.ContactName),
		"phone":        optString(m.Phone),
		"address":      optString(m.Address),
	}
}

// Assign copies normalized record values onto the model
func (m *SupplierModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "name":
			m.Name = asString(v)
		case "contact_name":
			m.ContactName = asOptString(v)
		case "phone":
			m.Phone = asOptString(v)
		case "address":
			m.Address = asOptString(v)
		}
	}
}

// CampaignLeadModel links a lead to the campaign that captured it.
type CampaignLeadModel struct {
	BaseModel
	CampaignID int64 `gorm:"not null;index"`
	LeadID     int64 `gorm:"not null;index"`

	Campaign *CampaignModel `gorm:"foreignKey:CampaignID"`
	Lead     *LeadModel     `gorm:"foreignKey:LeadID"`
}

// TableName returns the table name for GORM
func (CampaignLeadModel) TableName() string { return "campaign_leads" }

// EntityName returns the registry entity name
func (CampaignLeadModel) EntityName() string { return crm.CampaignLead }

// Attributes returns the column values keyed by field name
func (m *CampaignLeadModel) Attributes() schema.Record {
	return schema.Record{
		"id":          m.ID,
		"campaign_id": m.CampaignID,
		"lead_id":     m.LeadID,
	}
}

// Assign copies normalized record values onto the model
func (m *CampaignLeadModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "campaign_id":
			m.CampaignID = asInt64(v)
		case "lead_id":
			m.LeadID = asInt64(v)
		}
	}
}

// EmployeeDepartmentModel records an employee's membership in a department.
type EmployeeDepartmentModel struct {
	BaseModel
	EmployeeID   int64 `gorm:"not null;index"`
	DepartmentID int64 `gorm:"not null;index"`

	Employee   *EmployeeModel   `gorm:"foreignKey:EmployeeID"`
	Department *DepartmentModel `gorm:"foreignKey:DepartmentID"`
}

// TableName returns the table name for GORM
func (EmployeeDepartmentModel) TableName() string { return "employee_departments" }

// EntityName returns the registry entity name
func (EmployeeDepartmentModel) EntityName() string { return crm.EmployeeDepartment }

// Attributes returns the column values keyed by field name
func (m *EmployeeDepartmentModel) Attributes() schema.Record {
	return schema.Record{
		"id":            m.ID,
		"employee_id":   m.EmployeeID,
		"department_id": m.DepartmentID,
	}
}

// Assign copies normalized record values onto the model
func (m *EmployeeDepartmentModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "employee_id":
			m.EmployeeID = asInt64(v)
		case "department_id":
			m.DepartmentID = asInt64(v)
		}
	}
}

// OrderModel is the persistence model for customer orders.
type OrderModel struct {
	BaseModel
	CustomerID int64      `gorm:"not null;index"`
	OrderDate  *time.Time
	Status     string     `gorm:"size:50;not null"`

	Customer        *CustomerModel     `gorm:"foreignKey:CustomerID"`
	OrderDetailList []OrderDetailModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string { return "orders" }

// EntityName returns the registry entity name
func (OrderModel) EntityName() string { return crm.Order }

// Attributes returns the column values keyed by field name
func (m *OrderModel) Attributes() schema.Record {
	return schema.Record{
		"id":          m.ID,
		"customer_id": m.CustomerID,
		"order_date":  optTime(m.OrderDate),
		"status":      m.Status,
	}
}

// Assign copies normalized record values onto the model
func (m *OrderModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "customer_id":
			m.CustomerID = asInt64(v)
		case "order_date":
			m.OrderDate = asOptTime(v)
		case "status":
			m.Status = asString(v)
		}
	}
}

// ProductSupplierModel links a product to one of its suppliers.
type ProductSupplierModel struct {
	BaseModel
	ProductID  int64 `gorm:"not null;index"`
	SupplierID int64 `gorm:"not null;index"`

	Product  *ProductModel  `gorm:"foreignKey:ProductID"`
	Supplier *SupplierModel `gorm:"foreignKey:SupplierID"`
}

// TableName returns the table name for GORM
func (ProductSupplierModel) TableName() string { return "product_suppliers" }

// EntityName returns the registry entity name
func (ProductSupplierModel) EntityName() string { return crm.ProductSupplier }

// Attributes returns the column values keyed by field name
func (m *ProductSupplierModel) Attributes() schema.Record {
	return schema.Record{
		"id":          m.ID,
		"product_id":  m.ProductID,
		"supplier_id": m.SupplierID,
	}
}

// Assign copies normalized record values onto the model
func (m *ProductSupplierModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "product_id":
			m.ProductID = asInt64(v)
		case "supplier_id":
			m.SupplierID = asInt64(v)
		}
	}
}

// OrderDetailModel is one order line: a product within an order.
type OrderDetailModel struct {
	BaseModel
	OrderID   int64           `gorm:"not null;index"`
	ProductID int64           `gorm:"not null;index"`
	Quantity  int64           `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	Order   *OrderModel   `gorm:"foreignKey:OrderID"`
	Product *ProductModel `gorm:"foreignKey:ProductID"`
}

// TableName returns the table name for GORM
func (OrderDetailModel) TableName() string { return "order_details" }

// EntityName returns the registry entity name
func (OrderDetailModel) EntityName() string { return crm.OrderDetail }

// Attributes returns the column values keyed by field name
func (m *OrderDetailModel) Attributes() schema.Record {
	return schema.Record{
		"id":         m.ID,
		"order_id":   m.OrderID,
		"product_id": m.ProductID,
		"quantity":   m.Quantity,
		"unit_price": m.UnitPrice,
	}
}

// Assign copies normalized record values onto the model
func (m *OrderDetailModel) Assign(rec schema.Record) {
	for k, v := range rec {
		switch k {
		case "order_id":
			m.OrderID = asInt64(v)
		case "product_id":
			m.ProductID = asInt64(v)
		case "quantity":
			m.Quantity = asInt64(v)
		case "unit_price":
			m.UnitPrice = asDecimal(v)
		}
	}
}
