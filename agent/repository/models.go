package repository

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

type customerModel struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID          string    `bun:"id,pk"`
	TenantID    string    `bun:"tenant_id,notnull,unique:customers_tenant_phone"`
	Phone       string    `bun:"phone,notnull,unique:customers_tenant_phone"`
	DisplayName string    `bun:"display_name,notnull,default:''"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type staffModel struct {
	bun.BaseModel `bun:"table:staff,alias:s"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Active    bool      `bun:"active,notnull,default:true"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type appointmentModel struct {
	bun.BaseModel `bun:"table:appointments,alias:a"`

	ID              string    `bun:"id,pk"`
	TenantID        string    `bun:"tenant_id,notnull"`
	CustomerID      string    `bun:"customer_id,notnull"`
	StaffID         string    `bun:"staff_id,nullzero"`
	ScheduledAt     time.Time `bun:"scheduled_at,notnull"`
	SlotDate        string    `bun:"slot_date,type:varchar(10),notnull"`
	SlotLabel       string    `bun:"slot_label,notnull"`
	Status          string    `bun:"status,notnull"`
	ProductInterest string    `bun:"product_interest,notnull,default:''"`
	Notes           string    `bun:"notes,notnull,default:''"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`

	StaffName string `bun:"staff_name,scanonly"`
}

func (m appointmentModel) toContract() contractx.Appointment {
	return contractx.Appointment{
		ID:              m.ID,
		TenantID:        m.TenantID,
		CustomerID:      m.CustomerID,
		StaffID:         m.StaffID,
		StaffName:       m.StaffName,
		ScheduledAt:     m.ScheduledAt.UTC(),
		SlotDate:        m.SlotDate,
		SlotLabel:       m.SlotLabel,
		Status:          contractx.AppointmentStatus(m.Status),
		ProductInterest: m.ProductInterest,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt.UTC(),
	}
}

// memoryFactModel is created by Migrate with raw DDL since the vector
// dimension is only known at runtime.
type memoryFactModel struct {
	bun.BaseModel `bun:"table:memory_facts,alias:m"`

	ID         string          `bun:"id,pk"`
	CustomerID string          `bun:"customer_id,notnull"`
	Text       string          `bun:"text,notnull"`
	Source     string          `bun:"source,notnull"`
	Confidence float64         `bun:"confidence,notnull"`
	Embedding  pgvector.Vector `bun:"embedding,notnull"`
	CreatedAt  time.Time       `bun:"created_at,notnull,default:current_timestamp"`

	Distance float64 `bun:"distance,scanonly"`
}

func (m memoryFactModel) toContract() contractx.MemoryFact {
	return contractx.MemoryFact{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Text:       m.Text,
		Source:     contractx.MemorySource(m.Source),
		Confidence: m.Confidence,
		Embedding:  m.Embedding.Slice(),
		CreatedAt:  m.CreatedAt.UTC(),
	}
}
