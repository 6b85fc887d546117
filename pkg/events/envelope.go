package events

import "time"

const TypeAppointmentBooked = "appointment.booked"

type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}
