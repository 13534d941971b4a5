package entity

import "time"

type DeliveryType string

const (
	DeliveryInternal DeliveryType = "internal"
	DeliveryExternal DeliveryType = "external"
	DeliveryPickup   DeliveryType = "pickup"
)

func (t DeliveryType) Valid() bool {
	return t == DeliveryInternal || t == DeliveryExternal || t == DeliveryPickup
}

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// ExternalService is a third-party courier.
type ExternalService string

const (
	ExternalRiddy          ExternalService = "riddy"
	ExternalYummy          ExternalService = "yummy"
	ExternalDjangoDelivery ExternalService = "django_delivery"
)

func (s ExternalService) Valid() bool {
	return s == ExternalRiddy || s == ExternalYummy || s == ExternalDjangoDelivery
}

type Delivery struct {
	ID                  int64           `json:"id"`
	SubOrderID          int64           `json:"sub_order_id"`
	Type                DeliveryType    `json:"delivery_type"`
	Status              DeliveryStatus  `json:"status"`
	ExternalService     ExternalService `json:"external_service,omitempty"`
	TrackingRef         string          `json:"tracking_number"`
	EstimatedDeliveryAt *time.Time      `json:"estimated_delivery_time,omitempty"`
	CourierName         string          `json:"delivery_person_name,omitempty"`
	CourierPhone        string          `json:"delivery_person_phone,omitempty"`
	AssignedAt          *time.Time      `json:"assigned_at,omitempty"`
	PickedUpAt          *time.Time      `json:"picked_up_at,omitempty"`
	DeliveredAt         *time.Time      `json:"delivered_at,omitempty"`
}
