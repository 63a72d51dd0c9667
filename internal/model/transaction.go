package model

import "time"

// ItemType tags a transaction with the kind of purchase it records.
// The variant fields that must be present on a Transaction depend on
// this tag: a BOOK_ORDER carries Order, a PROGRAM_REGISTRATION carries
// Registration, and a DONATION carries Donor.
type ItemType string

const (
	ItemProgramRegistration ItemType = "PROGRAM_REGISTRATION"
	ItemBookOrder           ItemType = "BOOK_ORDER"
	ItemDonation            ItemType = "DONATION"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case ItemProgramRegistration, ItemBookOrder, ItemDonation:
		return true
	}
	return false
}

// Status is the fulfilment state of a transaction.  New transactions
// always start in PENDING.  REJECTED is terminal; COMPLETED allows a
// single-step reversal to undo a mis-click.  An archived transaction
// is not a status but a relocation into the archived tables.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusCompleted  Status = "COMPLETED"
	StatusRejected   Status = "REJECTED"
)

// OrderItem is a single line of a book order.
type OrderItem struct {
	ProductID uint64 `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// ShippingDetails holds the delivery address captured at checkout.
type ShippingDetails struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Address string `json:"address"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}

// OrderDetails is the BOOK_ORDER variant payload.
type OrderDetails struct {
	Items    []OrderItem     `json:"items"`
	Shipping ShippingDetails `json:"shipping"`
}

// DonorDetails is the DONATION variant payload.  Donations carry no
// shipping address; only the donor's name and mobile are required.
type DonorDetails struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}

// Applicant identifies a participant on a program registration.
type Applicant struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile,omitempty"`
	Age    int    `json:"age,omitempty"`
}

// RegistrationDetails is the PROGRAM_REGISTRATION variant payload.
type RegistrationDetails struct {
	ProgramID        uint64      `json:"program_id"`
	ProgramDate      string      `json:"program_date,omitempty"`
	ProgramCity      string      `json:"program_city,omitempty"`
	Place            string      `json:"place,omitempty"`
	PrimaryApplicant Applicant   `json:"primary_applicant"`
	Participants     []Applicant `json:"participants"`
	ParticipantCount int         `json:"participant_count"`
}

// Count returns the number of participants the registration stands
// for, falling back to the participant list length and finally to 1.
func (r RegistrationDetails) Count() int {
	if r.ParticipantCount > 0 {
		return r.ParticipantCount
	}
	if n := len(r.Participants); n > 0 {
		return n
	}
	return 1
}

// Owner identifies who a transaction belongs to.  Exactly one of the
// two fields is set: UserID for an authenticated, non-anonymous
// account, DeviceID for the locally generated fallback identity.  The
// resolution is fixed at creation time and never changes.
type Owner struct {
	UserID   uint64 `json:"user_id,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

// ByAccount reports whether the owner is an authenticated account.
func (o Owner) ByAccount() bool { return o.UserID != 0 }

// Transaction is the durable record of a purchase, donation or program
// registration and its fulfilment status.  The receipt image, when
// present, lives in a separate table keyed by the same ID so that
// listing queries never drag the payload along.
//
// Fields:
//
//	ID           – UUID generated at creation.
//	ItemType     – variant tag; see ItemType.
//	ItemName     – human readable summary ("Order: ..." or program name).
//	Amount       – total amount in whole rupees.
//	Status       – fulfilment state; see Status.
//	HasImage     – whether a receipt image row exists for this ID.
//	Comments     – free-form note set by administrators on transitions.
//	Order        – BOOK_ORDER payload, nil otherwise.
//	Donor        – DONATION payload, nil otherwise.
//	Registration – PROGRAM_REGISTRATION payload, nil otherwise.
//	Owner        – account or device linkage, immutable after creation.
type Transaction struct {
	ID           string               `json:"id"`
	ItemType     ItemType             `json:"item_type"`
	ItemName     string               `json:"item_name"`
	Amount       int64                `json:"amount"`
	Status       Status               `json:"status"`
	HasImage     bool                 `json:"has_image"`
	Comments     string               `json:"comments,omitempty"`
	Order        *OrderDetails        `json:"order,omitempty"`
	Donor        *DonorDetails        `json:"donor,omitempty"`
	Registration *RegistrationDetails `json:"registration,omitempty"`
	Owner        Owner                `json:"owner"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// ArchivedTransaction is a transaction relocated to long-term storage.
type ArchivedTransaction struct {
	Transaction
	ArchivedAt time.Time `json:"archived_at"`
}

// ReceiptImage is the base64 payment proof stored one-to-one with a
// transaction.  It is created and deleted in lockstep with its owner.
type ReceiptImage struct {
	TransactionID string `json:"id"`
	Base64        string `json:"base64"`
	Owner         Owner  `json:"owner"`
}
