package models

import (
	"fmt"
	"strings"
	"time"
)

// BeneficiaryView is the list and detail shape served to the form UI.
type BeneficiaryView struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	CNIC          string            `json:"cnic"`
	PhoneNumber   string            `json:"phoneNumber"`
	District      string            `json:"district"`
	Status        BeneficiaryStatus `json:"beneficiaryStatus"`
	StatusDetails string            `json:"statusDetails"`
	ChildrenCount int               `json:"childrenCount"`
	ImageURLs     []string          `json:"imageUrls"`
	IsSynced      bool              `json:"isSynced"`
	SyncAttempts  int               `json:"syncAttempts"`
	CreatedAt     time.Time         `json:"createdAt"`
	Record        *Beneficiary      `json:"record,omitempty"`
}

// NewBeneficiaryView maps a stored record to its view. full attaches the
// underlying record for detail screens.
func NewBeneficiaryView(b *Beneficiary, full bool) *BeneficiaryView {
	status := StatusOrDefault(string(b.Status))
	v := &BeneficiaryView{
		ID:            b.ID,
		Name:          b.Name,
		CNIC:          b.CNIC,
		PhoneNumber:   b.PhoneNumber,
		District:      b.District,
		Status:        status,
		StatusDetails: StatusDetails(b),
		ChildrenCount: len(b.DecodeChildren()),
		ImageURLs:     b.ProofURIList(),
		IsSynced:      b.IsSynced,
		SyncAttempts:  b.SyncAttempts,
		CreatedAt:     b.CreatedAt,
	}
	if full {
		v.Record = b
	}
	return v
}

// StatusDetails summarizes the status-specific fields in one line.
func StatusDetails(b *Beneficiary) string {
	switch StatusOrDefault(string(b.Status)) {
	case StatusLactating:
		if d := strings.TrimSpace(b.DeliveryDate); d != "" {
			return "Delivery: " + d
		}
		return "Lactating"
	default:
		week := strings.TrimSpace(b.PregnancyWeek)
		if week == "" {
			return "Pregnant"
		}
		return fmt.Sprintf("%s weeks | G%sP%s", week, strings.TrimSpace(b.Gravida), strings.TrimSpace(b.Para))
	}
}
