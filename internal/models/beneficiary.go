package models

import (
	"encoding/json"
	"strings"
	"time"
)

type BeneficiaryStatus string

const (
	StatusPregnant  BeneficiaryStatus = "PREGNANT"
	StatusLactating BeneficiaryStatus = "LACTATING"
)

func (s BeneficiaryStatus) Valid() bool {
	return s == StatusPregnant || s == StatusLactating
}

// ParseBeneficiaryStatus accepts the stored enum names, case-insensitively.
func ParseBeneficiaryStatus(s string) (BeneficiaryStatus, bool) {
	status := BeneficiaryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", false
	}
	return status, true
}

// StatusOrDefault maps unexpected stored strings to PREGNANT so that bad
// historical rows still render.
func StatusOrDefault(s string) BeneficiaryStatus {
	if status, ok := ParseBeneficiaryStatus(s); ok {
		return status
	}
	return StatusPregnant
}

// Beneficiary is one registered individual as held in the local store. The
// json shape is also the queue snapshot format.
type Beneficiary struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	Name             string `json:"name"`
	Age              string `json:"age"`
	CNIC             string `json:"cnic"`
	DateOfBirth      string `json:"dateOfBirth"`
	Gender           string `json:"gender"`
	PhoneNumber      string `json:"phoneNumber"`
	TemporaryAddress string `json:"temporaryAddress"`
	PermanentAddress string `json:"permanentAddress"`
	District         string `json:"district"`
	Taluka           string `json:"taluka"`
	UnionCouncil     string `json:"unionCouncil"`
	IssueDate        string `json:"issueDate"`
	ExpireDate       string `json:"expireDate"`

	Status        BeneficiaryStatus `json:"beneficiaryStatus"`
	PregnancyWeek string            `json:"pregnancyWeek"`
	Gravida       string            `json:"gravida"`
	Para          string            `json:"para"`
	DeliveryDate  string            `json:"deliveryDate"`

	// ChildrenData is the JSON encoded child list, kept alongside the child
	// table so a queue snapshot is self-contained.
	ChildrenData string `json:"childrenData"`
	// ProofURIs is a comma-joined list of document references.
	ProofURIs string `json:"proofUris"`

	IsSynced        bool       `json:"isSynced"`
	SyncAttempts    int        `json:"syncAttempts"`
	LastSyncAttempt *time.Time `json:"lastSyncAttempt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ProofURIList splits ProofURIs, dropping blanks.
func (b *Beneficiary) ProofURIList() []string {
	return SplitURIs(b.ProofURIs)
}

// DecodeChildren returns the children embedded in ChildrenData. Malformed data
// yields an empty list rather than an error.
func (b *Beneficiary) DecodeChildren() []Child {
	if strings.TrimSpace(b.ChildrenData) == "" {
		return []Child{}
	}
	var children []Child
	if err := json.Unmarshal([]byte(b.ChildrenData), &children); err != nil {
		return []Child{}
	}
	return children
}

// EncodeChildren stores children into ChildrenData.
func (b *Beneficiary) EncodeChildren(children []Child) error {
	if len(children) == 0 {
		b.ChildrenData = ""
		return nil
	}
	embedded := make([]Child, len(children))
	for i, c := range children {
		embedded[i] = Child{Name: c.Name, Gender: c.Gender, ProofURIs: c.ProofURIs}
	}
	data, err := json.Marshal(embedded)
	if err != nil {
		return err
	}
	b.ChildrenData = string(data)
	return nil
}

// Child is a sub-record of a lactating beneficiary.
type Child struct {
	ID            int64    `json:"childId,omitempty"`
	BeneficiaryID string   `json:"beneficiaryId,omitempty"`
	Name          string   `json:"name"`
	Gender        string   `json:"gender"`
	ProofURIs     []string `json:"proofUris"`
}

// BeneficiaryFilter narrows list queries. Zero values match everything.
type BeneficiaryFilter struct {
	Status BeneficiaryStatus
	// Query matches name, CNIC or phone number, case-insensitively.
	Query  string
	UserID string
}

// SplitURIs splits a comma-joined reference list, dropping blanks.
func SplitURIs(joined string) []string {
	uris := []string{}
	for _, part := range strings.Split(joined, ",") {
		if part = strings.TrimSpace(part); part != "" {
			uris = append(uris, part)
		}
	}
	return uris
}

// JoinURIs is the inverse of SplitURIs.
func JoinURIs(uris []string) string {
	kept := make([]string, 0, len(uris))
	for _, u := range uris {
		if u = strings.TrimSpace(u); u != "" {
			kept = append(kept, u)
		}
	}
	return strings.Join(kept, ",")
}
