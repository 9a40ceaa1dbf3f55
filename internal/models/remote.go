package models

const remoteTimeLayout = "2006-01-02 15:04:05"

// ChildDocument is a child as embedded in the remote beneficiary document.
type ChildDocument struct {
	Name      string   `json:"name"`
	Gender    string   `json:"gender"`
	ProofURLs []string `json:"proofUrls"`
}

// BeneficiaryDocument is the flattened record written to beneficiaries/{id}.
type BeneficiaryDocument struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Name             string          `json:"name"`
	Age              string          `json:"age"`
	CNIC             string          `json:"cnic"`
	DateOfBirth      string          `json:"dateOfBirth"`
	Gender           string          `json:"gender"`
	PhoneNumber      string          `json:"phoneNumber"`
	TemporaryAddress string          `json:"temporaryAddress"`
	PermanentAddress string          `json:"permanentAddress"`
	District         string          `json:"district"`
	Taluka           string          `json:"taluka"`
	UnionCouncil     string          `json:"unionCouncil"`
	IssueDate        string          `json:"issueDate"`
	ExpireDate       string          `json:"expireDate"`
	Status           string          `json:"beneficiaryStatus"`
	PregnancyWeek    string          `json:"pregnancyWeek"`
	Gravida          string          `json:"gravida"`
	Para             string          `json:"para"`
	DeliveryDate     string          `json:"deliveryDate"`
	Children         []ChildDocument `json:"children"`
	ImageURLs        []string        `json:"imageUrls"`
	Timestamp        int64           `json:"timestamp"`
	CreatedAt        string          `json:"createdAt"`
	IsSynced         bool            `json:"isSynced"`
	SyncAttempts     int             `json:"syncAttempts"`
}

// BeneficiarySummary is the per-owner index entry written to
// userBeneficiaries/{uid}/{id}.
type BeneficiarySummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatedAt int64  `json:"createdAt"`
}

// NewBeneficiaryDocument flattens b and its children into the remote shape.
// The document always claims isSynced since it only exists once written.
func NewBeneficiaryDocument(b *Beneficiary, children []Child) *BeneficiaryDocument {
	docs := make([]ChildDocument, 0, len(children))
	for _, c := range children {
		urls := c.ProofURIs
		if urls == nil {
			urls = []string{}
		}
		docs = append(docs, ChildDocument{Name: c.Name, Gender: c.Gender, ProofURLs: urls})
	}

	return &BeneficiaryDocument{
		ID:               b.ID,
		UserID:           b.UserID,
		Name:             b.Name,
		Age:              b.Age,
		CNIC:             b.CNIC,
		DateOfBirth:      b.DateOfBirth,
		Gender:           b.Gender,
		PhoneNumber:      b.PhoneNumber,
		TemporaryAddress: b.TemporaryAddress,
		PermanentAddress: b.PermanentAddress,
		District:         b.District,
		Taluka:           b.Taluka,
		UnionCouncil:     b.UnionCouncil,
		IssueDate:        b.IssueDate,
		ExpireDate:       b.ExpireDate,
		Status:           string(StatusOrDefault(string(b.Status))),
		PregnancyWeek:    b.PregnancyWeek,
		Gravida:          b.Gravida,
		Para:             b.Para,
		DeliveryDate:     b.DeliveryDate,
		Children:         docs,
		ImageURLs:        b.ProofURIList(),
		Timestamp:        b.CreatedAt.UnixMilli(),
		CreatedAt:        b.CreatedAt.Format(remoteTimeLayout),
		IsSynced:         true,
		SyncAttempts:     b.SyncAttempts,
	}
}

func NewBeneficiarySummary(b *Beneficiary) *BeneficiarySummary {
	return &BeneficiarySummary{
		ID:        b.ID,
		Name:      b.Name,
		Type:      string(StatusOrDefault(string(b.Status))),
		CreatedAt: b.CreatedAt.UnixMilli(),
	}
}
