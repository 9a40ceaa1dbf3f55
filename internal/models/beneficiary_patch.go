package models

// BeneficiaryPatch carries an edit. Nil fields are left unchanged; Children,
// when set, replaces the whole child list.
type BeneficiaryPatch struct {
	Name             *string            `json:"name,omitempty"`
	Age              *string            `json:"age,omitempty"`
	CNIC             *string            `json:"cnic,omitempty"`
	DateOfBirth      *string            `json:"dateOfBirth,omitempty"`
	Gender           *string            `json:"gender,omitempty"`
	PhoneNumber      *string            `json:"phoneNumber,omitempty"`
	TemporaryAddress *string            `json:"temporaryAddress,omitempty"`
	PermanentAddress *string            `json:"permanentAddress,omitempty"`
	District         *string            `json:"district,omitempty"`
	Taluka           *string            `json:"taluka,omitempty"`
	UnionCouncil     *string            `json:"unionCouncil,omitempty"`
	IssueDate        *string            `json:"issueDate,omitempty"`
	ExpireDate       *string            `json:"expireDate,omitempty"`
	Status           *BeneficiaryStatus `json:"beneficiaryStatus,omitempty"`
	PregnancyWeek    *string            `json:"pregnancyWeek,omitempty"`
	Gravida          *string            `json:"gravida,omitempty"`
	Para             *string            `json:"para,omitempty"`
	DeliveryDate     *string            `json:"deliveryDate,omitempty"`
	ProofURIs        *[]string          `json:"proofUris,omitempty"`
	Children         *[]Child           `json:"children,omitempty"`
}

// Apply copies the set fields onto b. It does not touch sync metadata.
func (p *BeneficiaryPatch) Apply(b *Beneficiary) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}

	set(&b.Name, p.Name)
	set(&b.Age, p.Age)
	set(&b.CNIC, p.CNIC)
	set(&b.DateOfBirth, p.DateOfBirth)
	set(&b.Gender, p.Gender)
	set(&b.PhoneNumber, p.PhoneNumber)
	set(&b.TemporaryAddress, p.TemporaryAddress)
	set(&b.PermanentAddress, p.PermanentAddress)
	set(&b.District, p.District)
	set(&b.Taluka, p.Taluka)
	set(&b.UnionCouncil, p.UnionCouncil)
	set(&b.IssueDate, p.IssueDate)
	set(&b.ExpireDate, p.ExpireDate)
	set(&b.PregnancyWeek, p.PregnancyWeek)
	set(&b.Gravida, p.Gravida)
	set(&b.Para, p.Para)
	set(&b.DeliveryDate, p.DeliveryDate)

	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.ProofURIs != nil {
		b.ProofURIs = JoinURIs(*p.ProofURIs)
	}
}
