package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prudhvinik1/fieldsync/internal/models"
)

// FormDateLayout is the dd-MMM-yyyy layout the registration form uses.
const FormDateLayout = "02-Jan-2006"

var (
	namePattern       = regexp.MustCompile(`^[A-Za-z\s]{2,50}$`)
	childNamePattern  = regexp.MustCompile(`^[A-Za-z\s]{2,30}$`)
	cnicDashedPattern = regexp.MustCompile(`^\d{5}-\d{7}-\d$`)
	cnicPlainPattern  = regexp.MustCompile(`^\d{13}$`)
	datePattern       = regexp.MustCompile(`^\d{2}-[A-Za-z]{3}-\d{4}$`)
	phoneStrip        = regexp.MustCompile(`[^0-9+]`)
	phonePatterns     = []*regexp.Regexp{
		regexp.MustCompile(`^03\d{9}$`),
		regexp.MustCompile(`^923\d{9}$`),
		regexp.MustCompile(`^\+923\d{9}$`),
		regexp.MustCompile(`^00923\d{9}$`),
		regexp.MustCompile(`^3\d{9}$`),
	}
)

// FieldError describes one invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func IsValidName(name string) bool {
	return namePattern.MatchString(name)
}

func IsValidChildName(name string) bool {
	return childNamePattern.MatchString(name)
}

func IsValidAge(age string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(age))
	return err == nil && n >= 16 && n <= 60
}

// IsValidCNIC accepts #####-#######-# or 13 bare digits.
func IsValidCNIC(cnic string) bool {
	return cnicDashedPattern.MatchString(cnic) || cnicPlainPattern.MatchString(cnic)
}

func IsValidDate(date string) bool {
	_, ok := ParseFormDate(date)
	return ok
}

// ParseFormDate parses dd-MMM-yyyy with a case-insensitive month.
func ParseFormDate(date string) (time.Time, bool) {
	if !datePattern.MatchString(date) {
		return time.Time{}, false
	}
	month := date[3:6]
	normalized := date[:3] + strings.ToUpper(month[:1]) + strings.ToLower(month[1:]) + date[6:]
	t, err := time.Parse(FormDateLayout, normalized)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsValidPhone accepts Pakistani mobile numbers in local or international
// form. Separators are ignored.
func IsValidPhone(phone string) bool {
	if strings.TrimSpace(phone) == "" {
		return false
	}
	cleaned := phoneStrip.ReplaceAllString(phone, "")
	for _, p := range phonePatterns {
		if p.MatchString(cleaned) {
			return true
		}
	}
	return false
}

// ToInternationalPhone rewrites a valid local number as +92XXXXXXXXXX.
// Unrecognized input is returned unchanged.
func ToInternationalPhone(phone string) string {
	cleaned := phoneStrip.ReplaceAllString(phone, "")
	switch {
	case strings.HasPrefix(cleaned, "+"):
		return cleaned
	case strings.HasPrefix(cleaned, "0092"):
		return "+92" + cleaned[4:]
	case strings.HasPrefix(cleaned, "92") && len(cleaned) == 12:
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "03"):
		return "+92" + cleaned[1:]
	case strings.HasPrefix(cleaned, "3") && len(cleaned) == 10:
		return "+92" + cleaned
	default:
		return phone
	}
}

func IsValidAddress(address string) bool {
	return len(address) >= 10
}

func IsValidLocation(location string) bool {
	return strings.TrimSpace(location) != "" && len(location) >= 2
}

// AreDatesValid reports whether issue is strictly before expire.
func AreDatesValid(issue, expire string) bool {
	i, ok := ParseFormDate(issue)
	if !ok {
		return false
	}
	e, ok := ParseFormDate(expire)
	if !ok {
		return false
	}
	return i.Before(e)
}

// IsValidDeliveryDate requires a date within two years before now.
func IsValidDeliveryDate(date string, now time.Time) bool {
	d, ok := ParseFormDate(date)
	if !ok {
		return false
	}
	return d.After(now.AddDate(-2, 0, 0))
}

// MissingFields lists the required fields b leaves blank, in form order.
func MissingFields(b *models.Beneficiary) []string {
	required := []struct {
		label string
		value string
	}{
		{"Name", b.Name},
		{"Age", b.Age},
		{"CNIC", b.CNIC},
		{"Date of Birth", b.DateOfBirth},
		{"Gender", b.Gender},
		{"Phone Number", b.PhoneNumber},
		{"Temporary Address", b.TemporaryAddress},
		{"Permanent Address", b.PermanentAddress},
		{"District", b.District},
		{"Taluka", b.Taluka},
		{"Union Council", b.UnionCouncil},
		{"Issue Date", b.IssueDate},
		{"Expire Date", b.ExpireDate},
		{"Beneficiary Status", string(b.Status)},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.label)
		}
	}
	return missing
}

// ValidateBeneficiary applies the form rules to a complete record. It returns
// nil when the record is acceptable.
func ValidateBeneficiary(b *models.Beneficiary, children []models.Child, now time.Time) []FieldError {
	var errs []FieldError
	add := func(field, message string) {
		errs = append(errs, FieldError{Field: field, Message: message})
	}

	if !IsValidName(b.Name) {
		add("name", "Enter valid name (2-50 letters)")
	}
	if !IsValidAge(b.Age) {
		add("age", "Age must be between 16-60")
	}
	if !IsValidCNIC(b.CNIC) {
		add("cnic", "Enter valid CNIC (XXXXX-XXXXXXX-X or 13 digits)")
	}
	if !IsValidDate(b.DateOfBirth) {
		add("dateOfBirth", "Format: dd-MMM-yyyy (e.g., 14-Sep-1999)")
	}
	if !IsValidPhone(b.PhoneNumber) {
		add("phoneNumber", "Please enter a valid Pakistani phone number")
	}
	if !IsValidAddress(b.TemporaryAddress) {
		add("temporaryAddress", "Temporary Address must be at least 10 characters")
	}
	if !IsValidAddress(b.PermanentAddress) {
		add("permanentAddress", "Permanent Address must be at least 10 characters")
	}
	locations := []struct{ field, label, value string }{
		{"district", "District", b.District},
		{"taluka", "Taluka", b.Taluka},
		{"unionCouncil", "Union Council", b.UnionCouncil},
	}
	for _, l := range locations {
		if !IsValidLocation(l.value) {
			add(l.field, "Enter valid "+l.label)
		}
	}
	if !AreDatesValid(b.IssueDate, b.ExpireDate) {
		add("issueDate", "Issue date must be before expire date")
	}
	if _, ok := models.ParseBeneficiaryStatus(string(b.Status)); !ok {
		add("beneficiaryStatus", fmt.Sprintf("Status must be %s or %s", models.StatusPregnant, models.StatusLactating))
	}

	if models.StatusOrDefault(string(b.Status)) == models.StatusLactating && b.DeliveryDate != "" {
		if !IsValidDeliveryDate(b.DeliveryDate, now) {
			add("deliveryDate", "Delivery date should be within last 2 years")
		}
	}
	for i, c := range children {
		if !IsValidChildName(c.Name) {
			add(fmt.Sprintf("children[%d].name", i), "Enter valid child name (2-30 letters)")
		}
	}

	return errs
}
