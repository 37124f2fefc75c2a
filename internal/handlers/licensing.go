package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// FormTemplateURL is where the licence application template is published.
const FormTemplateURL = "https://masvingocity.org.zw/forms/licence-application.pdf"

// Applicant is the person a licence application is filed for.
type Applicant struct {
	Name         string `json:"applicant_name"`
	NationalID   string `json:"national_id"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	BusinessType string `json:"business_type"`
	Location     string `json:"location"`
}

// DemoApplicant is used until applicant details are collected
// interactively.
var DemoApplicant = Applicant{
	Name:         "John Doe",
	NationalID:   "63-1234567-89",
	Address:      "123 Main Street, Masvingo",
	Phone:        "+263-77-123-4567",
	Email:        "john.doe@example.com",
	BusinessType: "Retail Shop",
	Location:     "CBD, Masvingo",
}

// Licensing answers licence applications and form requests.
type Licensing struct {
	applicant Applicant
	log       *slog.Logger
}

// NewLicensing returns a Licensing handler filing for DemoApplicant.
func NewLicensing(log *slog.Logger) *Licensing {
	return &Licensing{applicant: DemoApplicant, log: componentLogger(log, "licensing")}
}

// Handle implements Handler.
func (l *Licensing) Handle(_ context.Context, query string) (string, error) {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "apply", "licence", "license"):
		return l.application(query), nil
	case strings.Contains(q, "form"):
		return "You can download the licence application form template from: " + FormTemplateURL, nil
	default:
		return "I can help you apply for business licences. Please specify what type of licence you need (e.g., shop licence, trading licence).", nil
	}
}

func (l *Licensing) application(query string) string {
	kind := LicenceType(query)
	a := l.applicant
	l.log.Info("licensing: application prepared", slog.String("licence_type", kind))

	var sb strings.Builder
	sb.WriteString("**Licence Application Prepared**\n\n")
	sb.WriteString("**Application Details:**\n")
	fmt.Fprintf(&sb, "- Licence Type: %s\n", kind)
	fmt.Fprintf(&sb, "- Applicant: %s\n", a.Name)
	fmt.Fprintf(&sb, "- National ID: %s\n", a.NationalID)
	fmt.Fprintf(&sb, "- Business Type: %s\n\n", a.BusinessType)
	sb.WriteString("**Next Steps:**\n")
	fmt.Fprintf(&sb, "1. Download the application form: %s\n", FormTemplateURL)
	sb.WriteString("2. Submit the completed form to the council offices\n")
	sb.WriteString("3. Pay the required fees\n")
	sb.WriteString("4. Wait for approval (typically 7-14 business days)\n\n")
	sb.WriteString("For any questions, contact the Licensing Department at licensing@masvingo.gov.zw or +263-987-654-321.")
	return sb.String()
}

// LicenceType names the licence a query asks about.
func LicenceType(query string) string {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "shop"):
		return "Shop Licence"
	case strings.Contains(q, "trading"):
		return "Trading Licence"
	case strings.Contains(q, "business"):
		return "Business Licence"
	default:
		return "General Business Licence"
	}
}
