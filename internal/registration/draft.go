// Package registration holds kiosk registration forms: ordered drafts that are
// edited one field at a time and submitted as a single atomic batch.
package registration

import (
	"strings"

	"github.com/google/uuid"

	"dcvisitor/internal/capture"
	"dcvisitor/internal/visitor"
)

// Field names a user-editable draft field. Values match the record's JSON keys.
type Field string

const (
	FieldName         Field = "name"
	FieldNationalID   Field = "nrc_no"
	FieldPhone        Field = "phone_number"
	FieldCompany      Field = "company_name"
	FieldPurpose      Field = "visit_purpose"
	FieldEmployeeCard Field = "employee_card_number"
	FieldContainerNo  Field = "access_container_no"
	FieldRackNo       Field = "access_rack_no"
	FieldInventory    Field = "inventory_list"

	// FieldPhoto is reported by validation when a photo is mandatory.
	FieldPhoto Field = "photo"
)

var labels = map[Field]string{
	FieldName:       "Name",
	FieldNationalID: "NRC Number",
	FieldPhone:      "Phone Number",
	FieldPhoto:      "Photo",
}

// Label is the human name used in validation messages.
func (f Field) Label() string {
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}

// Draft is one unsaved visitor entry. ID addresses the draft within its form;
// positions shift under add and remove, ids never do.
type Draft struct {
	ID           string         `json:"draft_id"`
	Name         string         `json:"name"`
	NationalID   string         `json:"nrc_no"`
	Phone        string         `json:"phone_number"`
	Company      string         `json:"company_name"`
	Purpose      string         `json:"visit_purpose"`
	EmployeeCard string         `json:"employee_card_number"`
	ContainerNo  string         `json:"access_container_no"`
	RackNo       string         `json:"access_rack_no"`
	Inventory    string         `json:"inventory_list"`
	Photo        capture.Handle `json:"photo_handle,omitempty"`
}

func newDraft() Draft {
	return Draft{ID: uuid.NewString()}
}

func (d *Draft) field(f Field) *string {
	switch f {
	case FieldName:
		return &d.Name
	case FieldNationalID:
		return &d.NationalID
	case FieldPhone:
		return &d.Phone
	case FieldCompany:
		return &d.Company
	case FieldPurpose:
		return &d.Purpose
	case FieldEmployeeCard:
		return &d.EmployeeCard
	case FieldContainerNo:
		return &d.ContainerNo
	case FieldRackNo:
		return &d.RackNo
	case FieldInventory:
		return &d.Inventory
	}
	return nil
}

// missing returns the first empty required field, or "" when complete.
func (d Draft) missing(requirePhoto bool) Field {
	for _, f := range []Field{FieldName, FieldNationalID, FieldPhone} {
		if strings.TrimSpace(*d.field(f)) == "" {
			return f
		}
	}
	if requirePhoto && d.Photo == "" {
		return FieldPhoto
	}
	return ""
}

// payload is the insert form of d. The draft id and photo handle stay behind.
func (d Draft) payload(photoURL string) visitor.NewRecord {
	return visitor.NewRecord{
		Name:         strings.TrimSpace(d.Name),
		NationalID:   strings.TrimSpace(d.NationalID),
		Phone:        strings.TrimSpace(d.Phone),
		Company:      strings.TrimSpace(d.Company),
		Purpose:      strings.TrimSpace(d.Purpose),
		EmployeeCard: strings.TrimSpace(d.EmployeeCard),
		ContainerNo:  strings.TrimSpace(d.ContainerNo),
		RackNo:       strings.TrimSpace(d.RackNo),
		Inventory:    d.Inventory,
		PhotoURL:     photoURL,
	}
}
