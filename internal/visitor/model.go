// Package visitor holds the persisted visitor record, its filters and data access.
package visitor

import (
	"fmt"
	"strings"
	"time"
)

// Status narrows a record set by checkout state.
type Status string

const (
	StatusAll        Status = "all"
	StatusActive     Status = "active"
	StatusCheckedOut Status = "checked_out"
)

// ParseStatus accepts the wire form of a status; empty means all.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive:
		return StatusActive, nil
	case StatusCheckedOut:
		return StatusCheckedOut, nil
	default:
		return "", fmt.Errorf("invalid status %q (want all, active or checked_out)", s)
	}
}

// Record is a persisted visitor entry.
type Record struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	NationalID   string     `json:"nrc_no"`
	Phone        string     `json:"phone_number"`
	Company      string     `json:"company_name,omitempty"`
	Purpose      string     `json:"visit_purpose,omitempty"`
	EmployeeCard string     `json:"employee_card_number,omitempty"`
	ContainerNo  string     `json:"access_container_no,omitempty"`
	RackNo       string     `json:"access_rack_no,omitempty"`
	Inventory    string     `json:"inventory_list,omitempty"`
	PhotoURL     string     `json:"photo_url,omitempty"`
	EntryAt      time.Time  `json:"in_time"`
	ExitAt       *time.Time `json:"out_time,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the visitor is still on site.
func (r Record) Active() bool { return r.ExitAt == nil }

// StayHours is the time between entry and exit in hours; ok is false while on site.
func (r Record) StayHours() (hours float64, ok bool) {
	if r.ExitAt == nil {
		return 0, false
	}
	return r.ExitAt.Sub(r.EntryAt).Hours(), true
}

// NewRecord is the insert payload for one visitor. EntryAt defaults to the
// insert time when zero.
type NewRecord struct {
	Name         string    `json:"name"`
	NationalID   string    `json:"nrc_no"`
	Phone        string    `json:"phone_number"`
	Company      string    `json:"company_name,omitempty"`
	Purpose      string    `json:"visit_purpose,omitempty"`
	EmployeeCard string    `json:"employee_card_number,omitempty"`
	ContainerNo  string    `json:"access_container_no,omitempty"`
	RackNo       string    `json:"access_rack_no,omitempty"`
	Inventory    string    `json:"inventory_list,omitempty"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	EntryAt      time.Time `json:"in_time,omitempty"`
}

// Patch edits the descriptive fields of a record. Nil fields are left alone.
// Entry and exit times are not patchable; exit is set only through checkout.
type Patch struct {
	Name         *string `json:"name"`
	NationalID   *string `json:"nrc_no"`
	Phone        *string `json:"phone_number"`
	Company      *string `json:"company_name"`
	Purpose      *string `json:"visit_purpose"`
	EmployeeCard *string `json:"employee_card_number"`
	ContainerNo  *string `json:"access_container_no"`
	RackNo       *string `json:"access_rack_no"`
	Inventory    *string `json:"inventory_list"`
	PhotoURL     *string `json:"photo_url"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return len(p.assignments()) == 0
}

// Validate rejects blanking a required field.
func (p Patch) Validate() error {
	required := map[string]*string{"name": p.Name, "nrc_no": p.NationalID, "phone_number": p.Phone}
	for _, col := range []string{"name", "nrc_no", "phone_number"} {
		if v := required[col]; v != nil && strings.TrimSpace(*v) == "" {
			return fmt.Errorf("%s cannot be empty", col)
		}
	}
	return nil
}

type assignment struct {
	column string
	value  string
}

func (p Patch) assignments() []assignment {
	var out []assignment
	add := func(col string, v *string) {
		if v != nil {
			out = append(out, assignment{col, *v})
		}
	}
	add("name", p.Name)
	add("nrc_no", p.NationalID)
	add("phone_number", p.Phone)
	add("company_name", p.Company)
	add("visit_purpose", p.Purpose)
	add("employee_card_number", p.EmployeeCard)
	add("access_container_no", p.ContainerNo)
	add("access_rack_no", p.RackNo)
	add("inventory_list", p.Inventory)
	add("photo_url", p.PhotoURL)
	return out
}

// Stats are the dashboard counters shown on the settings screen.
type Stats struct {
	Total  int64     `json:"total"`
	Active int64     `json:"active"`
	Today  int64     `json:"today"`
	Day    string    `json:"day"`
	AsOf   time.Time `json:"as_of"`
}
