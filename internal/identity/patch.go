package identity

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Profile fields accepted by an update, keyed in lower case.
const (
	FieldFirstName  = "firstname"
	FieldMiddleName = "middlename"
	FieldLastName   = "lastname"
	FieldAge        = "age"
	FieldPhone      = "phone"
	FieldLocations  = "locations"
	FieldEmail      = "email"
	FieldRole       = "role"
	FieldStatus     = "status"
	FieldBranchID   = "branchid"
)

var selfFields = []string{FieldFirstName, FieldMiddleName, FieldLastName, FieldAge, FieldPhone, FieldLocations}

var managedFields = append(append([]string{}, selfFields...), FieldEmail, FieldRole, FieldStatus, FieldBranchID)

// Actor is the authenticated caller of a profile operation.
type Actor struct {
	ID   string
	Role Role
}

// ManagesAccounts reports whether the actor may edit or delete other accounts.
func (a Actor) ManagesAccounts() bool {
	return a.Role == RoleAdmin || a.Role == RoleOwner
}

// ViewsAccounts reports whether the actor may read other accounts.
func (a Actor) ViewsAccounts() bool {
	return a.ManagesAccounts() || a.Role == RoleManager
}

// EditableFields returns the allow-list of fields actor may change on the
// account identified by targetID. A nil result means no update is permitted.
func EditableFields(actor Actor, targetID string) map[string]bool {
	var fields []string
	switch {
	case actor.ManagesAccounts():
		fields = managedFields
	case actor.ID != "" && actor.ID == targetID:
		fields = selfFields
	default:
		return nil
	}
	allowed := make(map[string]bool, len(fields))
	for _, f := range fields {
		allowed[f] = true
	}
	return allowed
}

// Patch is a partial update of a user. Nil fields are left untouched.
type Patch struct {
	FirstName  *string
	MiddleName *string
	LastName   *string
	Age        *int
	Phone      *string
	Locations  *[]Location
	Email      *string
	Role       *Role
	Status     *Status
	BranchID   *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply copies the set fields of p onto u.
func (p Patch) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.MiddleName != nil {
		u.MiddleName = *p.MiddleName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Age != nil {
		age := *p.Age
		u.Age = &age
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Locations != nil {
		u.Locations = append([]Location{}, (*p.Locations)...)
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.BranchID != nil {
		u.BranchID = *p.BranchID
	}
}

// DecodePatch builds a Patch from raw JSON fields, rejecting any key that is
// not in allowed. Keys are matched case-insensitively.
func DecodePatch(fields map[string]json.RawMessage, allowed map[string]bool) (Patch, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var p Patch
	for _, key := range keys {
		name := strings.ToLower(key)
		if !allowed[name] {
			return Patch{}, fmt.Errorf("%w: %s", ErrFieldNotAllowed, key)
		}
		if err := p.decodeField(name, fields[key]); err != nil {
			return Patch{}, fmt.Errorf("%w: %s", ErrInvalidField, key)
		}
	}
	if p.Empty() {
		return Patch{}, ErrEmptyPatch
	}
	return p, nil
}

func (p *Patch) decodeField(name string, raw json.RawMessage) error {
	switch name {
	case FieldFirstName, FieldLastName:
		v, err := decodeString(raw, true)
		if err != nil {
			return err
		}
		if name == FieldFirstName {
			p.FirstName = &v
		} else {
			p.LastName = &v
		}
	case FieldMiddleName, FieldPhone:
		v, err := decodeString(raw, false)
		if err != nil {
			return err
		}
		if name == FieldMiddleName {
			p.MiddleName = &v
		} else {
			p.Phone = &v
		}
	case FieldAge:
		var age int
		if err := json.Unmarshal(raw, &age); err != nil {
			return err
		}
		if age < 0 {
			return fmt.Errorf("negative age")
		}
		p.Age = &age
	case FieldLocations:
		var locations []Location
		if err := json.Unmarshal(raw, &locations); err != nil {
			return err
		}
		if locations == nil {
			locations = []Location{}
		}
		p.Locations = &locations
	case FieldEmail:
		v, err := decodeString(raw, true)
		if err != nil {
			return err
		}
		email := NormalizeEmail(v)
		p.Email = &email
	case FieldRole:
		v, err := decodeString(raw, true)
		if err != nil {
			return err
		}
		role := Role(strings.ToLower(v))
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", v)
		}
		p.Role = &role
	case FieldStatus:
		v, err := decodeString(raw, true)
		if err != nil {
			return err
		}
		status := Status(strings.ToLower(v))
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", v)
		}
		p.Status = &status
	case FieldBranchID:
		v, err := decodeString(raw, false)
		if err != nil {
			return err
		}
		if v != "" {
			if _, err := uuid.Parse(v); err != nil {
				return err
			}
		}
		p.BranchID = &v
	default:
		return fmt.Errorf("unsupported field %q", name)
	}
	return nil
}

func decodeString(raw json.RawMessage, required bool) (string, error) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if required && v == "" {
		return "", fmt.Errorf("empty value")
	}
	return v, nil
}
