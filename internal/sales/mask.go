package sales

import "strings"

// AllFieldsDescriptor grants access to every field.
const AllFieldsDescriptor = "all"

// Permissions lists the fields a caller may read. The zero value allows all.
type Permissions struct {
	restricted bool
	allowed    map[Field]bool
}

// AllFields returns permissions that allow every field.
func AllFields() Permissions {
	return Permissions{}
}

// ParsePermissions reads a descriptor: "all" or a comma separated field list.
// Unknown names are ignored and an empty descriptor allows nothing.
func ParsePermissions(descriptor string) Permissions {
	d := strings.TrimSpace(descriptor)
	if strings.EqualFold(d, AllFieldsDescriptor) {
		return AllFields()
	}
	p := Permissions{restricted: true, allowed: make(map[Field]bool)}
	for _, part := range strings.Split(d, ",") {
		name := strings.TrimSpace(part)
		for _, f := range Fields {
			if strings.EqualFold(name, string(f)) {
				p.allowed[f] = true
			}
		}
	}
	return p
}

// All reports whether every field is allowed.
func (p Permissions) All() bool {
	return !p.restricted
}

// Allows reports whether f may be read.
func (p Permissions) Allows(f Field) bool {
	return !p.restricted || p.allowed[f]
}

// String renders the permissions back into descriptor form.
func (p Permissions) String() string {
	if !p.restricted {
		return AllFieldsDescriptor
	}
	names := make([]string, 0, len(p.allowed))
	for _, f := range Fields {
		if p.allowed[f] {
			names = append(names, string(f))
		}
	}
	return strings.Join(names, ",")
}

// MaskPolicy names the fields that are zeroed when a caller lacks access.
type MaskPolicy struct {
	Maskable []Field
}

// DefaultMaskPolicy masks only the amount.
func DefaultMaskPolicy() MaskPolicy {
	return MaskPolicy{Maskable: []Field{FieldAmount}}
}

// ParseMaskPolicy builds a policy from field names, falling back to the
// default when none are recognised.
func ParseMaskPolicy(names []string) MaskPolicy {
	var fields []Field
	for _, name := range names {
		for _, f := range Fields {
			if strings.EqualFold(strings.TrimSpace(name), string(f)) {
				fields = append(fields, f)
			}
		}
	}
	if len(fields) == 0 {
		return DefaultMaskPolicy()
	}
	return MaskPolicy{Maskable: fields}
}

// Apply zeroes every maskable field that p does not allow.
func (m MaskPolicy) Apply(p Permissions, t Transaction) Transaction {
	if p.All() {
		return t
	}
	for _, f := range m.Maskable {
		if p.Allows(f) {
			continue
		}
		switch f {
		case FieldDate:
			t.Date = Date{}
			t.RawDate = ""
		case FieldAmount:
			t.Amount = 0
		case FieldCurrency:
			t.Currency = ""
		case FieldAgentName:
			t.AgentName = ""
		case FieldBrandName:
			t.BrandName = ""
		case FieldProjectName:
			t.ProjectName = ""
		case FieldIndustry:
			t.Industry = ""
		case FieldStatus:
			t.Status = ""
		case FieldCountry:
			t.Country = ""
		}
	}
	return t
}

// ApplyAll masks every transaction, returning a new slice.
func (m MaskPolicy) ApplyAll(p Permissions, txns []Transaction) []Transaction {
	out := make([]Transaction, len(txns))
	for i, t := range txns {
		out[i] = m.Apply(p, t)
	}
	return out
}
