// Package access resolves who is calling and what their role allows.
//
// Permissions are flat "module:action" strings. A role either lists the
// permissions it grants or carries HasAllAccess, which bypasses every check.
// There is no inheritance between roles or permissions.
package access

import (
	"sort"
	"strings"
)

const (
	ModuleAppointments = "appointments"
	ModulePatients     = "patients"
	ModuleStaff        = "staff"
	ModuleDoctors      = "doctors"
	ModuleRoles        = "roles"
)

const (
	AppointmentsRead   = "appointments:read"
	AppointmentsCreate = "appointments:create"
	AppointmentsUpdate = "appointments:update"
	PatientsRead       = "patients:read"
	PatientsCreate     = "patients:create"
	StaffRead          = "staff:read"
	StaffCreate        = "staff:create"
	DoctorsRead        = "doctors:read"
	DoctorsCreate      = "doctors:create"
	RolesRead          = "roles:read"
	RolesCreate        = "roles:create"
	RolesUpdate        = "roles:update"
	RolesDelete        = "roles:delete"
)

// Catalog groups every known permission by module.
var Catalog = map[string][]string{
	ModuleAppointments: {AppointmentsRead, AppointmentsCreate, AppointmentsUpdate},
	ModulePatients:     {PatientsRead, PatientsCreate},
	ModuleStaff:        {StaffRead, StaffCreate},
	ModuleDoctors:      {DoctorsRead, DoctorsCreate},
	ModuleRoles:        {RolesRead, RolesCreate, RolesUpdate, RolesDelete},
}

// Module returns the module part of a permission.
func Module(perm string) string {
	m, _, _ := strings.Cut(perm, ":")
	return m
}

func Known(perm string) bool {
	for _, p := range Catalog[Module(perm)] {
		if p == perm {
			return true
		}
	}
	return false
}

// Normalize trims, lower-cases, de-duplicates and sorts perms. It returns the
// first unknown permission, if any.
func Normalize(perms []string) ([]string, string) {
	seen := make(map[string]bool, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		if !Known(p) {
			return nil, p
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out, ""
}
