package employees

// Employee is read-only reference data; its lifecycle is owned entirely by the
// external store.
type Employee struct {
	ID        int64  `json:"id_empleado"`
	FirstName string `json:"nombres"`
	LastName  string `json:"apellidos"`
}

// DisplayName is what the selection list shows for an employee.
func (e Employee) DisplayName() string {
	return e.FirstName + " " + e.LastName
}
