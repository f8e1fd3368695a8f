package clients

// Client is created exactly once per saved analysis batch, never updated or
// deleted by this service. The store assigns the ID on insert.
type Client struct {
	ID         int64  `json:"id_cliente"`
	FirstName  string `json:"nombres"`
	LastName   string `json:"apellidos"`
	NationalID string `json:"dni_ruc"`
	Phone      string `json:"celular"`
	Company    string `json:"empresa,omitempty"`
}
