package domain

// User and Address are maintained by external systems; the order service
// only ever resolves them by id.

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Address struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}
