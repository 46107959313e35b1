package model

// Entity names one of the three record collections
type Entity string

const (
	EntityClient  Entity = "clients"
	EntityProject Entity = "projects"
	EntityPayment Entity = "payments"
)

// Entities lists every collection in dependency order (parents first)
var Entities = []Entity{EntityClient, EntityProject, EntityPayment}

// Valid reports whether e is a known collection
func (e Entity) Valid() bool {
	switch e {
	case EntityClient, EntityProject, EntityPayment:
		return true
	}
	return false
}

// Record is implemented by Client, Project and Payment
type Record interface {
	RecordID() string
	Entity() Entity
}
