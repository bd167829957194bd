package repositories

// Store is the storage entry point handed to the service container.
// Both the PostgreSQL and the in-memory adapters implement it.
type Store interface {
	TransactionManager
}
