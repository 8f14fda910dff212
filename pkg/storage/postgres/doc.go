// Package postgres opens the gatehouse database and Redis connections and
// owns the schema migrations.
//
// The stores themselves live next to the code that uses them (rbac.SQLStore,
// auth.SQLUserStore, limits.SQLUsage, billing.SQLPaymentStore); this package
// only hands out *sql.DB and *redis.Client handles.
package postgres
