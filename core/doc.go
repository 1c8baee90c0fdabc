// Package core contains canonical proposal-sync domain contracts, entities,
// and orchestration logic. Leaf packages (stages, adapter, validate, sync,
// remote) depend on this package; core must not depend on them.
package core
