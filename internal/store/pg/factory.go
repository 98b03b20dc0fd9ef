package pg

import (
	"fmt"

	"github.com/namastexlabs/automagik-omni/internal/store"
)

// NewStores opens a Postgres connection pool at dsn and wires every
// domain store on top of it.
func NewStores(dsn string) (*store.Stores, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: new stores: %w", err)
	}

	return &store.Stores{
		Instances: NewInstanceStore(db),
		Access:    NewAccessRuleStore(db),
		Tracing:   NewTracingStore(db),
		Users:     NewUserStore(db),
		Sessions:  NewSessionLinkStore(db),
	}, nil
}
