package memory

import (
	"testing"

	"github.com/agenthands/papergraph/internal/store"
	"github.com/agenthands/papergraph/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.GraphStore {
		return New()
	})
}
