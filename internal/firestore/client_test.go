package firestore

import (
	"github.com/rumor-ml/commons.systems/expenseimport/internal/presets"
	"github.com/rumor-ml/commons.systems/expenseimport/internal/store"
)

var (
	_ store.Store   = (*Client)(nil)
	_ presets.Store = (*Client)(nil)
)
