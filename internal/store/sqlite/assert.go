package sqlite

import "github.com/VamsiGaletiInfinize/crawler/internal/store"

var _ store.Store = (*DB)(nil)
