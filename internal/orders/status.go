package orders

import "github.com/ariefcatur/go-stock-ledger/internal/model"

// PENDING -> CONFIRMED is the only transition; CONFIRMED is terminal.
var validNext = map[model.Status]map[model.Status]bool{
	model.StatusPending:   {model.StatusConfirmed: true},
	model.StatusConfirmed: {},
}

func CanTransition(from, to model.Status) bool {
	return validNext[from][to]
}
