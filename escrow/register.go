package escrow

import (
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/config"
	"github.com/seriouscoderone/keriox/kelstore"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/processor"
)

// RegisterAll wires every escrow observer onto bus, using policy to bound
// every full-table-scanning observer's per-notification work. Callers that
// only need a subset may register the individual observer types directly
// instead. Pass config.Unbounded for the reference design's default of no
// automatic expiry.
func RegisterAll(bus *notify.Bus, store kelstore.Store, proc *processor.Processor, policy config.EscrowPolicy, log logger.Logger) {
	bus.Register(notify.KeyEventAdded, &OutOfOrderObserver{Store: store, Processor: proc, Log: log})
	bus.Register(notify.KeyEventAdded, &PartiallySignedObserver{Store: store, Processor: proc, Log: log})
	bus.Register(notify.KeyEventAdded, &MissingDelegatorObserver{Store: store, Processor: proc, Log: log, Policy: policy})
	bus.Register(notify.KeyEventAdded, &ReceiptOutOfOrderObserver{Store: store, Processor: proc, Log: log})

	pw := &PartiallyWitnessedObserver{Store: store, Processor: proc, Log: log}
	bus.Register(notify.ReceiptAccepted, pw)
	bus.Register(notify.ReceiptEscrowed, pw)
}
