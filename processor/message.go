package processor

import "github.com/seriouscoderone/keriox/event"

// Message is the external parser's output: a closed set of inbound kinds,
// dispatched on by Process via a type switch. Only the wire parser
// constructs these — Processor never parses bytes itself.
type Message interface {
	isMessage()
}

// NoticeEvent carries one signed key event.
type NoticeEvent struct {
	Event event.SignedEventMessage
}

func (NoticeEvent) isMessage() {}

// NoticeNontransReceipt carries one nontransferable witness receipt.
type NoticeNontransReceipt struct {
	Receipt event.NontransReceipt
}

func (NoticeNontransReceipt) isMessage() {}

// NoticeTransReceipt carries one transferable witness receipt.
type NoticeTransReceipt struct {
	Receipt event.TransferableReceipt
}

func (NoticeTransReceipt) isMessage() {}

// Reply is the query/reply subsystem's message shape. It is out of scope
// (spec.md §1 Non-goals) beyond this placeholder, which Process routes
// straight back as an error — there is no reply-processing pipeline here.
type Reply struct {
	Raw []byte
}

func (Reply) isMessage() {}
