// Package dispatch delivers triggered notifications asynchronously.
//
// The Dispatcher is what the address space hands every notification to. It owns
// a bounded FIFO queue drained by one goroutine, so delivery order matches trigger
// order. Sinks (journal, Redis, MQTT, the in-process Hub) never see a
// notification twice and their errors are logged rather than returned to the
// triggering code.
package dispatch
