// Package device defines the radio transport boundary used by the session layer.
//
// It contains:
//   - The Transport contract (discover, connect, enumerate, subscribe, write, cancel)
//   - Discovery data (Peripheral) and connection handles
//   - Structured transport errors (ConnectionError, NotFoundError and sentinels)
//   - UUID normalization helpers for configured service and characteristic identifiers
//
// Concrete transports live in sub-packages: goble (go-ble, darwin and linux) and
// simulated (in-process firmware emulation).
package device
