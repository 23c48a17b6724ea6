// Package spi implements a polled SPI master for peripherals that expose a
// single data register guarded by TXE/RXNE readiness flags, such as the SPI
// blocks of STM32F4 parts.
//
// A Bus is parameterised at compile time by its word width (uint8 or uint16)
// and by its wiring: FullDuplex for the usual two data lines, HalfDuplex for a
// single bidirectional line. Operations that only make sense on a full-duplex
// bus (symmetric transfers and batches) are package functions taking a
// *Bus[W, FullDuplex], so they cannot be reached from a half-duplex handle.
//
// Everything runs on the caller's goroutine. "Blocking" means spinning on the
// status register; there is no timeout. A Bus must not be shared between
// goroutines without external locking.
package spi
