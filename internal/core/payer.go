package core

import (
	"FlightSurety/internal/event"
	"sync"
)

// Payer moves a withdrawn credit to the passenger's external wallet. It runs
// after the internal credit is already zeroed; an error reverts the call.
type Payer interface {
	Transfer(to event.Address, amount int64) error
}

// PayerFunc adapts a function to Payer.
type PayerFunc func(to event.Address, amount int64) error

func (f PayerFunc) Transfer(to event.Address, amount int64) error {
	return f(to, amount)
}

// WalletPayer records external wallet balances in memory.
type WalletPayer struct {
	mu      sync.Mutex
	wallets map[event.Address]int64
}

func NewWalletPayer() *WalletPayer {
	return &WalletPayer{wallets: make(map[event.Address]int64)}
}

func (w *WalletPayer) Transfer(to event.Address, amount int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wallets[to] += amount
	return nil
}

// Balance returns everything paid out to addr so far.
func (w *WalletPayer) Balance(addr event.Address) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.wallets[addr]
}

// replayPayer is used while replaying the event log; the transfers already
// happened when the calls were first applied.
type replayPayer struct{}

func (replayPayer) Transfer(event.Address, int64) error { return nil }
