package game

import "sync"

// DefaultFireDebounce is how many consecutive held polls produce one shot.
const DefaultFireDebounce = 150

// Intent is what a player asks its tank to do for one tick.
type Intent struct {
	Turn    int  `json:"turn"`    // -1 right, 0 none, +1 left
	Advance int  `json:"advance"` // -1 reverse, 0 none, +1 forward
	Fire    bool `json:"fire"`
}

// Clamp maps out-of-range turn/advance values to -1, 0 or +1 by sign.
func (in Intent) Clamp() Intent {
	in.Turn = sign(in.Turn)
	in.Advance = sign(in.Advance)
	return in
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// InputProvider supplies one intent per tank slot per tick.
// The engine polls every slot exactly once per tick, in slot order.
type InputProvider interface {
	Intent(slot int) Intent
}

// NoInput is an InputProvider that never asks for anything.
type NoInput struct{}

// Intent implements InputProvider.
func (NoInput) Intent(int) Intent { return Intent{} }

// KeyState is the raw held-key state for one player.
type KeyState struct {
	Turn     int  `json:"turn"`
	Advance  int  `json:"advance"`
	FireHeld bool `json:"fireHeld"`
}

// FireDebouncer turns a held fire key into occasional fire pulses.
// Each poll with the key held adds one to the slot's counter, each poll
// without it takes one away; once the counter passes the threshold it
// resets and a single pulse is emitted.
type FireDebouncer struct {
	threshold int
	counters  []int
}

// NewFireDebouncer creates debounce state for slots players.
func NewFireDebouncer(slots, threshold int) *FireDebouncer {
	if threshold < 0 {
		threshold = 0
	}
	return &FireDebouncer{
		threshold: threshold,
		counters:  make([]int, slots),
	}
}

// Poll records one observation of the fire key and reports whether it fires.
func (d *FireDebouncer) Poll(slot int, held bool) bool {
	if slot < 0 || slot >= len(d.counters) {
		return false
	}
	if held {
		d.counters[slot]++
	} else if d.counters[slot] > 0 {
		d.counters[slot]--
	}
	if d.counters[slot] > d.threshold {
		d.counters[slot] = 0
		return true
	}
	return false
}

// Reset zeroes every counter.
func (d *FireDebouncer) Reset() {
	clear(d.counters)
}

// IntentBuffer latches intents pushed from the network and hands them to the
// tick loop. Turn and advance persist until replaced; a fire request is a
// one-shot pulse consumed by the next poll. Held-key state set through SetKeys
// is debounced on every poll.
type IntentBuffer struct {
	mu       sync.Mutex
	intents  []Intent
	keys     []KeyState
	useKeys  []bool
	debounce *FireDebouncer
}

// NewIntentBuffer creates a buffer for slots players using the given fire
// debounce threshold.
func NewIntentBuffer(slots, debounceThreshold int) *IntentBuffer {
	return &IntentBuffer{
		intents:  make([]Intent, slots),
		keys:     make([]KeyState, slots),
		useKeys:  make([]bool, slots),
		debounce: NewFireDebouncer(slots, debounceThreshold),
	}
}

// Slots returns how many players the buffer serves.
func (b *IntentBuffer) Slots() int {
	return len(b.intents)
}

// Set latches an intent for slot. Values are clamped here, at the boundary,
// never inside the resolver. It reports false for an unknown slot.
func (b *IntentBuffer) Set(slot int, in Intent) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot < 0 || slot >= len(b.intents) {
		return false
	}
	in = in.Clamp()
	// A pending pulse survives until it is polled.
	in.Fire = in.Fire || b.intents[slot].Fire
	b.intents[slot] = in
	b.useKeys[slot] = false
	return true
}

// SetKeys latches raw key state for slot.
func (b *IntentBuffer) SetKeys(slot int, ks KeyState) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot < 0 || slot >= len(b.keys) {
		return false
	}
	ks.Turn = sign(ks.Turn)
	ks.Advance = sign(ks.Advance)
	b.keys[slot] = ks
	b.useKeys[slot] = true
	return true
}

// Intent implements InputProvider.
func (b *IntentBuffer) Intent(slot int) Intent {
	b.mu.Lock()
	defer b.mu.Unlock()

	if slot < 0 || slot >= len(b.intents) {
		return Intent{}
	}

	if b.useKeys[slot] {
		ks := b.keys[slot]
		return Intent{
			Turn:    ks.Turn,
			Advance: ks.Advance,
			Fire:    b.debounce.Poll(slot, ks.FireHeld),
		}
	}

	in := b.intents[slot]
	b.intents[slot].Fire = false
	return in
}

// Reset drops every latched intent and debounce counter.
func (b *IntentBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.intents)
	clear(b.keys)
	clear(b.useKeys)
	b.debounce.Reset()
}
