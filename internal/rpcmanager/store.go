package rpcmanager

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jihwankim/windctl/internal/namespace"
)

// store is the Manager's in-memory namespace: one versioned JSON value per
// known slot. Every mutation is guarded by a single mutex, which is what
// makes Append a genuine atomic server-side operation instead of the
// original prototype's racy client-side read-modify-write.
type store struct {
	mu    sync.Mutex
	slots map[namespace.Slot]*slotState
}

type slotState struct {
	value   json.RawMessage
	version uint64
}

func newStore() *store {
	return &store{slots: make(map[namespace.Slot]*slotState)}
}

func (s *store) get(slot namespace.Slot) (value json.RawMessage, version uint64, present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		return nil, 0, false
	}
	return st.value, st.version, true
}

func (s *store) set(slot namespace.Slot, value json.RawMessage) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.slots[slot]
	if !ok {
		st = &slotState{}
		s.slots[slot] = st
	}
	st.value = value
	st.version++
	return st.version
}

// ensureInitialized sets slot to value only if it is currently absent,
// mirroring "a logs slot is initialized if absent" on first client connect.
func (s *store) ensureInitialized(slot namespace.Slot, value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[slot]; ok {
		return
	}
	s.slots[slot] = &slotState{value: value, version: 1}
}

// append decodes the current slot value as a JSON array (treating an absent
// slot as an empty array), appends entry, and writes the result back in the
// same critical section, so Append needs no client-side read-modify-write.
func (s *store) append(slot namespace.Slot, entry json.RawMessage) (length int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.slots[slot]
	var arr []json.RawMessage
	if ok && len(st.value) > 0 {
		if err := json.Unmarshal(st.value, &arr); err != nil {
			return 0, fmt.Errorf("slot %q does not hold a JSON array: %w", slot, err)
		}
	}
	arr = append(arr, entry)

	newValue, err := json.Marshal(arr)
	if err != nil {
		return 0, fmt.Errorf("marshaling appended slot %q: %w", slot, err)
	}
	if !ok {
		st = &slotState{}
		s.slots[slot] = st
	}
	st.value = newValue
	st.version++
	return len(arr), nil
}

// snapshot returns every slot's current raw value, for get_ns.
func (s *store) snapshot() map[namespace.Slot]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[namespace.Slot]json.RawMessage, len(s.slots))
	for slot, st := range s.slots {
		out[slot] = st.value
	}
	return out
}
