package io

import "sync"

const unitMapBuckets = 97

type unitChain struct {
	unit *ExternalFileUnit
	next *unitChain
}

// UnitMap is the process-wide directory from unit number to external unit:
// hashed singly-linked chains plus a separate closing chain holding units
// detached from the live table but still finishing teardown. A unit number
// is in at most one of the two at a time. The registry lock serializes
// table mutations only; it is never held across an actual read or write.
type UnitMap struct {
	mu          sync.Mutex
	bucket      [unitMapBuckets]*unitChain
	closing     *unitChain
	nextNewUnit int
}

// NewUnitMap returns an empty registry.
func NewUnitMap() *UnitMap {
	return &UnitMap{nextNewUnit: -100}
}

func unitHash(n int) int {
	return ((n % unitMapBuckets) + unitMapBuckets) % unitMapBuckets
}

// Create allocates and links a unit for the number. The caller must know
// the number is not already present.
func (m *UnitMap) Create(n int) *ExternalFileUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(n)
}

func (m *UnitMap) create(n int) *ExternalFileUnit {
	chain := &unitChain{unit: newExternalFileUnit(n)}
	h := unitHash(n)
	chain.next = m.bucket[h]
	m.bucket[h] = chain
	return chain.unit
}

// LookUp returns the unit for the number, or nil. No side effects.
func (m *UnitMap) LookUp(n int) *ExternalFileUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookUp(n)
}

func (m *UnitMap) lookUp(n int) *ExternalFileUnit {
	for p := m.bucket[unitHash(n)]; p != nil; p = p.next {
		if p.unit.unitNumber == n {
			return p.unit
		}
	}
	return nil
}

// LookUpOrCreate returns the existing unit or a fresh one, reporting
// through wasExtant whether it pre-existed.
func (m *UnitMap) LookUpOrCreate(n int, wasExtant *bool) *ExternalFileUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.lookUp(n); u != nil {
		if wasExtant != nil {
			*wasExtant = true
		}
		return u
	}
	if wasExtant != nil {
		*wasExtant = false
	}
	return m.create(n)
}

// NewUnitNumber allocates a number not currently connected, for NEWUNIT=.
func (m *UnitMap) NewUnitNumber() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		n := m.nextNewUnit
		m.nextNewUnit--
		if m.lookUp(n) == nil {
			return n
		}
	}
}

// LookUpForClose atomically unlinks the unit from the live table onto the
// closing chain and returns it for the caller to finish closing; nil when
// the number is not connected.
func (m *UnitMap) LookUpForClose(n int) *ExternalFileUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := unitHash(n)
	var previous *unitChain
	for p := m.bucket[h]; p != nil; previous, p = p, p.next {
		if p.unit.unitNumber == n {
			if previous != nil {
				previous.next = p.next
			} else {
				m.bucket[h] = p.next
			}
			p.next = m.closing
			m.closing = p
			return p.unit
		}
	}
	return nil
}

// DestroyClosed removes the unit from the closing chain and releases it.
// Call only once the unit has no pending statement.
func (m *UnitMap) DestroyClosed(unit *ExternalFileUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var previous *unitChain
	for p := m.closing; p != nil; previous, p = p, p.next {
		if p.unit == unit {
			if previous != nil {
				previous.next = p.next
			} else {
				m.closing = p.next
			}
			return
		}
	}
}

// CloseAll closes and releases every live unit, for total shutdown and
// forced abort.
func (m *UnitMap) CloseAll(handler *IoErrorHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for j := range m.bucket {
		for p := m.bucket[j]; p != nil; p = p.next {
			p.unit.CloseUnit(CloseStatusKeep, handler)
		}
		m.bucket[j] = nil
	}
}

//-----------------------------------------------------------------------------
// Process-wide registry
//-----------------------------------------------------------------------------

// The predefined unit numbers: 5 reads standard input, 6 writes standard
// output. Both are non-positionable.
const (
	PredefinedInputUnit  = 5
	PredefinedOutputUnit = 6
)

var (
	registryMu    sync.Mutex
	registry      *UnitMap
	defaultOutput *ExternalFileUnit
	defaultInput  int = PredefinedInputUnit
	defaultOut    int = PredefinedOutputUnit
)

// getUnitMap lazily creates the registry, seeded with the two standard
// predefined units.
func getUnitMap() *UnitMap {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry != nil {
		return registry
	}
	registry = NewUnitMap()
	out := registry.Create(defaultOut)
	out.file.Predefine(1, "stdout")
	out.file.SetMayRead(false)
	out.file.SetMayWrite(true)
	out.Access = AccessSequential
	defaultOutput = out
	in := registry.Create(defaultInput)
	in.file.Predefine(0, "stdin")
	in.file.SetMayRead(true)
	in.file.SetMayWrite(false)
	in.Access = AccessSequential
	return registry
}

// SetPredefinedUnits renumbers the units preconnected to standard input
// and standard output. It has no effect once the registry exists.
func SetPredefinedUnits(input, output int) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry != nil || input == output {
		return
	}
	defaultInput = input
	defaultOut = output
}

// LookUpUnit returns the connected unit for the number, or nil.
func LookUpUnit(n int) *ExternalFileUnit {
	return getUnitMap().LookUp(n)
}

// LookUpOrCreateUnit returns the unit for the number, creating it on first
// reference.
func LookUpOrCreateUnit(n int, wasExtant *bool) *ExternalFileUnit {
	return getUnitMap().LookUpOrCreate(n, wasExtant)
}

// LookUpUnitForClose detaches the unit for closing; nil when not connected.
func LookUpUnitForClose(n int) *ExternalFileUnit {
	return getUnitMap().LookUpForClose(n)
}

// NewUnitNumber allocates an unused unit number.
func NewUnitNumber() int {
	return getUnitMap().NewUnitNumber()
}

// CloseAllUnits closes every live unit and discards the registry.
func CloseAllUnits(handler *IoErrorHandler) {
	m := getUnitMap()
	registryMu.Lock()
	registry = nil
	defaultOutput = nil
	registryMu.Unlock()
	m.CloseAll(handler)
}

// FlushOutputOnCrash pushes pending default-output data out before a fatal
// diagnostic so it is not lost with the process.
func FlushOutputOnCrash() {
	registryMu.Lock()
	out := defaultOutput
	registryMu.Unlock()
	if out == nil {
		return
	}
	handler := NewErrorHandler("", 0)
	handler.HasIoStat() // a nested crash during the flush must not recurse
	out.Flush(&handler)
}
