package phy

import "errors"

var (
	// ErrNoCell is returned by CellSearch when no cell was detected on the
	// currently tuned frequency.
	ErrNoCell = errors.New("no cell found")

	// ErrNoSync is returned by SynchronizeSubframe when subframe timing could
	// not be recovered from the current sample stream.
	ErrNoSync = errors.New("subframe synchronization failed")

	// ErrNoSamples is returned by NextFrame when the sample source cannot
	// deliver a full subframe. The receiver treats this as loss of
	// synchronization.
	ErrNoSamples = errors.New("sample source exhausted")
)

// SubcarrierSpacing enumerates the MBSFN subcarrier spacings signaled for a
// broadcast area.
type SubcarrierSpacing uint8

const (
	Spacing15kHz SubcarrierSpacing = iota
	Spacing7k5Hz
	Spacing1k25Hz
)

func (s SubcarrierSpacing) String() string {
	switch s {
	case Spacing7k5Hz:
		return "7.5kHz"
	case Spacing1k25Hz:
		return "1.25kHz"
	default:
		return "15kHz"
	}
}

// MTCH identifies one traffic sub-channel carried on a broadcast channel:
// its logical channel ID, the service identity (TMGI) and the destination
// address the service delivers to.
type MTCH struct {
	LCID uint32
	TMGI string
	Dest string
}

// Cell describes the cell the receiver is camped on. NofPRB is the control
// channel (CAS) width, MbsfnPRB the broadcast region width; the two differ on
// the non-LTE channel bandwidths where the MBSFN portion of a frame is wider
// than CAS.
type Cell struct {
	ID       uint32
	NofPRB   uint32
	MbsfnPRB uint32
	NofPorts uint32
}

// Engine is the physical-layer contract the acquisition loop drives. A single
// goroutine (the control loop) calls all methods; implementations do not need
// to be safe for concurrent use.
//
// CellSearch, SynchronizeSubframe and NextFrame block on the underlying
// sample source, bounded by one acquisition window each.
type Engine interface {
	// CellSearch scans the current sample stream for a cell. ErrNoCell is the
	// expected miss; any other error indicates a source failure.
	CellSearch() error

	// SynchronizeSubframe attempts to recover subframe timing. ErrNoSync is
	// the expected miss.
	SynchronizeSubframe() error

	// NextFrame fills buf with exactly one subframe of samples and advances
	// the engine TTI.
	NextFrame(buf []complex64) error

	// IsControlSubframe reports whether the given TTI carries CAS data. All
	// other subframes on a dedicated FeMBMS carrier belong to the MBSFN
	// region, but only those for which IsBroadcastSubframe is true carry
	// decodable payload.
	IsControlSubframe(tti uint32) bool
	IsBroadcastSubframe(tti uint32) bool

	// BroadcastScheduleKnown reports whether the broadcast scheduling
	// information (SIB1/SIB13 derived) has been received.
	BroadcastScheduleKnown() bool

	TTI() uint32
	Cell() Cell

	NumResourceBlocks() uint32
	NumBroadcastResourceBlocks() uint32
	SetBroadcastResourceBlocks(n uint32)

	// ApplyCellConfig re-derives the engine's internal geometry from the
	// current cell and sample rate. Called after a retune.
	ApplyCellConfig()

	BroadcastAreaID() uint16
	BroadcastSubcarrierSpacing() SubcarrierSpacing

	// BroadcastServices lists the traffic sub-channels carried on the
	// broadcast channel, as signaled on the MCCH. Empty until the schedule
	// is known.
	BroadcastServices() []MTCH

	// Reset discards all acquired cell state.
	Reset()
}
