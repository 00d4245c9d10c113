package transport

import "github.com/nativecql/coredriver/frame"

// ConnObserver receives lifecycle hooks for one connection's requests
// and pushed events, for tracing/metrics integrations. Every method
// must return promptly; slow observers would otherwise block the
// connection's read loop.
type ConnObserver interface {
	OnRequestStart(streamID int16, opcode frame.OpCode)
	OnRequestSuccess(streamID int16, opcode frame.OpCode)
	OnRequestFailure(streamID int16, opcode frame.OpCode, err error)
	OnEvent(df frame.DecodedFrame)
	OnClosing(reason error)
}

// NopConnObserver discards every hook.
type NopConnObserver struct{}

func (NopConnObserver) OnRequestStart(int16, frame.OpCode)          {}
func (NopConnObserver) OnRequestSuccess(int16, frame.OpCode)        {}
func (NopConnObserver) OnRequestFailure(int16, frame.OpCode, error) {}
func (NopConnObserver) OnEvent(frame.DecodedFrame)                  {}
func (NopConnObserver) OnClosing(error)                             {}

// RequestObserver mirrors ConnObserver one level up, at the request
// pipeline's granularity (per logical request, potentially spanning
// several per-host attempts), for a driver-wide tracing id rather than
// a single connection's stream id.
type RequestObserver interface {
	OnRequestStart(trackingID uint64)
	OnNodeStart(trackingID uint64, host string)
	OnNodeSuccess(trackingID uint64, host string)
	OnNodeError(trackingID uint64, host string, err error)
	OnRequestSuccess(trackingID uint64)
	OnRequestFailure(trackingID uint64, err error)
}

type NopRequestObserver struct{}

func (NopRequestObserver) OnRequestStart(uint64)               {}
func (NopRequestObserver) OnNodeStart(uint64, string)          {}
func (NopRequestObserver) OnNodeSuccess(uint64, string)        {}
func (NopRequestObserver) OnNodeError(uint64, string, error)   {}
func (NopRequestObserver) OnRequestSuccess(uint64)             {}
func (NopRequestObserver) OnRequestFailure(uint64, error)      {}
