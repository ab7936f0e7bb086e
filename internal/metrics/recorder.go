package metrics

import "time"

// Recorder receives outcome events from the transaction and pinning flows.
type Recorder interface {
	TxOutcome(kind, outcome string, chainID uint64, d time.Duration)
	PinOutcome(asset, outcome string, bytes int64, d time.Duration)
	ChainSwitch(chainID uint64)
}

type NoopRecorder struct{}

func (NoopRecorder) TxOutcome(string, string, uint64, time.Duration) {}
func (NoopRecorder) PinOutcome(string, string, int64, time.Duration) {}
func (NoopRecorder) ChainSwitch(uint64)                              {}
