package audio

import "go.uber.org/atomic"

// Stats counts pipeline events since the manager was created.
type Stats struct {
	capturedChunks    atomic.Uint64
	capturedBytes     atomic.Uint64
	sendQueueDrops    atomic.Uint64
	recordingDrops    atomic.Uint64
	deviceReadErrors  atomic.Uint64
	deviceWriteErrors atomic.Uint64
	feedAccepted      atomic.Uint64
	feedRejected      atomic.Uint64
	ringOverflows     atomic.Uint64
	chunksPlayed      atomic.Uint64
	bytesPlayed       atomic.Uint64
	inaudibleChunks   atomic.Uint64
	corruptions       atomic.Uint64
	drainDiscards     atomic.Uint64
	faults            atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	CapturedChunks    uint64 `json:"captured_chunks"`
	CapturedBytes     uint64 `json:"captured_bytes"`
	SendQueueDrops    uint64 `json:"send_queue_drops"`
	RecordingDrops    uint64 `json:"recording_drops"`
	DeviceReadErrors  uint64 `json:"device_read_errors"`
	DeviceWriteErrors uint64 `json:"device_write_errors"`
	FeedAccepted      uint64 `json:"feed_accepted"`
	FeedRejected      uint64 `json:"feed_rejected"`
	RingOverflows     uint64 `json:"ring_overflows"`
	ChunksPlayed      uint64 `json:"chunks_played"`
	BytesPlayed       uint64 `json:"bytes_played"`
	InaudibleChunks   uint64 `json:"inaudible_chunks"`
	Corruptions       uint64 `json:"corruptions"`
	DrainDiscards     uint64 `json:"drain_discards"`
	Faults            uint64 `json:"faults"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		CapturedChunks:    s.capturedChunks.Load(),
		CapturedBytes:     s.capturedBytes.Load(),
		SendQueueDrops:    s.sendQueueDrops.Load(),
		RecordingDrops:    s.recordingDrops.Load(),
		DeviceReadErrors:  s.deviceReadErrors.Load(),
		DeviceWriteErrors: s.deviceWriteErrors.Load(),
		FeedAccepted:      s.feedAccepted.Load(),
		FeedRejected:      s.feedRejected.Load(),
		RingOverflows:     s.ringOverflows.Load(),
		ChunksPlayed:      s.chunksPlayed.Load(),
		BytesPlayed:       s.bytesPlayed.Load(),
		InaudibleChunks:   s.inaudibleChunks.Load(),
		Corruptions:       s.corruptions.Load(),
		DrainDiscards:     s.drainDiscards.Load(),
		Faults:            s.faults.Load(),
	}
}
