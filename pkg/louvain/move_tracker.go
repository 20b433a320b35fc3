package louvain

import (
	"encoding/json"
	"io"
	"os"
)

// MoveEvent is one node relocation during local optimization
type MoveEvent struct {
	MoveNumber int     `json:"move"`
	Level      int     `json:"level"`
	Node       int     `json:"node"`
	FromComm   int     `json:"from_comm"`
	ToComm     int     `json:"to_comm"`
	Gain       float64 `json:"gain"`
	Modularity float64 `json:"modularity"`
}

// MoveTracker writes MoveEvents as JSON lines
type MoveTracker struct {
	closer  io.Closer
	encoder *json.Encoder
	moves   int
}

// NewMoveTracker traces moves to w. The caller owns w.
func NewMoveTracker(w io.Writer) *MoveTracker {
	return &MoveTracker{encoder: json.NewEncoder(w)}
}

// CreateMoveTracker traces moves to a new file at path
func CreateMoveTracker(path string) (*MoveTracker, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &MoveTracker{closer: file, encoder: json.NewEncoder(file)}, nil
}

// LogMove records a move. A nil tracker is a no-op.
func (mt *MoveTracker) LogMove(level, node, fromComm, toComm int, gain, modularity float64) {
	if mt == nil {
		return
	}
	mt.moves++
	_ = mt.encoder.Encode(MoveEvent{
		MoveNumber: mt.moves,
		Level:      level,
		Node:       node,
		FromComm:   fromComm,
		ToComm:     toComm,
		Gain:       gain,
		Modularity: modularity,
	})
}

// Close releases the underlying file if the tracker opened one
func (mt *MoveTracker) Close() error {
	if mt == nil || mt.closer == nil {
		return nil
	}
	return mt.closer.Close()
}
