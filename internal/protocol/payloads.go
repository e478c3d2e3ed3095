package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeProgress encodes a fraction-complete value as an IEEE 754 double,
// little-endian, per spec.md §4.1.
func EncodeProgress(fraction float64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(fraction))
	return buf
}

// DecodeProgress is the inverse of EncodeProgress.
func DecodeProgress(payload []byte) (float64, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("progress payload must be 8 bytes, got %d", len(payload))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(payload)), nil
}

// Stage1Result is the payload of INSTALLATION_FINISHED_STAGE_1.
type Stage1Result struct {
	CanInstallSilently bool
	TargetTerminated   bool
}

func EncodeStage1Result(r Stage1Result) []byte {
	return []byte{boolByte(r.CanInstallSilently), boolByte(r.TargetTerminated)}
}

func DecodeStage1Result(payload []byte) (Stage1Result, error) {
	if len(payload) != 2 {
		return Stage1Result{}, fmt.Errorf("stage1 result payload must be 2 bytes, got %d", len(payload))
	}
	return Stage1Result{
		CanInstallSilently: payload[0] != 0,
		TargetTerminated:   payload[1] != 0,
	}, nil
}

// Stage2Command is the inbound RESUME_TO_STAGE_2 payload.
type Stage2Command struct {
	Relaunch bool
	ShowUI   bool
}

func EncodeStage2Command(c Stage2Command) []byte {
	return []byte{boolByte(c.Relaunch), boolByte(c.ShowUI)}
}

func DecodeStage2Command(payload []byte) (Stage2Command, error) {
	if len(payload) != 2 {
		return Stage2Command{}, fmt.Errorf("stage2 command payload must be 2 bytes, got %d", len(payload))
	}
	return Stage2Command{
		Relaunch: payload[0] != 0,
		ShowUI:   payload[1] != 0,
	}, nil
}

// Stage2Result is the payload of INSTALLATION_FINISHED_STAGE_2.
type Stage2Result struct {
	Cancelled        bool
	TargetTerminated bool
}

func EncodeStage2Result(r Stage2Result) []byte {
	return []byte{boolByte(r.Cancelled), boolByte(r.TargetTerminated)}
}

func DecodeStage2Result(payload []byte) (Stage2Result, error) {
	if len(payload) != 2 {
		return Stage2Result{}, fmt.Errorf("stage2 result payload must be 2 bytes, got %d", len(payload))
	}
	return Stage2Result{
		Cancelled:        payload[0] != 0,
		TargetTerminated: payload[1] != 0,
	}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
