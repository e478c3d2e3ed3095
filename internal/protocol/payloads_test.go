package protocol

import "testing"

func TestProgressRoundTrip(t *testing.T) {
	for _, want := range []float64{0, 0.33333, 1, 0.999999} {
		got, err := DecodeProgress(EncodeProgress(want))
		if err != nil {
			t.Fatalf("DecodeProgress: %v", err)
		}
		if got != want {
			t.Errorf("got %v want %v", got, want)
		}
	}
}

func TestDecodeProgressWrongSize(t *testing.T) {
	if _, err := DecodeProgress([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error")
	}
}

func TestStage1ResultRoundTrip(t *testing.T) {
	for _, want := range []Stage1Result{
		{CanInstallSilently: true, TargetTerminated: false},
		{CanInstallSilently: false, TargetTerminated: true},
		{},
	} {
		got, err := DecodeStage1Result(EncodeStage1Result(want))
		if err != nil {
			t.Fatalf("DecodeStage1Result: %v", err)
		}
		if got != want {
			t.Errorf("got %+v want %+v", got, want)
		}
	}
}

func TestStage2CommandRoundTrip(t *testing.T) {
	want := Stage2Command{Relaunch: true, ShowUI: false}
	got, err := DecodeStage2Command(EncodeStage2Command(want))
	if err != nil {
		t.Fatalf("DecodeStage2Command: %v", err)
	}
	if got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestStage2ResultRoundTrip(t *testing.T) {
	want := Stage2Result{Cancelled: true, TargetTerminated: true}
	got, err := DecodeStage2Result(EncodeStage2Result(want))
	if err != nil {
		t.Fatalf("DecodeStage2Result: %v", err)
	}
	if got != want {
		t.Errorf("got %+v want %+v", got, want)
	}
}

func TestDecodeStage1ResultWrongSize(t *testing.T) {
	if _, err := DecodeStage1Result([]byte{1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeStage2CommandWrongSize(t *testing.T) {
	if _, err := DecodeStage2Command(nil); err == nil {
		t.Fatal("expected error")
	}
}
