// internal/codec/codec_test.go
package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"telemetry-service/internal/model"
)

func testSensors() []model.SensorConfig {
	return []model.SensorConfig{
		{ID: "emg-a", Tag: "ABE", Name: "EMG2ch_A"},
		{ID: "emg-b", Tag: "ABB", Name: "EMG2ch_B"},
	}
}

func testDecoder(t *testing.T) *Decoder {
	t.Helper()
	registry, err := NewRegistry(testSensors())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewDecoder(registry)
}

// mustRaw converts a hex string into the raw payload bytes it renders from
func mustRaw(t *testing.T, hexText string) []byte {
	t.Helper()
	raw, err := hex.DecodeString(hexText)
	if err != nil {
		t.Fatalf("bad test payload %q: %v", hexText, err)
	}
	return raw
}

// group builds one 24-char sample group with the given channel field values
func group(a, b uint32) string {
	return fmt.Sprintf("%06X%06X%06X%06X", 0xDDDDDD, a, 0xEEEEEE, b)
}

func TestNewRegistry(t *testing.T) {
	cases := []struct {
		name    string
		sensors []model.SensorConfig
		wantErr bool
	}{
		{"two distinct tags", testSensors(), false},
		{"lowercase tag accepted", []model.SensorConfig{{ID: "s", Tag: "abe", Name: "x"}}, false},
		{"empty list", nil, true},
		{"duplicate tag", []model.SensorConfig{
			{ID: "s1", Tag: "ABE"}, {ID: "s2", Tag: "abe"},
		}, true},
		{"tag too short", []model.SensorConfig{{ID: "s", Tag: "AB"}}, true},
		{"tag too long", []model.SensorConfig{{ID: "s", Tag: "ABEF"}}, true},
		{"non-hex tag", []model.SensorConfig{{ID: "s", Tag: "XYZ"}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.sensors)
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRegistryNormalizesTags(t *testing.T) {
	registry, err := NewRegistry([]model.SensorConfig{{ID: "s", Tag: " abe ", Name: "x"}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, ok := registry.Resolve("ABE"); !ok {
		t.Fatal("normalized tag ABE not resolvable")
	}
	sensors := registry.Sensors()
	if len(sensors) != 1 || sensors[0].Tag != "ABE" {
		t.Fatalf("Sensors() = %+v, want normalized tag ABE", sensors)
	}
}

func TestDecodeSingleGroup(t *testing.T) {
	d := testDecoder(t)

	raw := mustRaw(t, "ABE5"+group(0x010203, 0xFFFFFF))
	frame, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if frame.Sensor != "emg-a" {
		t.Errorf("Sensor = %s, want emg-a", frame.Sensor)
	}
	if frame.Sequence != 5 {
		t.Errorf("Sequence = %d, want 5", frame.Sequence)
	}
	if len(frame.ChannelA) != 1 || len(frame.ChannelB) != 1 {
		t.Fatalf("sample counts = %d/%d, want 1/1", len(frame.ChannelA), len(frame.ChannelB))
	}
	if frame.ChannelA[0] != float64(0x010203) {
		t.Errorf("ChannelA[0] = %v, want %v", frame.ChannelA[0], float64(0x010203))
	}
	if frame.ChannelB[0] != float64(0xFFFFFF) {
		t.Errorf("ChannelB[0] = %v, want %v", frame.ChannelB[0], float64(0xFFFFFF))
	}
}

func TestDecodeFieldOffsets(t *testing.T) {
	d := testDecoder(t)

	// channel A is chars [6:12) of the group, channel B chars [18:24)
	raw := mustRaw(t, "ABB0"+"000102030405060708090A0B")
	frame, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if frame.Sensor != "emg-b" {
		t.Errorf("Sensor = %s, want emg-b", frame.Sensor)
	}
	if got := frame.ChannelA[0]; got != float64(0x030405) {
		t.Errorf("ChannelA[0] = %v, want %v", got, float64(0x030405))
	}
	if got := frame.ChannelB[0]; got != float64(0x090A0B) {
		t.Errorf("ChannelB[0] = %v, want %v", got, float64(0x090A0B))
	}
}

func TestDecodeGroupCounts(t *testing.T) {
	d := testDecoder(t)

	cases := []struct {
		name       string
		payload    string
		wantGroups int
	}{
		{"one group", "ABE0" + group(1, 2), 1},
		{"three groups", "ABE0" + group(1, 2) + group(3, 4) + group(5, 6), 3},
		{"partial trailing group dropped", "ABE0" + group(1, 2) + group(3, 4) + group(5, 6)[:12], 2},
		{"seven groups", "ABE0" + strings.Repeat(group(9, 9), 7), 7},
		{"eighth group ignored", "ABE0" + strings.Repeat(group(9, 9), 8), 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := d.Decode(mustRaw(t, tc.payload))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(frame.ChannelA) != tc.wantGroups || len(frame.ChannelB) != tc.wantGroups {
				t.Fatalf("sample counts = %d/%d, want %d/%d",
					len(frame.ChannelA), len(frame.ChannelB), tc.wantGroups, tc.wantGroups)
			}
		})
	}
}

func TestDecodeSampleOrder(t *testing.T) {
	d := testDecoder(t)

	raw := mustRaw(t, "ABE0"+group(10, 20)+group(11, 21)+group(12, 22))
	frame, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	wantA := []float64{10, 11, 12}
	wantB := []float64{20, 21, 22}
	for i := range wantA {
		if frame.ChannelA[i] != wantA[i] {
			t.Errorf("ChannelA[%d] = %v, want %v", i, frame.ChannelA[i], wantA[i])
		}
		if frame.ChannelB[i] != wantB[i] {
			t.Errorf("ChannelB[%d] = %v, want %v", i, frame.ChannelB[i], wantB[i])
		}
	}
}

func TestDecodeSequenceDigit(t *testing.T) {
	d := testDecoder(t)

	for seq := 0; seq < 16; seq++ {
		payload := fmt.Sprintf("ABE%X%s", seq, group(1, 2))
		frame, err := d.Decode(mustRaw(t, payload))
		if err != nil {
			t.Fatalf("seq %d: Decode: %v", seq, err)
		}
		if int(frame.Sequence) != seq {
			t.Errorf("Sequence = %d, want %d", frame.Sequence, seq)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	d := testDecoder(t)

	cases := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"empty payload", "", ErrMalformedFrame},
		{"header only", "ABE0", ErrMalformedFrame},
		{"incomplete first group", "ABE0" + group(1, 2)[:22], ErrMalformedFrame},
		{"unknown tag", "FFF0" + group(1, 2), ErrUnknownSensor},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Decode(mustRaw(t, tc.payload))
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Decode error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestDecodeMinimumLengthBoundary(t *testing.T) {
	d := testDecoder(t)

	// 28 hex chars (14 raw bytes) is the smallest decodable payload
	if _, err := d.Decode(mustRaw(t, "ABE0"+group(1, 2))); err != nil {
		t.Fatalf("minimum payload rejected: %v", err)
	}
	if _, err := d.Decode(mustRaw(t, ("ABE0" + group(1, 2))[:26])); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("13-byte payload error = %v, want ErrMalformedFrame", err)
	}
}
