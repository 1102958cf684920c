// internal/link/registry_test.go
package link

import (
	"testing"

	"go.uber.org/zap"

	"telemetry-service/pkg/link"
)

func TestRegistryDefaults(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	RegisterDefaultBridges(registry)

	for _, kind := range []link.Kind{link.KindSerial, link.KindTCP, link.KindUSB, link.KindReplay} {
		if !registry.IsSupported(kind) {
			t.Errorf("expected %s to be registered", kind)
		}
	}

	if kinds := registry.Kinds(); len(kinds) != 4 {
		t.Errorf("expected 4 registered kinds, got %d", len(kinds))
	}
}

func TestRegistryCreate(t *testing.T) {
	registry := NewRegistry(zap.NewNop())
	RegisterDefaultBridges(registry)

	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "replay",
			cfg:  Config{Kind: link.KindReplay},
		},
		{
			name: "serial with port",
			cfg:  Config{Kind: link.KindSerial, Serial: SerialConfig{Port: "/dev/ttyACM0", BaudRate: 115200}},
		},
		{
			name:    "serial without port",
			cfg:     Config{Kind: link.KindSerial},
			wantErr: true,
		},
		{
			name:    "tcp without host",
			cfg:     Config{Kind: link.KindTCP},
			wantErr: true,
		},
		{
			name:    "usb without ids",
			cfg:     Config{Kind: link.KindUSB},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			cfg:     Config{Kind: "bluetooth"},
			wantErr: true,
		},
		{
			name:    "replay with bad drop probability",
			cfg:     Config{Kind: link.KindReplay, Replay: ReplayConfig{DropProbability: 1.5}},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bridge, err := registry.Create(&tc.cfg, replaySensors())
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if bridge.Kind() != tc.cfg.Kind {
				t.Errorf("expected kind %s, got %s", tc.cfg.Kind, bridge.Kind())
			}
		})
	}
}
