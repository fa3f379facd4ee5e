package depot

import (
	"strings"
	"testing"
)

func TestLoadSettings(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Settings
		wantErr bool
	}{
		{
			name: "Full document",
			input: `
chunk_bytes: 8192
entity_limit: 1000
workers: 4
log_level: debug
`,
			want: Settings{ChunkBytes: 8192, EntityLimit: 1000, Workers: 4, LogLevel: "debug"},
		},
		{
			name:  "Empty document",
			input: "",
			want:  Settings{},
		},
		{
			name:    "Unknown key",
			input:   "chunk_size: 10\n",
			wantErr: true,
		},
		{
			name:    "Negative value",
			input:   "workers: -1\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadSettings(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && *got != tt.want {
				t.Errorf("LoadSettings() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestSettingsWorldOptions(t *testing.T) {
	settings := &Settings{ChunkBytes: 96, EntityLimit: 2, LogLevel: "warn"}
	opts, err := settings.WorldOptions()
	if err != nil {
		t.Fatalf("WorldOptions failed: %v", err)
	}
	world := Factory.NewWorld(opts...)
	if world.chunkBytes != 96 || world.entities.limit != 2 {
		t.Errorf("World chunk bytes %d, entity limit %d", world.chunkBytes, world.entities.limit)
	}

	if _, err := (&Settings{LogLevel: "loud"}).Logger(); err == nil {
		t.Errorf("Invalid log level accepted")
	}
}

func TestSettingsApply(t *testing.T) {
	chunkBytes, entityLimit := Config.snapshot()
	defer func() {
		Config.SetChunkBytes(chunkBytes)
		Config.SetEntityLimit(entityLimit)
		Config.SetLogger(nil)
	}()

	if err := (&Settings{ChunkBytes: 4096, EntityLimit: 10}).Apply(); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	world := Factory.NewWorld()
	if world.chunkBytes != 4096 || world.entities.limit != 10 {
		t.Errorf("World chunk bytes %d, entity limit %d", world.chunkBytes, world.entities.limit)
	}
}
