package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/teslashibe/go-pathsense/pkg/audioio"
)

func TestPrompter_Int(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		lowest int
		want   int
	}{
		{"empty takes default", "\n", -1, -1},
		{"eof takes default", "", -1, -1},
		{"number", "2\n", -1, 2},
		{"retry after garbage", "cam\n3\n", -1, 3},
		{"retry below minimum", "-5\n0\n", 0, 0},
		{"trailing spaces", "  4  \n", -1, 4},
		{"invalid at eof takes default", "cam", -1, -1},
		{"below minimum at eof", "-3", -1, -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tc.input), &out)
			got, err := p.Int("Camera index", -1, tc.lowest)
			if err != nil {
				t.Fatalf("Int: %v", err)
			}
			if got != tc.want {
				t.Errorf("Int = %d, want %d", got, tc.want)
			}
			if !strings.Contains(out.String(), "Camera index [-1]: ") {
				t.Errorf("prompt not shown: %q", out.String())
			}
		})
	}
}

func TestListInputs(t *testing.T) {
	var out bytes.Buffer
	ListInputs(&out, []audioio.DeviceInfo{
		{Index: 0, Name: "Built-in Microphone", HostAPI: "Core Audio", MaxInputChannels: 1},
		{Index: 1, Name: "Built-in Output", MaxOutputChannels: 2},
		{Index: 2, Name: "USB Headset", MaxInputChannels: 1, MaxOutputChannels: 2},
	})
	got := out.String()
	for _, want := range []string{" 0  Built-in Microphone (Core Audio)", " 2  USB Headset"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "Built-in Output") {
		t.Error("output-only device listed")
	}

	out.Reset()
	ListInputs(&out, nil)
	if !strings.Contains(out.String(), "none found") {
		t.Errorf("got %q", out.String())
	}
}
