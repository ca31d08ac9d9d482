package alert

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pathsense/pkg/detection"
	"github.com/teslashibe/go-pathsense/pkg/inference"
)

func TestGate_Cooldown(t *testing.T) {
	g := NewGate(2 * time.Second)
	t0 := time.Unix(1000, 0)
	ok := func() error { return nil }

	assert.Zero(t, g.Remaining(t0))
	assert.True(t, g.Dispatch(t0, ok), "first alert always passes")
	assert.False(t, g.Dispatch(t0.Add(1999*time.Millisecond), ok))
	assert.Equal(t, time.Second, g.Remaining(t0.Add(time.Second)))
	assert.True(t, g.Dispatch(t0.Add(2*time.Second), ok))
	assert.Equal(t, t0.Add(2*time.Second), g.Last())
}

func TestGate_FailedDispatchKeepsLastTime(t *testing.T) {
	g := NewGate(time.Second)
	t0 := time.Unix(1000, 0)

	assert.False(t, g.Dispatch(t0, func() error { return errors.New("speaker gone") }))
	assert.True(t, g.Last().IsZero())
	assert.True(t, g.Dispatch(t0.Add(time.Millisecond), func() error { return nil }))
}

func TestGate_SimultaneousDispatchesPassOnce(t *testing.T) {
	g := NewGate(time.Second)
	now := time.Unix(1000, 0)

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Dispatch(now, func() error {
				fired.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fired.Load())
}

func TestGate_DispatchesAreSpacedByCooldown(t *testing.T) {
	const cooldown = 700 * time.Millisecond
	g := NewGate(cooldown)
	t0 := time.Unix(1000, 0)

	var fired []time.Time
	// Irregular attempts, some bunched, some sparse.
	offsets := []int{0, 10, 300, 690, 700, 705, 1200, 1399, 1400, 1401, 3000, 3001, 3650, 3700}
	for _, ms := range offsets {
		now := t0.Add(time.Duration(ms) * time.Millisecond)
		g.Dispatch(now, func() error {
			fired = append(fired, now)
			return nil
		})
	}

	require.NotEmpty(t, fired)
	for i := 1; i < len(fired); i++ {
		assert.GreaterOrEqual(t, fired[i].Sub(fired[i-1]), cooldown)
	}
	assert.Len(t, fired, 5) // 0, 700, 1400, 3000, 3700
}

func det(label string, dist float64) detection.Detection {
	return detection.Detection{Label: label, Distance: dist, Confidence: 0.9}
}

func TestSelectClosest(t *testing.T) {
	_, ok := SelectClosest(nil)
	assert.False(t, ok)

	got, ok := SelectClosest([]detection.Detection{det("chair", 2), det("person", 0.5), det("dog", 3)})
	require.True(t, ok)
	assert.Equal(t, "person", got.Label)

	got, _ = SelectClosest([]detection.Detection{det("car", 3), det("chair", 1), det("bench", 1), det("cup", 1)})
	assert.Equal(t, "chair", got.Label, "ties resolve to the first")

	got, _ = SelectClosest([]detection.Detection{det("only", 3)})
	assert.Equal(t, "only", got.Label)
}

func TestCompose(t *testing.T) {
	tests := map[float64]string{
		0.5: "chair ahead, about 0.5 meters",
		1:   "chair ahead, about 1 meters",
		2:   "chair ahead, about 2 meters",
		3:   "chair ahead, about 3 meters",
	}
	for dist, want := range tests {
		assert.Equal(t, want, Compose(det("chair", dist)))
	}
}

func TestScene(t *testing.T) {
	dets := []detection.Detection{
		{Label: "Chair", Box: image.Rect(500, 0, 625, 10), Direction: detection.Right},
		{Label: "person", Box: image.Rect(250, 0, 390, 10), Direction: detection.Center},
		{Label: "cup", Box: image.Rect(0, 0, 0, 10), Direction: detection.Left},
	}
	scene := NewScene(dets, 640, detection.InverseWidthPolicy{K: 1000})

	assert.Equal(t, Scene{
		{Name: "chair", Direction: "to your right", Distance: 8},
		{Name: "person", Direction: "right in front of you", Distance: 7},
		{Name: "cup", Direction: "to your left", Distance: 1000},
	}, scene)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(scene.JSON()), &decoded))
	assert.Equal(t, "chair", decoded[0]["name"])
	assert.Equal(t, "to your right", decoded[0]["direction"])
	assert.EqualValues(t, 8, decoded[0]["distance"])

	assert.Equal(t, "[]", NewScene(nil, 640, detection.InverseWidthPolicy{}).JSON())
}

func TestIsQuit(t *testing.T) {
	for _, s := range []string{"exit", "Quit", "STOP", " stop. ", "Exit!", "quit?"} {
		assert.True(t, IsQuit(s), s)
	}
	for _, s := range []string{"", "stop the music", "don't quit", "exiting", "what is in front of me"} {
		assert.False(t, IsQuit(s), s)
	}
}

func TestBuildPrompt(t *testing.T) {
	scene := Scene{{Name: "chair", Direction: "to your left", Distance: 12}}
	assert.Equal(t,
		`Detected objects JSON: [{"name":"chair","direction":"to your left","distance":12}]`+"\nUser asked: 'where can I sit?'",
		BuildPrompt("where can I sit?", scene))
}

func TestQueryClient(t *testing.T) {
	ctx := context.Background()
	scene := Scene{{Name: "door", Direction: "right in front of you", Distance: 40}}

	t.Run("answer", func(t *testing.T) {
		mock := inference.NewMock("  The door is right in front of you.  ")
		q := NewQueryClient(mock, nil)

		assert.Equal(t, "The door is right in front of you.", q.Ask(ctx, "where is the door?", scene))

		reqs := mock.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, SystemPrompt, reqs[0].System)
		require.Len(t, reqs[0].Messages, 1)
		assert.Contains(t, reqs[0].Messages[0].Content, `"name":"door"`)
		assert.Contains(t, reqs[0].Messages[0].Content, "User asked: 'where is the door?'")
	})

	t.Run("failure falls back", func(t *testing.T) {
		q := NewQueryClient(inference.WithError(&inference.APIError{StatusCode: 401, Provider: "gemini"}), nil)
		assert.Equal(t, FallbackAnswer, q.Ask(ctx, "hello", scene))
	})

	t.Run("empty answer falls back", func(t *testing.T) {
		q := NewQueryClient(inference.NewMock("   "), nil)
		assert.Equal(t, FallbackAnswer, q.Ask(ctx, "hello", nil))
	})
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.NotNil(t, cfg.ScenePolicy)
	assert.NotNil(t, cfg.Now)
	assert.EqualValues(t, 100, cfg.PollRate)

	cfg = Config{Confidence: 1.5}
	assert.Error(t, cfg.Validate())
	cfg = Config{Cooldown: -time.Second}
	assert.Error(t, cfg.Validate())
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "evaluating", StateEvaluating.String())
	assert.Equal(t, "silent", StateSilent.String())
	assert.Equal(t, "alerting", StateAlerting.String())

	b, err := json.Marshal(Status{Mode: ModeInteractive, State: StateAlerting})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"mode":"interactive"`)
	assert.Contains(t, string(b), `"state":"alerting"`)
}
