package platform

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// pulseNormVolume is PA_VOLUME_NORM, the raw value for 100%.
const pulseNormVolume = 65536

// sinkInput is one entry of `pactl -f json list sink-inputs`.
type sinkInput struct {
	Index  uint32
	PID    uint32
	Binary string
	Muted  bool
	Corked bool
	Volume float32
}

type pactlChannelVolume struct {
	Value int64 `json:"value"`
}

type pactlSinkInput struct {
	Index      uint32                        `json:"index"`
	Corked     bool                          `json:"corked"`
	Mute       bool                          `json:"mute"`
	Volume     map[string]pactlChannelVolume `json:"volume"`
	Properties map[string]string             `json:"properties"`
}

// parseSinkInputs decodes pactl JSON output. Entries without a client pid
// are dropped.
func parseSinkInputs(data []byte) ([]sinkInput, error) {
	var raw []pactlSinkInput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pactl output: %w", err)
	}

	out := make([]sinkInput, 0, len(raw))
	for _, r := range raw {
		pidStr := r.Properties["application.process.id"]
		if pidStr == "" {
			continue
		}
		pid, err := strconv.ParseUint(pidStr, 10, 32)
		if err != nil || pid == 0 {
			continue
		}

		var vol float32 = 1
		if len(r.Volume) > 0 {
			var sum int64
			for _, ch := range r.Volume {
				sum += ch.Value
			}
			vol = float32(sum) / float32(len(r.Volume)) / pulseNormVolume
		}

		out = append(out, sinkInput{
			Index:  r.Index,
			PID:    uint32(pid),
			Binary: r.Properties["application.process.binary"],
			Muted:  r.Mute,
			Corked: r.Corked,
			Volume: vol,
		})
	}
	return out, nil
}

// pulseVolumeArg formats a 0..1 level for `pactl set-sink-input-volume`.
func pulseVolumeArg(level float32) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	return strconv.FormatInt(int64(level*pulseNormVolume+0.5), 10)
}
