package analysis

// Mode is a named pairing of a vision model and a text model, sized for a
// given amount of host RAM. Callers pick a mode per request; unknown keys
// fall back to the default.
type Mode struct {
	Key           string `json:"-"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	DescriptionTH string `json:"description_th"`
	VisionModel   string `json:"vision_model"`
	TextModel     string `json:"text_model"`
	Icon          string `json:"icon"`
	MinRAMGB      int    `json:"min_ram_gb"`
}

// DefaultModeKey is used whenever a request names no mode or an unknown one.
const DefaultModeKey = "moondream"

// Modes lists the supported model modes in presentation order.
var Modes = []Mode{
	{
		Key:           "moondream",
		Name:          "Moondream",
		Description:   "Moondream 1.8B — Lightweight vision model, low RAM (~2 GB)",
		DescriptionTH: "Moondream 1.8B — โมเดลวิทัศน์ขนาดเล็ก ใช้ RAM น้อย (~2 GB)",
		VisionModel:   "moondream",
		TextModel:     "llama3.2:1b",
		Icon:          "🌙",
		MinRAMGB:      3,
	},
	{
		Key:           "llava",
		Name:          "LLaVA",
		Description:   "LLaVA 7B — Better accuracy, requires more RAM (~8 GB)",
		DescriptionTH: "LLaVA 7B — แม่นยำกว่า ต้องใช้ RAM มากกว่า (~8 GB)",
		VisionModel:   "llava:7b",
		TextModel:     "llama3.2:3b",
		Icon:          "🦙",
		MinRAMGB:      8,
	},
}

// ResolveMode returns the mode for key, falling back to the default mode when
// the key is unknown or empty.
func ResolveMode(key string) Mode {
	for _, m := range Modes {
		if m.Key == key {
			return m
		}
	}
	for _, m := range Modes {
		if m.Key == DefaultModeKey {
			return m
		}
	}
	return Modes[0]
}
