package config

const (
	defaultBind           = "0.0.0.0:5000"
	defaultDataDir        = "~/.local/share/boardsight"
	defaultCameraAddress  = "0"
	defaultRequestTimeout = 5
	defaultPluginDir      = "plugins"
	defaultPluginTimeout  = 5000
	defaultSolverPlugin   = "rubik-solver"
	defaultRubikScans     = 11
	defaultModelInputSize = 640
	defaultCardsCoords    = "coords.txt"
)

// defaultZones are the three cup positions of the reference board.
var defaultZones = []Zone{
	{X: 100, Y: 215, W: 100, H: 100},
	{X: 250, Y: 215, W: 100, H: 100},
	{X: 400, Y: 215, W: 100, H: 100},
}

// defaultColors are the reference cup colours in BGR order.
var defaultColors = []Color{
	{Name: "red", BGR: []int{65, 60, 160}},
	{Name: "white", BGR: []int{255, 255, 255}},
	{Name: "blue", BGR: []int{230, 216, 173}},
	{Name: "green", BGR: []int{80, 210, 90}},
	{Name: "yellow", BGR: []int{65, 210, 200}},
	{Name: "orange", BGR: []int{80, 140, 235}},
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			Bind: defaultBind,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Camera: Camera{
			Address:        defaultCameraAddress,
			RequestTimeout: defaultRequestTimeout,
		},
		Cups: Cups{
			RequiredDefault:        3,
			DisappearanceThreshold: 1.0,
			StopTime:               5.0,
			ConfidenceThreshold:    0.7,
			FallbackFrames:         10,
			MinBlobArea:            1000,
		},
		Zones:  cloneZones(defaultZones),
		Colors: cloneColors(defaultColors),
		Rubik: Rubik{
			SolverPlugin: defaultSolverPlugin,
			Scans:        defaultRubikScans,
		},
		Plugins: Plugins{
			Dir:       defaultPluginDir,
			TimeoutMs: defaultPluginTimeout,
		},
		Models: Models{
			XO: Model{
				Labels:    []string{"O", "X"},
				InputSize: defaultModelInputSize,
			},
			Cards: Model{
				InputSize: defaultModelInputSize,
			},
			CardsCoords: defaultCardsCoords,
		},
	}
}

func cloneZones(zones []Zone) []Zone {
	out := make([]Zone, len(zones))
	copy(out, zones)
	return out
}

func cloneColors(colors []Color) []Color {
	out := make([]Color, len(colors))
	for i, c := range colors {
		out[i] = Color{
			Name:  c.Name,
			BGR:   append([]int(nil), c.BGR...),
			Lower: append([]float64(nil), c.Lower...),
			Upper: append([]float64(nil), c.Upper...),
		}
	}
	return out
}
