// Package smoke implements the beaconsmoke client: declarative smoke-test
// scenarios posted against a beacond endpoint, with response validation and
// an optional live-channel watch mode.
package smoke

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/vk/beacongrid/internal/beacon"
	"github.com/vk/beacongrid/internal/fsutil"
	"github.com/vk/beacongrid/internal/wire"
)

// DefaultEndpoint is where the built-in scenario posts to.
const DefaultEndpoint = "http://127.0.0.1:5000/api/receive"

// DefaultTimeout bounds each step's request (and watch wait).
const DefaultTimeout = 10 * time.Second

// Step is one message to post plus the response code it must produce.
type Step struct {
	Name       string
	Message    beacon.Message
	ExpectCode string
}

// Scenario is an ordered sequence of steps against one endpoint.
type Scenario struct {
	Endpoint string
	Timeout  time.Duration
	Steps    []Step
}

// --- HCL schema ---

type scenarioHCL struct {
	Defaults *defaultsHCL  `hcl:"defaults,block"`
	Messages []*messageHCL `hcl:"message,block"`
}

type defaultsHCL struct {
	Endpoint    *string `hcl:"endpoint,optional"`
	Timeout     *string `hcl:"timeout,optional"`
	NetworkMode *int    `hcl:"network_mode,optional"`
}

type messageHCL struct {
	Name          string       `hcl:"name,label"`
	IDNumber      string       `hcl:"id_number"`
	MessageID     string       `hcl:"message_id"`
	Time          string       `hcl:"time"`
	DeliveryCount int          `hcl:"delivery_count"`
	NetworkMode   *int         `hcl:"network_mode,optional"`
	Content       *string      `hcl:"content,optional"`
	Position      *positionHCL `hcl:"position,block"`
	ExpectCode    *string      `hcl:"expect_code,optional"`
}

type positionHCL struct {
	FixTime   string `hcl:"fix_time"`
	Latitude  string `hcl:"latitude"`
	Longitude string `hcl:"longitude"`
	Elevation string `hcl:"elevation,optional"`
	Payload   string `hcl:"payload,optional"`
}

// envFunc exposes env("NAME") to scenario files, so endpoints and device
// ids can come from the environment.
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": envFunc,
		},
	}
}

// Load reads a scenario from an HCL file, or from every .hcl file (in name
// order) when the path is a directory.
func Load(path string) (*Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scenario path: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario directory %s: %w", path, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no .hcl scenario files found under %s", path)
		}
	}

	scenario := &Scenario{
		Endpoint: DefaultEndpoint,
		Timeout:  DefaultTimeout,
	}
	var defaultNetworkMode *int

	parser := hclparse.NewParser()
	for _, file := range files {
		parsed, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}

		var sc scenarioHCL
		if diags := gohcl.DecodeBody(parsed.Body, evalContext(), &sc); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode %s: %w", file, diags)
		}

		if sc.Defaults != nil {
			if sc.Defaults.Endpoint != nil {
				scenario.Endpoint = *sc.Defaults.Endpoint
			}
			if sc.Defaults.Timeout != nil {
				timeout, err := time.ParseDuration(*sc.Defaults.Timeout)
				if err != nil {
					return nil, fmt.Errorf("invalid timeout in %s: %w", file, err)
				}
				scenario.Timeout = timeout
			}
			if sc.Defaults.NetworkMode != nil {
				defaultNetworkMode = sc.Defaults.NetworkMode
			}
		}

		for _, msg := range sc.Messages {
			step, err := buildStep(msg, defaultNetworkMode)
			if err != nil {
				return nil, fmt.Errorf("message %q in %s: %w", msg.Name, file, err)
			}
			scenario.Steps = append(scenario.Steps, step)
		}
	}

	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario contains no message blocks")
	}
	return scenario, nil
}

func buildStep(msg *messageHCL, defaultNetworkMode *int) (Step, error) {
	if (msg.Content == nil) == (msg.Position == nil) {
		return Step{}, fmt.Errorf("exactly one of content or a position block is required")
	}

	content := ""
	if msg.Content != nil {
		content = *msg.Content
	} else {
		encoded, err := wire.Position{
			FixTime:   msg.Position.FixTime,
			Latitude:  msg.Position.Latitude,
			Longitude: msg.Position.Longitude,
			Elevation: msg.Position.Elevation,
			Payload:   msg.Position.Payload,
		}.Encode()
		if err != nil {
			return Step{}, fmt.Errorf("invalid position: %w", err)
		}
		content = encoded
	}

	networkMode := 0
	switch {
	case msg.NetworkMode != nil:
		networkMode = *msg.NetworkMode
	case defaultNetworkMode != nil:
		networkMode = *defaultNetworkMode
	default:
		return Step{}, fmt.Errorf("network_mode is required (on the message or in defaults)")
	}

	expect := "ok"
	if msg.ExpectCode != nil {
		expect = *msg.ExpectCode
	}

	return Step{
		Name: msg.Name,
		Message: beacon.Message{
			IDNumber:      msg.IDNumber,
			MessageID:     msg.MessageID,
			Content:       content,
			Time:          msg.Time,
			DeliveryCount: msg.DeliveryCount,
			NetworkMode:   networkMode,
		},
		ExpectCode: expect,
	}, nil
}
