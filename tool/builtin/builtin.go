// Package builtin holds the self-contained tools: arithmetic, a weather stub
// and stop_loop.
package builtin

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/hupe1980/agentstarter/core"
	"github.com/hupe1980/agentstarter/tool"
)

// ErrDivisionByZero is returned by do_math for b == 0 with operation divide.
var ErrDivisionByZero = errors.New("division by zero")

// MathArgs are the do_math arguments.
type MathArgs struct {
	A         int    `json:"a"`
	B         int    `json:"b"`
	Operation string `json:"operation" enum:"sum,multiply,divide,subtract" description:"The mathematical operation to perform"`
}

// NewMathTool returns do_math.
func NewMathTool() tool.Tool {
	return tool.NewTypedTool("do_math", "Add, multiply, subtract, or divide 2 numbers",
		func(_ *core.ToolContext, args MathArgs) (any, error) {
			result, err := Calculate(args.A, args.B, args.Operation)
			if err != nil {
				return nil, err
			}
			return "The result is " + result, nil
		})
}

// Calculate applies operation to a and b. Division yields a decimal.
func Calculate(a, b int, operation string) (string, error) {
	switch operation {
	case "sum":
		return strconv.Itoa(a + b), nil
	case "subtract":
		return strconv.Itoa(a - b), nil
	case "multiply":
		return strconv.Itoa(a * b), nil
	case "divide":
		if b == 0 {
			return "", ErrDivisionByZero
		}
		return strconv.FormatFloat(float64(a)/float64(b), 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unknown operation %q", operation)
	}
}

// WeatherArgs are the get_weather arguments.
type WeatherArgs struct {
	Location string `json:"location" description:"City or place name"`
}

// NewWeatherTool returns get_weather, a fixed-answer stub.
func NewWeatherTool() tool.Tool {
	return tool.NewTypedTool("get_weather", "Get the current weather for a location",
		func(_ *core.ToolContext, args WeatherArgs) (any, error) {
			return fmt.Sprintf("The weather in %s is sunny and 72°F", args.Location), nil
		})
}

// Tools returns do_math, get_weather and stop_loop.
func Tools() []tool.Tool {
	return []tool.Tool{NewMathTool(), NewWeatherTool(), tool.NewStopLoopTool()}
}
