// ABOUTME: Function table for boundary calls
// ABOUTME: Parses string arguments and invokes the matching service operation
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Resonate-Protocol/resonate-spatial/internal/metrics"
	"github.com/charmbracelet/log"
)

var (
	// ErrUnknownFunction is returned for a function name not in the table
	ErrUnknownFunction = errors.New("unknown function")

	// ErrArity is returned when a call has the wrong number of arguments
	ErrArity = errors.New("wrong number of arguments")
)

// Service is the set of operations the bridge exposes
type Service interface {
	Start()
	Heartbeat()
	ID() string
	Create(ctx context.Context, payload, id string) (string, error)
	Destroy(id string) bool
	Pos(id string, x, y, z float32)
	Gain(id string, gain float32)
	Orientation(dx, dy, dz, ux, uy, uz float32) error
	List() string
}

type function struct {
	arity int
	call  func(ctx context.Context, args []string) (string, error)
}

// Dispatcher routes named calls to the service
type Dispatcher struct {
	functions map[string]function
	logger    *log.Logger
	metrics   *metrics.Metrics
}

// NewDispatcher builds the function table for svc
func NewDispatcher(svc Service, logger *log.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}

	d := &Dispatcher{
		logger:  logger.WithPrefix("bridge"),
		metrics: m,
	}

	d.functions = map[string]function{
		"start": {0, func(context.Context, []string) (string, error) {
			svc.Start()
			return "", nil
		}},
		"heartbeat": {0, func(context.Context, []string) (string, error) {
			svc.Heartbeat()
			return "", nil
		}},
		"id": {0, func(context.Context, []string) (string, error) {
			return svc.ID(), nil
		}},
		"create": {2, func(ctx context.Context, args []string) (string, error) {
			return svc.Create(ctx, args[0], args[1])
		}},
		"destroy": {1, func(_ context.Context, args []string) (string, error) {
			return strconv.FormatBool(svc.Destroy(args[0])), nil
		}},
		"pos": {4, func(_ context.Context, args []string) (string, error) {
			v, err := parseFloats(args[1:])
			if err != nil {
				return "", err
			}
			svc.Pos(args[0], v[0], v[1], v[2])
			return "", nil
		}},
		"gain": {2, func(_ context.Context, args []string) (string, error) {
			v, err := parseFloats(args[1:])
			if err != nil {
				return "", err
			}
			svc.Gain(args[0], v[0])
			return "", nil
		}},
		"orientation": {6, func(_ context.Context, args []string) (string, error) {
			v, err := parseFloats(args)
			if err != nil {
				return "", err
			}
			return "", svc.Orientation(v[0], v[1], v[2], v[3], v[4], v[5])
		}},
		"list": {0, func(context.Context, []string) (string, error) {
			return svc.List(), nil
		}},
	}
	return d
}

// Functions returns the callable names in sorted order
func (d *Dispatcher) Functions() []string {
	names := make([]string, 0, len(d.functions))
	for name := range d.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes fn with args
func (d *Dispatcher) Call(ctx context.Context, fn string, args []string) (string, error) {
	start := time.Now()

	f, ok := d.functions[fn]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownFunction, fn)
		d.metrics.BridgeCall("unknown", err, time.Since(start))
		return "", err
	}
	if len(args) != f.arity {
		err := fmt.Errorf("%w: %s takes %d, got %d", ErrArity, fn, f.arity, len(args))
		d.metrics.BridgeCall(fn, err, time.Since(start))
		return "", err
	}

	result, err := f.call(ctx, args)
	d.metrics.BridgeCall(fn, err, time.Since(start))
	if err != nil {
		d.logger.Debug("Call failed", "fn", fn, "err", err)
	}
	return result, err
}

// parseFloats parses every arg as a float32
func parseFloats(args []string) ([]float32, error) {
	out := make([]float32, len(args))
	for i, s := range args {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
