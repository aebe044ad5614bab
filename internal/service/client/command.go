package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/recorder-launcher/internal/config"
	domain "github.com/oshokin/recorder-launcher/internal/domain/recorder"
	"github.com/oshokin/recorder-launcher/internal/logger"
	"github.com/oshokin/recorder-launcher/internal/service/common"
)

// Action selects the bridge channel to call.
type Action string

// Supported actions.
const (
	ActionLoad Action = "load"
	ActionRun  Action = "run"
)

// Options configures a single bridge call.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// BridgeAddress overrides bridge_addr from config when specified.
	BridgeAddress string
	// Action is the channel to call.
	Action Action
	// Record is the payload of ActionRun.
	Record *domain.Record
	// Wait keeps ActionRun attached until the backend is ready or has failed.
	Wait bool
	// Output receives the JSON result, os.Stdout when nil.
	Output io.Writer
	// LogLevel overrides log_level from the settings.
	LogLevel string
}

const (
	// defaultRetryInterval defines the delay between attempts while the launcher is unreachable.
	defaultRetryInterval = 1 * time.Second
	// maxAttempts bounds retries on an unavailable launcher.
	maxAttempts = 5
)

var (
	errUnknownAction = errors.New("unknown action")
	errBackendFailed = errors.New("backend failed to start")
	errNoOutcome     = errors.New("notification stream ended before the backend settled")
)

// Run calls the requested bridge channel and prints the result as JSON.
//
//nolint:cyclop // Each action has its own short path.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "recorder-bridge")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if err = config.ApplyLogLevel(cfg, opts.LogLevel); err != nil {
		return err
	}

	bridgeAddress := cfg.BridgeAddress
	if opts.BridgeAddress != "" {
		bridgeAddress = opts.BridgeAddress
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	clientOptions := []common.Option{common.WithCallTimeout(cfg.Timeout)}
	if actor, actorErr := common.DetectActor(); actorErr == nil {
		clientOptions = append(clientOptions, common.WithActor(actor))
	}

	client, err := common.Dial(ctx, bridgeAddress, clientOptions...)
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Calling bridge", "bridge_address", bridgeAddress, "action", string(opts.Action))

	switch opts.Action {
	case ActionLoad:
		var record *domain.Record

		err = retry(ctx, func() error {
			record, err = client.LoadPreviousData(ctx)

			return err
		})
		if err != nil {
			return err
		}

		return writeJSON(output, record)
	case ActionRun:
		return run(ctx, client, opts, output)
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}
}

// run saves the record and, when asked, waits for the readiness notification.
func run(ctx context.Context, client *common.Client, opts *Options, output io.Writer) error {
	if !opts.Wait {
		var ack bool

		err := retry(ctx, func() error {
			var callErr error

			ack, callErr = client.SaveDataAndRunServer(ctx, opts.Record)

			return callErr
		})
		if err != nil {
			return err
		}

		return writeJSON(output, map[string]bool{"ack": ack})
	}

	// Subscribe before saving so the notification cannot be missed.
	stream, err := client.Subscribe(ctx)
	if err != nil {
		return err
	}

	defer stream.Close()

	ack, err := client.SaveDataAndRunServer(ctx, opts.Record)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Save acknowledged, waiting for the backend", "ack", ack)

	n, err := stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errNoOutcome
		}

		return err
	}

	if err = writeJSON(output, n); err != nil {
		return err
	}

	if n.Type == domain.NotificationFailed {
		return fmt.Errorf("%w: %s", errBackendFailed, n.Error)
	}

	return nil
}

// retry repeats call while the launcher is unavailable.
func retry(ctx context.Context, call func() error) error {
	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		err := call()
		if err == nil || status.Code(err) != codes.Unavailable || attempt == maxAttempts {
			return err
		}

		logger.WarnKV(ctx, "Launcher is unavailable, retrying", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
