package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"classlog/internal/platform/config"
	"classlog/internal/platform/logger"
	rlservice "classlog/internal/ratelimit/service"
	"classlog/internal/ratelimit/store/window"
	"classlog/internal/verification/handler"
	"classlog/internal/verification/orchestrator"
	"classlog/internal/verification/service"
	"classlog/internal/verification/store"
	"classlog/internal/verification/vision"
	"classlog/pkg/domain"
)

type verifyOpts struct {
	file       string
	classLogID string
	verbose    bool
}

func newVerifyCmd() *cobra.Command {
	var opts verifyOpts
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the verification pipeline in process",
		Long: `Run the full verification pipeline for one request file.

The file has the same shape as the HTTP request body. Vision settings come
from the environment (VISION_API_KEY, VISION_BASE_URL, VISION_MODEL,
VISION_TIMEOUT). Verdicts are kept in memory and printed.`,
		Example: `  classlogctl verify --file request.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "request JSON file, - for stdin")
	cmd.Flags().StringVar(&opts.classLogID, "class-log-id", "", "class log id (random when empty)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline progress to stderr")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runVerify(cmd *cobra.Command, opts verifyOpts) error {
	ctx := cmd.Context()

	raw, err := readInput(cmd, opts.file)
	if err != nil {
		return err
	}
	var body handler.VerifyRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return fmt.Errorf("decode %s: %w", opts.file, err)
	}
	if err := body.Validate(); err != nil {
		return err
	}

	classLogID := domain.ClassLogID(uuid.New())
	if opts.classLogID != "" {
		classLogID, err = domain.ParseClassLogID(opts.classLogID)
		if err != nil {
			return err
		}
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.Discard()
	if opts.verbose {
		log = logger.NewWithWriter(cmd.ErrOrStderr(), "text", "debug")
	}

	var analyzer orchestrator.Analyzer
	client, err := vision.New(vision.Config{
		APIKey:  cfg.Vision.APIKey,
		BaseURL: cfg.Vision.BaseURL,
		Model:   cfg.Vision.Model,
		Timeout: cfg.Vision.Timeout,
	}, vision.WithLogger(log))
	if err != nil && !errors.Is(err, vision.ErrNotConfigured) {
		return err
	}
	if err == nil {
		analyzer = client
	}

	throttle, err := rlservice.New(window.NewInMemoryStore(), rlservice.WithLogger(log))
	if err != nil {
		return err
	}
	verifier, err := service.New(orchestrator.New(analyzer, orchestrator.WithLogger(log)), throttle, store.NewMemory(),
		service.WithLogger(log),
	)
	if err != nil {
		return err
	}

	rateLimitKey := body.RateLimitKey
	if rateLimitKey == "" {
		rateLimitKey = "classlogctl"
	}
	req := body.ToModel(rateLimitKey)
	req.ClassLogID = classLogID

	result, err := verifier.Verify(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), handler.FromVerdict(classLogID, result.Verdict))
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(cmd.InOrStdin()); err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return buf.Bytes(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request file: %w", err)
	}
	return raw, nil
}
