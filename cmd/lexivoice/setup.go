package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsmevijay17/LexiVoice/internal/embeddings"
)

var setupONNXCmd = &cobra.Command{
	Use:   "setup-onnx",
	Short: "Download the onnxruntime library for local embeddings",
	Long: fmt.Sprintf(`Download onnxruntime %s into embeddings.onnx_lib_dir so the fastembed
backend can run without a system install. Does nothing when the library
is already present or ONNX_PATH is set.`, embeddings.ONNXRuntimeVersion),
	Args: cobra.NoArgs,
	RunE: runSetupONNX,
}

func runSetupONNX(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Embeddings.ONNXLibDir == "" {
		return fmt.Errorf("embeddings.onnx_lib_dir is not set")
	}

	ctx, cancel := signalContext()
	defer cancel()

	path, err := embeddings.EnsureONNXRuntime(ctx, cfg.Embeddings.ONNXLibDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "onnxruntime ready: %s\n", path)
	return nil
}
