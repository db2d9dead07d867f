package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	lurk "github.com/lurklang/lurk-go"
)

const defaultWritePermission = 0644 // -rw-r--r--

type rootFlags struct {
	configPath     string
	limit          int
	reductionCount int
	paramsDir      string
	logLevel       string
}

func main() {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "lurk",
		Short:         "Evaluate, prove and verify Lurk programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().IntVar(&flags.limit, "limit", 0, "Evaluation step limit (overrides config)")
	root.PersistentFlags().IntVar(&flags.reductionCount, "rc", 0, "Frames per folded step (overrides config)")
	root.PersistentFlags().StringVar(&flags.paramsDir, "params-dir", "", "Public parameter cache directory")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(evalCmd(flags), proveCmd(flags), verifyCmd(flags))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig folds the config file and flag overrides together and
// installs the logger.
func loadConfig(flags *rootFlags) (*lurk.Config, error) {
	cfg := lurk.NewConfig()
	if flags.configPath != "" {
		loaded, err := lurk.LoadConfigFile(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if flags.limit > 0 {
		cfg.SetInt("eval.limit", flags.limit)
	}
	if flags.reductionCount > 0 {
		cfg.SetInt("prover.reduction-count", flags.reductionCount)
	}
	if flags.paramsDir != "" {
		cfg.SetString("params.dir", flags.paramsDir)
	}
	if flags.logLevel != "" {
		cfg.SetString("log.level", flags.logLevel)
	}

	var level zapcore.Level
	if err := level.Set(cfg.GetString("log.level")); err != nil {
		return nil, err
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	lurk.SetLogger(logger)
	return cfg, nil
}

func evalCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "eval <expr>",
		Short: "Evaluate an expression and print its value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			store := lurk.NewStore()
			res, err := lurk.EvalSource(args[0], store, cfg.GetInt("eval.limit"), lurk.NewLang())
			if err != nil {
				return err
			}
			for _, emitted := range res.Emitted {
				fmt.Println(store.Fmt(emitted))
			}
			if res.Output.Errored() {
				return fmt.Errorf("evaluation error after %d iterations", res.Iterations)
			}
			fmt.Printf("[%d iterations] => %s\n", res.Iterations, store.Fmt(res.Output.Expr))
			return nil
		},
	}
}

func proveCmd(flags *rootFlags) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "prove <expr>",
		Short: "Evaluate an expression and emit a folding proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			store := lurk.NewStore()
			lang := lurk.NewLang()
			expr, err := store.Read(args[0])
			if err != nil {
				return err
			}
			res, err := lurk.EvaluateAndProve(expr, store.InitialEmptyEnv(), store,
				cfg.GetInt("eval.limit"), lang, cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, res.Proof.Ser(), defaultWritePermission); err != nil {
				return err
			}
			fmt.Printf("proof: %s (%d folded steps)\n", outPath, res.Steps)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "lurk.proof", "Where to write the proof")
	return cmd
}

func verifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <proof-path>",
		Short: "Verify a proof against its public IO",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			proof, err := lurk.DeProof(raw)
			if err != nil {
				return err
			}
			ok, err := lurk.VerifyProof(proof, lurk.NewLang(), cfg, proof.Z0[:], proof.Zn[:])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("invalid")
				os.Exit(1)
			}
			fmt.Println("ok")
			return nil
		},
	}
}
