// gradcheck: verifies analytic layer gradients against finite differences
//
// Usage:
//
//	gradcheck --activation=tanh --batch=4 --in=3 --out=2 --eps=1e-5
//	gradcheck --config=run.json --steps=50
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"neuron_lib/nn"
	"neuron_lib/tensor"
	"neuron_lib/utils"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

var (
	configFile   = flag.String("config", "", "JSON config file; flags given explicitly override it")
	activation   = flag.String("activation", "tanh", "Activation: tanh, leaky_relu, sigmoid, identity")
	alpha        = flag.Float64("alpha", nn.DefaultLeakyAlpha, "Negative slope for leaky_relu, in [0, 1)")
	lossName     = flag.String("loss", "mse", "Loss: mse")
	learningRate = flag.Float64("lr", 0.01, "Learning rate for descent steps")
	epsilon      = flag.Float64("eps", 1e-5, "Finite-difference step")
	tolerance    = flag.Float64("tol", 1e-4, "Maximum absolute gradient disagreement")
	formula      = flag.String("formula", "forward", "Finite-difference formula: forward, central")
	seed         = flag.Int64("seed", 42, "Random seed")
	batchSize    = flag.Int("batch", 4, "Examples per batch")
	inputDim     = flag.Int("in", 3, "Input dimension")
	outputDim    = flag.Int("out", 2, "Output dimension")
	steps        = flag.Int("steps", 0, "Gradient descent steps to run after the check")
	verbose      = flag.Bool("verbose", true, "Verbose output")
)

func main() {
	flag.Parse()
	utils.Verbose = *verbose

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ok, err := run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if !ok {
		os.Exit(1)
	}
}

// loadConfig starts from the config file (or defaults) and applies every
// flag the user set explicitly.
func loadConfig() (*utils.Config, error) {
	cfg := utils.DefaultConfig()
	if *configFile != "" {
		loaded, err := utils.LoadConfig(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	apply := func(name string, fn func()) {
		if set[name] || *configFile == "" {
			fn()
		}
	}
	apply("activation", func() { cfg.Activation = *activation })
	apply("alpha", func() { cfg.Alpha = *alpha })
	apply("loss", func() { cfg.Loss = *lossName })
	apply("lr", func() { cfg.LearningRate = *learningRate })
	apply("eps", func() { cfg.Epsilon = *epsilon })
	apply("tol", func() { cfg.Tolerance = *tolerance })
	apply("formula", func() { cfg.Formula = *formula })
	apply("seed", func() { cfg.Seed = *seed })
	apply("batch", func() { cfg.BatchSize = *batchSize })
	apply("in", func() { cfg.InputDim = *inputDim })
	apply("out", func() { cfg.OutputDim = *outputDim })
	apply("steps", func() { cfg.Steps = *steps })

	if err := utils.ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// run returns false when the analytic and numeric gradients disagree beyond
// the tolerance away from any activation kink.
func run(cfg *utils.Config) (bool, error) {
	utils.Logf("Configuration:")
	utils.Logf("  Activation:    %s", cfg.Activation)
	utils.Logf("  Loss:          %s", cfg.Loss)
	utils.Logf("  Shape:         batch %d, %d -> %d", cfg.BatchSize, cfg.InputDim, cfg.OutputDim)
	utils.Logf("  Epsilon:       %g (%s difference)", cfg.Epsilon, cfg.Formula)
	utils.Logf("  Tolerance:     %g", cfg.Tolerance)
	utils.Logf("  Seed:          %d", cfg.Seed)

	stats := &utils.TimingStats{}
	totalStart := time.Now()

	start := time.Now()
	act, err := nn.NewActivation(cfg.Activation, cfg.Alpha)
	if err != nil {
		return false, err
	}
	loss, err := nn.NewLoss(cfg.Loss)
	if err != nil {
		return false, err
	}
	f, err := nn.ParseFormula(cfg.Formula)
	if err != nil {
		return false, err
	}
	opt, err := nn.NewSGD(cfg.LearningRate)
	if err != nil {
		return false, err
	}
	src := rand.NewSource(uint64(cfg.Seed))
	layer, err := nn.NewLayer(cfg.OutputDim, act, src)
	if err != nil {
		return false, err
	}
	batch, err := syntheticBatch(rand.New(src), cfg.BatchSize, cfg.InputDim, cfg.OutputDim)
	if err != nil {
		return false, err
	}
	stats.InitTime = time.Since(start)

	start = time.Now()
	if _, err := layer.Forward(batch.X); err != nil {
		return false, err
	}
	stats.ForwardTime = time.Since(start)

	start = time.Now()
	analytic, err := nn.Backward(layer, loss, batch.X, batch.Y)
	if err != nil {
		return false, err
	}
	stats.BackwardTime = time.Since(start)

	start = time.Now()
	numeric, err := nn.Oracle{Epsilon: cfg.Epsilon, Formula: f}.Check(layer, loss, batch.X, batch.Y)
	if err != nil {
		return false, err
	}
	stats.OracleTime = time.Since(start)

	report, err := nn.Compare(analytic, numeric)
	if err != nil {
		return false, err
	}
	report.NearKink = layer.NearKink(batch.X, cfg.Epsilon)

	utils.Logf("\nLoss: %.6f", analytic.Loss)
	utils.Logf("dW (analytic):\n%v", mat.Formatted(analytic.DW, mat.Prefix(""), mat.Squeeze()))
	utils.Logf("dW (numeric):\n%v", mat.Formatted(numeric.DW, mat.Prefix(""), mat.Squeeze()))
	utils.Logf("db (analytic): %v", mat.Formatted(analytic.DB.T(), mat.Squeeze()))
	utils.Logf("db (numeric):  %v", mat.Formatted(numeric.DB.T(), mat.Squeeze()))
	utils.Logf("\nGradient check: %s", report)
	utils.Logf("Worst entry: analytic %.9g, numeric %.9g", worstEntry(analytic, report), worstEntry(numeric, report))

	ok := report.Within(cfg.Tolerance)
	switch {
	case ok:
		utils.Logf("PASS (tolerance %g)", cfg.Tolerance)
	case report.NearKink:
		utils.Logf("DISAGREE near a kink of %s; expected for a non-smooth activation", act)
		ok = true
	default:
		fmt.Fprintf(os.Stderr, "FAIL: %s exceeds tolerance %g\n", report, cfg.Tolerance)
	}

	if cfg.Steps > 0 {
		utils.Logf("\nRunning %d descent steps (lr %g)...", cfg.Steps, cfg.LearningRate)
		for i := 0; i < cfg.Steps; i++ {
			start = time.Now()
			g, err := nn.TrainStep(layer, loss, opt, batch.X, batch.Y)
			if err != nil {
				return false, err
			}
			stats.StepTime += time.Since(start)
			if i == 0 || (i+1)%10 == 0 || i == cfg.Steps-1 {
				utils.Logf("Step %d/%d | Loss: %.6f", i+1, cfg.Steps, g.Loss)
			}
		}
	}

	stats.TotalTime = time.Since(totalStart)
	utils.PrintTimingStats(stats, 1+cfg.Steps)
	return ok, nil
}

// syntheticBatch draws inputs uniformly from [-1, 1] and targets from
// [-0.5, 0.5], inside the range of every supported activation.
func syntheticBatch(rng *rand.Rand, batch, in, out int) (nn.Batch, error) {
	x := tensor.New(batch, in)
	for i := 0; i < batch; i++ {
		for j := 0; j < in; j++ {
			x.Set(2*rng.Float64()-1, i, j)
		}
	}
	y := tensor.New(batch, out)
	for i := 0; i < batch; i++ {
		for j := 0; j < out; j++ {
			y.Set(rng.Float64()-0.5, i, j)
		}
	}
	return nn.NewBatch(x, y)
}

// worstEntry returns the value of g at the position r points to.
func worstEntry(g *nn.Gradients, r nn.Report) float64 {
	if r.Param == "b" {
		return tensor.FromDense(g.DB).At(r.Row, 0)
	}
	return tensor.FromDense(g.DW).At(r.Row, r.Col)
}
