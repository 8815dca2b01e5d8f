package problem

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CraigKelly/grais/density"
	"github.com/CraigKelly/grais/sampler"
)

func TestDefaultIsValid(t *testing.T) {
	assert := assert.New(t)

	p := Default()
	assert.NoError(p.Check())
	assert.Equal(sampler.DefaultConfig(), p.SamplerConfig())

	s, q, target, err := p.Sampler()
	require.NoError(t, err)
	assert.Equal(sampler.METROPOLIS, s.Kernel())
	assert.Equal(2, q.Dim())
	assert.Equal(2, target.Dim())
}

func TestEmptyBufferIsDefault(t *testing.T) {
	p, err := NewProblemFromBuffer(YAMLReader{}, []byte("  \n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestReadFile(t *testing.T) {
	assert := assert.New(t)

	p, err := NewProblemFromFile(YAMLReader{}, filepath.Join("testdata", "gmm.yaml"))
	require.NoError(t, err)

	assert.Equal("gmm-hmc", p.Name)
	assert.Equal(2, p.Dim)
	assert.Equal([]float64{3, 3}, p.Proposal.Scale)
	assert.Equal(density.GMM, p.Target.Type)
	assert.Equal(4, p.Target.NMixes)

	kc := p.KernelConfig()
	assert.Equal("hmc", kc.Name)
	assert.Equal(2, kc.NOuterSteps)
	assert.Equal(5, kc.NLeapfrog)
	assert.Equal([]float64{0.2}, kc.StepSize)

	cfg := p.SamplerConfig()
	assert.Equal(16, cfg.NIntermediate)
	assert.Equal("geometric", cfg.Spacing)
	assert.True(cfg.TuneStepSize)
	// Not in the file: defaults survive
	assert.True(cfg.ReplaceInvalid)
	assert.Equal(0.65, cfg.TargetAccept)
	assert.Equal(sampler.DefaultAdapter(), cfg.Adapter)

	assert.Equal(256, p.Run.BatchSize)
	assert.Equal(10, p.Run.Window)
	assert.Equal(40, p.Run.MaxPasses)
	assert.Equal(8, p.Run.Replicates)

	s, _, _, err := p.Sampler()
	require.NoError(t, err)
	assert.Equal("hmc", s.Kernel())
	assert.Equal(18, s.Schedule().Len())
}

func TestReadFileMissing(t *testing.T) {
	_, err := NewProblemFromFile(YAMLReader{}, filepath.Join("testdata", "nope.yaml"))
	assert.Error(t, err)
}

func TestRoundTripThroughWriter(t *testing.T) {
	assert := assert.New(t)

	r := YAMLReader{}
	p, err := NewProblemFromFile(r, filepath.Join("testdata", "gmm.yaml"))
	require.NoError(t, err)

	data, err := r.WriteProblem(p)
	require.NoError(t, err)
	assert.Contains(string(data), "n_intermediate: 16")

	again, err := NewProblemFromBuffer(r, data)
	require.NoError(t, err)
	assert.Equal(p, again)
}

func TestInvalidProblems(t *testing.T) {
	assert := assert.New(t)

	bad := map[string]string{
		"unknown key":     "dimension: 3\n",
		"not yaml":        "dim: [\n",
		"zero dim":        "dim: 0\n",
		"bad batch":       "run:\n  batch_size: 0\n",
		"bad window":      "run:\n  window: 1\n",
		"bad tolerance":   "run:\n  tolerance: 0\n",
		"bad replicates":  "run:\n  replicates: 0\n",
		"step size width": "kernel:\n  step_size: [1, 2, 3]\n",
		"bad density":     "target:\n  type: cauchy\n",
		"mean width":      "target:\n  mean: [1, 2, 3]\n",
	}
	for name, text := range bad {
		_, err := NewProblemFromBuffer(YAMLReader{}, []byte(text))
		assert.Error(err, name)
	}

	_, err := NewProblemFromBuffer(YAMLReader{}, []byte("ais:\n  n_intermediate: -2\n"))
	assert.Equal(sampler.ErrConfiguration, errors.Cause(err))

	_, err = NewProblemFromBuffer(YAMLReader{}, []byte("ais:\n  target_accept: 1.5\n"))
	assert.Equal(sampler.ErrConfiguration, errors.Cause(err))
}

func TestHMCNeedsGradient(t *testing.T) {
	// A mixture has a gradient; asking for hmc works
	text := "kernel:\n  name: hmc\ntarget:\n  type: mixture\n  components:\n    - mean: [1, 1]\n    - mean: [-1, -1]\n"
	p, err := NewProblemFromBuffer(YAMLReader{}, []byte(text))
	require.NoError(t, err)
	assert.Equal(t, "hmc", p.Kernel.Name)
}

func TestProposalMustSample(t *testing.T) {
	_, err := NewProblemFromBuffer(YAMLReader{}, []byte("proposal:\n  numerical_gradient: true\n"))
	assert.Error(t, err)
}
