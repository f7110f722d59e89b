package trigger

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/zfits/pkg/errors"
)

const (
	// Groups is the number of trigger boards per camera.
	Groups = 3
	// PatchesPerGroup is the number of patches served by one board.
	PatchesPerGroup = 144
	// Patches is the number of trigger patches in the camera.
	Patches = Groups * PatchesPerGroup
	// Fibers is the number of packed output bytes per board and sample.
	Fibers = 18
	// InputColumns is the number of input-trace columns per board and
	// sample; columns from PatchesPerGroup on are padding.
	InputColumns = 192

	outputFrame = Groups * Fibers       // bytes per sample, output family
	inputFrame  = Groups * InputColumns // bytes per sample, input family
)

// Layout holds the patch orderings. Output[i] (resp. Input[i]) is the
// hardware row that ends up at logical row i after decoding.
type Layout struct {
	Output []int `yaml:"output"`
	Input  []int `yaml:"input"`
}

// DefaultLayout returns a placeholder ordering derived from the board
// structure alone. It is not the measured camera cabling; real patch
// sort tables are loaded with LoadLayout from the file named by the
// trigger.layout setting.
//
// Output patches: within a board, packed bit b of fiber f carries patch
// b*Fibers+f. Input traces: within a board, column c carries patch
// (c%3)*48 + c/3.
func DefaultLayout() Layout {
	l := Layout{Output: make([]int, Patches), Input: make([]int, Patches)}
	for s := 0; s < Groups; s++ {
		base := s * PatchesPerGroup
		for fiber := 0; fiber < Fibers; fiber++ {
			for bit := 0; bit < 8; bit++ {
				l.Output[base+bit*Fibers+fiber] = base + fiber*8 + bit
			}
		}
		for c := 0; c < PatchesPerGroup; c++ {
			l.Input[base+(c%3)*48+c/3] = base + c
		}
	}
	return l
}

// LoadLayout reads a YAML layout file. A missing family falls back to the
// default ordering.
func LoadLayout(path string) (Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read patch layout").
			WithDetail("path", path)
	}

	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layout{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse patch layout").
			WithDetail("path", path)
	}

	def := DefaultLayout()
	if len(l.Output) == 0 {
		l.Output = def.Output
	}
	if len(l.Input) == 0 {
		l.Input = def.Input
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate checks that both orderings are permutations of 0..Patches-1.
func (l Layout) Validate() error {
	if err := validatePermutation("output", l.Output); err != nil {
		return err
	}
	return validatePermutation("input", l.Input)
}

func validatePermutation(name string, p []int) error {
	if len(p) != Patches {
		return errors.Newf(errors.ErrorTypeValidation, "%s layout has %d entries, want %d", name, len(p), Patches)
	}
	seen := make([]bool, Patches)
	for i, v := range p {
		if v < 0 || v >= Patches || seen[v] {
			return errors.Newf(errors.ErrorTypeValidation, "%s layout entry %d (%d) is out of range or repeated", name, i, v)
		}
		seen[v] = true
	}
	return nil
}

func inverse(p []int) []int {
	inv := make([]int, len(p))
	for i, v := range p {
		inv[v] = i
	}
	return inv
}
